// Package calendar regroupe les fonctions de semaine calendaire (début lundi, ISO 8601)
// et le parsing des décalages horaires fixes utilisés par les fichiers d'entrée.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout est le format des dates dans les fichiers clients/commandes (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidOffset signale un décalage horaire illisible (attendu: ±HHMM ou ±HH:MM).
var ErrInvalidOffset = errors.New("invalid utc offset")

// WeekStart retourne le lundi 00:00 de la semaine contenant t, dans la location de t.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	back := (int(t.Weekday()) + 6) % 7
	return time.Date(y, m, d-back, 0, 0, 0, 0, t.Location())
}

// WeekID encode la semaine de t en isoYear*100 + isoWeek (ex: 201527).
// L'année ISO évite la collision entre la semaine 1 et les derniers jours de décembre.
func WeekID(t time.Time) int {
	year, week := WeekStart(t).ISOWeek()
	return year*100 + week
}

// WeeksBetween retourne le nombre de semaines entières entre les semaines de from et to.
// Négatif si to précède from.
func WeeksBetween(from, to time.Time) int {
	return daysBetween(WeekStart(from), WeekStart(to)) / 7
}

// daysBetween compte en jours civils pour ne pas dépendre des changements d'heure.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()) / 24
}

// ParseOffsetMinutes lit "+HHMM", "-HHMM", "+HH:MM", "Z" ou "UTC" et retourne le décalage signé en minutes.
func ParseOffsetMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "Z", "UTC":
		return 0, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}

	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}

	digits := strings.ReplaceAll(s[1:], ":", "")
	if len(digits) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	minutes, err := strconv.Atoi(digits[2:])
	if err != nil || hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	return sign * (hours*60 + minutes), nil
}

// ParseOffset retourne une location fixe correspondant au décalage s.
func ParseOffset(s string) (*time.Location, error) {
	minutes, err := ParseOffsetMinutes(s)
	if err != nil {
		return nil, err
	}
	return time.FixedZone(formatOffset(minutes), minutes*60), nil
}

func formatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
}

// ParseUTC lit un horodatage UTC au format TimestampLayout et le convertit dans loc.
func ParseUTC(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		return t, nil
	}
	return t.In(loc), nil
}
