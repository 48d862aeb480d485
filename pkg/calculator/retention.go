package calculator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/models"
)

// OrderSource fournit les commandes une par une; io.EOF marque la fin.
type OrderSource interface {
	Next() (models.Order, error)
}

// CohortLookup résout la cohorte d'un client et la semaine de départ d'une cohorte.
type CohortLookup interface {
	Lookup(customerID uint64) (cohortID int, ok bool)
	WeekStart(cohortID int) (time.Time, bool)
}

// WeekStats agrège une semaine d'une cohorte.
type WeekStats struct {
	customers map[uint64]struct{}
	// FirstTime est calculé par Finalize: clients sans commande les semaines précédentes.
	FirstTime int
}

// Orderers retourne le nombre de clients distincts ayant commandé dans la semaine.
func (w *WeekStats) Orderers() int {
	return len(w.customers)
}

// CohortStats agrège les commandes d'une cohorte, par semaine depuis le début de la cohorte.
type CohortStats struct {
	CohortID int
	MinWeek  int
	MaxWeek  int
	Weeks    map[int]*WeekStats
}

// Week retourne les statistiques de la semaine offset (nil si aucune commande).
func (c *CohortStats) Week(offset int) *WeekStats {
	return c.Weeks[offset]
}

// Statistics regroupe toutes les cohortes ayant au moins une commande.
type Statistics struct {
	Cohorts map[int]*CohortStats
	// MaxWeekOffset est la plus grande semaine observée, toutes cohortes confondues.
	MaxWeekOffset int

	OrdersRead    int
	OrdersUnknown int // client absent de l'index
	OrdersEarly   int // commande antérieure à la semaine de cohorte
	OrdersBeyond  int // au-delà de MaxWeeks
	OrdersCounted int

	finalized bool
}

// NewStatistics retourne un agrégat vide.
func NewStatistics() *Statistics {
	return &Statistics{Cohorts: make(map[int]*CohortStats)}
}

// Add compte customerID dans la semaine offset de cohortID.
func (s *Statistics) Add(cohortID int, customerID uint64, offset int) {
	if offset > s.MaxWeekOffset {
		s.MaxWeekOffset = offset
	}

	c, ok := s.Cohorts[cohortID]
	if !ok {
		c = &CohortStats{CohortID: cohortID, MinWeek: offset, MaxWeek: offset, Weeks: make(map[int]*WeekStats)}
		s.Cohorts[cohortID] = c
	}
	c.MinWeek = min(c.MinWeek, offset)
	c.MaxWeek = max(c.MaxWeek, offset)

	w, ok := c.Weeks[offset]
	if !ok {
		w = &WeekStats{customers: make(map[uint64]struct{})}
		c.Weeks[offset] = w
	}
	w.customers[customerID] = struct{}{}
	s.OrdersCounted++
}

// Weeks retourne le nombre de colonnes semaine du rapport (au moins 1).
func (s *Statistics) Weeks() int {
	return s.MaxWeekOffset + 1
}

// Finalize calcule les compteurs qui demandent toutes les commandes: les primo-commandeurs
// d'une semaine sont ceux qui n'apparaissent dans aucune semaine précédente de la cohorte.
func (s *Statistics) Finalize() {
	if s.finalized {
		return
	}
	for _, c := range s.Cohorts {
		offsets := make([]int, 0, len(c.Weeks))
		for o := range c.Weeks {
			offsets = append(offsets, o)
		}
		sort.Ints(offsets)

		seen := make(map[uint64]struct{})
		for _, o := range offsets {
			w := c.Weeks[o]
			w.FirstTime = 0
			for id := range w.customers {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				w.FirstTime++
			}
		}
	}
	s.finalized = true
}

// Run lit toutes les commandes, les rattache à leur cohorte via idx et agrège.
// Les commandes de clients inconnus, antérieures à la cohorte ou au-delà de
// cfg.MaxWeeks sont ignorées (et comptées).
func Run(ctx context.Context, orders OrderSource, idx CohortLookup, cfg models.Config) (*Statistics, error) {
	if cfg.MaxWeeks < 0 {
		return nil, fmt.Errorf("max_weeks < 0")
	}

	stats := NewStatistics()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := orders.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("orders: %w", err)
		}
		stats.OrdersRead++

		cohortID, ok := idx.Lookup(o.UserID)
		if !ok {
			stats.OrdersUnknown++
			if cfg.Verbose {
				log.Printf("[DEBUG] order=%d user=%d sans cohorte", o.ID, o.UserID)
			}
			continue
		}
		weekStart, ok := idx.WeekStart(cohortID)
		if !ok {
			return nil, fmt.Errorf("cohort %d has no week start", cohortID)
		}

		offset := calendar.WeeksBetween(weekStart, o.Created)
		switch {
		case offset < 0:
			stats.OrdersEarly++
			continue
		case cfg.MaxWeeks > 0 && offset >= cfg.MaxWeeks:
			stats.OrdersBeyond++
			continue
		}
		stats.Add(cohortID, o.UserID, offset)
	}

	stats.Finalize()
	if cfg.Verbose {
		log.Printf("[INFO] orders read=%s counted=%s unknown=%s early=%s beyond=%s cohorts=%d weeks=%d",
			humanize.Comma(int64(stats.OrdersRead)), humanize.Comma(int64(stats.OrdersCounted)),
			humanize.Comma(int64(stats.OrdersUnknown)), humanize.Comma(int64(stats.OrdersEarly)),
			humanize.Comma(int64(stats.OrdersBeyond)), len(stats.Cohorts), stats.Weeks())
	}
	return stats, nil
}
