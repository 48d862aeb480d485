// Package source lit les fichiers CSV clients et commandes, ligne par ligne.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/models"
)

// ErrMalformedRow signale une ligne CSV illisible (ID non numérique, date invalide...).
var ErrMalformedRow = errors.New("malformed row")

// Colonnes par défaut quand l'en-tête ne les nomme pas.
var (
	customerColumns = columns{id: 0, created: 1}
	orderColumns    = columns{id: 0, userID: 2, created: 3}
)

type columns struct {
	id      int
	userID  int
	created int
}

func (c columns) width() int {
	return max(c.id, c.userID, c.created) + 1
}

// resolve cherche les colonnes par nom dans l'en-tête, sinon garde les positions par défaut.
func resolve(header []string, def columns) columns {
	out := def
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			out.id = i
		case "user_id":
			out.userID = i
		case "created":
			out.created = i
		}
	}
	return out
}

type rowReader struct {
	name string
	r    *csv.Reader
	cols columns
	loc  *time.Location
	line int
}

func newRowReader(name string, r io.Reader, loc *time.Location, def columns) (*rowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file: %w", name, ErrMalformedRow)
		}
		return nil, fmt.Errorf("%s header: %w", name, err)
	}
	return &rowReader{name: name, r: cr, cols: resolve(header, def), loc: loc, line: 1}, nil
}

func (rr *rowReader) next() ([]string, error) {
	for {
		rec, err := rr.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%s row %d: %w", rr.name, rr.line+1, err)
		}
		rr.line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < rr.cols.width() {
			return nil, fmt.Errorf("%s row %d: %d fields: %w", rr.name, rr.line, len(rec), ErrMalformedRow)
		}
		return rec, nil
	}
}

func (rr *rowReader) parseID(rec []string, col int, field string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(rec[col]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: %s %q: %w", rr.name, rr.line, field, rec[col], ErrMalformedRow)
	}
	return v, nil
}

func (rr *rowReader) parseCreated(rec []string, col int) (time.Time, error) {
	t, err := calendar.ParseUTC(rec[col], rr.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s row %d: created %q: %w", rr.name, rr.line, rec[col], ErrMalformedRow)
	}
	return t, nil
}

// CustomerReader lit un CSV "id,created" (dates UTC) et convertit les dates dans loc.
type CustomerReader struct {
	rows *rowReader
}

// NewCustomerReader lit l'en-tête et retourne le lecteur positionné sur la première ligne.
func NewCustomerReader(r io.Reader, loc *time.Location) (*CustomerReader, error) {
	rows, err := newRowReader("customers", r, loc, customerColumns)
	if err != nil {
		return nil, err
	}
	return &CustomerReader{rows: rows}, nil
}

// Next retourne le client suivant, ou io.EOF.
func (c *CustomerReader) Next() (models.Customer, error) {
	rec, err := c.rows.next()
	if err != nil {
		return models.Customer{}, err
	}
	id, err := c.rows.parseID(rec, c.rows.cols.id, "id")
	if err != nil {
		return models.Customer{}, err
	}
	created, err := c.rows.parseCreated(rec, c.rows.cols.created)
	if err != nil {
		return models.Customer{}, err
	}
	return models.Customer{ID: id, Created: created}, nil
}

// OrderReader lit un CSV "id,order_number,user_id,created".
type OrderReader struct {
	rows *rowReader
}

// NewOrderReader lit l'en-tête et retourne le lecteur positionné sur la première ligne.
func NewOrderReader(r io.Reader, loc *time.Location) (*OrderReader, error) {
	rows, err := newRowReader("orders", r, loc, orderColumns)
	if err != nil {
		return nil, err
	}
	return &OrderReader{rows: rows}, nil
}

// Next retourne la commande suivante, ou io.EOF.
func (o *OrderReader) Next() (models.Order, error) {
	rec, err := o.rows.next()
	if err != nil {
		return models.Order{}, err
	}
	id, err := o.rows.parseID(rec, o.rows.cols.id, "id")
	if err != nil {
		return models.Order{}, err
	}
	userID, err := o.rows.parseID(rec, o.rows.cols.userID, "user_id")
	if err != nil {
		return models.Order{}, err
	}
	created, err := o.rows.parseCreated(rec, o.rows.cols.created)
	if err != nil {
		return models.Order{}, err
	}
	return models.Order{ID: id, UserID: userID, Created: created}, nil
}

// File est un fichier d'entrée, éventuellement instrumenté par une barre de progression.
type File struct {
	io.Reader
	f   *os.File
	bar *progressbar.ProgressBar
}

// Open ouvre path; si progress est vrai, les octets lus alimentent une barre sur stderr.
func Open(path, description string, progress bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !progress {
		return &File{Reader: f, f: f}, nil
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	bar := progressbar.DefaultBytes(st.Size(), description)
	return &File{Reader: io.TeeReader(f, bar), f: f, bar: bar}, nil
}

// Close termine la barre et ferme le fichier.
func (f *File) Close() error {
	if f.bar != nil {
		_ = f.bar.Finish()
	}
	return f.f.Close()
}
