// Package cohort construit l'index ID client -> cohorte hebdomadaire.
//
// Builder reçoit les inscriptions dans l'ordre du fichier (presque monotone en ID),
// range chaque ID dans l'arbre de segments de sa semaine d'inscription, puis Build
// aplatit chaque arbre et retourne un Index figé.
package cohort

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/models"
	"weekly-cohorts/pkg/segtree"
)

// ErrAlreadyBuilt est retourné par Add et Build après un premier Build.
var ErrAlreadyBuilt = errors.New("cohort index already built")

// CustomerSource fournit les inscriptions une par une; io.EOF marque la fin.
type CustomerSource interface {
	Next() (models.Customer, error)
}

type pending struct {
	weekStart time.Time
	tree      *segtree.Tree
}

// Builder accumule un arbre de segments par cohorte.
type Builder struct {
	cohorts map[int]*pending
	added   int
	built   bool
}

// NewBuilder retourne un Builder vide.
func NewBuilder() *Builder {
	return &Builder{cohorts: make(map[int]*pending)}
}

// Add range customerID dans la cohorte de la semaine de created (fuseau de created).
// Aucun dédoublonnage entre cohortes n'est tenté.
func (b *Builder) Add(customerID uint64, created time.Time) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	cohortID := calendar.WeekID(created)
	p, ok := b.cohorts[cohortID]
	if !ok {
		p = &pending{weekStart: calendar.WeekStart(created), tree: segtree.New()}
		b.cohorts[cohortID] = p
	}
	if err := p.tree.Insert(customerID); err != nil {
		return fmt.Errorf("cohort %d: customer %d: %w", cohortID, customerID, err)
	}
	b.added++
	return nil
}

// Ingest consomme src jusqu'à io.EOF et retourne le nombre d'inscriptions lues.
func (b *Builder) Ingest(ctx context.Context, src CustomerSource) (int, error) {
	read := 0
	for {
		if err := ctx.Err(); err != nil {
			return read, err
		}
		c, err := src.Next()
		if errors.Is(err, io.EOF) {
			return read, nil
		}
		if err != nil {
			return read, err
		}
		if err := b.Add(c.ID, c.Created); err != nil {
			return read, err
		}
		read++
	}
}

// Len retourne le nombre de cohortes vues.
func (b *Builder) Len() int {
	return len(b.cohorts)
}

// Added retourne le nombre d'appels Add réussis (doublons compris).
func (b *Builder) Added() int {
	return b.added
}

// Build aplatit chaque arbre une seule fois, vérifie ses invariants et retourne l'index figé.
// Une violation d'invariant interrompt la construction.
func (b *Builder) Build() (*Index, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}

	entries := make([]*Entry, 0, len(b.cohorts))
	for cohortID, p := range b.cohorts {
		if err := p.tree.Validate(); err != nil {
			return nil, fmt.Errorf("cohort %d: %w", cohortID, err)
		}
		segments, count := p.tree.Flatten()
		if err := segtree.ValidateSegments(segments); err != nil {
			return nil, fmt.Errorf("cohort %d: %w", cohortID, err)
		}
		entries = append(entries, &Entry{
			CohortID:  cohortID,
			WeekStart: p.weekStart,
			Segments:  segments,
			Count:     count,
		})
	}

	b.built = true
	return NewIndex(entries), nil
}
