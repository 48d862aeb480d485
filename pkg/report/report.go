// Package report met en forme les statistiques de rétention par cohorte.
//
// Pour chaque cohorte ayant au moins une commande (de la plus récente à la plus
// ancienne) deux lignes sont produites:
//
//	06/29/2015 - 07/05/2015, 5 customers, 40.00% orderers (2), ...
//	"", "", 40.00% 1st time (2), ...
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"weekly-cohorts/pkg/calculator"
	"weekly-cohorts/pkg/cohort"
)

// Formats de sortie supportés.
const (
	FormatCSV   = "csv"
	FormatTable = "table"
)

const dateLayout = "01/02/2006"

// ErrUnknownFormat signale un format de sortie non supporté.
var ErrUnknownFormat = errors.New("unknown report format")

// Catalog donne accès aux métadonnées des cohortes (semaine, nombre de clients).
type Catalog interface {
	CohortIDs() []int
	Cohort(cohortID int) (*cohort.Entry, bool)
}

// Generator construit les lignes du rapport.
type Generator struct {
	stats   *calculator.Statistics
	catalog Catalog
}

// NewGenerator retourne un générateur; stats doit être finalisé.
func NewGenerator(stats *calculator.Statistics, catalog Catalog) *Generator {
	return &Generator{stats: stats, catalog: catalog}
}

// Header retourne "Cohort", "Customers", "0-6 days", "7-13 days", ...
func (g *Generator) Header() []string {
	weeks := g.stats.Weeks()
	header := make([]string, 0, weeks+2)
	header = append(header, "Cohort", "Customers")
	for w := 0; w < weeks; w++ {
		header = append(header, fmt.Sprintf("%d-%d days", w*7, w*7+6))
	}
	return header
}

// Rows retourne les lignes du rapport, deux par cohorte ayant des commandes.
func (g *Generator) Rows() [][]string {
	weeks := g.stats.Weeks()
	var rows [][]string
	for _, cohortID := range g.catalog.CohortIDs() {
		cs, ok := g.stats.Cohorts[cohortID]
		if !ok {
			continue
		}
		entry, ok := g.catalog.Cohort(cohortID)
		if !ok || entry.Count == 0 {
			continue
		}

		orderers := make([]string, weeks+2)
		firstTime := make([]string, weeks+2)
		orderers[0] = cohortRange(entry.WeekStart)
		orderers[1] = fmt.Sprintf("%d customers", entry.Count)

		for offset, w := range cs.Weeks {
			if offset >= weeks {
				continue
			}
			orderers[offset+2] = fmt.Sprintf("%s orderers (%d)", percent(w.Orderers(), entry.Count), w.Orderers())
			firstTime[offset+2] = fmt.Sprintf("%s 1st time (%d)", percent(w.FirstTime, entry.Count), w.FirstTime)
		}
		rows = append(rows, orderers, firstTime)
	}
	return rows
}

func cohortRange(weekStart time.Time) string {
	return weekStart.Format(dateLayout) + " - " + weekStart.AddDate(0, 0, 6).Format(dateLayout)
}

func percent(n, total int) string {
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}

// Write écrit le rapport dans w au format demandé.
func (g *Generator) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatCSV:
		return g.WriteCSV(w)
	case FormatTable:
		return g.WriteTable(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteCSV écrit l'en-tête puis les lignes au format CSV.
func (g *Generator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(g.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(g.Rows()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteTable rend le rapport sous forme de tableau texte.
func (g *Generator) WriteTable(w io.Writer) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	header := table.Row{}
	for _, h := range g.Header() {
		header = append(header, h)
	}
	tbl.AppendHeader(header)

	rows := g.Rows()
	for i, r := range rows {
		row := make(table.Row, 0, len(r))
		for _, cell := range r {
			row = append(row, cell)
		}
		tbl.AppendRow(row)
		// séparateur après chaque paire de lignes
		if i%2 == 1 && i < len(rows)-1 {
			tbl.AppendSeparator()
		}
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d cohorts", len(rows)/2)})
	tbl.Render()
	return nil
}
