package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"weekly-cohorts/pkg/calculator"
	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/cohort"
	"weekly-cohorts/pkg/config"
	"weekly-cohorts/pkg/database"
	"weekly-cohorts/pkg/models"
	"weekly-cohorts/pkg/report"
	"weekly-cohorts/pkg/source"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// run enchaîne: index clients -> agrégation des commandes -> rapport.
func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	loc, err := calendar.ParseOffset(cfg.Timezone)
	if err != nil {
		return err
	}

	var db *sql.DB
	if cfg.UseDatabase() {
		conn, dsnUsed, err := database.Open(cfg.DSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()
		db = conn
		if cfg.Verbose {
			log.Printf("[INFO] connected dsn=%s", database.Redact(dsnUsed))
		}
	}

	idx, err := buildIndex(ctx, cfg, db, loc)
	if err != nil {
		return err
	}

	stats, err := aggregate(ctx, cfg, db, loc, idx)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	if err := report.NewGenerator(stats, idx).Write(out, cfg.Format); err != nil {
		_ = closeOut()
		return fmt.Errorf("report: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if cfg.Verbose {
		log.Printf("[INFO] report written to %s in %s", cfg.Output, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func buildIndex(ctx context.Context, cfg *config.Config, db *sql.DB, loc *time.Location) (*cohort.Index, error) {
	var src cohort.CustomerSource
	if db != nil {
		rows, err := database.QueryCustomers(ctx, db, cfg.CustomersTable, loc, cfg.Progress)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		src = rows
	} else {
		f, err := source.Open(cfg.CustomersFile, "customers", cfg.Progress)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, err := source.NewCustomerReader(f, loc)
		if err != nil {
			return nil, err
		}
		src = r
	}

	b := cohort.NewBuilder()
	n, err := b.Ingest(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("ingest customers: %w", err)
	}
	idx, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if cfg.Verbose {
		log.Printf("[INFO] customers read=%s unique=%s cohorts=%d",
			humanize.Comma(int64(n)), humanize.Comma(int64(idx.Customers())), idx.Len())
	}
	return idx, nil
}

func aggregate(ctx context.Context, cfg *config.Config, db *sql.DB, loc *time.Location, idx *cohort.Index) (*calculator.Statistics, error) {
	var src calculator.OrderSource
	if db != nil {
		rows, err := database.QueryOrders(ctx, db, cfg.OrdersTable, loc, cfg.Progress)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		src = rows
	} else {
		f, err := source.Open(cfg.OrdersFile, "orders", cfg.Progress)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, err := source.NewOrderReader(f, loc)
		if err != nil {
			return nil, err
		}
		src = r
	}

	stats, err := calculator.Run(ctx, src, idx, models.Config{
		MaxWeeks: cfg.MaxWeeks,
		Verbose:  cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	return stats, nil
}

// openOutput retourne stdout pour "-", sinon crée le fichier (et son dossier).
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create folder: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, f.Close, nil
}
