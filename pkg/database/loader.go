package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"weekly-cohorts/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/schollz/progressbar/v3"
)

// Tables par défaut, même schéma que les fichiers CSV.
const (
	DefaultCustomersTable = "customers"
	DefaultOrdersTable    = "orders"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrInvalidTable signale un nom de table refusé (interpolé dans la requête).
var ErrInvalidTable = errors.New("table invalide")

// Open DSN mariadb:// ou mysql:// → format MySQL driver
func Open(dsn string) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplet (user/host/db)")
		}
		// Les DATETIME sont stockés en UTC; la conversion de fuseau se fait côté Go.
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// Redact masque le mot de passe d'un DSN driver pour les logs.
func Redact(mysqlDSN string) string {
	at := strings.LastIndex(mysqlDSN, "@")
	colon := strings.Index(mysqlDSN, ":")
	if at < 0 || colon < 0 || colon > at {
		return mysqlDSN
	}
	return mysqlDSN[:colon+1] + "***" + mysqlDSN[at:]
}

func customersQuery(table string) (string, error) {
	if !tableNameRe.MatchString(table) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return fmt.Sprintf(`SELECT c.id, c.created FROM %s c`, table), nil
}

func ordersQuery(table string) (string, error) {
	if !tableNameRe.MatchString(table) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return fmt.Sprintf(`SELECT o.id, o.user_id, o.created FROM %s o`, table), nil
}

// rowStream parcourt un *sql.Rows en avançant une barre de progression indéterminée.
type rowStream struct {
	ctx  context.Context
	rows *sql.Rows
	loc  *time.Location
	bar  *progressbar.ProgressBar
	read int
}

func query(ctx context.Context, db *sql.DB, q, description string, loc *time.Location, progress bool) (*rowStream, error) {
	log.Printf("[DEBUG] query=%s", q)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	s := &rowStream{ctx: ctx, rows: rows, loc: loc}
	if progress {
		s.bar = progressbar.Default(-1, description)
	}
	return s, nil
}

func (s *rowStream) advance() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	s.read++
	if s.bar != nil {
		_ = s.bar.Add(1)
	}
	return nil
}

func (s *rowStream) in(t time.Time) time.Time {
	if s.loc == nil {
		return t.UTC()
	}
	return t.In(s.loc)
}

// Close termine la barre et libère le curseur.
func (s *rowStream) Close() error {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
	return s.rows.Close()
}

// CustomerRows lit les inscriptions depuis la table clients.
type CustomerRows struct {
	*rowStream
}

// QueryCustomers lance la lecture de table (colonnes id, created).
func QueryCustomers(ctx context.Context, db *sql.DB, table string, loc *time.Location, progress bool) (*CustomerRows, error) {
	q, err := customersQuery(table)
	if err != nil {
		return nil, err
	}
	s, err := query(ctx, db, q, "customers", loc, progress)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return &CustomerRows{s}, nil
}

// Next retourne le client suivant, ou io.EOF.
func (c *CustomerRows) Next() (models.Customer, error) {
	if err := c.advance(); err != nil {
		return models.Customer{}, err
	}
	var (
		id      uint64
		created time.Time
	)
	if err := c.rows.Scan(&id, &created); err != nil {
		return models.Customer{}, fmt.Errorf("customers row %d: %w", c.read, err)
	}
	return models.Customer{ID: id, Created: c.in(created)}, nil
}

// OrderRows lit les commandes depuis la table commandes.
type OrderRows struct {
	*rowStream
}

// QueryOrders lance la lecture de table (colonnes id, user_id, created).
func QueryOrders(ctx context.Context, db *sql.DB, table string, loc *time.Location, progress bool) (*OrderRows, error) {
	q, err := ordersQuery(table)
	if err != nil {
		return nil, err
	}
	s, err := query(ctx, db, q, "orders", loc, progress)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return &OrderRows{s}, nil
}

// Next retourne la commande suivante, ou io.EOF.
func (o *OrderRows) Next() (models.Order, error) {
	if err := o.advance(); err != nil {
		return models.Order{}, err
	}
	var (
		id, userID uint64
		created    time.Time
	)
	if err := o.rows.Scan(&id, &userID, &created); err != nil {
		return models.Order{}, fmt.Errorf("orders row %d: %w", o.read, err)
	}
	return models.Order{ID: id, UserID: userID, Created: o.in(created)}, nil
}
