package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Drivers soportados.
const (
	DriverSQLite     = "sqlite3"  // mattn/go-sqlite3, requiere cgo
	DriverSQLitePure = "sqlite"   // modernc.org/sqlite, Go puro
	DriverPostgres   = "postgres" // lib/pq
)

// DB es la conexión global usada por los comandos de la API.
var DB *Database

// Database envuelve *sql.DB y traduce los placeholders "?" al dialecto del driver.
type Database struct {
	*sql.DB
	driver string
}

// Querier lo implementan tanto *Database como *Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open abre la base de datos para el driver indicado sin crear el esquema.
func Open(driver, url string) (*Database, error) {
	dsn := url
	switch driver {
	case DriverSQLite:
		if err := ensureDir(url); err != nil {
			return nil, err
		}
		dsn = withParams(url, "_foreign_keys=on&_busy_timeout=5000")
	case DriverSQLitePure:
		if err := ensureDir(url); err != nil {
			return nil, err
		}
		dsn = withParams(url, "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver != DriverPostgres {
		// SQLite admite un solo escritor
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	return &Database{DB: db, driver: driver}, nil
}

// InitDB abre la conexión global, crea las tablas y ejecuta las migraciones.
func InitDB(driver, url string) error {
	db, err := Open(driver, url)
	if err != nil {
		return err
	}
	if err := CreateSchema(context.Background(), db); err != nil {
		db.Close()
		return err
	}
	if err := RunMigrations(context.Background(), db); err != nil {
		db.Close()
		return err
	}
	DB = db
	return nil
}

func ensureDir(url string) error {
	if url == ":memory:" || strings.HasPrefix(url, "file:") {
		return nil
	}
	dir := filepath.Dir(url)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func withParams(url, params string) string {
	if strings.Contains(url, "?") {
		return url + "&" + params
	}
	return url + "?" + params
}

// Driver devuelve el nombre del driver.
func (d *Database) Driver() string {
	return d.driver
}

// Rebind convierte "?" en "$n" para postgres.
func (d *Database) Rebind(query string) string {
	return rebind(d.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Tx es una transacción con la misma traducción de placeholders.
type Tx struct {
	*sql.Tx
	driver string
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, rebind(t.driver, query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, rebind(t.driver, query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, rebind(t.driver, query), args...)
}

// WithTx ejecuta fn dentro de una transacción; hace rollback si fn devuelve error.
func (d *Database) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	tx := &Tx{Tx: sqlTx, driver: d.driver}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return sqlTx.Commit()
}

// IsUniqueViolation reconoce violaciones de UNIQUE en los tres drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
