package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB is the data-access boundary. Every statement goes through one
// execution primitive, instrumented once, so each query shows up in the
// request trace.
type DB struct {
	x      *sqlx.DB
	driver string
	exec   tracing.QueryFunc
}

func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "file:educational_mvc.db?_foreign_keys=on"
	}

	x, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// One writer; also keeps shared-cache memory databases alive.
		x.SetMaxOpenConns(1)
		x.SetConnMaxLifetime(0)
	default:
		if cfg.MaxOpenConns > 0 {
			x.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			x.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		x.SetConnMaxLifetime(1 * time.Hour)
	}

	return Wrap(x), nil
}

// Wrap builds a DB over an open connection pool.
func Wrap(x *sqlx.DB) *DB {
	db := &DB{x: x, driver: x.DriverName()}
	db.exec = tracing.WrapQuery(db.execute, tracing.WithClassifier(ClassifyError))
	return db
}

func (db *DB) Driver() string {
	return db.driver
}

// SQL returns the underlying pool, shared with the ORM.
func (db *DB) SQL() *sql.DB {
	return db.x.DB
}

func (db *DB) Close() error {
	return db.x.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.x.PingContext(ctx)
}

// Exec runs a statement and returns the number of rows affected. Queries
// use ? placeholders and are rebound for the driver.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return db.exec(ctx, nil, db.x.Rebind(query), args...)
}

// Get scans a single row into dest. It returns sql.ErrNoRows when nothing
// matched; the trace records that as a successful read of zero rows.
func (db *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	n, err := db.exec(ctx, dest, db.x.Rebind(query), args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Select scans all rows into dest, a pointer to a slice.
func (db *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	_, err := db.exec(ctx, dest, db.x.Rebind(query), args...)
	return err
}

// execute is the single execution primitive behind Exec, Get and Select.
func (db *DB) execute(ctx context.Context, dest any, query string, args ...any) (int64, error) {
	if dest == nil {
		res, err := db.x.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	if isSlicePtr(dest) {
		if err := db.x.SelectContext(ctx, dest, query, args...); err != nil {
			return 0, err
		}
		return int64(reflect.ValueOf(dest).Elem().Len()), nil
	}

	if err := db.x.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

func isSlicePtr(dest any) bool {
	t := reflect.TypeOf(dest)
	if t.Kind() != reflect.Pointer {
		return false
	}
	e := t.Elem()
	return e.Kind() == reflect.Slice && e.Elem().Kind() != reflect.Uint8
}
