package historyquiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "github.com/mattn/go-sqlite3"    // driver: sqlite3
)

// Database drivers accepted by OpenDB.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is a Storage backed by a single key-value table in sqlite or postgres
type DB struct {
	db     *sql.DB
	driver string
}

// OpenDB opens a new database connection and ensures the schema exists
func OpenDB(ctx context.Context, driver, dsn string) (*DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite3"
		if dsn == "" {
			dsn = "./quiz.db"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/historyquiz?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: db, driver: driver}
	if err := d.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// CloseDB closes the database connection
func (d *DB) CloseDB() error {
	return d.db.Close()
}

// CreateTables creates the key-value table if it doesn't exist
func (d *DB) CreateTables(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS kv_store (
		store_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to execute %s: %w", query, err)
	}
	return nil
}

// Get retrieves the value stored under key
func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := d.db.QueryRowContext(ctx, d.rebind("SELECT value FROM kv_store WHERE store_key = ?"), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set inserts or replaces the value stored under key
func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO kv_store (store_key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (store_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, string(value), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, d.rebind("DELETE FROM kv_store WHERE store_key = ?"), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
