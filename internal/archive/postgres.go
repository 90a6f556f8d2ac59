// Package archive mirrors appended records into a local PostgreSQL table so
// batch results survive independently of the remote spreadsheet.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"hyperbatch/internal/config"
	"hyperbatch/internal/report"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresDB owns the connection pool.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresConnection opens and pings a connection pool for the archive
// database.
func NewPostgresConnection(cfg config.ArchiveConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close releases the pool.
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunEntry is one archived run record.
type RunEntry struct {
	ID        int64         `json:"id" db:"id"`
	RunNumber int           `json:"run_number" db:"run_number"`
	Strategy  string        `json:"strategy" db:"strategy"`
	Status    string        `json:"status" db:"status"`
	Record    report.Record `json:"record" db:"record"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Repository handles archive table operations. It implements batch.Archiver.
type Repository struct {
	pool DatabasePool
	log  *logrus.Logger
}

// NewRepository creates a repository over the given pool.
func NewRepository(log *logrus.Logger, pool DatabasePool) *Repository {
	return &Repository{pool: pool, log: log}
}

// Init creates the archive table when it does not exist yet.
func (r *Repository) Init(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hyperopt_runs (
			id BIGSERIAL PRIMARY KEY,
			run_number INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create archive table: %w", err)
	}
	return nil
}

// SaveRecord inserts one run record. The full record is stored as JSON so
// schema changes never require a migration.
func (r *Repository) SaveRecord(ctx context.Context, runNumber int, status string, rec report.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		INSERT INTO hyperopt_runs (run_number, strategy, status, record)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.pool.Exec(ctx, query, runNumber, rec[report.FieldStrategy], status, payload); err != nil {
		return fmt.Errorf("failed to archive run %d: %w", runNumber, err)
	}
	return nil
}

// LastRunNumber returns the highest archived run number, or 0 when the
// archive is empty.
func (r *Repository) LastRunNumber(ctx context.Context) (int, error) {
	query := `SELECT COALESCE(MAX(run_number), 0) FROM hyperopt_runs`

	var last int
	err := r.pool.QueryRow(ctx, query).Scan(&last)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read last run number: %w", err)
	}
	return last, nil
}

// RecentRuns returns the most recently archived runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	query := `
		SELECT id, run_number, strategy, status, record, created_at
		FROM hyperopt_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get archived runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var entry RunEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.RunNumber, &entry.Strategy, &entry.Status, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived run: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Record); err != nil {
			return nil, fmt.Errorf("failed to decode archived record: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived runs: %w", err)
	}

	return entries, nil
}
