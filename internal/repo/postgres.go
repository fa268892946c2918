package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS calculations (
	id             UUID PRIMARY KEY,
	calculator_id  TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	operator       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	result         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS calculations_lookup
	ON calculations (calculator_id, fingerprint, schema_version, created_at DESC);
`

// WithSSLMode appends sslmode=require unless the DSN sets a mode already.
func WithSSLMode(connStr string) string {
	if strings.Contains(connStr, "sslmode=") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		if strings.Contains(connStr, "?") {
			return connStr + "&sslmode=require"
		}
		return connStr + "?sslmode=require"
	}
	return connStr + " sslmode=require"
}

// InitDB opens and pings the database.
func InitDB(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", WithSSLMode(connStr))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the history table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *PostgresRepository) Save(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `INSERT INTO calculations (id, calculator_id, fingerprint, schema_version, operator, created_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CalculatorID, rec.Fingerprint, rec.SchemaVersion, rec.Operator, rec.CreatedAt, []byte(rec.Result))
	if err != nil {
		return fmt.Errorf("save calculation: %w", err)
	}
	return nil
}

const columns = "id, calculator_id, fingerprint, schema_version, operator, created_at, result"

func (r *PostgresRepository) FindByFingerprint(ctx context.Context, calculatorID, fingerprint, schemaVersion string) (Record, error) {
	query := "SELECT " + columns + ` FROM calculations
		WHERE calculator_id=$1 AND fingerprint=$2 AND schema_version=$3
		ORDER BY created_at DESC LIMIT 1`
	rec, err := scan(r.db.QueryRowContext(ctx, query, calculatorID, fingerprint, schemaVersion))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := "SELECT " + columns + " FROM calculations ORDER BY created_at DESC LIMIT $1"
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Record, error) {
	var rec Record
	var body []byte
	err := s.Scan(&rec.ID, &rec.CalculatorID, &rec.Fingerprint, &rec.SchemaVersion, &rec.Operator, &rec.CreatedAt, &body)
	if err != nil {
		return Record{}, err
	}
	rec.Result = body
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
