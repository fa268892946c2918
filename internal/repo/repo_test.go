package repo

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kerf/internal/engine"
)

func record(id, fp string, at time.Time) Record {
	res := &engine.Result{
		Inputs:   map[string]any{"thickness_mm": 8.0},
		Strategy: engine.StrategyCandidate{Name: "uniform", Confidence: 0.9},
		Metadata: engine.Metadata{CalculatorID: id, SchemaVersion: engine.SchemaVersion, Fingerprint: fp, ComputedAt: at},
	}
	rec, err := NewRecord(res, "shop")
	if err != nil {
		panic(err)
	}
	return rec
}

// exercise runs the contract every Repository must satisfy.
func exercise(t *testing.T, r Repository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := record("focus", "aaa", base)
	second := record("focus", "aaa", base.Add(time.Minute))
	other := record("gas-pressure", "bbb", base.Add(2*time.Minute))
	for _, rec := range []Record{first, second, other} {
		require.NoError(t, r.Save(ctx, rec))
	}

	got, err := r.FindByFingerprint(ctx, "focus", "aaa", engine.SchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "newest match wins")
	assert.Equal(t, "shop", got.Operator)

	res, err := got.Decode()
	require.NoError(t, err)
	assert.Equal(t, "uniform", res.Strategy.Name)
	assert.Equal(t, 8.0, res.Inputs["thickness_mm"])

	_, err = r.FindByFingerprint(ctx, "focus", "aaa", "0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindByFingerprint(ctx, "multi-pass", "aaa", engine.SchemaVersion)
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := r.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, other.ID, recent[0].ID)
	assert.Equal(t, second.ID, recent[1].ID)
}

func TestMemoryRepository(t *testing.T) {
	exercise(t, NewMemoryRepository())
}

func TestMemoryRepositoryCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepository()
	rec := record("focus", "abc", time.Now())
	require.NoError(t, m.Save(ctx, rec))

	got, err := m.FindByFingerprint(ctx, "focus", "abc", engine.SchemaVersion)
	require.NoError(t, err)
	got.Result[0] = 'X'

	again, err := m.FindByFingerprint(ctx, "focus", "abc", engine.SchemaVersion)
	require.NoError(t, err)
	assert.True(t, json.Valid(again.Result))
}

func TestMemoryRepositoryAssignsIDAndHonoursContext(t *testing.T) {
	m := NewMemoryRepository()
	rec := record("focus", "abc", time.Now())
	rec.ID = uuid.Nil
	require.NoError(t, m.Save(context.Background(), rec))
	list, err := m.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, uuid.Nil, list[0].ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Save(ctx, rec), context.Canceled)
}

func TestWithSSLMode(t *testing.T) {
	tests := map[string]string{
		"postgres://u@h/db":                   "postgres://u@h/db?sslmode=require",
		"postgres://u@h/db?connect_timeout=5": "postgres://u@h/db?connect_timeout=5&sslmode=require",
		"user=u dbname=db":                    "user=u dbname=db sslmode=require",
		"user=u sslmode=disable":              "user=u sslmode=disable",
	}
	for in, want := range tests {
		assert.Equal(t, want, WithSSLMode(in), in)
	}
}

// TestPostgresRepository runs against a real database when
// KERF_TEST_DATABASE_URL is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("KERF_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KERF_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := InitDB(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS calculations")
	require.NoError(t, err)
	r := NewPostgresRepository(db)
	require.NoError(t, r.Migrate(ctx))
	exercise(t, r)
}
