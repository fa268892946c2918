// Package repo stores the history of successful calculations. The engine
// never reads from it; transports may use FindByFingerprint to answer a
// repeated request without recomputing.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"Kerf/internal/engine"
)

var ErrNotFound = errors.New("calculation not found")

// DefaultListLimit applies when ListRecent is called with limit <= 0.
const DefaultListLimit = 50

// Record is one stored calculation.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	CalculatorID  string          `json:"calculator_id"`
	Fingerprint   string          `json:"fingerprint"`
	SchemaVersion string          `json:"schema_version"`
	Operator      string          `json:"operator,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Result        json.RawMessage `json:"result"`
}

// Decode unmarshals the stored result.
func (r Record) Decode() (*engine.Result, error) {
	var res engine.Result
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	return &res, nil
}

// NewRecord snapshots res for storage.
func NewRecord(res *engine.Result, operator string) (Record, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return Record{}, fmt.Errorf("encode result: %w", err)
	}
	return Record{
		ID:            uuid.New(),
		CalculatorID:  res.Metadata.CalculatorID,
		Fingerprint:   res.Metadata.Fingerprint,
		SchemaVersion: res.Metadata.SchemaVersion,
		Operator:      operator,
		CreatedAt:     res.Metadata.ComputedAt,
		Result:        body,
	}, nil
}

type Repository interface {
	Save(ctx context.Context, rec Record) error
	// FindByFingerprint returns the newest record with a matching
	// fingerprint and schema version, or ErrNotFound.
	FindByFingerprint(ctx context.Context, calculatorID, fingerprint, schemaVersion string) (Record, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Result = append(json.RawMessage(nil), rec.Result...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryRepository) FindByFingerprint(ctx context.Context, calculatorID, fingerprint, schemaVersion string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.CalculatorID == calculatorID && r.Fingerprint == fingerprint && r.SchemaVersion == schemaVersion {
			return clone(r), nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = clone(r)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(r Record) Record {
	r.Result = append(json.RawMessage(nil), r.Result...)
	return r
}
