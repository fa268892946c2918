package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kerf/internal/calc/multipass"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

func calculator(t *testing.T) engine.Calculator {
	t.Helper()
	set, err := tables.Embedded()
	require.NoError(t, err)
	return multipass.New(set)
}

func item(thickness float64) map[string]any {
	return map[string]any{
		"material":      "mild_steel",
		"laser_type":    "fiber",
		"gas":           "oxygen",
		"thickness_mm":  thickness,
		"laser_power_w": 6000.0,
	}
}

func TestRunPreservesOrder(t *testing.T) {
	c := calculator(t)
	items := []map[string]any{item(4), item(-1), item(12), item(20), item(2)}

	rep, err := Run(context.Background(), c, items, 3)
	require.NoError(t, err)
	assert.Equal(t, multipass.ID, rep.CalculatorID)
	assert.Equal(t, 5, rep.Count)
	assert.Equal(t, 4, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)

	require.Len(t, rep.Items, 5)
	for i, it := range rep.Items {
		assert.Equal(t, i, it.Index)
	}
	require.NotNil(t, rep.Items[1].Failure)
	assert.Equal(t, engine.FailureStructural, rep.Items[1].Failure.Kind)

	for _, i := range []int{0, 2, 3, 4} {
		require.NotNil(t, rep.Items[i].Result, "item %d", i)
		want := engine.Run(c, items[i]).(*engine.Result)
		assert.Equal(t, want.Metadata.Fingerprint, rep.Items[i].Result.Metadata.Fingerprint)
	}
}

func TestRunSerialMatchesParallel(t *testing.T) {
	c := calculator(t)
	items := []map[string]any{item(3), item(9), item(15), item(25)}

	serial, err := Run(context.Background(), c, items, 1)
	require.NoError(t, err)
	parallel, err := Run(context.Background(), c, items, 8)
	require.NoError(t, err)
	for i := range items {
		assert.Equal(t, len(serial.Items[i].Result.Steps), len(parallel.Items[i].Result.Steps))
		assert.True(t, serial.Items[i].Result.Outcome.Cost.Total.Equal(parallel.Items[i].Result.Outcome.Cost.Total))
	}
}

func TestRunRejectsEmptyAndOversized(t *testing.T) {
	c := calculator(t)
	_, err := Run(context.Background(), c, nil, 2)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Run(context.Background(), c, make([]map[string]any, MaxItems+1), 2)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, calculator(t), []map[string]any{item(5), item(6)}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
