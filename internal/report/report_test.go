package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kerf/internal/calc/focus"
	"Kerf/internal/calc/multipass"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

func results(t *testing.T) []*engine.Result {
	t.Helper()
	set, err := tables.Embedded()
	require.NoError(t, err)

	var out []*engine.Result
	for _, c := range []engine.Calculator{multipass.New(set), focus.New(set)} {
		ex := c.ExampleInputs()
		require.NotEmpty(t, ex)
		res, ok := engine.Run(c, ex[0].Inputs).(*engine.Result)
		require.True(t, ok, c.ID())
		out = append(out, res)
	}
	return out
}

func TestBuildOnePagePerResult(t *testing.T) {
	rs := results(t)
	pdf, err := Build(Input{Project: "Bracket run", Author: "Shop floor", Date: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)}, rs...)
	require.NoError(t, err)
	assert.Equal(t, len(rs), pdf.PageCount())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Input{Notes: "Compared against last week's settings ±5 %"}, results(t)[0]))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(Input{})
	assert.Error(t, err)
	_, err = Build(Input{}, nil)
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	res := &engine.Result{Metadata: engine.Metadata{CalculatorID: "focus", Fingerprint: "0123456789abcdef0123"}}
	assert.Equal(t, "focus-0123456789ab.pdf", Filename(res))
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "4", trim(4))
	assert.Equal(t, "0.25", trim(0.25))
	assert.Equal(t, "1.333", trim(4.0/3))
}
