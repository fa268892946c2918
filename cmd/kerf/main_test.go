package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"

	"Kerf/internal/engine"
	"Kerf/internal/importer"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newApp(&out, &errOut).Run(append([]string{"kerf"}, args...))
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	require.True(t, errors.As(err, &ec), "expected an exit error, got %v", err)
	return ec.ExitCode()
}

func TestList(t *testing.T) {
	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "multipass")
	assert.Contains(t, out, "gas-pressure")
	assert.Contains(t, out, "focus")
}

func TestDescribeAndDefaults(t *testing.T) {
	out, err := runCLI(t, "describe", "focus")
	require.NoError(t, err)
	assert.Contains(t, out, "focal_length_mm")

	out, err = runCLI(t, "defaults", "gas-pressure")
	require.NoError(t, err)
	var defaults map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defaults))
	assert.Equal(t, "nitrogen", defaults["gas"])

	_, err = runCLI(t, "describe", "plasma")
	assert.Equal(t, ExitInvalidInput, exitCode(t, err))
}

func TestCalcWithSetAndExample(t *testing.T) {
	out, err := runCLI(t, "calc", "--format", "json",
		"--set", "material=stainless_steel", "--set", "thickness_mm=8", "gas-pressure")
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "gas-pressure", res.Metadata.CalculatorID)
	assert.Equal(t, 8.0, res.Inputs["thickness_mm"])

	out, err = runCLI(t, "calc", "--example", "thick-mild-steel", "multipass")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "fingerprint ")
}

func TestCalcFailures(t *testing.T) {
	_, err := runCLI(t, "calc", "--set", "thickness_mm=-3", "multipass")
	assert.Equal(t, ExitInvalidInput, exitCode(t, err))

	_, err = runCLI(t, "calc", "--set", "material=titanium", "--set", "gas=oxygen", "multipass")
	assert.Equal(t, ExitInvalidInput, exitCode(t, err))
	assert.Contains(t, err.Error(), "domain")

	_, err = runCLI(t, "calc", "--set", "thickness_mm", "multipass")
	assert.Equal(t, ExitInvalidInput, exitCode(t, err))

	_, err = runCLI(t, "calc", "--example", "nope", "multipass")
	assert.Equal(t, ExitInvalidInput, exitCode(t, err))
}

func TestCalcFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"material":"aluminum","thickness_mm":4,"laser_power_w":3000}`), 0o600))

	out, err := runCLI(t, "calc", "--format", "json", "--input", path, "--set", "thickness_mm=5", "focus")
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 5.0, res.Inputs["thickness_mm"], "--set overrides the file")
	assert.Equal(t, "aluminum", res.Inputs["material"])
}

func TestBatchJSONAndXLSX(t *testing.T) {
	dir := t.TempDir()
	jobs := filepath.Join(dir, "jobs.json")
	require.NoError(t, os.WriteFile(jobs, []byte(`[
		{"material":"mild_steel","gas":"oxygen","thickness_mm":10,"laser_power_w":4000},
		{"material":"titanium","gas":"oxygen","thickness_mm":3,"laser_power_w":2000}
	]`), 0o600))

	out, err := runCLI(t, "batch", "--input", jobs, "--workers", "2", "gas-pressure")
	require.NoError(t, err)
	var rep struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)

	results := filepath.Join(dir, "results.xlsx")
	out, err = runCLI(t, "batch", "--input", jobs, "--output", results, "gas-pressure")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1 succeeded, 1 failed"))

	f, err := excelize.OpenFile(results)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(importer.ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.pdf")
	out, err := runCLI(t, "report", "--example", "thick-mild-steel", "--project", "Frames", "--output", path, "multipass")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestHashPassword(t *testing.T) {
	out, err := runCLI(t, "hash-password", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "$2a$"))
}
