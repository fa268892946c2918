// Package importer reads calculation requests from spreadsheets and writes
// batch outcomes back out.
//
// The first row of the first sheet holds field names. Every following
// non-empty row is one request. Empty cells are left out of the request, so
// optional fields take their schema defaults and an empty required field
// fails validation.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"Kerf/internal/batch"
	"Kerf/internal/engine"
)

const (
	ResultsSheet = "Results"
	PassesSheet  = "Passes"
)

var ErrEmptySheet = errors.New("sheet has no data rows")

// Row is one request read from a sheet. Line is the 1-based sheet row.
type Row struct {
	Line   int
	Inputs map[string]any
}

// ReadRequests parses the first sheet of an XLSX workbook. Cells under
// numeric fields are parsed as numbers; a cell that does not parse is kept
// as text so validation reports it against the field.
func ReadRequests(r io.Reader, schema engine.Schema) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []Row
	for i := 1; i < len(rows); i++ {
		inputs := make(map[string]any)
		for col, cell := range rows[i] {
			cell = strings.TrimSpace(cell)
			if col >= len(header) || header[col] == "" || cell == "" {
				continue
			}
			inputs[header[col]] = schema.Coerce(header[col], cell)
		}
		if len(inputs) == 0 {
			continue
		}
		out = append(out, Row{Line: i + 1, Inputs: inputs})
	}
	if len(out) == 0 {
		return nil, ErrEmptySheet
	}
	return out, nil
}

// Inputs extracts the request maps in row order.
func Inputs(rows []Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Inputs
	}
	return out
}

var resultHeader = []any{
	"row", "status", "strategy", "confidence", "passes", "quality_score", "grade",
	"total_min", "cost_total", "currency", "savings", "warnings", "error", "fingerprint",
}

var passHeader = []any{
	"row", "pass", "depth_mm", "cumulative_mm", "power_w", "speed_mm_min", "pressure_bar", "focus_mm", "duration_s",
}

// WriteResults writes one summary line per item and, for multi-pass
// results, one line per pass. rows may be nil, in which case items are
// numbered from 1.
func WriteResults(w io.Writer, rows []Row, rep batch.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(PassesSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for _, s := range []struct {
		name   string
		header []any
	}{{ResultsSheet, resultHeader}, {PassesSheet, passHeader}} {
		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return err
		}
		if err := f.SetRowStyle(s.name, 1, 1, bold); err != nil {
			return err
		}
	}

	passLine := 2
	for i, it := range rep.Items {
		line := it.Index + 1
		if rows != nil && it.Index < len(rows) {
			line = rows[it.Index].Line
		}
		values := summary(line, it)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return err
		}
		if it.Result == nil {
			continue
		}
		for _, s := range it.Result.Steps {
			pass := []any{line, s.Index, s.DepthMM, s.CumulativeMM, s.PowerW, s.SpeedMMMin, s.PressureBar, s.FocusMM, s.DurationS}
			cell, err := excelize.CoordinatesToCellName(1, passLine)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(PassesSheet, cell, &pass); err != nil {
				return err
			}
			passLine++
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func summary(line int, it batch.Item) []any {
	if it.Failure != nil {
		return []any{line, string(it.Failure.Kind), "", "", "", "", "", "", "", "", "", "", it.Failure.Error(), ""}
	}
	res := it.Result
	o := res.Outcome
	total, _ := o.Cost.Total.Float64()
	savings, _ := o.Cost.Savings.Float64()
	return []any{
		line, "ok", res.Strategy.Name, res.Strategy.Confidence, len(res.Steps),
		o.Quality.Score, o.Quality.Grade, o.Time.TotalMin, total, o.Cost.Currency, savings,
		len(res.Warnings), "", res.Metadata.Fingerprint,
	}
}

