// Package report renders calculation results as a PDF, one page per result.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"Kerf/internal/engine"
)

const (
	DefaultTitle = "Laser Process Report"
	lineH        = 6.0
)

// Input is the cover information printed above every result.
type Input struct {
	Project string `json:"project"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Notes   string `json:"notes"`
	// Date defaults to the time of rendering.
	Date time.Time `json:"date"`
}

// Build lays out one page per result.
func Build(in Input, results ...*engine.Result) (*gofpdf.Fpdf, error) {
	if len(results) == 0 {
		return nil, errors.New("nothing to report")
	}
	if in.Title == "" {
		in.Title = DefaultTitle
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(in.Title, true)
	pdf.SetAuthor(in.Author, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	p := &page{pdf: pdf, tr: tr}

	for _, res := range results {
		if res == nil {
			return nil, errors.New("nil result")
		}
		pdf.AddPage()
		p.header(in, res)
		p.strategy(res.Strategy)
		if len(res.Steps) > 0 {
			p.steps(res.Steps)
		}
		p.outcome(res.Outcome)
		p.sensitivity(res.Sensitivity)
		p.advice(res)
		p.footer(res.Metadata)
	}
	return pdf, pdf.Error()
}

// Render writes the PDF to w.
func Render(w io.Writer, in Input, results ...*engine.Result) error {
	pdf, err := Build(in, results...)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// Filename suggests an attachment name for a single-result report.
func Filename(res *engine.Result) string {
	fp := res.Metadata.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fmt.Sprintf("%s-%s.pdf", res.Metadata.CalculatorID, fp)
}

type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (p *page) heading(s string) {
	p.pdf.Ln(3)
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.Cell(0, 8, p.tr(s))
	p.pdf.Ln(8)
	p.pdf.SetFont("Helvetica", "", 10)
}

func (p *page) line(format string, args ...any) {
	p.pdf.MultiCell(0, lineH, p.tr(fmt.Sprintf(format, args...)), "", "L", false)
}

func (p *page) bullets(items []string) {
	for _, s := range items {
		p.line("- %s", s)
	}
}

func (p *page) header(in Input, res *engine.Result) {
	p.pdf.SetFont("Helvetica", "B", 16)
	p.pdf.Cell(0, 10, p.tr(in.Title))
	p.pdf.Ln(12)
	p.pdf.SetFont("Helvetica", "", 10)
	if in.Project != "" {
		p.line("Project: %s", in.Project)
	}
	if in.Author != "" {
		p.line("Author: %s", in.Author)
	}
	p.line("Date: %s", in.Date.Format("2006-01-02"))
	p.line("Calculator: %s", res.Metadata.CalculatorID)
	if in.Notes != "" {
		p.pdf.Ln(2)
		p.line("%s", in.Notes)
	}
}

func (p *page) strategy(s engine.StrategyCandidate) {
	p.heading(fmt.Sprintf("Strategy: %s (confidence %.0f%%)", s.Name, s.Confidence*100))
	for _, prm := range s.Parameters {
		p.line("%s: %s %s", prm.Name, trim(prm.Value), prm.Unit)
	}
	if len(s.Reasoning) > 0 {
		p.pdf.Ln(1)
		p.bullets(s.Reasoning)
	}
}

var stepCols = []struct {
	title string
	width float64
}{
	{"#", 10}, {"Depth mm", 22}, {"Cum. mm", 22}, {"Power W", 24},
	{"Speed mm/min", 28}, {"Gas bar", 20}, {"Focus mm", 22}, {"Time s", 22},
}

func (p *page) steps(steps []engine.StepParameters) {
	p.heading("Passes")
	p.pdf.SetFont("Helvetica", "B", 9)
	for _, c := range stepCols {
		p.pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", false, 0, "")
	}
	p.pdf.Ln(-1)
	p.pdf.SetFont("Helvetica", "", 9)
	for _, s := range steps {
		row := []string{
			fmt.Sprint(s.Index),
			fmt.Sprintf("%.2f", s.DepthMM),
			fmt.Sprintf("%.2f", s.CumulativeMM),
			fmt.Sprintf("%.0f", s.PowerW),
			fmt.Sprintf("%.0f", s.SpeedMMMin),
			fmt.Sprintf("%.2f", s.PressureBar),
			fmt.Sprintf("%.2f", s.FocusMM),
			fmt.Sprintf("%.1f", s.DurationS),
		}
		for i, c := range stepCols {
			p.pdf.CellFormat(c.width, 6, row[i], "1", 0, "R", false, 0, "")
		}
		p.pdf.Ln(-1)
	}
	p.pdf.SetFont("Helvetica", "", 10)
}

func (p *page) outcome(o engine.OutcomeMetrics) {
	p.heading("Predicted outcome")
	p.line("Quality: %.1f / 100, grade %s", o.Quality.Score, o.Quality.Grade)
	p.line("Time: %.1f min total (cutting %.0f s, pierce %.0f s, setup %.0f s), %.1f jobs/h",
		o.Time.TotalMin, o.Time.CuttingS, o.Time.PierceS, o.Time.SetupS, o.Time.JobsPerHour)
	c := o.Cost
	p.line("Cost: %s %s (material %s, energy %s, gas %s, labour %s)",
		c.Total.StringFixed(2), c.Currency, c.Material.StringFixed(2), c.Energy.StringFixed(2),
		c.Gas.StringFixed(2), c.Labor.StringFixed(2))
	p.line("Baseline: %s %s, savings %s %s (%.1f%%)",
		c.Baseline.StringFixed(2), c.Currency, c.Savings.StringFixed(2), c.Currency, c.SavingsPct)
}

func (p *page) sensitivity(s engine.SensitivityReport) {
	if len(s.Entries) == 0 {
		return
	}
	p.heading("Sensitivity")
	if s.MostSensitive != "" {
		p.line("Most sensitive: %s", s.MostSensitive)
	}
	for _, e := range s.Entries {
		if e.PerturbationPct != 10 {
			continue
		}
		p.line("%s +10%% -> %s %+.1f%% (%s)", e.Parameter, e.Outcome, e.DeltaPct, e.Band)
	}
}

func (p *page) advice(res *engine.Result) {
	r := res.Recommendations
	if r.Len() > 0 {
		p.heading("Recommendations")
		p.bullets(r.Strategy)
		p.bullets(r.Parameters)
		p.bullets(r.Quality)
		p.bullets(r.Cost)
	}
	if len(res.Warnings) > 0 {
		p.heading("Warnings")
		for _, w := range res.Warnings {
			p.line("[%s] %s", w.Stage, w.Message)
		}
	}
	if len(res.Troubleshooting) > 0 {
		p.heading("Troubleshooting")
		for _, t := range res.Troubleshooting {
			p.line("%s: %s. %s", t.Issue, t.Cause, t.Solution)
		}
	}
}

func (p *page) footer(m engine.Metadata) {
	p.pdf.Ln(4)
	p.pdf.SetFont("Helvetica", "I", 8)
	p.line("Fingerprint %s, schema %s, computed %s",
		m.Fingerprint, m.SchemaVersion, m.ComputedAt.Format(time.RFC3339))
}

func trim(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
