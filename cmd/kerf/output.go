package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"Kerf/internal/engine"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printResult(w io.Writer, res *engine.Result) {
	s := res.Strategy
	fmt.Fprintf(w, "%s: %s (confidence %.0f%%)\n", res.Metadata.CalculatorID, s.Name, s.Confidence*100)
	for _, r := range s.Reasoning {
		fmt.Fprintf(w, "  - %s\n", r)
	}

	tw := newTable(w)
	for _, p := range s.Parameters {
		fmt.Fprintf(tw, "  %s\t%.3g\t%s\n", p.Name, p.Value, p.Unit)
	}
	tw.Flush()

	if len(res.Steps) > 0 {
		fmt.Fprintln(w)
		tw = newTable(w)
		fmt.Fprintln(tw, "PASS\tDEPTH mm\tCUM mm\tPOWER W\tSPEED mm/min\tGAS bar\tFOCUS mm\tTIME s")
		for _, st := range res.Steps {
			fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.0f\t%.0f\t%.2f\t%.2f\t%.1f\n",
				st.Index, st.DepthMM, st.CumulativeMM, st.PowerW, st.SpeedMMMin, st.PressureBar, st.FocusMM, st.DurationS)
		}
		tw.Flush()
	}

	o := res.Outcome
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Quality  %.1f (%s)\n", o.Quality.Score, o.Quality.Grade)
	fmt.Fprintf(w, "Time     %.1f min, %.1f jobs/h\n", o.Time.TotalMin, o.Time.JobsPerHour)
	fmt.Fprintf(w, "Cost     %s %s (baseline %s, savings %.1f%%)\n",
		o.Cost.Total.StringFixed(2), o.Cost.Currency, o.Cost.Baseline.StringFixed(2), o.Cost.SavingsPct)
	if res.Sensitivity.MostSensitive != "" {
		fmt.Fprintf(w, "Most sensitive: %s\n", res.Sensitivity.MostSensitive)
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning [%s] %s\n", warn.Code, warn.Message)
	}
	for _, group := range [][]string{
		res.Recommendations.Strategy, res.Recommendations.Parameters,
		res.Recommendations.Quality, res.Recommendations.Cost,
	} {
		for _, r := range group {
			fmt.Fprintf(w, "* %s\n", r)
		}
	}
	fmt.Fprintf(w, "fingerprint %s\n", res.Metadata.Fingerprint)
}
