package gaspressure

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

// highPressureBar is the supply pressure above which a booster or a
// high-pressure bundle is needed.
const highPressureBar = 20.0

func (c Calculator) Advise(req engine.Request, a engine.Analysis) engine.Advice {
	in, err := decode(req)
	if err != nil {
		panic(err)
	}
	d, _ := a.Details.(Details)
	var adv engine.Advice
	r := &adv.Recommendations

	if in.Strategy == StrategyHighSpeed && in.Quality == process.QualityPrecision {
		r.Strategy = append(r.Strategy, "High-speed tuning works against a precision edge; the balanced strategy fits better.")
	}
	if d.Clamped {
		r.Strategy = append(r.Strategy, fmt.Sprintf(
			"The ideal %.2f bar is outside what the pair supports; consider another gas or a split cut.", d.UnclampedBar))
	}

	r.Parameters = append(r.Parameters, fmt.Sprintf(
		"Set %.2f bar and keep it between %.2f and %.2f bar.", d.RecommendedBar, d.ToleranceLow, d.ToleranceHigh))
	if in.NozzleMM == 0 {
		r.Parameters = append(r.Parameters, fmt.Sprintf("Use a %.1f mm %s nozzle.", d.NozzleMM, d.NozzleType))
	}
	if in.Gas == tables.GasOxygen && in.NozzleType == NozzleSingle && in.ThicknessMM > 10 {
		r.Parameters = append(r.Parameters, "A double nozzle stabilises the oxygen jet on thick plate.")
	}

	if threshold, ok := Grades.Threshold("C"); ok && a.Outcome.Quality.Score < threshold {
		r.Quality = append(r.Quality, "Lower the feed rate or choose the dross-free strategy to lift the edge grade.")
	}
	if in.Gas == tables.GasAir && in.Quality == process.QualityPrecision {
		if _, ok := c.tables.Pair(in.Material, tables.GasNitrogen); ok {
			r.Quality = append(r.Quality, "Nitrogen avoids the oxidised edge compressed air leaves.")
		}
	}

	switch in.Gas {
	case tables.GasNitrogen:
		if _, ok := c.tables.Pair(in.Material, tables.GasAir); ok && in.Quality != process.QualityPrecision {
			r.Cost = append(r.Cost, "Compressed air cuts this material for a fraction of the nitrogen cost.")
		}
	case tables.GasArgon:
		if _, ok := c.tables.Pair(in.Material, tables.GasNitrogen); ok {
			r.Cost = append(r.Cost, "Nitrogen is far cheaper than argon where the alloy tolerates it.")
		}
	}
	if a.Outcome.Cost.Savings.IsPositive() {
		r.Cost = append(r.Cost, fmt.Sprintf(
			"Running at the recommendation instead of full envelope pressure saves %s %s.",
			a.Outcome.Cost.Savings.StringFixed(2), a.Outcome.Cost.Currency))
	}

	adv.Troubleshooting = []engine.Troubleshoot{
		{Issue: "Dross on the bottom edge", Cause: "Pressure below the tolerance band", Solution: fmt.Sprintf("Raise towards %.2f bar", d.ToleranceHigh)},
		{Issue: "Rough striations or a wide kerf", Cause: "Pressure too high causing turbulent flow", Solution: fmt.Sprintf("Lower towards %.2f bar", d.ToleranceLow)},
		{Issue: "Burr on the top edge", Cause: "Nozzle worn or standoff too large", Solution: "Replace the nozzle and re-centre it"},
	}
	if in.Gas == tables.GasOxygen {
		adv.Troubleshooting = append(adv.Troubleshooting, engine.Troubleshoot{
			Issue: "Burning at sharp corners", Cause: "Oxygen reaction runs ahead of the beam", Solution: "Reduce pressure at corners or add corner dwell control",
		})
	}

	if d.Clamped {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "pressure_clamped", Field: process.FieldThickness,
			Message: fmt.Sprintf("recommended pressure limited to %.2f bar from %.2f bar", d.RecommendedBar, d.UnclampedBar),
		})
	}
	if d.RecommendedBar > highPressureBar {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "high_pressure_supply", Field: process.FieldGas,
			Message: fmt.Sprintf("%.1f bar needs a high-pressure gas supply", d.RecommendedBar),
		})
	}
	if a.Outcome.Quality.Grade == Grades.Floor {
		adv.Warnings = append(adv.Warnings, engine.Issue{Code: "low_quality", Message: "predicted edge quality is below the usable range"})
	}
	return adv
}
