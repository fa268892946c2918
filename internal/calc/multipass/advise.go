package multipass

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

// longJobS is the total job time above which batching advice kicks in.
const longJobS = 8 * 3600

// Advise turns the computed plan into grouped recommendations,
// troubleshooting entries and result-stage warnings.
func (c Calculator) Advise(req engine.Request, a engine.Analysis) engine.Advice {
	in, err := decode(req)
	if err != nil {
		panic(err)
	}
	d, _ := a.Details.(Details)
	var adv engine.Advice
	r := &adv.Recommendations
	passes := len(a.Steps)

	switch {
	case passes == 1:
		r.Strategy = append(r.Strategy, "One pass cuts this sheet; multi-pass planning adds only pierce and setup overhead.")
	case in.Strategy == StrategyUniform && passes >= 4:
		r.Strategy = append(r.Strategy, fmt.Sprintf(
			"With %d passes an adaptive ramp keeps the lower passes cooler and improves the edge.", passes))
	case in.Strategy == StrategyAdaptive && in.Quality == process.QualityPrecision:
		r.Strategy = append(r.Strategy, "Staged passes give a slightly better finishing pass for precision work.")
	}
	if d.Capped {
		r.Strategy = append(r.Strategy, fmt.Sprintf(
			"The pass limit forced %.2f mm per pass; raise max_passes or laser power to stay within %.2f mm.",
			a.Steps[0].DepthMM, d.SinglePassLimitMM))
	}

	recNozzle := process.Nozzle(0, in.ThicknessMM)
	if in.NozzleMM > 0 && in.NozzleMM < recNozzle {
		r.Parameters = append(r.Parameters, fmt.Sprintf("Use a %.1f mm nozzle instead of %.1f mm.", recNozzle, in.NozzleMM))
	}
	if passes > 1 {
		r.Parameters = append(r.Parameters, fmt.Sprintf(
			"Refocus by %.2f mm between passes so the focal point follows the kerf floor.", a.Steps[0].DepthMM))
	}

	if in.Gas == tables.GasOxygen && in.Quality == process.QualityPrecision {
		if _, ok := c.tables.Pair(in.Material, tables.GasNitrogen); ok {
			r.Quality = append(r.Quality, "Nitrogen gives an oxide-free edge if the part will be welded or painted.")
		}
	}
	if a.Outcome.Quality.Score < 65 {
		r.Quality = append(r.Quality, "Reduce speed or add a finishing pass to lift the edge quality grade.")
	}

	if in.Gas == tables.GasNitrogen {
		if _, ok := c.tables.Pair(in.Material, tables.GasAir); ok {
			r.Cost = append(r.Cost, "Compressed air cuts the same pair at a fraction of the nitrogen cost where edge colour does not matter.")
		}
	}
	if a.Outcome.Time.SetupS > 0.2*a.Outcome.Time.TotalS {
		r.Cost = append(r.Cost, "Setup dominates this job; batch it with other parts of the same sheet.")
	}

	adv.Troubleshooting = troubleshooting(in, passes)

	if d.Capped && a.Steps[0].DepthMM > d.SinglePassLimitMM {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "pass_depth_exceeds_limit", Field: fieldMaxPasses,
			Message: fmt.Sprintf("%.2f mm per pass exceeds the %.2f mm one pass can remove; expect incomplete separation",
				a.Steps[0].DepthMM, d.SinglePassLimitMM),
		})
	}
	if d.SpeedAtEnvelope {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "speed_at_envelope", Message: "at least one pass runs at the machine's speed limit",
		})
	}
	if a.Outcome.Time.TotalS > longJobS {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "long_job", Field: fieldQuantity,
			Message: fmt.Sprintf("the job takes %.1f h; consider splitting it across shifts", a.Outcome.Time.TotalS/3600),
		})
	}
	if a.Outcome.Quality.Grade == Grades.Floor {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "low_quality", Message: "predicted edge quality is below the usable range",
		})
	}
	return adv
}

func troubleshooting(in Input, passes int) []engine.Troubleshoot {
	var out []engine.Troubleshoot
	if in.Gas == tables.GasOxygen {
		out = append(out, engine.Troubleshoot{
			Issue:    "Heavy oxide layer on the cut edge",
			Cause:    "Oxygen assist reacts with the melt",
			Solution: "Lower the oxygen pressure or switch to nitrogen for weld-ready edges",
		})
	}
	out = append(out, engine.Troubleshoot{
		Issue:    "Dross on the bottom edge",
		Cause:    "Gas pressure too low for the kerf depth or speed too high",
		Solution: "Raise pressure by 0.5 bar steps or reduce speed by 5%",
	})
	if passes > 1 {
		out = append(out,
			engine.Troubleshoot{
				Issue:    "Part not separated after the last pass",
				Cause:    "Focus did not follow the kerf floor or a pass removed less than planned",
				Solution: "Check the focus offset per pass and add one pass at finishing power",
			},
			engine.Troubleshoot{
				Issue:    "Heat build-up between passes",
				Cause:    "Consecutive passes on the same contour without cooling",
				Solution: "Alternate contours between passes or add a dwell before the finishing pass",
			})
	}
	return out
}
