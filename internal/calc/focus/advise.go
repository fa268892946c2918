package focus

import (
	"fmt"
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

func (c Calculator) Advise(req engine.Request, a engine.Analysis) engine.Advice {
	in, err := decode(req)
	if err != nil {
		panic(err)
	}
	d, _ := a.Details.(Details)
	var adv engine.Advice
	r := &adv.Recommendations

	where := "below"
	if d.FocusMM > 0 {
		where = "above"
	}
	r.Parameters = append(r.Parameters, fmt.Sprintf(
		"Set the focus %.2f mm %s the surface, within %+.2f to %+.2f mm.",
		math.Abs(d.FocusMM), where, d.ToleranceLowMM, d.ToleranceHighMM))
	r.Parameters = append(r.Parameters, fmt.Sprintf(
		"Expect a %.3f mm spot and a %.2f mm kerf.", d.SpotDiameterMM, d.KerfWidthMM))

	if d.DOFRatio > deepSheetRatio {
		longer := d.FocalLengthMM * 1.3
		r.Strategy = append(r.Strategy, fmt.Sprintf(
			"The sheet is %.1fx the depth of focus; a %.0f mm lens lengthens it by about 70%%.", d.DOFRatio, longer))
	}
	if in.Gas == tables.GasOxygen && d.FocusMM < -0.5*in.ThicknessMM {
		r.Strategy = append(r.Strategy, "Oxygen cutting usually keeps the focus near the top surface.")
	}

	if threshold, ok := Grades.Threshold("C"); ok && a.Outcome.Quality.Score < threshold {
		r.Quality = append(r.Quality, "Check the lens and cover glass; a contaminated optic shifts the focus and widens the kerf.")
	}
	if in.Quality == process.QualityPrecision && d.BeamQualityM2 > 5 {
		r.Quality = append(r.Quality, "A source with better beam quality gives a finer spot for precision work.")
	}

	if a.Outcome.Cost.Savings.IsPositive() {
		r.Cost = append(r.Cost, fmt.Sprintf(
			"Cutting at the recommended focus instead of on the surface saves %s %s.",
			a.Outcome.Cost.Savings.StringFixed(2), a.Outcome.Cost.Currency))
	}

	adv.Troubleshooting = []engine.Troubleshoot{
		{Issue: "Wide kerf at the top edge", Cause: "Focus too high", Solution: fmt.Sprintf("Lower the focus towards %+.2f mm", d.FocusMM)},
		{Issue: "Dross on the bottom edge", Cause: "Focus too high for a melt-shear cut", Solution: "Move the focus 0.5 mm deeper and recheck"},
		{Issue: "Cut quality drifts during the shift", Cause: "Thermal lensing in a dirty or hot optic", Solution: "Clean or replace the cover glass and let the head cool"},
	}

	if d.Clamped {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "focus_clamped", Field: process.FieldThickness,
			Message: fmt.Sprintf("focus limited to %+.2f mm from %+.2f mm", d.FocusMM, d.UnclampedMM),
		})
	}
	if d.DOFRatio > 2*deepSheetRatio {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "short_depth_of_focus", Field: fieldFocalLength,
			Message: fmt.Sprintf("the %.2f mm depth of focus covers only a fraction of the %.1f mm sheet", d.DepthOfFocusMM, in.ThicknessMM),
		})
	}
	if d.PowerDensityMWcm < minPowerDensity {
		adv.Warnings = append(adv.Warnings, engine.Issue{
			Code: "low_power_density", Field: process.FieldPower,
			Message: fmt.Sprintf("%.2f MW/cm² is too low for a stable fusion cut", d.PowerDensityMWcm),
		})
	}
	if a.Outcome.Quality.Grade == Grades.Floor {
		adv.Warnings = append(adv.Warnings, engine.Issue{Code: "low_quality", Message: "predicted edge quality is below the usable range"})
	}
	return adv
}

