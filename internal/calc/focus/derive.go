package focus

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

const (
	// deepSheetRatio is the thickness over depth of focus beyond which the
	// focus moves further into the sheet.
	deepSheetRatio  = 2.0
	conductiveAbove = 150.0 // W/m·K

	confidenceBase    = 0.50
	bonusCommonPair   = 0.15
	bonusTypical      = 0.15
	bonusShallowSheet = 0.10
	bonusMeasuredBeam = 0.05
	bonusInsideLimits = 0.05
)

type derivation struct {
	optics    Optics
	unclamped float64
	focusMM   float64
	low, high float64
	clamped   bool
	// outOfRange is judged on the focus before the quality offset.
	outOfRange bool
}

func qualityOffset(q process.Quality) float64 {
	switch q {
	case process.QualityRough:
		return 0.3
	case process.QualityStandard:
		return 0
	case process.QualityPrecision:
		return -0.2
	}
	panic(fmt.Sprintf("focus: unhandled quality %q", q))
}

func derive(in Input, rec process.Records) (engine.StrategyCandidate, derivation) {
	d := derivation{optics: analyze(rec.Laser, in)}
	o := d.optics

	var reasoning []string
	f := rec.Laser.FocusBaseMM + in.ThicknessMM*rec.Pair.FocusScale
	reasoning = append(reasoning, fmt.Sprintf(
		"%s base %+.2f mm + %.1f mm x %+.2f for %s with %s = %+.2f mm",
		rec.Laser.Name, rec.Laser.FocusBaseMM, in.ThicknessMM, rec.Pair.FocusScale,
		rec.Material.Name, rec.Gas.Name, f))

	shift := func(by float64, format string, args ...any) {
		if by == 0 {
			return
		}
		before := f
		f += by
		reasoning = append(reasoning, fmt.Sprintf(format, args...)+fmt.Sprintf(": %+.2f mm, %+.2f -> %+.2f mm", by, before, f))
	}
	shift(qualityOffset(in.Quality), "%s quality", in.Quality)
	if r := o.dofRatio(in.ThicknessMM); r > deepSheetRatio {
		shift(-0.05*in.ThicknessMM, "sheet is %.1fx the %.2f mm depth of focus", r, o.DepthOfFocusMM)
	}
	if k := rec.Material.ThermalConductivity; k > conductiveAbove {
		shift(-0.5, "thermal conductivity %.0f W/m·K", k)
	}

	d.unclamped = f
	untiered := f - qualityOffset(in.Quality)
	d.outOfRange = untiered < -in.ThicknessMM || untiered > MaxFocusAboveMM
	d.focusMM = physics.Clamp(f, -in.ThicknessMM, MaxFocusAboveMM)
	if d.focusMM != f {
		d.clamped = true
		reasoning = append(reasoning, fmt.Sprintf("clamped to [%.1f, %+.1f] mm: %+.2f mm",
			-in.ThicknessMM, MaxFocusAboveMM, d.focusMM))
	}
	half := o.RayleighLengthMM / 2
	d.low = max(-in.ThicknessMM, d.focusMM-half)
	d.high = min(MaxFocusAboveMM, d.focusMM+half)

	confidence := confidenceBase
	if rec.Pair.Common {
		confidence += bonusCommonPair
	}
	if rec.Pair.Typical(in.ThicknessMM) {
		confidence += bonusTypical
	}
	if o.dofRatio(in.ThicknessMM) <= deepSheetRatio {
		confidence += bonusShallowSheet
	}
	if in.BeamQuality > 0 {
		confidence += bonusMeasuredBeam
	}
	if !d.clamped {
		confidence += bonusInsideLimits
	}

	return engine.StrategyCandidate{
		Name: "focus position",
		Parameters: []engine.Parameter{
			{Name: "focus_position_mm", Value: d.focusMM, Unit: "mm"},
			{Name: "tolerance_low_mm", Value: d.low, Unit: "mm"},
			{Name: "tolerance_high_mm", Value: d.high, Unit: "mm"},
			{Name: "spot_diameter_mm", Value: o.SpotDiameterMM, Unit: "mm"},
			{Name: "rayleigh_length_mm", Value: o.RayleighLengthMM, Unit: "mm"},
			{Name: "depth_of_focus_mm", Value: o.DepthOfFocusMM, Unit: "mm"},
			{Name: "power_density_mw_cm2", Value: o.PowerDensityMWcm, Unit: "MW/cm²"},
			{Name: "kerf_width_mm", Value: o.KerfWidthMM, Unit: "mm"},
		},
		Reasoning:  reasoning,
		Confidence: physics.Clamp01(confidence),
	}, d
}
