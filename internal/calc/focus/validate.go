package focus

import (
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
)

const (
	// minFNumber is the focal length over raw beam diameter below which the
	// optics are unusually fast for cutting.
	minFNumber = 5.0
	// minFocusDeviationMM is the floor of the current-focus deviation
	// threshold; above it the threshold is half the Rayleigh length.
	minFocusDeviationMM = 0.5
)

func (c Calculator) DomainValidate(req engine.Request) engine.Issues {
	var is engine.Issues
	in, err := decode(req)
	if err != nil {
		is.Errorf("invalid_input", "", "%v", err)
		return is
	}
	rec, ok := process.Resolve(c.tables, in.Material, in.Gas, in.Laser, &is)
	if !ok {
		return is
	}
	process.CheckPower(rec.Laser, in.PowerW, &is)
	process.CheckThickness(rec.Material, in.ThicknessMM, &is)

	raw := rec.Laser.RawBeamDiameterMM
	if in.RawBeamMM > 0 {
		raw = in.RawBeamMM
	}
	if in.FocalLengthMM/raw < minFNumber {
		is.Warnf("fast_focusing_optics", fieldFocalLength,
			"f/%.1f optics give a very short depth of focus; cutting heads are usually f/%.0f or slower",
			in.FocalLengthMM/raw, minFNumber)
	}
	if in.BeamQuality > 0 && in.BeamQuality < 0.5*rec.Laser.BeamQualityM2 {
		is.Warnf("beam_quality_optimistic", fieldBeamQuality,
			"M² %.1f is well below the %.1f typical of a %s", in.BeamQuality, rec.Laser.BeamQualityM2, rec.Laser.Name)
	}
	if in.HasCurrentFocus && in.CurrentFocus < -in.ThicknessMM {
		is.Warnf("current_focus_below_sheet", fieldCurrentFocus,
			"current focus %.1f mm lies below the %.1f mm sheet", in.CurrentFocus, in.ThicknessMM)
	}
	return is
}

// focusWarnings compares the caller's current focus with the derived one.
func focusWarnings(in Input, focusMM, rayleighMM float64) []engine.Issue {
	if !in.HasCurrentFocus {
		return nil
	}
	limit := max(minFocusDeviationMM, rayleighMM/2)
	if math.Abs(in.CurrentFocus-focusMM) <= limit {
		return nil
	}
	var is engine.Issues
	is.Warnf("current_focus_deviation", fieldCurrentFocus,
		"current focus %.2f mm is more than %.2f mm from the recommended %.2f mm",
		in.CurrentFocus, limit, focusMM)
	return is.Warnings
}
