package multipass

import (
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

const (
	// typicalMaxPasses is the largest pass limit seen on production jobs.
	typicalMaxPasses = 20
	// riskySpeedThickness is the speed × thickness product (mm²/min) above
	// which a supplied speed is unlikely to separate the part.
	riskySpeedThickness = 60000.0
	// speedDeviation is the relative gap between a supplied speed and the
	// derived first-pass speed that earns a warning.
	speedDeviation = 0.30
)

// DomainValidate runs the cross-field checks. Unsupported combinations
// block; implausible but legal values only warn.
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
	process.CheckNozzle(in.NozzleMM, in.ThicknessMM, &is)

	if in.MaxPasses > typicalMaxPasses {
		is.Warnf("max_passes_oversized", fieldMaxPasses,
			"a limit of %d passes is unusually high; plans are capped at %d", in.MaxPasses, AbsoluteMaxPasses)
	}
	if in.CurrentSpeed > 0 && in.CurrentSpeed*in.ThicknessMM > riskySpeedThickness {
		is.Warnf("speed_thickness_ratio", fieldCurrentSpeed,
			"%.0f mm/min on %.1f mm sheet risks incomplete separation", in.CurrentSpeed, in.ThicknessMM)
	}
	if in.MaxDepthPerPassMM > 0 {
		capable := physics.SinglePassDepth(rec.Material, rec.Laser, in.PowerW)
		if in.MaxDepthPerPassMM > 1.5*capable {
			is.Warnf("pass_depth_optimistic", fieldMaxDepth,
				"%.1f mm per pass is well beyond the %.1f mm a %.0f W %s removes in %s",
				in.MaxDepthPerPassMM, capable, in.PowerW, rec.Laser.Name, rec.Material.Name)
		}
	}
	return is
}

// speedWarnings compares the caller's current speed with the derived
// first-pass speed. It runs after derivation so the estimate is computed
// exactly once.
func speedWarnings(in Input, steps []engine.StepParameters) []engine.Issue {
	if in.CurrentSpeed <= 0 || len(steps) == 0 {
		return nil
	}
	derived := steps[0].SpeedMMMin
	if math.Abs(in.CurrentSpeed-derived)/derived <= speedDeviation {
		return nil
	}
	var is engine.Issues
	is.Warnf("current_speed_deviation", fieldCurrentSpeed,
		"current speed %.0f mm/min differs from the recommended first-pass %.0f mm/min by more than %.0f%%",
		in.CurrentSpeed, derived, speedDeviation*100)
	return is.Warnings
}
