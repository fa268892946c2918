package gaspressure

import (
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
)

// pressureDeviation is the relative gap between the current and the
// recommended pressure that earns a warning.
const pressureDeviation = 0.25

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

	if rec.Gas.Reactive && in.Strategy == StrategyDrossFree && in.Quality == process.QualityPrecision {
		is.Warnf("reactive_gas_precision", fieldStrategy,
			"%s leaves an oxide layer; a dross-free precision edge needs an inert gas", rec.Gas.Name)
	}
	if !rec.Pair.Typical(in.ThicknessMM) {
		is.Warnf("thickness_outside_pair_range", process.FieldThickness,
			"%.1f mm is outside the %.1f-%.1f mm usually cut in %s with %s",
			in.ThicknessMM, rec.Pair.TypicalMinMM, rec.Pair.TypicalMaxMM, rec.Material.Name, rec.Gas.Name)
	}
	return is
}

// pressureWarnings compares the caller's current pressure with the single
// derived recommendation.
func pressureWarnings(in Input, recommended float64) []engine.Issue {
	if in.CurrentPressure <= 0 || recommended <= 0 {
		return nil
	}
	if math.Abs(in.CurrentPressure-recommended)/recommended <= pressureDeviation {
		return nil
	}
	var is engine.Issues
	is.Warnf("current_pressure_deviation", fieldCurrentPressure,
		"current pressure %.2f bar differs from the recommended %.2f bar by more than %.0f%%",
		in.CurrentPressure, recommended, pressureDeviation*100)
	return is.Warnings
}
