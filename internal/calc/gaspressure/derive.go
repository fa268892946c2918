package gaspressure

import (
	"fmt"
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
	"Kerf/internal/tables"
)

const (
	// conductiveAbove is the thermal conductivity (W/m·K) above which the
	// melt freezes fast enough to need extra gas momentum.
	conductiveAbove = 150.0

	confidenceBase      = 0.55
	bonusCommonPair     = 0.15
	bonusTypical        = 0.15
	bonusInsideEnvelope = 0.10
	bonusTameMaterial   = 0.05
)

// derivation is the single recommended pressure and its band.
type derivation struct {
	unclamped float64
	pressure  float64
	low, high float64
	clamped   bool
	nozzleMM  float64
	flowLPM   float64
	// envelopeFit is measured on the pressure before the quality tier.
	envelopeFit float64
}

func qualityFactor(q process.Quality) float64 {
	switch q {
	case process.QualityRough:
		return 0.85
	case process.QualityStandard:
		return 1.0
	case process.QualityPrecision:
		return 1.2
	}
	panic(fmt.Sprintf("gaspressure: unhandled quality %q", q))
}

func strategyFactor(s Strategy) float64 {
	switch s {
	case StrategyBalanced:
		return 1.0
	case StrategyHighSpeed:
		return 1.10
	case StrategyDrossFree:
		return 1.15
	}
	panic(fmt.Sprintf("gaspressure: unhandled strategy %q", s))
}

func nozzleFactor(n NozzleType) float64 {
	switch n {
	case NozzleSingle:
		return 1.0
	case NozzleDouble:
		return 0.90
	}
	panic(fmt.Sprintf("gaspressure: unhandled nozzle type %q", n))
}

// laserFactor reflects kerf width: the long CO2 wavelength cuts a wider
// kerf that needs more gas to clear.
func laserFactor(l tables.LaserType) float64 {
	switch l {
	case tables.LaserFiber, tables.LaserDiode:
		return 1.0
	case tables.LaserCO2:
		return 1.05
	}
	panic(fmt.Sprintf("gaspressure: unhandled laser type %q", l))
}

func derive(in Input, rec process.Records) (engine.StrategyCandidate, derivation) {
	var reasoning []string
	p := rec.Pair.BasePressureBar + in.ThicknessMM*rec.Pair.PressurePerMM
	reasoning = append(reasoning, fmt.Sprintf(
		"%s with %s: %.2f bar base + %.1f mm x %.2f bar/mm = %.2f bar",
		rec.Material.Name, rec.Gas.Name, rec.Pair.BasePressureBar, in.ThicknessMM, rec.Pair.PressurePerMM, p))

	adjust := func(factor float64, format string, args ...any) {
		if factor == 1 {
			return
		}
		before := p
		p *= factor
		reasoning = append(reasoning, fmt.Sprintf(format, args...)+fmt.Sprintf(": x%.2f, %.2f -> %.2f bar", factor, before, p))
	}
	adjust(qualityFactor(in.Quality), "%s quality", in.Quality)
	adjust(strategyFactor(in.Strategy), "%s strategy", in.Strategy)
	if k := rec.Material.ThermalConductivity; k > conductiveAbove {
		adjust(1+(k-conductiveAbove)/1000, "thermal conductivity %.0f W/m·K", k)
	}
	adjust(nozzleFactor(in.NozzleType), "%s nozzle", in.NozzleType)
	adjust(laserFactor(in.Laser), "%s source", rec.Laser.Name)

	d := derivation{unclamped: p}
	untiered := p / qualityFactor(in.Quality)
	d.envelopeFit = envelopeFit(untiered, rec.Pair.MinPressureBar, rec.Pair.MaxPressureBar)
	d.pressure = physics.Clamp(p, rec.Pair.MinPressureBar, rec.Pair.MaxPressureBar)
	if d.pressure != p {
		d.clamped = true
		reasoning = append(reasoning, fmt.Sprintf("clamped to the %.1f-%.1f bar envelope: %.2f bar",
			rec.Pair.MinPressureBar, rec.Pair.MaxPressureBar, d.pressure))
	}

	// The band widens with conductivity and melting point.
	half := d.pressure * (0.05 + rec.Material.ThermalConductivity/4000 + rec.Material.MeltingPointC/40000)
	d.low = max(rec.Pair.MinPressureBar, d.pressure-half)
	d.high = min(rec.Pair.MaxPressureBar, d.pressure+half)

	d.nozzleMM = process.Nozzle(in.NozzleMM, in.ThicknessMM)
	d.flowLPM = physics.GasFlowLPM(d.pressure, d.nozzleMM)

	confidence := confidenceBase
	if rec.Pair.Common {
		confidence += bonusCommonPair
	}
	if rec.Pair.Typical(in.ThicknessMM) {
		confidence += bonusTypical
	}
	if !d.clamped {
		confidence += bonusInsideEnvelope
	}
	if rec.Material.ThermalConductivity <= conductiveAbove {
		confidence += bonusTameMaterial
	}

	return engine.StrategyCandidate{
		Name: string(in.Strategy) + " pressure",
		Parameters: []engine.Parameter{
			{Name: "recommended_pressure_bar", Value: d.pressure, Unit: "bar"},
			{Name: "tolerance_low_bar", Value: d.low, Unit: "bar"},
			{Name: "tolerance_high_bar", Value: d.high, Unit: "bar"},
			{Name: "nozzle_diameter_mm", Value: d.nozzleMM, Unit: "mm"},
			{Name: "gas_flow_lpm", Value: d.flowLPM, Unit: "l/min"},
		},
		Reasoning:  reasoning,
		Confidence: physics.Clamp01(confidence),
	}, d
}

// envelopeFit is 1 inside [lo, hi] and drops by half the relative distance
// to the envelope outside it.
func envelopeFit(p, lo, hi float64) float64 {
	if p <= 0 {
		return 1
	}
	return 1 - 0.5*math.Abs(physics.Clamp(p, lo, hi)-p)/p
}
