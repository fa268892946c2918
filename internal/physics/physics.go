// Package physics holds the pure estimates shared by input validation and
// parameter derivation. Anything a validator compares a caller-supplied
// value against is computed here, once, by the same function the
// derivation uses.
package physics

import (
	"math"

	"Kerf/internal/tables"
)

// Reference values the speed and depth models are normalised to (mild
// steel on a fiber source).
const (
	referenceAbsorptivity = 0.40
	referencePenalty      = 1.125

	// gasFlowCoefficient converts (bar + 1) * mm^2 to litres per minute
	// for a conical cutting nozzle.
	gasFlowCoefficient = 8.0
)

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// ConductivityPenalty grows with thermal conductivity: heat that leaves the
// kerf sideways is not available for melting.
func ConductivityPenalty(m tables.Material) float64 {
	return 1 + m.ThermalConductivity/400
}

// EffectiveAbsorptivity is the material absorptivity scaled for the source
// wavelength, capped at 1.
func EffectiveAbsorptivity(m tables.Material, l tables.Laser) float64 {
	return math.Min(1, m.Absorptivity*l.AbsorptionScale)
}

// RawSpeed is the unclamped feed rate in mm/min that cuts depthMM at powerW.
func RawSpeed(m tables.Material, l tables.Laser, powerW, depthMM float64) float64 {
	if depthMM <= 0 || powerW <= 0 {
		return 0
	}
	return l.SpeedConstant * EffectiveAbsorptivity(m, l) * (powerW / 1000) /
		(depthMM * ConductivityPenalty(m))
}

// EstimateSpeed is RawSpeed clamped to the source's motion envelope.
func EstimateSpeed(m tables.Material, l tables.Laser, powerW, depthMM float64) float64 {
	return Clamp(RawSpeed(m, l, powerW, depthMM), l.MinSpeedMMMin, l.MaxSpeedMMMin)
}

// SinglePassDepth is the deepest layer in mm one pass at powerW removes.
func SinglePassDepth(m tables.Material, l tables.Laser, powerW float64) float64 {
	return l.DepthPerKWMM * (powerW / 1000) *
		(EffectiveAbsorptivity(m, l) / referenceAbsorptivity) *
		(referencePenalty / ConductivityPenalty(m))
}

// RecommendedNozzle is the nozzle bore in mm suited to a sheet thickness.
func RecommendedNozzle(thicknessMM float64) float64 {
	return Clamp(1.0+0.1*thicknessMM, 1.0, 5.0)
}

// PairPressure is the linear pressure model of a material/gas pair at a
// given depth, clamped to the pair's envelope.
func PairPressure(p tables.Pair, depthMM float64) float64 {
	return Clamp(p.BasePressureBar+depthMM*p.PressurePerMM, p.MinPressureBar, p.MaxPressureBar)
}

// GasFlowLPM is the assist gas consumption in litres per minute.
func GasFlowLPM(pressureBar, nozzleMM float64) float64 {
	return gasFlowCoefficient * (pressureBar + 1) * nozzleMM * nozzleMM
}

// SpotDiameter is the focused spot diameter in mm: 4 M² λ f / (π D).
func SpotDiameter(wavelengthUM, m2, focalLengthMM, rawBeamMM float64) float64 {
	if rawBeamMM <= 0 {
		return 0
	}
	return 4 * m2 * (wavelengthUM / 1000) * focalLengthMM / (math.Pi * rawBeamMM)
}

// RayleighLength in mm for a focused spot of the given diameter: π w0² / (M² λ).
func RayleighLength(spotMM, wavelengthUM, m2 float64) float64 {
	w0 := spotMM / 2
	return math.Pi * w0 * w0 / (m2 * (wavelengthUM / 1000))
}

// PowerDensity in MW/cm² over a spot of the given diameter.
func PowerDensity(powerW, spotMM float64) float64 {
	if spotMM <= 0 {
		return 0
	}
	areaCM2 := math.Pi * (spotMM / 2) * (spotMM / 2) / 100
	return powerW / areaCM2 / 1e6
}
