package focus

import (
	"fmt"
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

// minPowerDensity (MW/cm²) is roughly where fusion cutting of metals becomes
// unstable.
const minPowerDensity = 1.0

// Details are the focus specific derived values.
type Details struct {
	Optics
	FocusMM         float64 `json:"focus_mm"`
	UnclampedMM     float64 `json:"unclamped_mm"`
	ToleranceLowMM  float64 `json:"tolerance_low_mm"`
	ToleranceHighMM float64 `json:"tolerance_high_mm"`
	Clamped         bool    `json:"clamped"`
	DOFRatio        float64 `json:"dof_ratio"`
	SpeedMMMin      float64 `json:"speed_mm_min"`
	// SurfaceSpeedMMMin is the speed with the focus left on the surface,
	// which the cost baseline assumes.
	SurfaceSpeedMMMin float64 `json:"surface_speed_mm_min"`
}

func (c Calculator) Compute(req engine.Request) (engine.Analysis, error) {
	in, err := decode(req)
	if err != nil {
		return engine.Analysis{}, err
	}
	var is engine.Issues
	rec, ok := process.Resolve(c.tables, in.Material, in.Gas, in.Laser, &is)
	if !ok {
		return engine.Analysis{}, fmt.Errorf("tables changed under validated request: %v", is.Errors)
	}

	strategy, d := derive(in, rec)
	if d.optics.SpotDiameterMM <= 0 || math.IsNaN(d.optics.RayleighLengthMM) {
		return engine.Analysis{}, fmt.Errorf("degenerate optics: spot %v mm", d.optics.SpotDiameterMM)
	}
	speed := cuttingSpeed(in, rec)
	surface := speed * surfacePenalty(d.focusMM)
	quality := predictQuality(in, rec, d)
	t := predictTime(in, rec, speed)
	cost := predictCost(in, rec, t, surface)

	return engine.Analysis{
		Strategy:      strategy,
		Outcome:       engine.OutcomeMetrics{Quality: quality, Time: t, Cost: cost},
		Sensitivity:   sensitivity(d, t),
		InputWarnings: focusWarnings(in, d.focusMM, d.optics.RayleighLengthMM),
		Details: Details{
			Optics:            d.optics,
			FocusMM:           d.focusMM,
			UnclampedMM:       d.unclamped,
			ToleranceLowMM:    d.low,
			ToleranceHighMM:   d.high,
			Clamped:           d.clamped,
			DOFRatio:          d.optics.dofRatio(in.ThicknessMM),
			SpeedMMMin:        speed,
			SurfaceSpeedMMMin: surface,
		},
	}, nil
}

// surfacePenalty is the speed fraction left when the focus sits on the
// surface instead of at focusMM.
func surfacePenalty(focusMM float64) float64 {
	return physics.Clamp(1-0.05*math.Abs(focusMM), 0.7, 1)
}

func cuttingSpeed(in Input, rec process.Records) float64 {
	var f float64
	switch in.Quality {
	case process.QualityRough:
		f = 1.10
	case process.QualityStandard:
		f = 1.0
	case process.QualityPrecision:
		f = 0.85
	default:
		panic(fmt.Sprintf("focus: unhandled quality %q", in.Quality))
	}
	raw := physics.RawSpeed(rec.Material, rec.Laser, in.PowerW, in.ThicknessMM) * f
	return physics.Clamp(raw, rec.Laser.MinSpeedMMMin, rec.Laser.MaxSpeedMMMin)
}

func predictQuality(in Input, rec process.Records, d derivation) engine.QualityMetrics {
	var tier float64
	switch in.Quality {
	case process.QualityRough:
		tier = 0.90
	case process.QualityStandard:
		tier = 1.0
	case process.QualityPrecision:
		tier = 1.06
	}
	r := d.optics.dofRatio(in.ThicknessMM)
	factors := []engine.Parameter{
		{Name: "material", Value: rec.Material.QualityFactor},
		{Name: "material_gas_pair", Value: rec.Pair.QualityFactor},
		{Name: "quality_tier", Value: tier},
		{Name: "depth_of_focus", Value: physics.Clamp(1-0.03*max(0, r-deepSheetRatio), 0.6, 1)},
	}
	if d.optics.PowerDensityMWcm < minPowerDensity {
		factors = append(factors, engine.Parameter{Name: "power_density", Value: 0.8})
	}
	if d.outOfRange {
		factors = append(factors, engine.Parameter{Name: "focus_out_of_range", Value: 0.9})
	}
	score := 100.0
	for _, f := range factors {
		score *= f.Value
	}
	score = physics.Clamp(score, 0, 100)
	return engine.QualityMetrics{Score: score, Grade: Grades.Grade(score), Factors: factors}
}

func predictTime(in Input, rec process.Records, speed float64) engine.TimeMetrics {
	q := float64(in.Quantity)
	cut := process.PassSeconds(in.CutLengthM*1000, speed) * q
	return engine.NewTime([]float64{cut}, rec.Laser.PierceS*q, rec.Laser.SetupS)
}

// components prices one job of the given cutting time.
func components(in Input, rec process.Records, cutS, pierceS, setupS float64) (material, energy, gas, labor float64) {
	q := float64(in.Quantity)
	material = process.MaterialCost(rec.Material, in.CutLengthM*1000*q, in.ThicknessMM)
	kwh := process.EnergyKWh(rec.Laser, in.PowerW, cutS) + process.IdleKWh(rec.Laser, pierceS+setupS)
	energy = kwh * in.ElectricityPerKWh
	pressure := physics.PairPressure(rec.Pair, in.ThicknessMM)
	gas = process.GasM3(pressure, process.Nozzle(0, in.ThicknessMM), cutS+pierceS) * rec.Gas.CostPerM3
	labor = process.LaborRate(rec.Laser, in.LaborRate, in.HasLaborRate) * (cutS + pierceS + setupS) / 3600
	return material, energy, gas, labor
}

func predictCost(in Input, rec process.Records, t engine.TimeMetrics, surfaceSpeed float64) engine.CostMetrics {
	material, energy, gas, labor := components(in, rec, t.CuttingS, t.PierceS, t.SetupS)

	surfaceCut := process.PassSeconds(in.CutLengthM*1000, surfaceSpeed) * float64(in.Quantity)
	bm, be, bg, bl := components(in, rec, surfaceCut, t.PierceS, t.SetupS)

	return engine.NewCost(process.Currency, material, energy, gas, labor, bm+be+bg+bl)
}

func sensitivity(d derivation, t engine.TimeMetrics) engine.SensitivityReport {
	o := d.optics
	var cuttingShare float64
	if t.TotalS > 0 {
		cuttingShare = t.CuttingS / t.TotalS
	}
	return engine.AnalyzeSensitivity([]engine.Perturbation{
		{Parameter: "focal_length_mm", Outcome: "spot_diameter", Unit: "mm", Base: o.SpotDiameterMM, Elasticity: 1},
		{Parameter: "focal_length_mm", Outcome: "rayleigh_length", Unit: "mm", Base: o.RayleighLengthMM, Elasticity: 2},
		{Parameter: "beam_quality_m2", Outcome: "spot_diameter", Unit: "mm", Base: o.SpotDiameterMM, Elasticity: 1},
		{Parameter: "laser_power_w", Outcome: "power_density", Unit: "MW/cm²", Base: o.PowerDensityMWcm, Elasticity: 1},
		{Parameter: "laser_power_w", Outcome: "total_time", Unit: "s", Base: t.TotalS, Elasticity: -cuttingShare},
	})
}
