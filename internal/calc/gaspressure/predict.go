package gaspressure

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

// Details are the pressure specific derived values.
type Details struct {
	RecommendedBar float64 `json:"recommended_bar"`
	UnclampedBar   float64 `json:"unclamped_bar"`
	ToleranceLow   float64 `json:"tolerance_low_bar"`
	ToleranceHigh  float64 `json:"tolerance_high_bar"`
	Clamped        bool    `json:"clamped"`
	NozzleMM       float64 `json:"nozzle_mm"`
	NozzleType     string  `json:"nozzle_type"`
	GasFlowLPM     float64 `json:"gas_flow_lpm"`
	GasM3          float64 `json:"gas_m3"`
	SpeedMMMin     float64 `json:"speed_mm_min"`
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
	speed := cuttingSpeed(in, rec)
	quality := predictQuality(in, rec, d)
	t := predictTime(in, rec, speed)
	cost, m3 := predictCost(in, rec, d, t)

	return engine.Analysis{
		Strategy:      strategy,
		Outcome:       engine.OutcomeMetrics{Quality: quality, Time: t, Cost: cost},
		Sensitivity:   sensitivity(d, t, cost, quality),
		InputWarnings: pressureWarnings(in, d.pressure),
		Details: Details{
			RecommendedBar: d.pressure,
			UnclampedBar:   d.unclamped,
			ToleranceLow:   d.low,
			ToleranceHigh:  d.high,
			Clamped:        d.clamped,
			NozzleMM:       d.nozzleMM,
			NozzleType:     string(in.NozzleType),
			GasFlowLPM:     d.flowLPM,
			GasM3:          m3,
			SpeedMMMin:     speed,
		},
	}, nil
}

func speedFactor(in Input) float64 {
	var f float64
	switch in.Strategy {
	case StrategyBalanced:
		f = 1.0
	case StrategyHighSpeed:
		f = 1.12
	case StrategyDrossFree:
		f = 0.90
	default:
		panic(fmt.Sprintf("gaspressure: unhandled strategy %q", in.Strategy))
	}
	switch in.Quality {
	case process.QualityRough:
		f *= 1.10
	case process.QualityStandard:
	case process.QualityPrecision:
		f *= 0.85
	default:
		panic(fmt.Sprintf("gaspressure: unhandled quality %q", in.Quality))
	}
	return f
}

func cuttingSpeed(in Input, rec process.Records) float64 {
	raw := physics.RawSpeed(rec.Material, rec.Laser, in.PowerW, in.ThicknessMM) * speedFactor(in)
	return physics.Clamp(raw, rec.Laser.MinSpeedMMMin, rec.Laser.MaxSpeedMMMin)
}

func predictQuality(in Input, rec process.Records, d derivation) engine.QualityMetrics {
	var tier, strat float64
	switch in.Quality {
	case process.QualityRough:
		tier = 0.90
	case process.QualityStandard:
		tier = 1.0
	case process.QualityPrecision:
		tier = 1.06
	}
	switch in.Strategy {
	case StrategyBalanced:
		strat = 1.0
	case StrategyHighSpeed:
		strat = 0.94
	case StrategyDrossFree:
		strat = 1.04
	}
	factors := []engine.Parameter{
		{Name: "material", Value: rec.Material.QualityFactor},
		{Name: "material_gas_pair", Value: rec.Pair.QualityFactor},
		{Name: "quality_tier", Value: tier},
		{Name: "strategy", Value: strat},
		{Name: "pressure_fit", Value: d.envelopeFit},
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

// predictCost prices the job at the recommended pressure against a
// baseline run at the top of the pair's envelope.
func predictCost(in Input, rec process.Records, d derivation, t engine.TimeMetrics) (engine.CostMetrics, float64) {
	q := float64(in.Quantity)
	rate := process.LaborRate(rec.Laser, in.LaborRate, in.HasLaborRate)
	gasSeconds := t.CuttingS + t.PierceS

	material := process.MaterialCost(rec.Material, in.CutLengthM*1000*q, in.ThicknessMM)
	kwh := process.EnergyKWh(rec.Laser, in.PowerW, t.CuttingS) + process.IdleKWh(rec.Laser, t.PierceS+t.SetupS)
	energy := kwh * in.ElectricityPerKWh
	m3 := process.GasM3(d.pressure, d.nozzleMM, gasSeconds)
	gas := m3 * rec.Gas.CostPerM3
	labor := rate * t.TotalS / 3600

	baselineGas := process.GasM3(rec.Pair.MaxPressureBar, d.nozzleMM, gasSeconds) * rec.Gas.CostPerM3
	baseline := material + energy + baselineGas + labor

	return engine.NewCost(process.Currency, material, energy, gas, labor, baseline), m3
}

func sensitivity(d derivation, t engine.TimeMetrics, cost engine.CostMetrics, quality engine.QualityMetrics) engine.SensitivityReport {
	var cuttingShare, gasShare float64
	if t.TotalS > 0 {
		cuttingShare = t.CuttingS / t.TotalS
	}
	total := cost.Total.InexactFloat64()
	if total > 0 {
		gasShare = cost.Gas.InexactFloat64() / total
	}
	// Flow grows with absolute pressure, so gauge pressure moves it by p/(p+1).
	flowElasticity := d.pressure / (d.pressure + 1)
	return engine.AnalyzeSensitivity([]engine.Perturbation{
		{Parameter: "pressure_bar", Outcome: "gas_flow", Unit: "l/min", Base: d.flowLPM, Elasticity: flowElasticity},
		{Parameter: "pressure_bar", Outcome: "total_cost", Unit: cost.Currency, Base: total, Elasticity: gasShare * flowElasticity},
		{Parameter: "pressure_bar", Outcome: "quality_score", Base: quality.Score, Elasticity: 0.15},
		{Parameter: "laser_power_w", Outcome: "total_time", Unit: "s", Base: t.TotalS, Elasticity: -cuttingShare},
	})
}
