package multipass

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

// reworkPerExtraPass is the share of a naive single-pass job that has to be
// recut for every pass the sheet really needed beyond the first.
const reworkPerExtraPass = 0.35

// Details are the multi-pass specific derived values.
type Details struct {
	SinglePassLimitMM float64 `json:"single_pass_limit_mm"`
	LimitDerived      bool    `json:"limit_derived"`
	MinimumPasses     int     `json:"minimum_passes"`
	Capped            bool    `json:"capped"`
	NozzleMM          float64 `json:"nozzle_mm"`
	PeakPowerW        float64 `json:"peak_power_w"`
	SpeedAtEnvelope   bool    `json:"speed_at_envelope"`
	// BaselineRework is the recut share assumed for the naive single pass
	// the savings are measured against.
	BaselineRework float64 `json:"baseline_rework"`
}

// Compute derives the pass plan, expands it into passes and predicts
// quality, time and cost.
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

	strategy, p, err := derive(in, rec)
	if err != nil {
		return engine.Analysis{}, err
	}
	ex := expand(in, rec, p)

	quality := predictQuality(in, rec, p)
	t := predictTime(in, rec, ex.steps)
	cost, rework := predictCost(in, rec, p, ex.steps, t)

	return engine.Analysis{
		Strategy:        strategy,
		Steps:           ex.steps,
		DeclaredTotalMM: in.ThicknessMM,
		Outcome:         engine.OutcomeMetrics{Quality: quality, Time: t, Cost: cost},
		Sensitivity:     sensitivity(t, cost, quality),
		InputWarnings:   speedWarnings(in, ex.steps),
		Details: Details{
			SinglePassLimitMM: p.limitMM,
			LimitDerived:      p.derivedLimit,
			MinimumPasses:     p.minimum,
			Capped:            p.capped,
			NozzleMM:          process.Nozzle(in.NozzleMM, in.ThicknessMM),
			PeakPowerW:        maxPower(ex.steps),
			SpeedAtEnvelope:   ex.atEnvelope,
			BaselineRework:    rework,
		},
	}, nil
}

func strategyQuality(s Strategy) float64 {
	switch s {
	case StrategyUniform:
		return 0.96
	case StrategyAdaptive:
		return 1.0
	case StrategyStaged:
		return 1.03
	}
	panic(fmt.Sprintf("multipass: unhandled strategy %q", s))
}

func tierQuality(q process.Quality) float64 {
	switch q {
	case process.QualityRough:
		return 0.88
	case process.QualityStandard:
		return 1.0
	case process.QualityPrecision:
		return 1.08
	}
	panic(fmt.Sprintf("multipass: unhandled quality %q", q))
}

func predictQuality(in Input, rec process.Records, p plan) engine.QualityMetrics {
	factors := []engine.Parameter{
		{Name: "material", Value: rec.Material.QualityFactor},
		{Name: "material_gas_pair", Value: rec.Pair.QualityFactor},
		{Name: "strategy", Value: strategyQuality(in.Strategy)},
		{Name: "quality_tier", Value: tierQuality(in.Quality)},
		{Name: "pass_count", Value: 1 - 0.015*float64(p.passes-1)},
	}
	if p.overDepth() {
		factors = append(factors, engine.Parameter{Name: "over_depth", Value: 0.85})
	}
	score := 100.0
	for _, f := range factors {
		score *= f.Value
	}
	score = physics.Clamp(score, 0, 100)
	return engine.QualityMetrics{Score: score, Grade: Grades.Grade(score), Factors: factors}
}

func predictTime(in Input, rec process.Records, steps []engine.StepParameters) engine.TimeMetrics {
	q := float64(in.Quantity)
	perStep := make([]float64, len(steps))
	for i, s := range steps {
		perStep[i] = s.DurationS * q
	}
	pierce := rec.Laser.PierceS * float64(len(steps)) * q
	return engine.NewTime(perStep, pierce, rec.Laser.SetupS)
}

// predictCost prices the plan and a naive single full-power pass whose
// under-cut parts are partly recut. It returns the rework share used.
func predictCost(in Input, rec process.Records, p plan, steps []engine.StepParameters, t engine.TimeMetrics) (engine.CostMetrics, float64) {
	q := float64(in.Quantity)
	nozzle := process.Nozzle(in.NozzleMM, in.ThicknessMM)
	rate := process.LaborRate(rec.Laser, in.LaborRate, in.HasLaborRate)

	material := process.MaterialCost(rec.Material, in.PartLengthMM*q, in.ThicknessMM)
	kwh := process.IdleKWh(rec.Laser, t.PierceS+t.SetupS)
	var m3 float64
	for i, s := range steps {
		kwh += process.EnergyKWh(rec.Laser, s.PowerW, t.PerStepS[i])
		m3 += process.GasM3(s.PressureBar, nozzle, t.PerStepS[i])
	}
	energy := kwh * in.ElectricityPerKWh
	gas := m3 * rec.Gas.CostPerM3
	labor := rate * t.TotalS / 3600

	naiveSpeed := physics.EstimateSpeed(rec.Material, rec.Laser, in.PowerW, in.ThicknessMM)
	naiveCut := process.PassSeconds(in.PartLengthMM, naiveSpeed) * q
	naivePierce := rec.Laser.PierceS * q
	naiveTotal := naiveCut + naivePierce + rec.Laser.SetupS
	naive := material +
		(process.EnergyKWh(rec.Laser, in.PowerW, naiveCut)+process.IdleKWh(rec.Laser, naivePierce+rec.Laser.SetupS))*in.ElectricityPerKWh +
		process.GasM3(physics.PairPressure(rec.Pair, in.ThicknessMM), nozzle, naiveCut)*rec.Gas.CostPerM3 +
		rate*naiveTotal/3600
	rework := physics.Clamp((in.ThicknessMM/p.limitMM-1)*reworkPerExtraPass, 0, 0.9)
	baseline := naive * (1 + rework)

	return engine.NewCost(process.Currency, material, energy, gas, labor, baseline), rework
}

// sensitivity declares how the headline outcomes respond to the derived
// power, speed and pressure.
func sensitivity(t engine.TimeMetrics, cost engine.CostMetrics, quality engine.QualityMetrics) engine.SensitivityReport {
	cuttingShare := 0.0
	if t.TotalS > 0 {
		cuttingShare = t.CuttingS / t.TotalS
	}
	gasShare := 0.0
	total := cost.Total.InexactFloat64()
	if total > 0 {
		gasShare = cost.Gas.InexactFloat64() / total
	}
	return engine.AnalyzeSensitivity([]engine.Perturbation{
		{Parameter: "laser_power_w", Outcome: "total_time", Unit: "s", Base: t.TotalS, Elasticity: -cuttingShare},
		{Parameter: "laser_power_w", Outcome: "quality_score", Base: quality.Score, Elasticity: 0.3},
		{Parameter: "speed_mm_min", Outcome: "total_time", Unit: "s", Base: t.TotalS, Elasticity: -cuttingShare},
		{Parameter: "speed_mm_min", Outcome: "quality_score", Base: quality.Score, Elasticity: -0.5},
		{Parameter: "pressure_bar", Outcome: "total_cost", Unit: cost.Currency, Base: total, Elasticity: gasShare},
	})
}
