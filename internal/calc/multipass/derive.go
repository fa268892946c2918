package multipass

import (
	"fmt"
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

// Confidence model: a base plus fixed bonuses for well-supported inputs.
const (
	confidenceBase          = 0.50
	bonusCommonPair         = 0.15
	bonusTameConductivity   = 0.10
	bonusTypicalThickness   = 0.15
	bonusSuppliedLimit      = 0.05
	penaltyOverDepth        = 0.20
	tameConductivityCeiling = 150.0 // W/m·K
)

// plan is the discrete derivation before expansion.
type plan struct {
	limitMM      float64
	derivedLimit bool
	minimum      int
	passes       int
	perPassMM    float64
	capped       bool
}

// overDepth reports whether each pass removes more than one pass can.
func (p plan) overDepth() bool {
	return p.perPassMM > p.limitMM+1e-9
}

func derive(in Input, rec process.Records) (engine.StrategyCandidate, plan, error) {
	p := plan{limitMM: in.MaxDepthPerPassMM}
	if p.limitMM <= 0 {
		p.limitMM = physics.SinglePassDepth(rec.Material, rec.Laser, in.PowerW)
		p.derivedLimit = true
	}
	if p.limitMM <= 0 || math.IsNaN(p.limitMM) {
		return engine.StrategyCandidate{}, plan{}, fmt.Errorf("degenerate single-pass depth %v mm", p.limitMM)
	}

	var reasoning []string
	p.minimum = max(1, int(math.Ceil(in.ThicknessMM/p.limitMM-1e-9)))
	source := "supplied"
	if p.derivedLimit {
		source = fmt.Sprintf("derived from %.0f W on %s", in.PowerW, rec.Material.Name)
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"%.2f mm at no more than %.2f mm per pass (%s) needs at least %d pass(es)",
		in.ThicknessMM, p.limitMM, source, p.minimum))

	count := p.minimum
	switch in.Strategy {
	case StrategyUniform:
	case StrategyAdaptive:
		count++
		reasoning = append(reasoning, fmt.Sprintf(
			"adaptive power ramp adds one pass so the last passes can run cooler: %d -> %d", count-1, count))
	case StrategyStaged:
		scaled := int(math.Ceil(float64(count)*rec.Material.WorkHardening - 1e-9))
		if scaled > count {
			reasoning = append(reasoning, fmt.Sprintf(
				"staged passes scale by the %.2f work-hardening factor of %s: %d -> %d",
				rec.Material.WorkHardening, rec.Material.Name, count, scaled))
			count = scaled
		}
	default:
		panic(fmt.Sprintf("multipass: unhandled strategy %q", in.Strategy))
	}

	switch in.Quality {
	case process.QualityRough, process.QualityStandard:
	case process.QualityPrecision:
		count++
		reasoning = append(reasoning, fmt.Sprintf("precision edge adds a clean-up pass: %d -> %d", count-1, count))
	default:
		panic(fmt.Sprintf("multipass: unhandled quality %q", in.Quality))
	}

	limit := min(in.MaxPasses, AbsoluteMaxPasses)
	if count > limit {
		reasoning = append(reasoning, fmt.Sprintf("pass count capped at %d (from %d)", limit, count))
		count = limit
		p.capped = true
	}
	p.passes = count
	p.perPassMM = in.ThicknessMM / float64(count)

	confidence := confidenceBase
	if rec.Pair.Common {
		confidence += bonusCommonPair
	}
	if rec.Material.ThermalConductivity <= tameConductivityCeiling {
		confidence += bonusTameConductivity
	}
	if rec.Pair.Typical(in.ThicknessMM) {
		confidence += bonusTypicalThickness
	}
	if !p.derivedLimit {
		confidence += bonusSuppliedLimit
	}
	if p.overDepth() {
		confidence -= penaltyOverDepth
	}

	return engine.StrategyCandidate{
		Name: string(in.Strategy) + " multi-pass",
		Parameters: []engine.Parameter{
			{Name: "pass_count", Value: float64(p.passes), Unit: "passes"},
			{Name: "depth_per_pass_mm", Value: p.perPassMM, Unit: "mm"},
			{Name: "single_pass_limit_mm", Value: p.limitMM, Unit: "mm"},
			{Name: "minimum_passes", Value: float64(p.minimum), Unit: "passes"},
			{Name: "max_power_w", Value: in.PowerW, Unit: "W"},
		},
		Reasoning:  reasoning,
		Confidence: physics.Clamp01(confidence),
	}, p, nil
}
