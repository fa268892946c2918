package multipass

import (
	"fmt"
	"math"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/physics"
)

// powerFraction is the share of the declared maximum power pass i of n
// runs at. It never exceeds 1.
func powerFraction(s Strategy, i, n int) float64 {
	switch s {
	case StrategyUniform:
		return 0.95
	case StrategyAdaptive:
		if n == 1 {
			return 1
		}
		return 1 - 0.3*float64(i)/float64(n-1)
	case StrategyStaged:
		switch {
		case n == 1:
			return 1
		case i == n-1:
			return 0.70
		case i < (n+1)/2:
			return 1
		default:
			return 0.85
		}
	}
	panic(fmt.Sprintf("multipass: unhandled strategy %q", s))
}

// speedFactor slows the feed for cleaner edges.
func speedFactor(q process.Quality) float64 {
	switch q {
	case process.QualityRough:
		return 1.10
	case process.QualityStandard:
		return 1.0
	case process.QualityPrecision:
		return 0.85
	}
	panic(fmt.Sprintf("multipass: unhandled quality %q", q))
}

// expansion is the per-pass schedule plus what the warnings need to know
// about it.
type expansion struct {
	steps []engine.StepParameters
	// atEnvelope is set when any pass speed hit the source's motion limits.
	atEnvelope bool
}

func expand(in Input, rec process.Records, p plan) expansion {
	var out expansion
	out.steps = make([]engine.StepParameters, p.passes)
	sf := speedFactor(in.Quality)
	prev := 0.0
	for i := range p.passes {
		cumulative := in.ThicknessMM * float64(i+1) / float64(p.passes)
		if i == p.passes-1 {
			cumulative = in.ThicknessMM
		}
		power := in.PowerW * powerFraction(in.Strategy, i, p.passes)

		raw := physics.RawSpeed(rec.Material, rec.Laser, power, p.perPassMM) * sf
		speed := physics.Clamp(raw, rec.Laser.MinSpeedMMMin, rec.Laser.MaxSpeedMMMin)
		if speed != raw {
			out.atEnvelope = true
		}

		out.steps[i] = engine.StepParameters{
			Index:        i + 1,
			DepthMM:      p.perPassMM,
			CumulativeMM: cumulative,
			PowerW:       power,
			SpeedMMMin:   speed,
			PressureBar:  physics.PairPressure(rec.Pair, cumulative),
			FocusMM:      rec.Laser.FocusBaseMM + rec.Pair.FocusScale*p.perPassMM - (prev + p.perPassMM/2),
			DurationS:    process.PassSeconds(in.PartLengthMM, speed),
		}
		prev = cumulative
	}
	return out
}

// maxPower is the highest power any pass runs at.
func maxPower(steps []engine.StepParameters) float64 {
	m := math.Inf(-1)
	for _, s := range steps {
		m = math.Max(m, s.PowerW)
	}
	return m
}
