package engine

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Tolerance for the additive and cumulative invariants.
const Tolerance = 1e-2

// GradeBand maps scores at or above Min to Grade.
type GradeBand struct {
	Min   float64
	Grade string
}

// GradeScale is a calculator-local list of bands in descending Min order;
// scores below the last band get Floor.
type GradeScale struct {
	Bands []GradeBand
	Floor string
}

// Grade maps a score to its letter.
func (g GradeScale) Grade(score float64) string {
	for _, b := range g.Bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return g.Floor
}

// Threshold returns the lowest score that still earns grade.
func (g GradeScale) Threshold(grade string) (float64, bool) {
	for _, b := range g.Bands {
		if b.Grade == grade {
			return b.Min, true
		}
	}
	return 0, false
}

// NewTime builds TimeMetrics from per-step cutting seconds plus pierce and
// setup overhead.
func NewTime(perStepS []float64, pierceS, setupS float64) TimeMetrics {
	t := TimeMetrics{PerStepS: perStepS, PierceS: pierceS, SetupS: setupS}
	for _, s := range perStepS {
		t.CuttingS += s
	}
	t.TotalS = t.CuttingS + t.PierceS + t.SetupS
	t.TotalMin = t.TotalS / 60
	if t.TotalMin > 0 {
		t.JobsPerHour = 60 / t.TotalMin
	}
	return t
}

// NewCost rounds each component to cents, sums them and compares the total
// against a naive baseline estimate.
func NewCost(currency string, material, energy, gas, labor, baseline float64) CostMetrics {
	c := CostMetrics{
		Currency: currency,
		Material: money(material),
		Energy:   money(energy),
		Gas:      money(gas),
		Labor:    money(labor),
		Baseline: money(baseline),
	}
	c.Total = c.Material.Add(c.Energy).Add(c.Gas).Add(c.Labor)
	c.Savings = c.Baseline.Sub(c.Total)
	if c.Baseline.IsPositive() {
		c.SavingsPct = c.Savings.Div(c.Baseline).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	return c
}

func money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Sprintf("non-finite cost component %v", v))
	}
	return decimal.NewFromFloat(v).Round(2)
}

// CheckInvariants verifies an analysis before it is assembled into a
// result. A violation means a calculator bug, not a bad request.
func CheckInvariants(a Analysis) error {
	s := a.Strategy
	if s.Confidence < 0 || s.Confidence > 1 || math.IsNaN(s.Confidence) {
		return fmt.Errorf("confidence %v outside [0, 1]", s.Confidence)
	}
	if len(s.Reasoning) == 0 {
		return fmt.Errorf("strategy %q has no reasoning", s.Name)
	}

	if n := len(a.Steps); n > 0 {
		var sum float64
		for i, st := range a.Steps {
			if st.Index != i+1 {
				return fmt.Errorf("step %d has index %d", i+1, st.Index)
			}
			if st.SpeedMMMin <= 0 || st.DurationS < 0 {
				return fmt.Errorf("step %d has non-positive speed", st.Index)
			}
			sum += st.DepthMM
		}
		if d := math.Abs(a.Steps[n-1].CumulativeMM - a.DeclaredTotalMM); d > Tolerance {
			return fmt.Errorf("cumulative depth %.4f mm differs from declared %.4f mm",
				a.Steps[n-1].CumulativeMM, a.DeclaredTotalMM)
		}
		if d := math.Abs(sum - a.DeclaredTotalMM); d > Tolerance {
			return fmt.Errorf("step depths sum to %.4f mm, declared %.4f mm", sum, a.DeclaredTotalMM)
		}
	}

	t := a.Outcome.Time
	var steps float64
	for _, v := range t.PerStepS {
		steps += v
	}
	if math.Abs(steps-t.CuttingS) > Tolerance {
		return fmt.Errorf("per-step times sum to %.4f s, cutting time is %.4f s", steps, t.CuttingS)
	}
	if math.Abs(t.CuttingS+t.PierceS+t.SetupS-t.TotalS) > Tolerance {
		return fmt.Errorf("time components do not sum to total %.4f s", t.TotalS)
	}

	c := a.Outcome.Cost
	if !c.Material.Add(c.Energy).Add(c.Gas).Add(c.Labor).Equal(c.Total) {
		return fmt.Errorf("cost components do not sum to total %s", c.Total)
	}

	q := a.Outcome.Quality
	if q.Score < 0 || q.Score > 100 || math.IsNaN(q.Score) {
		return fmt.Errorf("quality score %v outside [0, 100]", q.Score)
	}
	return nil
}
