package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub is a two-step calculator whose stages can be made to misbehave.
type stub struct {
	validate func(Request) Issues
	compute  func(Request) (Analysis, error)
	advise   func(Request, Analysis) Advice
}

func (stub) ID() string    { return "stub" }
func (stub) Title() string { return "Stub" }

func (stub) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "depth_mm", Kind: FieldNumber, Unit: "mm", Min: 0.1, Max: 100, Required: true},
		{Name: "count", Kind: FieldInteger, Min: 1, Max: 10, Default: 2.0},
		{Name: "mode", Kind: FieldEnum, Options: []string{"a", "b"}, Default: "a"},
		{Name: "current", Kind: FieldOptional, Min: 0, Max: 1000},
	}}
}

func (s stub) DefaultInputs() map[string]any { return s.Schema().Defaults() }
func (stub) ExampleInputs() []Example        { return nil }

func (s stub) DomainValidate(r Request) Issues {
	if s.validate != nil {
		return s.validate(r)
	}
	return Issues{}
}

func (s stub) Compute(r Request) (Analysis, error) {
	if s.compute != nil {
		return s.compute(r)
	}
	return splitEvenly(r), nil
}

func (s stub) Advise(r Request, a Analysis) Advice {
	if s.advise != nil {
		return s.advise(r, a)
	}
	return Advice{Warnings: []Issue{{Code: "late", Message: "result stage"}}}
}

func splitEvenly(r Request) Analysis {
	total := r.Number("depth_mm")
	n := r.Int("count")
	steps := make([]StepParameters, n)
	perStep := make([]float64, n)
	for i := range steps {
		steps[i] = StepParameters{
			Index: i + 1, DepthMM: total / float64(n), CumulativeMM: total * float64(i+1) / float64(n),
			PowerW: 1000, SpeedMMMin: 1000, DurationS: 10,
		}
		perStep[i] = 10
	}
	return Analysis{
		Strategy:        StrategyCandidate{Name: "even", Reasoning: []string{"split evenly"}, Confidence: 0.8},
		Steps:           steps,
		DeclaredTotalMM: total,
		Outcome: OutcomeMetrics{
			Quality: QualityMetrics{Score: 80, Grade: "B"},
			Time:    NewTime(perStep, 3, 60),
			Cost:    NewCost("EUR", 1.234, 0.5, 0.25, 2.0, 5),
		},
		Sensitivity: AnalyzeSensitivity([]Perturbation{{Parameter: "power", Outcome: "time", Base: 100, Elasticity: -0.6}}),
	}
}

func TestRunSuccess(t *testing.T) {
	out := Run(stub{}, map[string]any{"depth_mm": 12.0})
	res, ok := out.(*Result)
	require.True(t, ok)

	assert.Len(t, res.Steps, 2)
	assert.Equal(t, "stub", res.Metadata.CalculatorID)
	assert.Equal(t, SchemaVersion, res.Metadata.SchemaVersion)
	assert.Len(t, res.Metadata.Fingerprint, 64)
	assert.Equal(t, map[string]any{"depth_mm": 12.0, "count": 2.0, "mode": "a"}, res.Inputs)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, StageResult, res.Warnings[0].Stage)
}

func TestRunStructuralFailure(t *testing.T) {
	out := Run(stub{}, map[string]any{
		"depth_mm": -1.0,
		"count":    2.5,
		"mode":     "c",
		"extra":    true,
	})
	f, ok := out.(*Failure)
	require.True(t, ok)
	assert.Equal(t, FailureStructural, f.Kind)

	codes := map[string]string{}
	for _, fe := range f.FieldErrors {
		codes[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"extra":    CodeUnknownField,
		"depth_mm": CodeRange,
		"count":    CodeInteger,
		"mode":     CodeOption,
	}, codes)
}

func TestRunMissingRequired(t *testing.T) {
	f, ok := Run(stub{}, map[string]any{}).(*Failure)
	require.True(t, ok)
	require.Len(t, f.FieldErrors, 1)
	assert.Equal(t, CodeRequired, f.FieldErrors[0].Code)
}

func TestValidationNeverReachesCompute(t *testing.T) {
	computed := false
	c := stub{
		validate: func(Request) Issues {
			var is Issues
			is.Errorf("unsupported_combination", "mode", "no table entry")
			is.Warnf("odd", "", "ignored")
			return is
		},
		compute: func(r Request) (Analysis, error) {
			computed = true
			return splitEvenly(r), nil
		},
	}
	f, ok := Run(c, map[string]any{"depth_mm": 5.0}).(*Failure)
	require.True(t, ok)
	assert.Equal(t, FailureDomain, f.Kind)
	assert.False(t, computed)
	assert.Contains(t, f.Error(), "no table entry")
}

func TestWarningsAreMergedByStage(t *testing.T) {
	c := stub{
		validate: func(Request) Issues {
			var is Issues
			is.Warnf("typical", "depth_mm", "outside typical range")
			return is
		},
		compute: func(r Request) (Analysis, error) {
			a := splitEvenly(r)
			a.InputWarnings = []Issue{{Code: "deviation", Field: "current"}}
			return a, nil
		},
	}
	res, ok := Run(c, map[string]any{"depth_mm": 5.0}).(*Result)
	require.True(t, ok)
	require.Len(t, res.Warnings, 3)
	assert.Equal(t, []string{"typical", "deviation", "late"},
		[]string{res.Warnings[0].Code, res.Warnings[1].Code, res.Warnings[2].Code})
	assert.Equal(t, StageInput, res.Warnings[1].Stage)
	assert.Equal(t, StageResult, res.Warnings[2].Stage)
}

func TestInternalFaultsAreContained(t *testing.T) {
	tests := map[string]stub{
		"panic in compute": {compute: func(Request) (Analysis, error) { panic("boom") }},
		"error in compute": {compute: func(Request) (Analysis, error) { return Analysis{}, errors.New("broken") }},
		"panic in advise":  {advise: func(Request, Analysis) Advice { panic("boom") }},
		"panic in validate": {validate: func(Request) Issues {
			var m map[string]int
			m["x"]++
			return Issues{}
		}},
		"broken invariant": {compute: func(r Request) (Analysis, error) {
			a := splitEvenly(r)
			a.Steps[1].CumulativeMM += 1
			return a, nil
		}},
		"confidence out of range": {compute: func(r Request) (Analysis, error) {
			a := splitEvenly(r)
			a.Strategy.Confidence = 1.2
			return a, nil
		}},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			f, ok := Run(c, map[string]any{"depth_mm": 5.0}).(*Failure)
			require.True(t, ok)
			assert.Equal(t, FailureInternal, f.Kind)
			assert.NotEmpty(t, f.Message)
		})
	}
}

func TestFailureUnwrapsWithErrorsAs(t *testing.T) {
	var err error = Run(stub{}, map[string]any{}).(*Failure)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, FailureStructural, f.Kind)
}

func TestResultsAreIndependentCopies(t *testing.T) {
	first := Run(stub{}, map[string]any{"depth_mm": 6.0}).(*Result)
	first.Steps[0].PowerW = 0
	first.Inputs["depth_mm"] = 99.0
	second := Run(stub{}, map[string]any{"depth_mm": 6.0}).(*Result)
	assert.Equal(t, 1000.0, second.Steps[0].PowerW)
	assert.Equal(t, 6.0, second.Inputs["depth_mm"])
}

func TestFingerprint(t *testing.T) {
	s := stub{}.Schema()
	a, errs := s.Parse(map[string]any{"depth_mm": 5.0})
	require.Empty(t, errs)
	b, errs := s.Parse(map[string]any{"depth_mm": 5, "count": 2, "mode": "a"})
	require.Empty(t, errs)
	c, errs := s.Parse(map[string]any{"depth_mm": 5.5})
	require.Empty(t, errs)

	assert.Equal(t, Fingerprint("stub", a), Fingerprint("stub", b), "defaults and int/float spelling must not matter")
	assert.NotEqual(t, Fingerprint("stub", a), Fingerprint("stub", c))
	assert.NotEqual(t, Fingerprint("stub", a), Fingerprint("other", a))
	assert.Equal(t, []string{"count=2", "depth_mm=5", "mode=a"}, a.Normalized())
}

func TestOptionalFieldPresence(t *testing.T) {
	s := stub{}.Schema()
	r, errs := s.Parse(map[string]any{"depth_mm": 5.0, "current": 0.0})
	require.Empty(t, errs)
	v, ok := r.Optional("current")
	assert.True(t, ok)
	assert.Zero(t, v)

	r, errs = s.Parse(map[string]any{"depth_mm": 5.0, "current": nil})
	require.Empty(t, errs)
	_, ok = r.Optional("current")
	assert.False(t, ok)
}

func TestSensitivityBands(t *testing.T) {
	assert.Equal(t, BandMinimal, BandFor(1.99))
	assert.Equal(t, BandNoticeable, BandFor(-2))
	assert.Equal(t, BandNoticeable, BandFor(4.9))
	assert.Equal(t, BandSignificant, BandFor(5))

	rep := AnalyzeSensitivity([]Perturbation{
		{Parameter: "power", Outcome: "time", Base: 200, Elasticity: -0.3},
		{Parameter: "pressure", Outcome: "cost", Base: 10, Elasticity: 0.9},
	})
	require.Len(t, rep.Entries, 2*len(Magnitudes))
	assert.Equal(t, "pressure -> cost", rep.MostSensitive)
	first := rep.Entries[0]
	assert.Equal(t, -10.0, first.PerturbationPct)
	assert.InDelta(t, 3.0, first.DeltaPct, 1e-12)
	assert.InDelta(t, 6.0, first.Delta, 1e-12)
	assert.Equal(t, BandNoticeable, first.Band)
}

func TestGradeScale(t *testing.T) {
	g := GradeScale{Bands: []GradeBand{{Min: 90, Grade: "A"}, {Min: 70, Grade: "B"}}, Floor: "F"}
	assert.Equal(t, "A", g.Grade(90))
	assert.Equal(t, "B", g.Grade(89.9))
	assert.Equal(t, "F", g.Grade(0))
	threshold, ok := g.Threshold("B")
	assert.True(t, ok)
	assert.Equal(t, 70.0, threshold)
	_, ok = g.Threshold("F")
	assert.False(t, ok)
}

func TestNewCostSumsRoundedComponents(t *testing.T) {
	c := NewCost("EUR", 1.005, 0.334, 0.333, 10.006, 20)
	assert.True(t, c.Total.Equal(c.Material.Add(c.Energy).Add(c.Gas).Add(c.Labor)))
	assert.Equal(t, "0.33", c.Gas.StringFixed(2))
	assert.True(t, c.Savings.Equal(decimal.RequireFromString("20").Sub(c.Total)))
	assert.Greater(t, c.SavingsPct, 0.0)
}

func TestNewTime(t *testing.T) {
	tm := NewTime([]float64{30, 30}, 10, 50)
	assert.Equal(t, 60.0, tm.CuttingS)
	assert.Equal(t, 120.0, tm.TotalS)
	assert.Equal(t, 2.0, tm.TotalMin)
	assert.Equal(t, 30.0, tm.JobsPerHour)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(stub{})
	require.NoError(t, err)
	c, err := r.Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "Stub", c.Title())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownCalculator)

	_, err = NewRegistry(stub{}, stub{})
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	s := stub{}.Schema()
	assert.Equal(t, 12.5, s.Coerce("depth_mm", " 12,5 "))
	assert.Equal(t, 3.0, s.Coerce("count", "3"))
	assert.Equal(t, "b", s.Coerce("mode", "b"))
	assert.Equal(t, "deep", s.Coerce("depth_mm", "deep"))
	assert.Equal(t, "x", s.Coerce("extra", "x"))

	_, errs := s.Parse(map[string]any{"depth_mm": s.Coerce("depth_mm", "deep")})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeType, errs[0].Code)
}
