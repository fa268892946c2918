package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion identifies the shape of Result. Bump it when fields change
// meaning so cached results keyed by fingerprint can be invalidated.
const SchemaVersion = "1.2.0"

// Parameter is one named derived scalar.
type Parameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// StrategyCandidate is the single approach the derivation settled on.
type StrategyCandidate struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	// Reasoning holds one entry per adjustment that changed the value, in
	// the order the adjustments were applied.
	Reasoning  []string `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// Param looks up a derived parameter by name.
func (s StrategyCandidate) Param(name string) (float64, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// StepParameters is one pass of a multi-pass process.
type StepParameters struct {
	Index        int     `json:"index"`
	DepthMM      float64 `json:"depth_mm"`
	CumulativeMM float64 `json:"cumulative_mm"`
	PowerW       float64 `json:"power_w"`
	SpeedMMMin   float64 `json:"speed_mm_min"`
	PressureBar  float64 `json:"pressure_bar"`
	FocusMM      float64 `json:"focus_mm"`
	DurationS    float64 `json:"duration_s"`
}

// QualityMetrics is the predicted edge quality.
type QualityMetrics struct {
	Score   float64     `json:"score"`
	Grade   string      `json:"grade"`
	Factors []Parameter `json:"factors,omitempty"`
}

// TimeMetrics is the predicted job time. PerStepS sums to CuttingS and
// CuttingS + PierceS + SetupS equals TotalS.
type TimeMetrics struct {
	PerStepS    []float64 `json:"per_step_s"`
	CuttingS    float64   `json:"cutting_s"`
	PierceS     float64   `json:"pierce_s"`
	SetupS      float64   `json:"setup_s"`
	TotalS      float64   `json:"total_s"`
	TotalMin    float64   `json:"total_min"`
	JobsPerHour float64   `json:"jobs_per_hour"`
}

// CostMetrics is the predicted job cost. The four components are rounded
// to cents before summing so Total is their exact sum.
type CostMetrics struct {
	Currency   string          `json:"currency"`
	Material   decimal.Decimal `json:"material"`
	Energy     decimal.Decimal `json:"energy"`
	Gas        decimal.Decimal `json:"gas"`
	Labor      decimal.Decimal `json:"labor"`
	Total      decimal.Decimal `json:"total"`
	Baseline   decimal.Decimal `json:"baseline"`
	Savings    decimal.Decimal `json:"savings"`
	SavingsPct float64         `json:"savings_pct"`
}

// OutcomeMetrics groups the three predictors.
type OutcomeMetrics struct {
	Quality QualityMetrics `json:"quality"`
	Time    TimeMetrics    `json:"time"`
	Cost    CostMetrics    `json:"cost"`
}

// Recommendations are grouped advice strings.
type Recommendations struct {
	Strategy   []string `json:"strategy"`
	Parameters []string `json:"parameters"`
	Quality    []string `json:"quality"`
	Cost       []string `json:"cost"`
}

// Len is the total number of recommendations across groups.
func (r Recommendations) Len() int {
	return len(r.Strategy) + len(r.Parameters) + len(r.Quality) + len(r.Cost)
}

// Troubleshoot is an (issue, cause, solution) triple.
type Troubleshoot struct {
	Issue    string `json:"issue"`
	Cause    string `json:"cause"`
	Solution string `json:"solution"`
}

// Stage says which part of the pipeline raised a warning.
type Stage string

const (
	StageInput  Stage = "input"
	StageResult Stage = "result"
)

// Warning is an advisory attached to a successful result.
type Warning struct {
	Stage Stage `json:"stage"`
	Issue
}

// Analysis is what a calculator's Compute hands to the assembler.
type Analysis struct {
	Strategy StrategyCandidate
	// Steps is empty for single-value calculators.
	Steps []StepParameters
	// DeclaredTotalMM is the quantity the steps must add up to.
	DeclaredTotalMM float64
	Outcome         OutcomeMetrics
	Sensitivity     SensitivityReport
	// InputWarnings are input-stage advisories that need a derived value,
	// such as a caller's current setting far from the recommendation.
	InputWarnings []Issue
	// Details carries calculator-specific derived values.
	Details any
}

// Advice is the output of a calculator's recommendation and warning rules.
type Advice struct {
	Recommendations Recommendations
	Troubleshooting []Troubleshoot
	Warnings        []Issue
}

// Metadata describes how a result was produced.
type Metadata struct {
	CalculatorID  string        `json:"calculator_id"`
	SchemaVersion string        `json:"schema_version"`
	Fingerprint   string        `json:"fingerprint"`
	Duration      time.Duration `json:"duration_ns"`
	ComputedAt    time.Time     `json:"computed_at"`
}

// Result is a complete, internally consistent calculation. The engine
// keeps no reference to it once returned.
type Result struct {
	Inputs          map[string]any    `json:"inputs"`
	Strategy        StrategyCandidate `json:"strategy"`
	Steps           []StepParameters  `json:"steps,omitempty"`
	Outcome         OutcomeMetrics    `json:"outcome"`
	Sensitivity     SensitivityReport `json:"sensitivity"`
	Recommendations Recommendations   `json:"recommendations"`
	Troubleshooting []Troubleshoot    `json:"troubleshooting"`
	Warnings        []Warning         `json:"warnings"`
	Details         any               `json:"details,omitempty"`
	Metadata        Metadata          `json:"metadata"`
}

// Outcome is either *Result or *Failure.
type Outcome interface {
	outcome()
}

func (*Result) outcome()  {}
func (*Failure) outcome() {}
