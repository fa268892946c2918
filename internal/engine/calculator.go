// Package engine is the shared validate → derive → predict → assemble
// contract every calculator implements.
//
// A calculator declares a Schema, checks cross-field domain rules in
// DomainValidate, derives and predicts in Compute and produces advice in
// Advise. Run drives those stages in order, stops at the first blocking
// failure, recovers any panic into an internal Failure and verifies the
// additive and cumulative invariants before assembling the Result.
//
// Run is synchronous and side-effect free. Calculators hold only immutable
// property tables, so any number of Run calls may execute in parallel.
package engine

import (
	"fmt"
	"slices"
	"time"
)

// Example is a named literal input set for forms and self-tests.
type Example struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Inputs      map[string]any `json:"inputs"`
}

// Calculator is one concrete domain calculator.
type Calculator interface {
	ID() string
	Title() string
	Schema() Schema
	DefaultInputs() map[string]any
	ExampleInputs() []Example
	DomainValidate(req Request) Issues
	Compute(req Request) (Analysis, error)
	Advise(req Request, a Analysis) Advice
}

// Run executes one calculation end to end.
func Run(c Calculator, raw map[string]any) Outcome {
	start := time.Now()
	id := c.ID()

	req, fieldErrs := c.Schema().Parse(raw)
	if len(fieldErrs) > 0 {
		return &Failure{
			Kind:         FailureStructural,
			CalculatorID: id,
			Message:      fmt.Sprintf("%d invalid field(s)", len(fieldErrs)),
			FieldErrors:  fieldErrs,
		}
	}

	var issues Issues
	if err := guard(func() error { issues = c.DomainValidate(req); return nil }); err != nil {
		return internal(id, "validation", err)
	}
	if issues.Blocking() {
		return &Failure{
			Kind:         FailureDomain,
			CalculatorID: id,
			Message:      "unsupported input combination",
			Errors:       issues.Errors,
		}
	}

	var analysis Analysis
	if err := guard(func() (err error) { analysis, err = c.Compute(req); return err }); err != nil {
		return internal(id, "computation", err)
	}
	if err := CheckInvariants(analysis); err != nil {
		return internal(id, "consistency check", err)
	}

	var advice Advice
	if err := guard(func() error { advice = c.Advise(req, analysis); return nil }); err != nil {
		return internal(id, "advice", err)
	}

	return assemble(id, req, issues, analysis, advice, start)
}

func assemble(id string, req Request, issues Issues, a Analysis, adv Advice, start time.Time) *Result {
	warnings := make([]Warning, 0, len(issues.Warnings)+len(a.InputWarnings)+len(adv.Warnings))
	for _, w := range issues.Warnings {
		warnings = append(warnings, Warning{Stage: StageInput, Issue: w})
	}
	for _, w := range a.InputWarnings {
		warnings = append(warnings, Warning{Stage: StageInput, Issue: w})
	}
	for _, w := range adv.Warnings {
		warnings = append(warnings, Warning{Stage: StageResult, Issue: w})
	}

	outcome := a.Outcome
	outcome.Time.PerStepS = slices.Clone(outcome.Time.PerStepS)
	outcome.Quality.Factors = slices.Clone(outcome.Quality.Factors)
	strategy := a.Strategy
	strategy.Parameters = slices.Clone(strategy.Parameters)
	strategy.Reasoning = slices.Clone(strategy.Reasoning)

	return &Result{
		Inputs:          req.Values(),
		Strategy:        strategy,
		Steps:           slices.Clone(a.Steps),
		Outcome:         outcome,
		Sensitivity:     SensitivityReport{Entries: slices.Clone(a.Sensitivity.Entries), MostSensitive: a.Sensitivity.MostSensitive},
		Recommendations: adv.Recommendations,
		Troubleshooting: slices.Clone(adv.Troubleshooting),
		Warnings:        warnings,
		Details:         a.Details,
		Metadata: Metadata{
			CalculatorID:  id,
			SchemaVersion: SchemaVersion,
			Fingerprint:   Fingerprint(id, req),
			Duration:      time.Since(start),
			ComputedAt:    start.UTC(),
		},
	}
}

func internal(id, stage string, err error) *Failure {
	return &Failure{
		Kind:         FailureInternal,
		CalculatorID: id,
		Message:      fmt.Sprintf("%s failed: %v", stage, err),
	}
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
