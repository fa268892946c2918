package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is one domain validation finding or result-stage advisory.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Issues collects blocking errors and advisory warnings independently.
type Issues struct {
	Errors   []Issue
	Warnings []Issue
}

func (is *Issues) Errorf(code, field, format string, args ...any) {
	is.Errors = append(is.Errors, Issue{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (is *Issues) Warnf(code, field, format string, args ...any) {
	is.Warnings = append(is.Warnings, Issue{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Blocking reports whether any error was recorded.
func (is Issues) Blocking() bool { return len(is.Errors) > 0 }

var ErrUnknownCalculator = errors.New("unknown calculator")

// FailureKind classifies why a calculation produced no result.
type FailureKind string

const (
	FailureStructural FailureKind = "structural"
	FailureDomain     FailureKind = "domain"
	FailureInternal   FailureKind = "internal"
)

// Failure is the single structured error a calculation can end in. It
// never carries derived values.
type Failure struct {
	Kind         FailureKind  `json:"kind"`
	CalculatorID string       `json:"calculator_id"`
	Message      string       `json:"message"`
	FieldErrors  []FieldError `json:"field_errors,omitempty"`
	Errors       []Issue      `json:"errors,omitempty"`
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	var details []string
	for _, fe := range f.FieldErrors {
		details = append(details, fe.Error())
	}
	for _, is := range f.Errors {
		details = append(details, is.Message)
	}
	if len(details) == 0 {
		return fmt.Sprintf("%s %s failure: %s", f.CalculatorID, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s %s failure: %s: %s", f.CalculatorID, f.Kind, f.Message, strings.Join(details, "; "))
}
