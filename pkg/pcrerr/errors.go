// Package pcrerr defines the closed set of failures the analysis core can
// report. Every failure is an *Error carrying a Kind plus the context it was
// raised in (pipeline stage, well, regression method). Each Kind has a
// sentinel so callers can match with errors.Is:
//
//	if errors.Is(err, pcrerr.ErrFitConvergence) { ... }
//
// and extract the context with errors.As:
//
//	var e *pcrerr.Error
//	if errors.As(err, &e) { fmt.Println(e.Well) }
package pcrerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one entry of the error taxonomy.
type Kind string

const (
	KindFitConvergence          Kind = "FitConvergence"
	KindUnknownDetectionPolicy  Kind = "UnknownDetectionPolicy"
	KindUnknownRegressionMethod Kind = "UnknownRegressionMethod"
	KindInsufficientData        Kind = "InsufficientData"
	KindDegenerateInput         Kind = "DegenerateInput"
	KindZeroErrorNotSupported   Kind = "ZeroErrorNotSupported"
	KindDivisionByZero          Kind = "DivisionByZero"
)

var (
	// ErrFitConvergence is returned when the sigmoid fit does not converge or
	// the model is not identifiable from the sample.
	ErrFitConvergence = errors.New("curve fit did not converge")

	// ErrUnknownDetectionPolicy is returned for a detection policy other than
	// linear or threshold.
	ErrUnknownDetectionPolicy = errors.New("unknown detection policy")

	// ErrUnknownRegressionMethod is returned for a regression method other
	// than lsq or hi2.
	ErrUnknownRegressionMethod = errors.New("unknown regression method")

	// ErrInsufficientData is returned when there are too few points.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateInput is returned when the input makes a formula undefined,
	// e.g. zero variance of x.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrZeroErrorNotSupported is returned by the chi-square method when a
	// group of points has zero spread.
	ErrZeroErrorNotSupported = errors.New("chi-square method requires non-zero point errors")

	// ErrDivisionByZero is returned by the efficiency calculation for a zero
	// slope.
	ErrDivisionByZero = errors.New("division by zero")
)

var sentinels = map[Kind]error{
	KindFitConvergence:          ErrFitConvergence,
	KindUnknownDetectionPolicy:  ErrUnknownDetectionPolicy,
	KindUnknownRegressionMethod: ErrUnknownRegressionMethod,
	KindInsufficientData:        ErrInsufficientData,
	KindDegenerateInput:         ErrDegenerateInput,
	KindZeroErrorNotSupported:   ErrZeroErrorNotSupported,
	KindDivisionByZero:          ErrDivisionByZero,
}

// Error is a tagged analysis failure.
type Error struct {
	Kind   Kind
	Stage  string
	Well   string
	Method string
	Detail string
	// Err is an optional underlying cause, e.g. a solver error.
	Err error
}

// New returns an *Error of the given kind with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	if sentinel, ok := sentinels[e.Kind]; ok {
		b.WriteString(sentinel.Error())
	} else {
		b.WriteString(string(e.Kind))
	}

	var ctx []string
	if e.Stage != "" {
		ctx = append(ctx, "stage="+e.Stage)
	}
	if e.Well != "" {
		ctx = append(ctx, "well="+e.Well)
	}
	if e.Method != "" {
		ctx = append(ctx, "method="+e.Method)
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString("]")
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithWell returns a copy of e tagged with the well identifier.
func (e *Error) WithWell(well string) *Error {
	c := *e
	c.Well = well
	return &c
}

// WithStage returns a copy of e tagged with the pipeline stage.
func (e *Error) WithStage(stage string) *Error {
	c := *e
	c.Stage = stage
	return &c
}

// WithMethod returns a copy of e tagged with the regression method.
func (e *Error) WithMethod(method string) *Error {
	c := *e
	c.Method = method
	return &c
}

// Annotate attaches context to err when it is an *Error. Empty values leave
// the existing context untouched. Other errors are returned unchanged.
func Annotate(err error, stage, well string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	if stage != "" && c.Stage == "" {
		c.Stage = stage
	}
	if well != "" && c.Well == "" {
		c.Well = well
	}
	return &c
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
