// Package conferr defines the single error type raised by every stage of the
// configuration pipeline.
//
// An Error carries a Kind, a printf-style message template with its
// arguments, and an optional cause. Callers branch on the kind with
// errors.Is(err, conferr.KindCoercion) and surface Error() to users.
package conferr

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Kind classifies a configuration failure.
type Kind string

const (
	// KindIO covers unreadable files, bad glob bases and interrupted reads.
	KindIO Kind = "IO"
	// KindInterpolation covers unresolved or malformed ${...} references.
	KindInterpolation Kind = "INTERPOLATION"
	// KindRegistration covers two handlers claiming one section name.
	KindRegistration Kind = "REGISTRATION"
	// KindCoercion covers values that do not convert to their target type.
	KindCoercion Kind = "COERCION"
	// KindWiring covers broken mapping tables: duplicate constructors,
	// arity mismatches, missing constructors or coercions.
	KindWiring Kind = "WIRING"
	// KindDispatch covers events routed to a section that was never started.
	KindDispatch Kind = "DISPATCH"
	// KindUnmatched covers parameters nothing consumed, in strict mode.
	KindUnmatched Kind = "UNMATCHED"
)

// Error implements the error interface so a Kind can be used as an
// errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error is the configuration error value.
type Error struct {
	Kind     Kind
	Template string
	Args     []any
	Cause    error

	// listed marks aggregates whose causes are already part of the message.
	listed bool
}

// New creates an Error without a cause.
func New(kind Kind, template string, args ...any) *Error {
	return &Error{Kind: kind, Template: template, Args: args}
}

// Wrap creates an Error around cause. A nil cause yields a plain Error.
func Wrap(kind Kind, cause error, template string, args ...any) *Error {
	return &Error{Kind: kind, Template: template, Args: args, Cause: cause}
}

// Message returns the formatted template without the cause.
func (e *Error) Message() string {
	if len(e.Args) == 0 {
		return e.Template
	}
	return fmt.Sprintf(e.Template, e.Args...)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message()
	if e.Cause != nil && !e.listed {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Aggregate folds errs into one Error of the given kind. The message is the
// formatted template followed by one "- " line per cause. Aggregate returns
// nil when errs holds no non-nil error.
func Aggregate(kind Kind, errs []error, template string, args ...any) error {
	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}

	causes := multierr.Errors(combined)
	lines := make([]string, 0, len(causes))
	for _, c := range causes {
		lines = append(lines, c.Error())
	}

	e := &Error{
		Kind:     kind,
		Template: template + ":\n- %s",
		Args:     append(append([]any{}, args...), strings.Join(lines, "\n- ")),
		Cause:    combined,
		listed:   true,
	}
	return e
}

// Causes returns the individual errors folded into an aggregate. For any
// other error it returns the error itself.
func Causes(err error) []error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) && ce.listed {
		return multierr.Errors(ce.Cause)
	}
	return []error{err}
}
