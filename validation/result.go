// Package validation is the runtime support for code produced by validgen.
//
// Generated validation methods accumulate failures in a Result, resolve
// their dependencies from the Validator's ServiceLocator, and register
// themselves by subject type so that Validate and Nested can dispatch to
// them.
package validation

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Failure is a single failed check.
type Failure struct {
	Message string
	// Err is the underlying error, for failures that were caused by one
	// (e.g. a dependency that could not be resolved).
	Err error
}

func (f Failure) Error() string {
	return f.Message
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Fail creates a failure. If args are given, msg is a format string.
func Fail(msg string, args ...interface{}) Failure {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return Failure{Message: msg}
}

// Failed returns a result that holds a single failure caused by err.
func Failed(err error) Result {
	var r Result
	r.Add(Failure{Message: err.Error(), Err: err})
	return r
}

// Result is the ordered list of failures found by a validation.
type Result struct {
	failures []Failure
}

// Add appends a failure.
func (r *Result) Add(f Failure) {
	r.failures = append(r.failures, f)
}

// Merge appends all failures of o.
func (r *Result) Merge(o Result) {
	r.failures = append(r.failures, o.failures...)
}

// Valid returns true if there are no failures.
func (r Result) Valid() bool {
	return len(r.failures) == 0
}

// Failures returns a copy of the failures, in the order they were found.
func (r Result) Failures() []Failure {
	if len(r.failures) == 0 {
		return nil
	}
	return append([]Failure(nil), r.failures...)
}

// Err returns nil if the result is valid, otherwise an error that describes
// every failure. errors.As with a *Error target recovers them.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Failures: r.Failures()}
}

// Error is the error returned by Result.Err.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Message
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Message
	}
	return fmt.Sprintf("%d validation failures: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Is returns true for ErrInvalid.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// ErrInvalid matches every error returned by Result.Err.
var ErrInvalid = errors.New("validation failed")
