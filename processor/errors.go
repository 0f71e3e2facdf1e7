package processor

import (
	"fmt"
	"go/token"

	"github.com/cockroachdb/errors"
)

// Sentinel kinds. Every error produced by the pipeline is marked with one of
// these using github.com/cockroachdb/errors. Marks are only visible to that
// package's errors.Is, not the standard library's; KindOf classifies an error
// by its mark.
var (
	// ErrMalformedDeclaration indicates a declaration whose structural shape
	// is not supported, e.g. a marked function that is not a method.
	ErrMalformedDeclaration = errors.New("malformed declaration")

	// ErrUnresolvedReference indicates a reference to a generated helper that
	// never materialized. It is only detected by the host build.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrDuplicateArtifactName indicates that two declarations in the same
	// snapshot would produce artifacts with the same name.
	ErrDuplicateArtifactName = errors.New("duplicate artifact name")
)

// ErrorWithPosition is an error that has source position information associated
// with it. The position indicates the location in a source file where the error
// was encountered.
type ErrorWithPosition struct {
	err error
	pos token.Position
}

// Error implements the error interface. It includes position information in the
// returned message.
func (e *ErrorWithPosition) Error() string {
	if !e.pos.IsValid() {
		return e.err.Error()
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.pos.Filename, e.pos.Line, e.pos.Column, e.err.Error())
}

// Underlying returns the underlying error.
func (e *ErrorWithPosition) Underlying() error {
	return e.err
}

// Unwrap returns the underlying error.
func (e *ErrorWithPosition) Unwrap() error {
	return e.err
}

// Pos returns the location in source where the underlying error was
// encountered.
func (e *ErrorWithPosition) Pos() token.Position {
	return e.pos
}

// NewErrorWithPosition returns the given error, but associates it with the
// given source code location.
func NewErrorWithPosition(pos token.Position, err error) *ErrorWithPosition {
	return &ErrorWithPosition{err: err, pos: pos}
}

func malformedf(pos token.Position, format string, args ...interface{}) *ErrorWithPosition {
	return NewErrorWithPosition(pos, errors.Mark(errors.Newf(format, args...), ErrMalformedDeclaration))
}

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is a structured, non-fatal report attached to a declaration that
// was skipped. Diagnostics are how every failure leaves the pipeline.
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Pos      token.Position `json:"pos"`
	Node     NodeID         `json:"node,omitempty"`
	Err      error          `json:"-"`
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%v: %s: %s: %s", d.Pos, d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Kind, d.Message)
}

// Error kind names, as reported in Diagnostic.Kind.
const (
	KindMalformedDeclaration  = "MalformedDeclarationError"
	KindUnresolvedReference   = "UnresolvedReferenceError"
	KindDuplicateArtifactName = "DuplicateArtifactNameError"
	KindInternal              = "InternalError"
)

// KindOf classifies the given error.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrMalformedDeclaration):
		return KindMalformedDeclaration
	case errors.Is(err, ErrUnresolvedReference):
		return KindUnresolvedReference
	case errors.Is(err, ErrDuplicateArtifactName):
		return KindDuplicateArtifactName
	default:
		return KindInternal
	}
}

// NewDiagnostic converts an error into an error-severity diagnostic. If the
// error carries a position, it is used unless pos is valid.
func NewDiagnostic(node NodeID, pos token.Position, err error) Diagnostic {
	msg := err.Error()
	var ewp *ErrorWithPosition
	if errors.As(err, &ewp) {
		if !pos.IsValid() {
			pos = ewp.Pos()
		}
		msg = ewp.Underlying().Error()
	}
	return Diagnostic{
		Severity: SeverityError,
		Kind:     KindOf(err),
		Message:  msg,
		Pos:      pos,
		Node:     node,
		Err:      err,
	}
}
