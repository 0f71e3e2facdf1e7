// Package processor turns marked validation declarations into generated Go
// code.
//
// A declaration is a method whose doc comment carries one of the markers
// defined in the validgen package:
//
//	// @ValidationFor(User)
//	func (UserRules) Validation(user *User, repo UserRepo) {
//	    user.Name.Should().Be().LongerThan(2)
//	    user.Email.ShouldNotBeEmpty()
//	}
//
// The body is written in a small fluent vocabulary that is never compiled
// as-is. The processor rewrites it into ordinary imperative checks that record
// failures in a validation.Result, and emits the result as a method on a
// generated wrapper type ({Owner}Generated).
//
// # Hosts and Snapshots
//
// The processor does no I/O. A host (see the gosource package for the one that
// works on Go source trees) supplies a Snapshot: every declaration node of the
// source graph, with its doc text, content, positions and enclosing scopes.
// The host receives a Pass in return, holding the rendered artifacts and one
// Diagnostic per declaration that could not be processed. A Feed produces
// successive snapshots and a Sink consumes passes; Pipeline.Follow connects the
// two.
//
// # Stages
//
// A pass runs every node through four stages:
//
// Scanning: a cheap substring test selects nodes that may carry a marker, then
// the marker annotation is parsed. Nodes with more than one marker, or with a
// marker outside a package-level declaration, are reported.
//
// Extraction: the declaration is parsed into a Declaration record: owning
// type, method, parameters (subjects and dependencies) and raw body. This is a
// pure function of the node's content.
//
// Resolution: the body is rewritten. Assertion chains become if statements,
// calls to validation.Fail and validation.Nested are attached to the result,
// calls to other custom validation helpers (subject.ShouldX(...)) are pointed
// at their generated counterparts (ShouldXGenerated), and references to
// imported packages are recorded so the emitter can import them.
//
// Emission: the resolved declaration is rendered with gopoet into a complete
// Go file. A support file declaring the wrapper type is emitted once per owning
// type.
//
// Failures are isolated: a declaration that fails at any stage, even with a
// panic, is skipped with a diagnostic and never affects the others.
//
// # Incremental Processing
//
// Outcomes are cached per node, keyed by the node's identity and a fingerprint
// of its content and scopes. Passes over successive snapshots recompute only
// declarations that changed. Positions in cached errors are relative to the
// node, so moving a declaration without editing it still hits the cache.
//
// Generated names (artifact names, wrapper types and helper functions) share
// one namespace per package. When two declarations would claim the same name,
// the one that appears first in source wins and the other is reported as a
// DuplicateArtifactNameError.
//
// # Assertions
//
// The assertion vocabulary is extensible: RegisterAssertion adds a terminal
// call such as LongerThan, described by Go expression templates for its
// failure and success conditions.
package processor
