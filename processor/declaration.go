package processor

import (
	"fmt"
	"go/constant"

	"github.com/jhump/validgen"
)

// Namespace is the Go package that holds a declaration.
type Namespace struct {
	// Path is the package's import path.
	Path string
	// Name is the package clause name.
	Name string
}

func (n Namespace) String() string {
	return n.Path
}

// Identity uniquely identifies a declaration within a snapshot.
type Identity struct {
	Namespace  string
	OwningType string
	Method     string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s.%s.%s", id.Namespace, id.OwningType, id.Method)
}

// Parameter is a formal parameter of a validation declaration, in
// declaration order. Type is the source text of the parameter's type.
type Parameter struct {
	Name string
	Type string
	// Dependency is true when the parameter's type does not match the
	// declaration's primary subject type. Such parameters are resolved from
	// the validator's service locator instead of being supplied by callers.
	Dependency bool
}

// DependencyReference is a parameter that is resolved at runtime from a
// service locator.
type DependencyReference struct {
	Name string
	Type string
	// Index is the parameter's position in the declaration.
	Index int
}

// Declaration is a discovered, marked unit of declarative validation logic.
// It is a pure function of a node's content: identical content always yields
// an identical record.
type Declaration struct {
	Namespace  Namespace
	OwningType string
	Method     string
	Marker     validgen.Marker
	// Receiver is the receiver's name, "_" when it is unnamed.
	Receiver string
	Params   []Parameter
	// Body is the raw text between the braces of the method body.
	Body string
	// bodyLine is the line, relative to the node content, on which Body
	// starts; bodyColumn is the column of its first byte.
	bodyLine, bodyColumn int
	// Imports are the enclosing file's imports.
	Imports []Import
	Node    NodeID
}

// Identity returns the declaration's identity, which is (namespace, owning
// type, method).
func (d *Declaration) Identity() Identity {
	return Identity{Namespace: d.Namespace.Path, OwningType: d.OwningType, Method: d.Method}
}

// ArtifactName is the name under which the generated artifact is registered.
func (d *Declaration) ArtifactName() string {
	return validgen.ArtifactName(d.OwningType, d.Method)
}

// GeneratedTypeName is the wrapper type that holds the generated method.
func (d *Declaration) GeneratedTypeName() string {
	return validgen.GeneratedTypeName(d.OwningType)
}

// Dependencies returns the declaration's dependency references in declaration
// order.
func (d *Declaration) Dependencies() []DependencyReference {
	var deps []DependencyReference
	for i, p := range d.Params {
		if p.Dependency {
			deps = append(deps, DependencyReference{Name: p.Name, Type: p.Type, Index: i})
		}
	}
	return deps
}

// Subjects returns the parameters that callers supply positionally.
func (d *Declaration) Subjects() []Parameter {
	var subjects []Parameter
	for _, p := range d.Params {
		if !p.Dependency {
			subjects = append(subjects, p)
		}
	}
	return subjects
}

// Argument is an argument of an assertion. Value is the argument's constant
// value when it is made up of literals only, nil otherwise.
type Argument struct {
	Text  string
	Value constant.Value
}

// CallSite is a fluent assertion invocation located within a body, such as
// user.Name.Should().Be().LongerThan(5).
type CallSite struct {
	Subject string
	// Chain is the sequence of calls following the subject, e.g.
	// ["Should", "Be", "LongerThan"].
	Chain     []string
	Assertion string
	Negated   bool
	Args      []Argument
	Line      int
}

// HelperReference is a call to another custom validation helper, rewritten to
// reference its generated counterpart.
type HelperReference struct {
	Helper    string
	Generated string
	Line      int
}

// ResolvedDeclaration is a declaration whose body has been rewritten into
// imperative checks.
type ResolvedDeclaration struct {
	*Declaration
	// Body is the rewritten body. Qualified references to imported packages
	// are replaced with placeholders that index into Refs, so that the emitter
	// can register the imports.
	Body      string
	Refs      []QualifiedRef
	CallSites []CallSite
	Helpers   []HelperReference
}

// QualifiedRef is a reference to a symbol in another package.
type QualifiedRef struct {
	Import Import
	Name   string
}

// Artifact is the compilable output unit for one declaration, or the support
// unit declaring a wrapper type.
type Artifact struct {
	// Name is the artifact name, {OwningType}_{Method} for declarations and
	// {OwningType}Generated for wrapper types.
	Name      string
	Namespace Namespace
	TypeName  string
	// FileName is the name of the Go source file to register.
	FileName string
	Content  []byte
	// Location is copied from the package scope of the source node, so hosts
	// can tell where the unit belongs.
	Location string
	Node     NodeID
	Support  bool
}

// State is the lifecycle state of a declaration within one pass.
type State int

const (
	StateUnseen State = iota
	StateDiscovered
	StateExtracted
	StateResolved
	StateEmitted
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateDiscovered:
		return "discovered"
	case StateExtracted:
		return "extracted"
	case StateResolved:
		return "resolved"
	case StateEmitted:
		return "emitted"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}
