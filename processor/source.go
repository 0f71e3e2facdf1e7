package processor

import (
	"context"
	"go/token"
	"strings"
)

// ScopeKind identifies the kind of an enclosing scope.
type ScopeKind int

const (
	PackageScope ScopeKind = iota
	FileScope
	FuncScope
	TypeScope
)

func (k ScopeKind) String() string {
	switch k {
	case PackageScope:
		return "package"
	case FileScope:
		return "file"
	case FuncScope:
		return "func"
	case TypeScope:
		return "type"
	default:
		return "?"
	}
}

// Import is an import declared by a source file. Name is the identifier the
// file uses to refer to the package: the explicit alias if there is one,
// otherwise the package's name.
type Import struct {
	Name string
	Path string
}

// Scope is one link in the chain of scopes enclosing a node. The chain always
// ends at a PackageScope.
type Scope struct {
	Kind ScopeKind
	// Name is the import path for packages, the file name for files, and the
	// declared name for functions and types.
	Name string
	// PackageName is the package clause name. Only set for PackageScope.
	PackageName string
	// Location is a host-defined location. The Go host uses the package
	// directory for PackageScope.
	Location string
	// Imports declared by a file. Only set for FileScope.
	Imports []Import
	Parent  *Scope
}

// Package walks the scope chain to its root.
func (s *Scope) Package() *Scope {
	for s != nil && s.Kind != PackageScope {
		s = s.Parent
	}
	return s
}

// File returns the nearest enclosing file scope, or nil.
func (s *Scope) File() *Scope {
	for s != nil && s.Kind != FileScope {
		s = s.Parent
	}
	return s
}

// Path renders the chain root-first, for log messages.
func (s *Scope) Path() string {
	var parts []string
	for ; s != nil; s = s.Parent {
		parts = append(parts, s.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// NodeID is a host-assigned identity for a source node. It must be stable
// across snapshots for as long as the node exists and must not depend on the
// node's line position.
type NodeID string

// Node is a single source node handed over by the host: a declaration's
// source text together with the comment text attached to it.
type Node struct {
	ID    NodeID
	Scope *Scope
	// Doc is the raw text of the attached comment, including comment
	// delimiters. DocPos is where it starts.
	Doc    string
	DocPos token.Position
	// Content is the source text of the declaration itself, without its doc
	// comment. ContentPos is where it starts.
	Content    string
	ContentPos token.Position
}

// Snapshot is one consistent view of the host's source graph. Versions must
// increase monotonically across snapshots fed to the same cache.
type Snapshot struct {
	Version uint64
	Nodes   []*Node
}

// Feed is the change feed of snapshots supplied by a host. Next blocks until
// the next snapshot is available. It returns io.EOF when there will be no
// more snapshots.
type Feed interface {
	Next(ctx context.Context) (*Snapshot, error)
}

// Sink receives the result of every pass, registering the artifacts with the
// host build and surfacing diagnostics.
type Sink interface {
	Publish(ctx context.Context, pass *Pass) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, pass *Pass) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, pass *Pass) error {
	return f(ctx, pass)
}

// Sinks publishes every pass to each of the given sinks in order, stopping at
// the first error.
func Sinks(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, pass *Pass) error {
		for _, s := range sinks {
			if err := s.Publish(ctx, pass); err != nil {
				return err
			}
		}
		return nil
	})
}

// relPos is a position relative to the start of a node's doc or content: line
// 1 is the first line and, on that line only, columns are relative too. Cached
// outcomes only ever hold relative positions, so that moving a declaration
// without changing it does not invalidate its cache entry.
type relPos struct {
	Line, Column int
}

func (r relPos) anchor(base token.Position) token.Position {
	if r.Line <= 0 || !base.IsValid() {
		return base
	}
	p := base
	p.Line = base.Line + r.Line - 1
	if r.Line == 1 {
		p.Column = base.Column + r.Column - 1
	} else {
		p.Column = r.Column
	}
	p.Offset = 0
	return p
}
