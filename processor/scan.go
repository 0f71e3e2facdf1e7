package processor

import (
	goparser "go/parser"
	"go/token"
	"iter"
	"strings"

	"github.com/jhump/validgen"
	"github.com/jhump/validgen/parser"
)

// Candidate is a node that carries exactly one marker annotation.
type Candidate struct {
	Node   *Node
	Marker validgen.Marker
	// MarkerPos is where the marker appears in source.
	MarkerPos token.Position
}

// Scanner filters the nodes of a snapshot down to marked candidates.
type Scanner struct{}

// Scan returns the candidates of the given snapshot as a lazy sequence. The
// sequence can be iterated more than once; each iteration re-scans. Nodes that
// carry a marker but have an unsupported shape are skipped and reported.
func (Scanner) Scan(snap *Snapshot, report func(Diagnostic)) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, n := range snap.Nodes {
			if !mayCarryMarker(n.Doc) {
				continue
			}
			c, err := scanNode(n)
			if err != nil {
				report(NewDiagnostic(n.ID, token.Position{}, err))
				continue
			}
			if c == nil {
				continue
			}
			if !yield(*c) {
				return
			}
		}
	}
}

var markerNames = []string{
	validgen.SelfValidation.String(),
	validgen.ValidationFor.String(),
	validgen.CustomValidationExtension.String(),
}

// mayCarryMarker is the cheap predicate run over every node: a plain
// substring test on the marker names.
func mayCarryMarker(doc string) bool {
	if !strings.Contains(doc, "@") {
		return false
	}
	for _, name := range markerNames {
		if strings.Contains(doc, name) {
			return true
		}
	}
	return false
}

func scanNode(n *Node) (*Candidate, error) {
	annos, perr := parser.ParseAnnotations(n.DocPos.Filename, strings.NewReader(stripCommentDelimiters(n.Doc)))
	if perr != nil {
		pos := relPos{Line: perr.Pos().Line, Column: perr.Pos().Column}.anchor(n.DocPos)
		return nil, malformedf(pos, "invalid marker annotation: %v", perr.Underlying())
	}

	var found *Candidate
	for _, a := range annos {
		kind, ok := validgen.MarkerKindForName(a.Name)
		if !ok {
			// not ours
			continue
		}
		pos := relPos{Line: a.Pos.Line, Column: a.Pos.Column}.anchor(n.DocPos)
		if found != nil {
			return nil, malformedf(pos, "declaration has more than one marker: %v and @%v", found.Marker, kind)
		}
		switch {
		case kind.TakesTarget() && (!a.HasArg || a.Arg == ""):
			return nil, malformedf(pos, "@%v requires a target type, e.g. @%v(User)", kind, kind)
		case !kind.TakesTarget() && a.HasArg:
			return nil, malformedf(pos, "@%v does not take an argument", kind)
		case kind.TakesTarget():
			if _, err := goparser.ParseExpr(a.Arg); err != nil {
				return nil, malformedf(pos, "@%v: invalid target type %q", kind, a.Arg)
			}
		}
		found = &Candidate{Node: n, Marker: validgen.Marker{Kind: kind, Target: a.Arg}, MarkerPos: pos}
	}
	if found == nil {
		return nil, nil
	}

	// Markers are only allowed on package-level declarations; anything
	// nested in a function body has no single, directly enclosing owner.
	if n.Scope == nil || n.Scope.Kind != FileScope {
		kind := "<none>"
		if n.Scope != nil {
			kind = n.Scope.Kind.String()
		}
		return nil, malformedf(found.MarkerPos, "%v is only allowed on package-level methods, not inside a %s scope", found.Marker, kind)
	}
	if n.Scope.Package() == nil {
		return nil, malformedf(found.MarkerPos, "%v: declaration has no enclosing package", found.Marker)
	}
	return found, nil
}

// stripCommentDelimiters blanks out comment delimiters while keeping every
// other byte in place, so positions in the result match the source.
func stripCommentDelimiters(doc string) string {
	lines := strings.Split(doc, "\n")
	inBlock := false
	for i, line := range lines {
		b := []byte(line)
		j := 0
		for j < len(b) {
			switch {
			case inBlock && j+1 < len(b) && b[j] == '*' && b[j+1] == '/':
				b[j], b[j+1] = ' ', ' '
				inBlock = false
				j += 2
			case !inBlock && j+1 < len(b) && b[j] == '/' && b[j+1] == '*':
				b[j], b[j+1] = ' ', ' '
				inBlock = true
				j += 2
			case !inBlock && j+1 < len(b) && b[j] == '/' && b[j+1] == '/':
				b[j], b[j+1] = ' ', ' '
				// rest of the line is comment text
				j = len(b)
			default:
				j++
			}
		}
		lines[i] = string(b)
	}
	return strings.Join(lines, "\n")
}
