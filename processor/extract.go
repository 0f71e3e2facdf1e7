package processor

import (
	"go/ast"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jhump/validgen"
)

// Identifiers that generated code declares or imports in every body.
// Declarations may not use them for receivers, parameters or locals.
const (
	validatorIdent = "validator"
	resultIdent    = "validationResult"
	runtimeName    = "validation"
	subjectIdent   = "validationSubject"
)

// Extractor turns a candidate node into a Declaration. It is pure and
// deterministic and holds no state, so it is safe for concurrent use.
type Extractor struct{}

// sourceText is a node's content parsed as a file of its own. The content is
// preceded by a one-line package clause, so line 2 of the parsed file is
// line 1 of the content.
type sourceText struct {
	fset *token.FileSet
	src  string
	file *ast.File
}

func parseContent(pkgName, content string) (*sourceText, error) {
	if pkgName == "" {
		pkgName = "p"
	}
	src := "package " + pkgName + "\n" + content
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "", src, goparser.SkipObjectResolution)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			p := list[0].Pos
			return nil, malformedf(token.Position{Line: p.Line - 1, Column: p.Column}, "cannot parse declaration: %s", list[0].Msg)
		}
		return nil, malformedf(token.Position{Line: 1, Column: 1}, "cannot parse declaration: %v", err)
	}
	return &sourceText{fset: fset, src: src, file: f}, nil
}

// rel returns the position relative to the start of the node content.
func (s *sourceText) rel(p token.Pos) token.Position {
	pos := s.fset.Position(p)
	return token.Position{Line: pos.Line - 1, Column: pos.Column}
}

func (s *sourceText) text(n ast.Node) string {
	return s.src[s.fset.Position(n.Pos()).Offset:s.fset.Position(n.End()).Offset]
}

// Extract builds the declaration record for the given candidate. Errors carry
// positions relative to the node's content.
func (Extractor) Extract(c Candidate) (*Declaration, error) {
	n := c.Node
	pkg := n.Scope.Package()
	st, err := parseContent(pkg.PackageName, n.Content)
	if err != nil {
		return nil, err
	}
	start := token.Position{Line: 1, Column: 1}
	if len(st.file.Decls) != 1 {
		return nil, malformedf(start, "%v: expecting exactly one declaration, found %d", c.Marker, len(st.file.Decls))
	}
	fd, ok := st.file.Decls[0].(*ast.FuncDecl)
	if !ok {
		return nil, malformedf(start, "%v may only be applied to methods", c.Marker)
	}
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return nil, malformedf(st.rel(fd.Name.Pos()), "%v requires a method, but %s has no receiver to act as the owning type", c.Marker, fd.Name.Name)
	}

	recv := fd.Recv.List[0]
	owner, err := owningType(st, recv.Type)
	if err != nil {
		return nil, err
	}
	recvName := "_"
	if len(recv.Names) > 0 {
		recvName = recv.Names[0].Name
	}
	if fd.Type.Results != nil && len(fd.Type.Results.List) > 0 {
		return nil, malformedf(st.rel(fd.Type.Results.Pos()), "%v: %s must not declare results", c.Marker, fd.Name.Name)
	}
	if fd.Body == nil {
		return nil, malformedf(st.rel(fd.Name.Pos()), "%v: %s has no body", c.Marker, fd.Name.Name)
	}
	if isReserved(recvName) {
		return nil, malformedf(st.rel(recv.Pos()), "receiver may not be named %q", recvName)
	}

	params, err := extractParams(st, fd.Type.Params)
	if err != nil {
		return nil, err
	}
	if err := classifyParams(c.Marker, params); err != nil {
		return nil, NewErrorWithPosition(st.rel(fd.Type.Params.Pos()), err)
	}

	lbrace := st.fset.Position(fd.Body.Lbrace)
	rbrace := st.fset.Position(fd.Body.Rbrace)
	file := n.Scope.File()
	var imports []Import
	if file != nil {
		imports = append(imports, file.Imports...)
	}
	return &Declaration{
		Namespace:  Namespace{Path: pkg.Name, Name: pkg.PackageName},
		OwningType: owner,
		Method:     fd.Name.Name,
		Marker:     c.Marker,
		Receiver:   recvName,
		Params:     params,
		Body:       st.src[lbrace.Offset+1 : rbrace.Offset],
		bodyLine:   lbrace.Line - 1,
		bodyColumn: lbrace.Column + 1,
		Imports:    imports,
		Node:       n.ID,
	}, nil
}

// owningType returns the receiver's base type name. Only plain named types
// (optionally behind a pointer) are supported.
func owningType(st *sourceText, expr ast.Expr) (string, error) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, nil
	case *ast.IndexExpr, *ast.IndexListExpr:
		return "", malformedf(st.rel(expr.Pos()), "generic owning type %s is not supported", st.text(expr))
	default:
		return "", malformedf(st.rel(expr.Pos()), "unsupported receiver type %s", st.text(expr))
	}
}

func extractParams(st *sourceText, fields *ast.FieldList) ([]Parameter, error) {
	var params []Parameter
	if fields == nil {
		return nil, nil
	}
	for _, fld := range fields.List {
		if err := checkParamType(st, fld.Type); err != nil {
			return nil, err
		}
		typ := st.text(fld.Type)
		if len(fld.Names) == 0 {
			params = append(params, Parameter{Name: "_", Type: typ})
			continue
		}
		for _, id := range fld.Names {
			if isReserved(id.Name) {
				return nil, malformedf(st.rel(id.Pos()), "parameter may not be named %q", id.Name)
			}
			params = append(params, Parameter{Name: id.Name, Type: typ})
		}
	}
	return params, nil
}

// checkParamType rejects type expressions that the emitter cannot reproduce.
func checkParamType(st *sourceText, expr ast.Expr) error {
	switch t := expr.(type) {
	case *ast.Ident:
		return nil
	case *ast.SelectorExpr:
		if _, ok := t.X.(*ast.Ident); ok {
			return nil
		}
	case *ast.StarExpr:
		return checkParamType(st, t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return checkParamType(st, t.Elt)
		}
	case *ast.MapType:
		if err := checkParamType(st, t.Key); err != nil {
			return err
		}
		return checkParamType(st, t.Value)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return nil
		}
	}
	return malformedf(st.rel(expr.Pos()), "unsupported parameter type %s", st.text(expr))
}

func classifyParams(m validgen.Marker, params []Parameter) error {
	switch m.Kind {
	case validgen.SelfValidation:
		// the receiver is the subject
		for i := range params {
			params[i].Dependency = true
		}
	case validgen.ValidationFor:
		found := false
		for i := range params {
			params[i].Dependency = !sameType(params[i].Type, m.Target)
			found = found || !params[i].Dependency
		}
		if !found {
			return errors.Mark(errors.Newf("%v declares no parameter of type %s", m, m.Target), ErrMalformedDeclaration)
		}
	case validgen.CustomValidationExtension:
		if len(params) == 0 {
			return errors.Mark(errors.Newf("%v requires a subject parameter", m), ErrMalformedDeclaration)
		}
		for i := range params {
			params[i].Dependency = !sameType(params[i].Type, params[0].Type)
		}
	default:
		return errors.AssertionFailedf("unknown marker kind %v", m.Kind)
	}
	return nil
}

// sameType reports whether two type expressions name the same type, ignoring
// pointer indirection and white space.
func sameType(a, b string) bool {
	norm := func(s string) string {
		s = strings.Join(strings.Fields(s), "")
		return strings.TrimPrefix(s, "*")
	}
	return norm(a) == norm(b)
}

func isReserved(name string) bool {
	switch name {
	case validatorIdent, resultIdent, runtimeName, subjectIdent:
		return true
	}
	return false
}
