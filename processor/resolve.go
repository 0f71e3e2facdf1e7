package processor

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/jhump/validgen"
)

const (
	// runtimeQualifier stands in for the runtime package in rewritten code,
	// so it never collides with whatever the declaration's file imports.
	runtimeQualifier = "_validgenRuntime"
	// refPrefix names the placeholders for qualified references.
	refPrefix = "_validgenRef"
	// Bodies are parsed wrapped in a function; the first line of the body
	// is line 4 of the wrapper.
	bodyPrefix    = "package p\n\nfunc _() {\n"
	bodyStartLine = 4
)

// Resolver rewrites declaration bodies into imperative checks. It locates
// every rewrite on the syntax tree, so the result does not depend on how the
// body is formatted.
//
// Calls to custom validation helpers are rewritten by naming convention
// alone: user.Email.ShouldNotBeEmpty() becomes a call to
// ShouldNotBeEmptyGenerated. Whether that helper is ever emitted is not
// checked here; a missing helper surfaces when the host builds the package.
type Resolver struct {
	// RuntimePath is the import path of the validation runtime. Defaults to
	// validgen.RuntimePackage.
	RuntimePath string
}

func (r Resolver) runtimePath() string {
	if r.RuntimePath != "" {
		return r.RuntimePath
	}
	return validgen.RuntimePackage
}

// Resolve rewrites the body of the given declaration. Errors carry positions
// relative to the declaration's content.
func (r Resolver) Resolve(d *Declaration) (*ResolvedDeclaration, error) {
	rw := newRewriter(d, r.runtimePath())
	edited, err := rw.rewrite()
	if err != nil {
		return nil, err
	}
	body, refs, err := rw.qualify(edited)
	if err != nil {
		return nil, err
	}
	return &ResolvedDeclaration{
		Declaration: d,
		Body:        body,
		Refs:        refs,
		CallSites:   rw.callSites,
		Helpers:     rw.helpers,
	}, nil
}

type edit struct {
	start, end int
	text       string
}

type rewriter struct {
	decl    *Declaration
	runtime string
	imports map[string]Import
	locals  map[string]bool

	fset *token.FileSet
	src  string

	edits     []edit
	callSites []CallSite
	helpers   []HelperReference
}

func newRewriter(d *Declaration, runtime string) *rewriter {
	rw := &rewriter{
		decl:    d,
		runtime: runtime,
		imports: map[string]Import{},
		locals:  map[string]bool{},
		fset:    token.NewFileSet(),
		src:     bodyPrefix + d.Body + "\n}\n",
	}
	for _, imp := range d.Imports {
		if imp.Name == "_" || imp.Name == "." || imp.Name == "" {
			continue
		}
		rw.imports[imp.Name] = imp
	}
	rw.locals[d.Receiver] = true
	for _, p := range d.Params {
		rw.locals[p.Name] = true
	}
	return rw
}

// rel maps a position in the wrapper back to the declaration's content.
func (rw *rewriter) rel(p token.Pos) token.Position {
	return rw.relPosition(rw.fset.Position(p))
}

func (rw *rewriter) relPosition(pos token.Position) token.Position {
	d := rw.decl
	line := pos.Line - bodyStartLine
	switch {
	case line < 0:
		return token.Position{Line: d.bodyLine, Column: d.bodyColumn}
	case line == 0:
		return token.Position{Line: d.bodyLine, Column: d.bodyColumn + pos.Column - 1}
	default:
		return token.Position{Line: d.bodyLine + line, Column: pos.Column}
	}
}

func (rw *rewriter) offset(p token.Pos) int {
	return rw.fset.Position(p).Offset
}

func (rw *rewriter) text(n ast.Node) string {
	return rw.src[rw.offset(n.Pos()):rw.offset(n.End())]
}

func (rw *rewriter) replace(n ast.Node, text string) {
	rw.edits = append(rw.edits, edit{start: rw.offset(n.Pos()), end: rw.offset(n.End()), text: text})
}

// runtimeAlias returns true if the given identifier refers to the runtime
// package in the declaration's file.
func (rw *rewriter) runtimeAlias(name string) bool {
	if rw.locals[name] {
		return false
	}
	if imp, ok := rw.imports[name]; ok {
		return imp.Path == rw.runtime
	}
	return name == runtimeName
}

// rewrite finds every call site and bare return in the body and splices in
// the replacement text. Comments and formatting outside of rewritten
// statements are left alone.
func (rw *rewriter) rewrite() (string, error) {
	f, err := goparser.ParseFile(rw.fset, "", rw.src, goparser.ParseComments|goparser.SkipObjectResolution)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			return "", malformedf(rw.relPosition(list[0].Pos), "cannot parse body: %s", list[0].Msg)
		}
		return "", malformedf(rw.relPosition(token.Position{}), "cannot parse body: %v", err)
	}
	body := f.Decls[0].(*ast.FuncDecl).Body
	if err := rw.collectLocals(body); err != nil {
		return "", err
	}

	var walkErr error
	funcDepth := 0
	astutil.Apply(body, func(c *astutil.Cursor) bool {
		if walkErr != nil {
			return false
		}
		switch n := c.Node().(type) {
		case *ast.FuncLit:
			funcDepth++
		case *ast.ExprStmt:
			handled, err := rw.rewriteStmt(n)
			if err != nil {
				walkErr = err
				return false
			}
			return !handled
		case *ast.CallExpr:
			if sel, ok := n.Fun.(*ast.SelectorExpr); ok && sel.Sel.Name == "Should" && len(n.Args) == 0 {
				walkErr = malformedf(rw.rel(n.Pos()), "assertion chain on %s must be used as a statement", compact(rw.text(sel.X)))
				return false
			}
		}
		return true
	}, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.FuncLit:
			funcDepth--
		case *ast.ReturnStmt:
			if funcDepth > 0 {
				break
			}
			if len(n.Results) > 0 {
				walkErr = malformedf(rw.rel(n.Pos()), "validation methods do not return values")
				return false
			}
			end := rw.offset(n.End())
			rw.edits = append(rw.edits, edit{start: end, end: end, text: " " + resultIdent})
		}
		return true
	})
	if walkErr != nil {
		return "", walkErr
	}

	sort.SliceStable(rw.edits, func(i, j int) bool { return rw.edits[i].start < rw.edits[j].start })
	var buf strings.Builder
	last := 0
	for _, e := range rw.edits {
		if e.start < last {
			return "", errors.AssertionFailedf("overlapping rewrites at offset %d", e.start)
		}
		buf.WriteString(rw.src[last:e.start])
		buf.WriteString(e.text)
		last = e.end
	}
	buf.WriteString(rw.src[last:])
	return buf.String(), nil
}

// collectLocals records names declared in the body, so that a local that
// shadows an import is not mistaken for a package qualifier.
func (rw *rewriter) collectLocals(body *ast.BlockStmt) error {
	var err error
	declare := func(id *ast.Ident) {
		if err == nil && isReserved(id.Name) {
			err = malformedf(rw.rel(id.Pos()), "%s is reserved for generated code and may not be declared", id.Name)
		}
		rw.locals[id.Name] = true
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.AssignStmt:
			if n.Tok == token.DEFINE {
				for _, lhs := range n.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						declare(id)
					}
				}
			}
		case *ast.RangeStmt:
			if n.Tok == token.DEFINE {
				for _, x := range []ast.Expr{n.Key, n.Value} {
					if id, ok := x.(*ast.Ident); ok {
						declare(id)
					}
				}
			}
		case *ast.ValueSpec:
			for _, id := range n.Names {
				declare(id)
			}
		case *ast.FuncType:
			if n.Params != nil {
				for _, fld := range n.Params.List {
					for _, id := range fld.Names {
						declare(id)
					}
				}
			}
		}
		return true
	})
	return err
}

// rewriteStmt rewrites an expression statement if it is one of the forms that
// the DSL defines. It returns true if the statement was replaced.
func (rw *rewriter) rewriteStmt(stmt *ast.ExprStmt) (bool, error) {
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok {
		return false, nil
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false, nil
	}

	if x, ok := sel.X.(*ast.Ident); ok && rw.runtimeAlias(x.Name) {
		switch sel.Sel.Name {
		case "Fail":
			rw.replace(stmt, fmt.Sprintf("%s.Add(%s)", resultIdent, rw.text(call)))
			return true, nil
		case "Nested":
			if len(call.Args) != 1 || call.Ellipsis.IsValid() {
				return false, malformedf(rw.rel(call.Pos()), "%s.Nested takes exactly one argument", x.Name)
			}
			rw.replace(stmt, fmt.Sprintf("%s.Merge(%s.Nested(%s))", resultIdent, validatorIdent, rw.text(call.Args[0])))
			return true, nil
		}
		return false, nil
	}

	if subject, calls, ok := chainOf(call); ok {
		return true, rw.rewriteAssertion(stmt, subject, calls)
	}

	if name := sel.Sel.Name; len(name) > len("Should") && strings.HasPrefix(name, "Should") {
		rw.rewriteHelper(stmt, call, sel)
		return true, nil
	}
	return false, nil
}

// chainOf unwinds a fluent chain such as x.Should().Be().EqualTo(y), returning
// the subject x and the calls from Should() to EqualTo(y).
func chainOf(call *ast.CallExpr) (ast.Expr, []*ast.CallExpr, bool) {
	var calls []*ast.CallExpr
	for {
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return nil, nil, false
		}
		calls = append(calls, call)
		if sel.Sel.Name == "Should" {
			slices.Reverse(calls)
			return sel.X, calls, true
		}
		next, ok := sel.X.(*ast.CallExpr)
		if !ok {
			return nil, nil, false
		}
		call = next
	}
}

func callName(call *ast.CallExpr) string {
	return call.Fun.(*ast.SelectorExpr).Sel.Name
}

func (rw *rewriter) rewriteAssertion(stmt *ast.ExprStmt, subject ast.Expr, calls []*ast.CallExpr) error {
	chain := make([]string, len(calls))
	for i, c := range calls {
		chain[i] = callName(c)
	}
	if len(calls) < 2 {
		return malformedf(rw.rel(stmt.Pos()), "incomplete assertion chain: %s", compact(rw.text(stmt)))
	}
	negated := false
	for i, c := range calls[:len(calls)-1] {
		name := chain[i]
		if len(c.Args) > 0 {
			return malformedf(rw.rel(c.Lparen), "%s() takes no arguments", name)
		}
		switch {
		case i == 0:
			// Should
		case name == "Be":
		case name == "Not":
			if negated {
				return malformedf(rw.rel(c.Pos()), "assertion chain may only be negated once")
			}
			negated = true
		default:
			return malformedf(rw.rel(c.Fun.(*ast.SelectorExpr).Sel.Pos()), "unexpected %s in assertion chain; expecting Be, Not, or an assertion", name)
		}
	}

	term := calls[len(calls)-1]
	termSel := term.Fun.(*ast.SelectorExpr).Sel
	a := lookupAssertion(termSel.Name)
	if a == nil {
		return malformedf(rw.rel(termSel.Pos()), "unknown assertion %s", termSel.Name)
	}
	if len(term.Args) != a.Args || term.Ellipsis.IsValid() {
		return malformedf(rw.rel(term.Lparen), "%s takes %d argument(s), got %d", a.Name, a.Args, len(term.Args))
	}
	args := make([]Argument, len(term.Args))
	argTexts := make([]string, len(term.Args))
	for i, arg := range term.Args {
		argTexts[i] = rw.text(arg)
		args[i] = Argument{Text: compact(argTexts[i]), Value: literalValue(arg)}
	}
	if a.Check != nil {
		if err := a.Check(args); err != nil {
			return NewErrorWithPosition(rw.rel(term.Lparen), errors.Mark(err, ErrMalformedDeclaration))
		}
	}

	tmpl, message := a.Fail, a.Message
	if negated {
		tmpl, message = a.Pass, "not "+a.Message
		if a.NegatedMessage != "" {
			message = a.NegatedMessage
		}
	}
	tmpl = strings.ReplaceAll(tmpl, "validation.", runtimeQualifier+".")
	subjText := rw.text(subject)
	// a subject used more than once is evaluated once, in the if statement's
	// init, unless it is a plain name or selector
	bind, operand := "", subjText
	if strings.Count(tmpl, "$s") > 1 && !primaryExpr.MatchString(strings.TrimSpace(subjText)) {
		bind = subjectIdent + " := " + subjText + "; "
		operand = subjectIdent
	}
	cond := expandTemplate(tmpl, operand, argTexts)
	if _, err := goparser.ParseExpr(cond); err != nil {
		return malformedf(rw.rel(stmt.Pos()), "cannot rewrite assertion %s: %v", a.Name, err)
	}
	msgArgs := make([]string, 0, 2*len(args))
	for i, arg := range args {
		msgArgs = append(msgArgs, "$"+strconv.Itoa(i), arg.Text)
	}
	msg := compact(subjText) + " should " + strings.NewReplacer(msgArgs...).Replace(message)
	rw.replace(stmt, fmt.Sprintf("if %s%s {\n%s.Add(%s.Fail(%s))\n}", bind, cond, resultIdent, runtimeQualifier, strconv.Quote(msg)))

	rw.callSites = append(rw.callSites, CallSite{
		Subject:   compact(subjText),
		Chain:     chain,
		Assertion: a.Name,
		Negated:   negated,
		Args:      args,
		Line:      rw.rel(stmt.Pos()).Line,
	})
	return nil
}

func (rw *rewriter) rewriteHelper(stmt *ast.ExprStmt, call *ast.CallExpr, sel *ast.SelectorExpr) {
	generated := validgen.GeneratedHelperName(sel.Sel.Name)
	args := []string{validatorIdent, rw.text(sel.X)}
	for _, arg := range call.Args {
		args = append(args, rw.text(arg))
	}
	ellipsis := ""
	if call.Ellipsis.IsValid() {
		ellipsis = "..."
	}
	rw.replace(stmt, fmt.Sprintf("%s.Merge(%s(%s%s))", resultIdent, generated, strings.Join(args, ", "), ellipsis))
	rw.helpers = append(rw.helpers, HelperReference{
		Helper:    sel.Sel.Name,
		Generated: generated,
		Line:      rw.rel(stmt.Pos()).Line,
	})
}

// qualify replaces references to imported packages in the rewritten body
// with placeholders, formats the result and strips the wrapper function.
func (rw *rewriter) qualify(src string) (string, []QualifiedRef, error) {
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "", src, goparser.ParseComments|goparser.SkipObjectResolution)
	if err != nil {
		return "", nil, errors.Wrap(err, "rewritten body does not parse")
	}
	var refs []QualifiedRef
	index := map[QualifiedRef]int{}
	astutil.Apply(f, func(c *astutil.Cursor) bool {
		sel, ok := c.Node().(*ast.SelectorExpr)
		if !ok {
			return true
		}
		x, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		imp, ok := rw.qualifier(x.Name)
		if !ok {
			return true
		}
		ref := QualifiedRef{Import: imp, Name: sel.Sel.Name}
		idx, ok := index[ref]
		if !ok {
			idx = len(refs)
			index[ref] = idx
			refs = append(refs, ref)
		}
		c.Replace(&ast.Ident{NamePos: sel.Pos(), Name: refPrefix + strconv.Itoa(idx)})
		return false
	}, nil)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return "", nil, errors.Wrap(err, "cannot format rewritten body")
	}
	return unwrapBody(buf.String()), refs, nil
}

func (rw *rewriter) qualifier(name string) (Import, bool) {
	runtime := Import{Name: runtimeName, Path: rw.runtime}
	if name == runtimeQualifier {
		return runtime, true
	}
	if rw.locals[name] || isReserved(name) {
		return Import{}, false
	}
	if imp, ok := rw.imports[name]; ok {
		if imp.Path == rw.runtime {
			return runtime, true
		}
		return imp, true
	}
	if name == runtimeName {
		return runtime, true
	}
	return Import{}, false
}

// unwrapBody extracts the statements of the wrapper function from formatted
// source, removing one level of indentation and surrounding blank lines.
// Lines that continue a raw string literal are kept verbatim.
func unwrapBody(src string) string {
	lines := strings.Split(src, "\n")
	start, end := -1, -1
	for i, line := range lines {
		if strings.HasPrefix(line, "func _() {") {
			if strings.HasSuffix(line, "{}") {
				return ""
			}
			start = i + 1
			break
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == "}" {
			end = i
			break
		}
	}
	if start < 0 || end < start {
		return ""
	}
	verbatim := rawStringLines(src)
	body := lines[start:end]
	for i, line := range body {
		if _, ok := verbatim[start+i+1]; !ok {
			body[i] = strings.TrimPrefix(line, "\t")
		}
	}
	for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
		body = body[1:]
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n")
}

// rawStringLines returns the line numbers (1-based) of lines in src that
// begin inside a raw string literal.
func rawStringLines(src string) map[int]struct{} {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)
	lines := map[int]struct{}{}
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			return lines
		}
		if tok != token.STRING || !strings.HasPrefix(lit, "`") {
			continue
		}
		first := file.Line(pos)
		for l := first + 1; l <= first+strings.Count(lit, "\n"); l++ {
			lines[l] = struct{}{}
		}
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
