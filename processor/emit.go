package processor

import (
	"bytes"
	"go/ast"
	goparser "go/parser"
	"go/types"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jhump/gopoet"

	"github.com/jhump/validgen"
)

// FileSuffix is the suffix of every file the emitter produces.
const FileSuffix = ".validgen.go"

// GeneratedComment is the first line of every emitted file.
const GeneratedComment = "// Code generated by validgen. DO NOT EDIT."

// generatedHeader precedes the package clause of every emitted file. The build
// constraint keeps generated code out of the build that loads declarations.
const generatedHeader = GeneratedComment + "\n\n//go:build !validgen\n\n"

// Emitter renders resolved declarations into Go source files. It performs no
// I/O; artifacts hold the rendered bytes and hosts decide what to do with
// them. Emitting the same resolved declaration twice yields identical bytes.
type Emitter struct {
	// RuntimePath is the import path of the validation runtime. Defaults to
	// validgen.RuntimePackage.
	RuntimePath string
}

func (e Emitter) runtimePath() string {
	if e.RuntimePath != "" {
		return e.RuntimePath
	}
	return validgen.RuntimePackage
}

// Emit renders the artifact for the given declaration.
func (e Emitter) Emit(rd *ResolvedDeclaration) (*Artifact, error) {
	r := newRenderer(rd.Declaration, e.runtimePath())
	name := rd.ArtifactName()
	file := gopoet.NewGoFile(name+FileSuffix, rd.Namespace.Path, rd.Namespace.Name)

	method, err := r.method(rd)
	if err != nil {
		return nil, err
	}
	file.AddElement(method)

	if rd.Marker.Kind == validgen.CustomValidationExtension {
		helper, err := r.helper(rd.Declaration)
		if err != nil {
			return nil, err
		}
		file.AddElement(helper)
	}
	if init, err := r.registration(rd.Declaration); err != nil {
		return nil, err
	} else if init != nil {
		file.AddElement(init)
	}

	content, err := render(file)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering %s", name)
	}
	return &Artifact{
		Name:      name,
		Namespace: rd.Namespace,
		TypeName:  rd.GeneratedTypeName(),
		FileName:  file.Name,
		Content:   content,
		Node:      rd.Node,
	}, nil
}

// EmitSupport renders the support unit that declares the wrapper type for
// the given owning type. There is one per owning type, no matter how many of
// its methods are declarations.
func (e Emitter) EmitSupport(ns Namespace, owningType string) (*Artifact, error) {
	pkg := types.NewPackage(ns.Path, ns.Name)
	owner := namedType(pkg, owningType)
	typeName := validgen.GeneratedTypeName(owningType)
	file := gopoet.NewGoFile(typeName+FileSuffix, ns.Path, ns.Name)

	embedded := types.NewField(0, pkg, owningType, types.NewPointer(owner), true)
	wrapper := gopoet.NewTypeSpec(typeName, gopoet.TypeNameForGoType(types.NewStruct([]*types.Var{embedded}, nil)))
	wrapper.SetComment(typeName + " holds the generated validation methods of " + owningType + ".")
	file.AddType(wrapper)

	content, err := render(file)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering %s", typeName)
	}
	return &Artifact{
		Name:      typeName,
		Namespace: ns,
		TypeName:  typeName,
		FileName:  file.Name,
		Content:   content,
		Support:   true,
	}, nil
}

func render(file *gopoet.GoFile) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(generatedHeader)
	if err := gopoet.WriteGoFile(&buf, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type renderer struct {
	decl    *Declaration
	pkg     *types.Package
	runtime gopoet.Package
	imports map[string]Import

	result    types.Type
	validator types.Type
}

func newRenderer(d *Declaration, runtimePath string) *renderer {
	rt := types.NewPackage(runtimePath, runtimeName)
	r := &renderer{
		decl:      d,
		pkg:       types.NewPackage(d.Namespace.Path, d.Namespace.Name),
		runtime:   gopoet.NewPackage(runtimePath),
		imports:   map[string]Import{},
		result:    namedType(rt, "Result"),
		validator: types.NewPointer(namedType(rt, "Validator")),
	}
	for _, imp := range d.Imports {
		r.imports[imp.Name] = imp
	}
	return r
}

func namedType(pkg *types.Package, name string) *types.Named {
	return types.NewNamed(types.NewTypeName(0, pkg, name, nil), types.NewStruct(nil, nil), nil)
}

func (r *renderer) wrapperType() types.Type {
	return namedType(r.pkg, r.decl.GeneratedTypeName())
}

// signature adds the validator and subject parameters to fn.
func (r *renderer) signature(fn *gopoet.FuncSpec) error {
	fn.AddArg(validatorIdent, gopoet.TypeNameForGoType(r.validator))
	for _, p := range r.decl.Subjects() {
		t, err := r.paramType(p.Type)
		if err != nil {
			return err
		}
		fn.AddArg(p.Name, gopoet.TypeNameForGoType(t))
	}
	fn.AddResult("", gopoet.TypeNameForGoType(r.result))
	return nil
}

func (r *renderer) method(rd *ResolvedDeclaration) (*gopoet.FuncSpec, error) {
	d := rd.Declaration
	recv := gopoet.NewReceiver(d.Receiver, d.GeneratedTypeName())
	fn := gopoet.NewMethod(recv, d.Method)
	fn.SetComment(d.Method + " is generated from the " + d.Marker.String() + " declaration " + d.OwningType + "." + d.Method + ".")
	if err := r.signature(fn); err != nil {
		return nil, err
	}

	fn.Printlnf("var %s %s", resultIdent, r.result)
	for _, dep := range d.Dependencies() {
		t, err := r.paramType(dep.Type)
		if err != nil {
			return nil, err
		}
		fn.Printlnf("var %s %s", dep.Name, t)
		fn.Printlnf("if err := %s(%s, &%s); err != nil {", r.runtime.Symbol("ResolveInto"), validatorIdent, dep.Name)
		fn.Printlnf("return %s(err)", r.runtime.Symbol("Failed"))
		fn.Println("}")
	}
	if err := r.body(&fn.CodeBlock, rd); err != nil {
		return nil, err
	}
	if !endsWithReturn(rd.Body) {
		fn.Printlnf("return %s", resultIdent)
	}
	return fn, nil
}

var refPattern = regexp.MustCompile(refPrefix + `([0-9]+)`)

// body prints the rewritten body, turning placeholders back into qualified
// references so that the file registers the imports they need.
func (r *renderer) body(cb *gopoet.CodeBlock, rd *ResolvedDeclaration) error {
	if strings.TrimSpace(rd.Body) == "" {
		return nil
	}
	src := rd.Body
	last := 0
	for _, m := range refPattern.FindAllStringSubmatchIndex(src, -1) {
		idx, err := strconv.Atoi(src[m[2]:m[3]])
		if err != nil || idx >= len(rd.Refs) {
			return errors.AssertionFailedf("dangling reference placeholder %s", src[m[0]:m[1]])
		}
		ref := rd.Refs[idx]
		if last < m[0] {
			cb.Printf("%s", src[last:m[0]])
		}
		cb.Printf("%s", types.NewTypeName(0, types.NewPackage(ref.Import.Path, ref.Import.Name), ref.Name, nil))
		last = m[1]
	}
	cb.Printlnf("%s", src[last:])
	return nil
}

func endsWithReturn(body string) bool {
	lines := strings.Split(strings.TrimRight(body, " \t\n"), "\n")
	last := lines[len(lines)-1]
	return last == "return "+resultIdent
}

// helper renders the package-level function through which other declarations
// call a custom validation helper.
func (r *renderer) helper(d *Declaration) (*gopoet.FuncSpec, error) {
	name := validgen.GeneratedHelperName(d.Method)
	fn := gopoet.NewFunc(name)
	fn.SetComment(name + " runs the custom validation " + d.OwningType + "." + d.Method + ".")
	if err := r.signature(fn); err != nil {
		return nil, err
	}
	args := []string{validatorIdent}
	for _, p := range d.Subjects() {
		args = append(args, p.Name)
	}
	fn.Printlnf("return %s{}.%s(%s)", r.wrapperType(), d.Method, strings.Join(args, ", "))
	return fn, nil
}

// registration renders an init function that registers the declaration with
// the runtime, so that Validate and Nested can find it by subject type. Only
// declarations with exactly one subject can be registered.
func (r *renderer) registration(d *Declaration) (*gopoet.FuncSpec, error) {
	var subject types.Type
	var call string
	switch d.Marker.Kind {
	case validgen.SelfValidation:
		subject = types.NewPointer(namedType(r.pkg, d.OwningType))
		call = "%s{subject}.%s(validator)"
	case validgen.ValidationFor:
		subjects := d.Subjects()
		if len(subjects) != 1 {
			return nil, nil
		}
		t, err := r.paramType(subjects[0].Type)
		if err != nil {
			return nil, err
		}
		subject = t
		call = "%s{}.%s(validator, subject)"
	default:
		return nil, nil
	}
	fn := gopoet.NewFunc("init")
	fn.Printlnf("%s(func(%s %s, subject %s) %s {", r.runtime.Symbol("Register"), validatorIdent, r.validator, subject, r.result)
	fn.Printlnf("return "+call, r.wrapperType(), d.Method)
	fn.Println("})")
	return fn, nil
}

// paramType converts the source text of a parameter type into a go/types type
// whose package references carry the import paths of the declaration's file.
func (r *renderer) paramType(text string) (types.Type, error) {
	expr, err := goparser.ParseExpr(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter type %s", text)
	}
	return r.typeOf(expr)
}

func (r *renderer) typeOf(expr ast.Expr) (types.Type, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		if obj, ok := types.Universe.Lookup(t.Name).(*types.TypeName); ok {
			return obj.Type(), nil
		}
		return namedType(r.pkg, t.Name), nil
	case *ast.SelectorExpr:
		x, ok := t.X.(*ast.Ident)
		if !ok {
			break
		}
		imp, ok := r.imports[x.Name]
		if !ok {
			return nil, errors.Mark(errors.Newf("parameter type refers to %s, which is not imported", x.Name), ErrMalformedDeclaration)
		}
		return namedType(types.NewPackage(imp.Path, imp.Name), t.Sel.Name), nil
	case *ast.StarExpr:
		elem, err := r.typeOf(t.X)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(elem), nil
	case *ast.ArrayType:
		if t.Len != nil {
			break
		}
		elem, err := r.typeOf(t.Elt)
		if err != nil {
			return nil, err
		}
		return types.NewSlice(elem), nil
	case *ast.MapType:
		key, err := r.typeOf(t.Key)
		if err != nil {
			return nil, err
		}
		val, err := r.typeOf(t.Value)
		if err != nil {
			return nil, err
		}
		return types.NewMap(key, val), nil
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return types.NewInterfaceType(nil, nil).Complete(), nil
		}
	case *ast.ParenExpr:
		return r.typeOf(t.X)
	}
	return nil, errors.AssertionFailedf("unsupported parameter type %T", expr)
}
