// Package gosource connects the processor pipeline to Go source trees. It
// loads packages into snapshots, watches them for changes, writes generated
// artifacts next to their declarations, and verifies that the generated code
// builds.
package gosource

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/jhump/validgen/processor"
)

// DefaultBuildTag is the build tag that guards validation declarations.
const DefaultBuildTag = "validgen"

// Config configures how packages are loaded.
type Config struct {
	// Dir is the directory in which package patterns are resolved. Defaults
	// to the current directory.
	Dir string
	// BuildTags are passed to the build system when loading declarations.
	// Defaults to DefaultBuildTag.
	BuildTags []string
	// Tests includes test files.
	Tests bool
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) buildTags() []string {
	if len(c.BuildTags) == 0 {
		return []string{DefaultBuildTag}
	}
	return c.BuildTags
}

// Loader reads Go packages into snapshots. Each snapshot it returns has a
// higher version than the one before.
type Loader struct {
	cfg     Config
	log     *zap.Logger
	version atomic.Uint64
}

// NewLoader creates a loader with the given configuration.
func NewLoader(cfg Config) *Loader {
	return &Loader{cfg: cfg, log: cfg.logger().With(zap.String(processor.FieldComponent, "loader"))}
}

// Load parses the packages matching the given patterns, without type
// checking, and returns every top-level declaration as a node.
func (l *Loader) Load(ctx context.Context, patterns ...string) (*processor.Snapshot, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps | packages.NeedSyntax,
		Dir:        l.cfg.Dir,
		Tests:      l.cfg.Tests,
		BuildFlags: []string{"-tags=" + strings.Join(l.cfg.buildTags(), ",")},
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "loading packages")
	}

	snap := &processor.Snapshot{Version: l.version.Add(1)}
	seenFiles := map[string]struct{}{}
	// test variants repeat the package's files; sorting by ID puts the
	// plain package first
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			l.log.Warn("package error", zap.String("package", pkg.PkgPath), zap.String("error", e.Error()))
		}
		if len(pkg.GoFiles) == 0 {
			continue
		}
		pkgScope := &processor.Scope{
			Kind:        processor.PackageScope,
			Name:        pkg.PkgPath,
			PackageName: pkg.Name,
			Location:    filepath.Dir(pkg.GoFiles[0]),
		}
		ids := map[processor.NodeID]int{}
		for _, f := range pkg.Syntax {
			filename := pkg.Fset.File(f.Pos()).Name()
			if _, ok := seenFiles[filename]; ok || strings.HasSuffix(filename, processor.FileSuffix) {
				continue
			}
			seenFiles[filename] = struct{}{}
			src, err := os.ReadFile(filename)
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", filename)
			}
			fl := &fileLoader{pkg: pkg, scope: pkgScope, fset: pkg.Fset, src: src, ids: ids}
			snap.Nodes = append(snap.Nodes, fl.nodes(f, filename)...)
		}
	}
	l.log.Debug("loaded snapshot",
		zap.Uint64(processor.FieldVersion, snap.Version),
		zap.Int(processor.FieldCount, len(snap.Nodes)))
	return snap, nil
}

// Dirs returns the package directories of the snapshot's nodes.
func Dirs(snap *processor.Snapshot) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, n := range snap.Nodes {
		pkg := n.Scope.Package()
		if pkg == nil || pkg.Location == "" {
			continue
		}
		if _, ok := seen[pkg.Location]; ok {
			continue
		}
		seen[pkg.Location] = struct{}{}
		dirs = append(dirs, pkg.Location)
	}
	sort.Strings(dirs)
	return dirs
}

type fileLoader struct {
	pkg   *packages.Package
	scope *processor.Scope
	fset  *token.FileSet
	src   []byte
	ids   map[processor.NodeID]int
}

func (fl *fileLoader) nodes(f *ast.File, filename string) []*processor.Node {
	fileScope := &processor.Scope{
		Kind:    processor.FileScope,
		Name:    filepath.Base(filename),
		Imports: fl.imports(f),
		Parent:  fl.scope,
	}
	var nodes []*processor.Node
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			nodes = append(nodes, fl.node(fileScope, funcKey(d), d.Doc, d))
			if d.Body == nil {
				continue
			}
			funcScope := &processor.Scope{Kind: processor.FuncScope, Name: funcKey(d), Parent: fileScope}
			// declarations nested in bodies only matter if they are
			// documented; a marker there is reported as misplaced
			ast.Inspect(d.Body, func(n ast.Node) bool {
				ds, ok := n.(*ast.DeclStmt)
				if !ok {
					return true
				}
				if gd, ok := ds.Decl.(*ast.GenDecl); ok && gd.Doc != nil {
					nodes = append(nodes, fl.node(funcScope, funcKey(d)+"/"+genKey(gd), gd.Doc, gd))
				}
				return true
			})
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			nodes = append(nodes, fl.node(fileScope, genKey(d), d.Doc, d))
		}
	}
	return nodes
}

func (fl *fileLoader) node(scope *processor.Scope, key string, doc *ast.CommentGroup, decl ast.Node) *processor.Node {
	id := processor.NodeID(fl.pkg.PkgPath + "#" + key)
	// keys are unique except for things like init functions
	if n := fl.ids[id]; n > 0 {
		fl.ids[id] = n + 1
		id = processor.NodeID(fmt.Sprintf("%s#%d", id, n))
	} else {
		fl.ids[id] = 1
	}
	n := &processor.Node{
		ID:         id,
		Scope:      scope,
		Content:    string(fl.src[fl.fset.Position(decl.Pos()).Offset:fl.fset.Position(decl.End()).Offset]),
		ContentPos: fl.fset.Position(decl.Pos()),
	}
	if doc != nil {
		n.Doc, n.DocPos = docText(fl.fset, doc)
	}
	return n
}

// docText renders a comment group the way it appears in source. Comments
// after the first are indented to their original column, so positions within
// the text map back to the file.
func docText(fset *token.FileSet, doc *ast.CommentGroup) (string, token.Position) {
	var sb strings.Builder
	start := fset.Position(doc.Pos())
	line := start.Line
	for i, c := range doc.List {
		pos := fset.Position(c.Pos())
		if i > 0 {
			for ; line < pos.Line; line++ {
				sb.WriteByte('\n')
			}
			sb.WriteString(strings.Repeat(" ", pos.Column-1))
		}
		sb.WriteString(c.Text)
		line += strings.Count(c.Text, "\n")
	}
	return sb.String(), start
}

func (fl *fileLoader) imports(f *ast.File) []processor.Import {
	var imports []processor.Import
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		} else if imp := fl.pkg.Imports[p]; imp != nil && imp.Name != "" {
			name = imp.Name
		} else {
			name = guessPackageName(p)
		}
		imports = append(imports, processor.Import{Name: name, Path: p})
	}
	return imports
}

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// guessPackageName follows the usual conventions for packages the build
// system could not resolve.
func guessPackageName(importPath string) string {
	base := path.Base(importPath)
	if versionSuffix.MatchString(base) {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}
		return r
	}, base)
}

func funcKey(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return d.Name.Name
	}
	return "(" + recvName(d.Recv.List[0].Type) + ")." + d.Name.Name
}

func recvName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "*" + recvName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return recvName(t.X)
	case *ast.IndexListExpr:
		return recvName(t.X)
	case *ast.ParenExpr:
		return recvName(t.X)
	default:
		return "?"
	}
}

func genKey(d *ast.GenDecl) string {
	var names []string
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			names = append(names, s.Name.Name)
		case *ast.ValueSpec:
			for _, id := range s.Names {
				names = append(names, id.Name)
			}
		}
	}
	return d.Tok.String() + " " + strings.Join(names, ",")
}
