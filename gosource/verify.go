package gosource

import (
	"context"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/jhump/validgen/processor"
)

var (
	undefinedGenerated = regexp.MustCompile(`undefined: (\w+Generated)\b`)
	errorPos           = regexp.MustCompile(`^(.*?):(\d+)(?::(\d+))?$`)
)

// Verify type checks the packages matching patterns as they are built
// normally, with generated code and without declarations. References to
// generated helpers that do not exist are reported as unresolved reference
// diagnostics; other errors in generated files are reported as internal
// errors. Errors in hand-written files are not the generator's to report.
func Verify(ctx context.Context, cfg Config, patterns ...string) ([]processor.Diagnostic, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pcfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Dir:     cfg.Dir,
		Tests:   cfg.Tests,
	}
	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "loading packages")
	}
	log := cfg.logger()

	var diags []processor.Diagnostic
	seen := map[string]struct{}{}
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			if e.Kind == packages.ListError {
				// the build tool reports compile errors that type checking
				// reports again, with positions
				log.Debug("ignoring list error", zap.String("package", pkg.PkgPath), zap.String("error", e.Msg))
				continue
			}
			pos := parseErrorPos(e.Pos)
			key := e.Pos + "\x00" + e.Msg
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if m := undefinedGenerated.FindStringSubmatch(e.Msg); m != nil {
				err := errors.Mark(errors.Newf("reference to %s, which was never generated", m[1]), processor.ErrUnresolvedReference)
				diags = append(diags, processor.NewDiagnostic("", pos, err))
				continue
			}
			if strings.HasSuffix(pos.Filename, processor.FileSuffix) {
				diags = append(diags, processor.NewDiagnostic("", pos, errors.Newf("generated code does not compile: %s", e.Msg)))
				continue
			}
			log.Debug("ignoring package error", zap.String("package", pkg.PkgPath), zap.String("error", e.Error()))
		}
	})
	return diags, nil
}

func parseErrorPos(s string) token.Position {
	m := errorPos.FindStringSubmatch(s)
	if m == nil {
		return token.Position{}
	}
	line, _ := strconv.Atoi(m[2])
	col, _ := strconv.Atoi(m[3])
	return token.Position{Filename: m[1], Line: line, Column: col}
}
