package gosource

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jhump/validgen/processor"
)

// Writer is a processor.Sink that registers artifacts with the Go build by
// writing them to disk. Files whose content did not change are left alone,
// and generated files that no longer correspond to an artifact are removed.
type Writer struct {
	// OutputDir, if set, is a root under which output is written in
	// directories that mirror package import paths. Otherwise files are
	// written next to the declarations they came from.
	OutputDir string
	// Output defaults to DefaultOutputFactory().
	Output OutputFactory
	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// files written by earlier passes, so that they can be cleaned up when
	// OutputDir is used
	written map[string]struct{}
}

// WriteStats summarizes what a single Publish did.
type WriteStats struct {
	Written, Unchanged, Removed int
}

// Publish implements processor.Sink.
func (w *Writer) Publish(ctx context.Context, pass *processor.Pass) error {
	_, err := w.Write(ctx, pass)
	return err
}

// Write writes the pass's artifacts and removes stale generated files.
func (w *Writer) Write(ctx context.Context, pass *processor.Pass) (WriteStats, error) {
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String(processor.FieldComponent, "writer"), zap.Uint64(processor.FieldVersion, pass.Version))
	output := w.Output
	if output == nil {
		output = DefaultOutputFactory()
	}

	var stats WriteStats
	want := map[string]struct{}{}
	for _, a := range pass.Artifacts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		dir, err := determineOutputDir(w.OutputDir, a.Namespace.Path, a.Location)
		if err != nil {
			return stats, err
		}
		path := filepath.Join(dir, a.FileName)
		want[path] = struct{}{}
		if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, a.Content) {
			stats.Unchanged++
			continue
		}
		if err := writeFile(output, path, a.Content); err != nil {
			return stats, err
		}
		log.Debug("wrote artifact", zap.String(processor.FieldArtifact, a.Name), zap.String("path", path))
		stats.Written++
	}

	stale, err := w.stale(pass, want)
	if err != nil {
		return stats, err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return stats, errors.Wrapf(err, "removing stale file %s", path)
		}
		log.Debug("removed stale file", zap.String("path", path))
		stats.Removed++
	}
	w.written = want

	log.Info("artifacts written",
		zap.Int("written", stats.Written),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("removed", stats.Removed))
	return stats, nil
}

func writeFile(output OutputFactory, path string, content []byte) (err error) {
	out, err := output(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "closing %s", path)
		}
	}()
	if _, err := out.Write(content); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// stale returns generated files that this pass did not produce: those in the
// snapshot's package directories and those an earlier pass wrote.
func (w *Writer) stale(pass *processor.Pass, want map[string]struct{}) ([]string, error) {
	candidates := map[string]struct{}{}
	for path := range w.written {
		candidates[path] = struct{}{}
	}
	if w.OutputDir == "" {
		for _, dir := range pass.Locations {
			matches, err := filepath.Glob(filepath.Join(dir, "*"+processor.FileSuffix))
			if err != nil {
				return nil, errors.Wrapf(err, "listing %s", dir)
			}
			for _, m := range matches {
				candidates[m] = struct{}{}
			}
		}
	}
	var stale []string
	for path := range candidates {
		if _, ok := want[path]; ok {
			continue
		}
		if !isGenerated(path) {
			continue
		}
		stale = append(stale, path)
	}
	sort.Strings(stale)
	return stale, nil
}

// isGenerated checks that a file starts with the comment the emitter writes,
// so hand-written files that happen to share the suffix survive.
func isGenerated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == processor.GeneratedComment
}
