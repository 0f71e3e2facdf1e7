package gosource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/validgen/processor"
)

// The example package checks in its generated files; they must be exactly
// what the pipeline produces from its declarations.
func TestGenerate_ExampleUpToDate(t *testing.T) {
	snap, err := NewLoader(Config{Dir: "../example"}).Load(context.Background(), ".")
	require.NoError(t, err)
	pass, err := processor.NewPipeline(processor.Config{}).Run(context.Background(), snap)
	require.NoError(t, err)
	require.Empty(t, pass.Diagnostics)
	require.Len(t, pass.Artifacts, 6)

	for _, a := range pass.Artifacts {
		path := filepath.Join(a.Location, a.FileName)
		want, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(a.Content), "%s is out of date; run go generate ./example", path)
	}

	// the writer leaves current files alone
	w := &Writer{Output: func(path string) (io.WriteCloser, error) {
		return nil, errors.Newf("unexpected write to %s", path)
	}}
	stats, err := w.Write(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Unchanged: 6}, stats)
}
