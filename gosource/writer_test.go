package gosource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/validgen/processor"
)

const generated = processor.GeneratedComment + "\n\n//go:build !validgen\n\npackage p\n"

func artifact(dir, name, content string) *processor.Artifact {
	return &processor.Artifact{
		Name:      name,
		Namespace: processor.Namespace{Path: "example.com/p", Name: "p"},
		FileName:  name + processor.FileSuffix,
		Content:   []byte(content),
		Location:  dir,
	}
}

func TestWriter_NextToSources(t *testing.T) {
	dir := t.TempDir()
	handWritten := filepath.Join(dir, "notes"+processor.FileSuffix)
	require.NoError(t, os.WriteFile(handWritten, []byte("package p\n"), 0666))
	stale := filepath.Join(dir, "Old_Validation"+processor.FileSuffix)
	require.NoError(t, os.WriteFile(stale, []byte(generated), 0666))

	var w Writer
	pass := &processor.Pass{
		Version:   1,
		Artifacts: []*processor.Artifact{artifact(dir, "User_Validation", generated+"// a\n")},
		Locations: []string{dir},
	}
	stats, err := w.Write(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Written: 1, Removed: 1}, stats)

	data, err := os.ReadFile(filepath.Join(dir, "User_Validation"+processor.FileSuffix))
	require.NoError(t, err)
	assert.Equal(t, generated+"// a\n", string(data))
	assert.NoFileExists(t, stale)
	assert.FileExists(t, handWritten)

	// nothing changed
	stats, err = w.Write(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Unchanged: 1}, stats)

	// declaration removed
	stats, err = w.Write(context.Background(), &processor.Pass{Version: 2, Locations: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Removed: 1}, stats)
	assert.NoFileExists(t, filepath.Join(dir, "User_Validation"+processor.FileSuffix))
}

func TestWriter_OutputDir(t *testing.T) {
	root := t.TempDir()
	w := Writer{OutputDir: root}
	pass := &processor.Pass{
		Version: 1,
		Artifacts: []*processor.Artifact{
			artifact("", "A_Validation", generated),
			artifact("", "B_Validation", generated),
		},
	}
	stats, err := w.Write(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	out := filepath.Join(root, "example.com", "p")
	assert.FileExists(t, filepath.Join(out, "A_Validation"+processor.FileSuffix))

	pass = &processor.Pass{Version: 2, Artifacts: pass.Artifacts[:1]}
	stats, err = w.Write(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Unchanged: 1, Removed: 1}, stats)
	assert.NoFileExists(t, filepath.Join(out, "B_Validation"+processor.FileSuffix))
}

func TestWriter_NoLocation(t *testing.T) {
	var w Writer
	_, err := w.Write(context.Background(), &processor.Pass{
		Artifacts: []*processor.Artifact{artifact("", "A_Validation", generated)},
	})
	assert.ErrorContains(t, err, "could not determine output directory")
}
