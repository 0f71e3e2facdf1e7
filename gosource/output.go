package gosource

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// OutputFactory is a function that creates a writer to an output for the
// given location. Output factories typically use os.OpenFile to create files
// but this function allows the behavior to be customized.
type OutputFactory func(path string) (io.WriteCloser, error)

// DefaultOutputFactory returns the OutputFactory used by Writer when none is
// configured. It creates the destination directory if necessary and then uses
// os.OpenFile to open the file for writing (creating the file if necessary,
// truncating it if it already exists).
func DefaultOutputFactory() OutputFactory {
	return func(path string) (io.WriteCloser, error) {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "could not create output directory %s", filepath.Dir(path))
		}
		return os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
	}
}

// determineOutputDir returns where the files of a package go. With a root
// directory, the package's import path is mirrored below it; otherwise output
// goes next to the package's sources.
func determineOutputDir(root, pkgPath, location string) (string, error) {
	if root != "" {
		return filepath.Join(root, filepath.FromSlash(pkgPath)), nil
	}
	if location == "" {
		return "", errors.Newf("could not determine output directory for package %q", pkgPath)
	}
	return location, nil
}
