// Package bundle assembles the final pass archive: it computes the content
// digest manifest over the finalized file set and packages everything into
// the flat zip layout the consuming platform mandates.
package bundle

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved bundle filenames. These are a platform contract and must match
// byte for byte.
const (
	DescriptorName = "pass.json"
	ManifestName   = "manifest.json"
	SignatureName  = "signature"
)

// ErrInvalidFilename indicates a file name that cannot appear in a bundle:
// empty, carrying a directory prefix, or colliding with a reserved name.
var ErrInvalidFilename = errors.New("invalid bundle filename")

// FileSet is the in-memory set of files that make up one pass bundle,
// keyed by canonical flat filename. It is request-local and never shared
// across requests.
type FileSet map[string][]byte

// Add validates the name and inserts the file. Duplicate names are
// rejected: every filename appears in a bundle exactly once.
func (fs FileSet) Add(name string, content []byte) error {
	if err := validateFilename(name); err != nil {
		return err
	}
	if _, exists := fs[name]; exists {
		return fmt.Errorf("%w: duplicate entry %q", ErrInvalidFilename, name)
	}
	fs[name] = content
	return nil
}

// AddAll inserts every file from m.
func (fs FileSet) AddAll(m map[string][]byte) error {
	for name, content := range m {
		if err := fs.Add(name, content); err != nil {
			return err
		}
	}
	return nil
}

func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFilename)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q has a directory prefix, bundle entries are flat", ErrInvalidFilename, name)
	}
	if name == ManifestName || name == SignatureName {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFilename, name)
	}
	return nil
}
