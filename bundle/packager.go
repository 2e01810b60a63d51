package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// MediaType is the transport content type for a packaged pass bundle.
const MediaType = "application/vnd.apple.pkpass"

// Package writes the complete archive: every file in the set plus the
// manifest and its detached signature, all as flat top-level zip entries.
// Entries are written in sorted name order so identical inputs produce
// identical archives.
func Package(files FileSet, manifest []byte, signature []byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range names {
		if err := writeEntry(zw, name, files[name]); err != nil {
			return nil, err
		}
	}
	if err := writeEntry(zw, ManifestName, manifest); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, SignatureName, signature); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}
