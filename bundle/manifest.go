package bundle

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Manifest maps every bundle filename to the hex SHA-1 digest of its
// content. The manifest itself and the signature file are excluded. The
// serialized manifest is the exact byte sequence the detached signature
// binds, so it must only be built once all file content is final; any later
// edit requires a full rebuild, never a partial patch.
type Manifest map[string]string

// BuildManifest computes the digest for every file in the set.
func BuildManifest(files FileSet) Manifest {
	m := make(Manifest, len(files))
	for name, content := range files {
		sum := sha1.Sum(content)
		m[name] = hex.EncodeToString(sum[:])
	}
	return m
}

// Marshal serializes the manifest to its canonical byte form: a JSON
// object with lexicographically ordered keys.
func (m Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(map[string]string(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}
