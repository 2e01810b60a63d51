package passes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkpass/inkpass/artwork"
	"github.com/inkpass/inkpass/bundle"
)

// ErrBadTemplate indicates an unusable template directory. This is a
// deployment fault, not a request fault.
var ErrBadTemplate = errors.New("invalid pass template")

// Template is the static part of every pass: the base descriptor plus
// the shared files copied verbatim into each bundle (logos, strings).
// A Template is immutable after load and safe for concurrent use.
type Template struct {
	descriptor Descriptor
	files      map[string][]byte
}

// LoadTemplate reads a template directory. It must contain pass.json;
// every other regular file is carried into the bundle as-is. Hidden
// files and subdirectories are skipped.
func LoadTemplate(dir string) (*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read template dir: %v", ErrBadTemplate, err)
	}

	t := &Template{files: make(map[string][]byte)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrBadTemplate, name, err)
		}

		if name == bundle.DescriptorName {
			if err := json.Unmarshal(data, &t.descriptor); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrBadTemplate, name, err)
			}
			continue
		}
		t.files[name] = data
	}

	if t.descriptor == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrBadTemplate, bundle.DescriptorName)
	}
	if err := t.validateDescriptor(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewTemplate builds a template from an in-memory descriptor and static
// files, for embedding and tests.
func NewTemplate(descriptor Descriptor, files map[string][]byte) (*Template, error) {
	t := &Template{descriptor: descriptor.Clone(), files: make(map[string][]byte, len(files))}
	for name, data := range files {
		t.files[name] = append([]byte(nil), data...)
	}
	if err := t.validateDescriptor(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Template) validateDescriptor() error {
	for _, key := range []string{"passTypeIdentifier", "teamIdentifier", "formatVersion"} {
		if _, ok := t.descriptor[key]; !ok {
			return fmt.Errorf("%w: descriptor missing %s", ErrBadTemplate, key)
		}
	}
	if err := t.descriptor.Clone().setPrimaryText("probe"); err != nil {
		return fmt.Errorf("%w: %v", ErrBadTemplate, err)
	}
	return nil
}

// Merge produces the per-request descriptor: a clone of the template
// descriptor with the serial number, the palette colors, and the
// request text applied. The template itself is never mutated.
func (t *Template) Merge(req Request, pal artwork.Palette, serial string) (Descriptor, error) {
	d := t.descriptor.Clone()
	d.setString("serialNumber", serial)
	d.setString("backgroundColor", pal.Background)
	d.setString("foregroundColor", pal.Foreground)
	d.setString("labelColor", pal.Label)

	if req.Text != "" {
		if err := d.setPrimaryText(req.Text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadTemplate, err)
		}
	}
	return d, nil
}

// Files returns a shallow copy of the static file map. Callers must not
// mutate the byte slices.
func (t *Template) Files() map[string][]byte {
	out := make(map[string][]byte, len(t.files))
	for name, data := range t.files {
		out[name] = data
	}
	return out
}
