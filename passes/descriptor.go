package passes

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the parsed pass.json document. It preserves every field
// the merger does not override, whatever its shape, so template authors
// can carry fields this service never interprets.
type Descriptor map[string]json.RawMessage

// styleKeys are the pass style sections; a descriptor carries exactly one.
var styleKeys = []string{"generic", "eventTicket", "storeCard", "coupon", "boardingPass"}

// Clone deep-copies the descriptor so per-request overrides never touch
// the shared template copy.
func (d Descriptor) Clone() Descriptor {
	out := make(Descriptor, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Marshal serializes the descriptor with lexicographically ordered keys.
func (d Descriptor) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(map[string]json.RawMessage(d), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	return data, nil
}

// StringField returns a top-level string field, or "" when absent.
func (d Descriptor) StringField(key string) string {
	raw, ok := d[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (d Descriptor) setString(key, value string) {
	raw, _ := json.Marshal(value)
	d[key] = raw
}

// setPrimaryText writes the text into the value of the first primary
// field of whichever style section the descriptor carries.
func (d Descriptor) setPrimaryText(text string) error {
	for _, key := range styleKeys {
		raw, ok := d[key]
		if !ok {
			continue
		}

		var style map[string]any
		if err := json.Unmarshal(raw, &style); err != nil {
			return fmt.Errorf("parse style section %q: %w", key, err)
		}

		fields, ok := style["primaryFields"].([]any)
		if !ok || len(fields) == 0 {
			return fmt.Errorf("style section %q has no primary fields", key)
		}
		first, ok := fields[0].(map[string]any)
		if !ok {
			return fmt.Errorf("style section %q has a malformed primary field", key)
		}
		first["value"] = text

		encoded, err := json.Marshal(style)
		if err != nil {
			return fmt.Errorf("re-encode style section %q: %w", key, err)
		}
		d[key] = encoded
		return nil
	}
	return fmt.Errorf("descriptor has no style section")
}
