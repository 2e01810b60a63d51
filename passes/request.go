// Package passes implements the pass generation pipeline: it merges the
// static template with a request, renders the per-request artwork, builds
// and signs the digest manifest, and packages the final bundle. It also
// exposes the prepare/retrieve token flow for clients that cannot consume
// a direct binary response.
package passes

import (
	"errors"
	"fmt"

	"github.com/inkpass/inkpass/artwork"
)

// ErrInvalidRequest indicates a malformed request field or an oversized
// payload. Validation failures never reach signing.
var ErrInvalidRequest = errors.New("invalid pass request")

// MaxTextLength bounds the free-text field.
const MaxTextLength = 140

// DefaultMaxDrawingBytes bounds the encoded drawing payload.
const DefaultMaxDrawingBytes = 1 << 20

// Request is the user payload for one pass. Immutable once received.
type Request struct {
	// Text is the optional free-text note shown on the pass.
	Text string `json:"text"`

	// Color names one of the fixed palettes.
	Color string `json:"color"`

	// Drawing is an optional encoded raster from the client canvas,
	// base64 in JSON transport.
	Drawing []byte `json:"drawing,omitempty"`
}

// Validate checks the request fields. maxDrawingBytes <= 0 applies the
// default bound.
func (r Request) Validate(maxDrawingBytes int) error {
	if maxDrawingBytes <= 0 {
		maxDrawingBytes = DefaultMaxDrawingBytes
	}

	if _, ok := artwork.PaletteFor(artwork.ColorKey(r.Color)); !ok {
		return fmt.Errorf("%w: unknown color %q", ErrInvalidRequest, r.Color)
	}
	if len(r.Text) > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d characters", ErrInvalidRequest, MaxTextLength)
	}
	if len(r.Drawing) > maxDrawingBytes {
		return fmt.Errorf("%w: drawing exceeds %d bytes", ErrInvalidRequest, maxDrawingBytes)
	}
	return nil
}

// Palette resolves the request's palette. Call Validate first.
func (r Request) Palette() artwork.Palette {
	pal, _ := artwork.PaletteFor(artwork.ColorKey(r.Color))
	return pal
}
