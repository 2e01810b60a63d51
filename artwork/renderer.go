// Package artwork synthesizes the per-request raster assets of a pass
// bundle: gradient backgrounds with an optional paper-like speckle texture,
// an optional user drawing composited on top, and the pass icon.
//
// All output is PNG. Asset geometry and compositing behavior are named
// per-kind policies rather than hardcoded choices, since historical
// variants of the pipeline disagreed on them.
package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"sync"
	"time"

	// Drawings arrive in whatever format the client canvas produced.
	_ "image/gif"
	_ "image/jpeg"
)

// ErrUndecodableDrawing indicates the supplied drawing bytes could not be
// decoded as an image. Callers decide whether to fail the request or to
// continue without the overlay.
var ErrUndecodableDrawing = errors.New("cannot decode drawing")

// Kind identifies one synthesized asset.
type Kind string

// Asset kinds. Background and strip take the gradient plus the optional
// user drawing; the icon never composites a drawing.
const (
	KindBackground Kind = "background"
	KindStrip      Kind = "strip"
	KindIcon       Kind = "icon"
)

// Filename returns the canonical bundle filename for the kind at the given
// resolution scale, e.g. "background.png" or "background@2x.png". These
// names are a platform contract and must match byte for byte.
func (k Kind) Filename(scale int) string {
	if scale == 1 {
		return string(k) + ".png"
	}
	return fmt.Sprintf("%s@%dx.png", k, scale)
}

// OverlayMode selects how a user drawing is composited onto the canvas.
type OverlayMode int

const (
	// OverlayNone ignores the drawing.
	OverlayNone OverlayMode = iota

	// OverlayContain scales the drawing, preserving aspect ratio, so it
	// fits entirely within the margin fraction of the canvas, centered.
	OverlayContain

	// OverlayCover scales the drawing to fill the canvas completely,
	// cropping any overflow, centered.
	OverlayCover
)

// Policy is the named rendering configuration for one asset kind.
type Policy struct {
	// Canvas size in points at 1x.
	Width  int
	Height int

	Overlay OverlayMode

	// Margin is the fraction of the canvas the drawing may occupy under
	// OverlayContain.
	Margin float64

	// Speckle applies the low-opacity grayscale paper texture.
	Speckle bool
}

// Canonical per-kind policies.
func defaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindBackground: {Width: 180, Height: 220, Overlay: OverlayContain, Margin: 0.90, Speckle: true},
		KindStrip:      {Width: 375, Height: 123, Overlay: OverlayCover, Speckle: true},
		KindIcon:       {Width: 29, Height: 29, Overlay: OverlayNone},
	}
}

// DefaultMinDrawingBytes is the minimum encoded size below which a drawing
// is treated as an effectively blank canvas and skipped.
const DefaultMinDrawingBytes = 120

// DefaultMaxDrawingPixels caps the decoded drawing area. The transport
// bounds the encoded byte size, but a small compressed payload can still
// declare an enormous canvas; the header is checked before any pixels are
// allocated.
const DefaultMaxDrawingPixels = 4 << 20

// Scales are the resolution variants rendered for every kind.
var Scales = []int{1, 2}

// Renderer synthesizes pass assets. It is safe for concurrent use; the
// speckle randomness source is guarded internally.
type Renderer struct {
	mu               sync.Mutex
	rng              *rand.Rand
	minDrawingBytes  int
	maxDrawingPixels int
	policies         map[Kind]Policy
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRandSource replaces the speckle randomness source. Tests inject a
// seeded source when they need exact-byte output.
func WithRandSource(src rand.Source) Option {
	return func(r *Renderer) { r.rng = rand.New(src) }
}

// WithMinDrawingBytes overrides the blank-canvas threshold.
func WithMinDrawingBytes(n int) Option {
	return func(r *Renderer) { r.minDrawingBytes = n }
}

// WithMaxDrawingPixels overrides the decoded-area cap.
func WithMaxDrawingPixels(n int) Option {
	return func(r *Renderer) { r.maxDrawingPixels = n }
}

// WithPolicy overrides the policy for one asset kind.
func WithPolicy(kind Kind, p Policy) Option {
	return func(r *Renderer) { r.policies[kind] = p }
}

// NewRenderer creates a Renderer with the canonical per-kind policies.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		minDrawingBytes:  DefaultMinDrawingBytes,
		maxDrawingPixels: DefaultMaxDrawingPixels,
		policies:         defaultPolicies(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DecodeDrawing decodes a user drawing. Payloads below the blank-canvas
// threshold return (nil, nil) and are treated as absent. Undecodable
// payloads and payloads whose declared dimensions exceed the decoded-area
// cap return ErrUndecodableDrawing.
func (r *Renderer) DecodeDrawing(data []byte) (image.Image, error) {
	if len(data) < r.minDrawingBytes {
		return nil, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableDrawing, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: degenerate dimensions %dx%d", ErrUndecodableDrawing, cfg.Width, cfg.Height)
	}
	if cfg.Width > r.maxDrawingPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixel limit",
			ErrUndecodableDrawing, cfg.Width, cfg.Height, r.maxDrawingPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableDrawing, err)
	}
	return img, nil
}

// Render produces the PNG bytes for one asset kind at the given resolution
// scale. The drawing may be nil.
func (r *Renderer) Render(kind Kind, pal Palette, drawing image.Image, scale int) ([]byte, error) {
	policy, ok := r.policies[kind]
	if !ok {
		return nil, fmt.Errorf("no rendering policy for asset kind %q", kind)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, policy.Width*scale, policy.Height*scale))

	if kind == KindIcon {
		renderIcon(canvas, pal.Stops)
	} else {
		fillGradient(canvas, pal.Stops)
		if policy.Speckle {
			applySpeckle(canvas, r.speckleRNG())
		}
		if drawing != nil && policy.Overlay != OverlayNone {
			compositeOverlay(canvas, drawing, policy)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind.Filename(scale), err)
	}
	return buf.Bytes(), nil
}

// RenderSet renders every kind at every resolution scale and returns the
// assets keyed by canonical filename.
func (r *Renderer) RenderSet(kinds []Kind, pal Palette, drawing image.Image) (map[string][]byte, error) {
	assets := make(map[string][]byte, len(kinds)*len(Scales))
	for _, kind := range kinds {
		for _, scale := range Scales {
			data, err := r.Render(kind, pal, drawing, scale)
			if err != nil {
				return nil, err
			}
			assets[kind.Filename(scale)] = data
		}
	}
	return assets, nil
}

// speckleRNG derives a per-render randomness source from the shared one.
// *rand.Rand is not safe for concurrent use, so the shared source is only
// touched under the lock.
func (r *Renderer) speckleRNG() *rand.Rand {
	r.mu.Lock()
	seed := r.rng.Int63()
	r.mu.Unlock()
	return rand.New(rand.NewSource(seed))
}
