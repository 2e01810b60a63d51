package artwork

import (
	"image"
	"image/color"
	"math"
)

// Icon glyph geometry, as fractions of the canvas. Three ruled lines
// suggest a note card; the last line is shorter, like a trailing sentence.
var glyphLines = []struct {
	y, x0, x1 float64
}{
	{y: 0.38, x0: 0.24, x1: 0.76},
	{y: 0.52, x0: 0.24, x1: 0.76},
	{y: 0.66, x0: 0.24, x1: 0.58},
}

// renderIcon fills a rounded rectangle with the palette gradient and
// strokes the glyph lines. Pixels outside the rounded shape stay fully
// transparent. User drawings are never composited into the icon.
func renderIcon(img *image.RGBA, stops []Stop) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	radius := w / 5

	for y := 0; y < h; y++ {
		pos := 1.0
		if h > 1 {
			pos = float64(h-1-y) / float64(h-1)
		}
		c := gradientAt(stops, pos)
		for x := 0; x < w; x++ {
			if insideRoundedRect(x, y, w, h, radius) {
				img.SetRGBA(b.Min.X+x, b.Min.Y+y, c)
			}
		}
	}

	stroke := color.RGBA{R: 255, G: 255, B: 255, A: 230}
	thickness := h / 16
	if thickness < 1 {
		thickness = 1
	}
	for _, line := range glyphLines {
		y := int(math.Round(line.y * float64(h-1)))
		x0 := int(math.Round(line.x0 * float64(w-1)))
		x1 := int(math.Round(line.x1 * float64(w-1)))
		strokeHorizontal(img, x0, x1, y, thickness, stroke)
	}
}

// insideRoundedRect reports whether the pixel lies within a w×h rounded
// rectangle with the given corner radius.
func insideRoundedRect(x, y, w, h, radius int) bool {
	if radius <= 0 {
		return true
	}

	// Nearest corner circle center, or not in a corner region at all.
	var cx, cy int
	switch {
	case x < radius && y < radius:
		cx, cy = radius, radius
	case x >= w-radius && y < radius:
		cx, cy = w-radius-1, radius
	case x < radius && y >= h-radius:
		cx, cy = radius, h-radius-1
	case x >= w-radius && y >= h-radius:
		cx, cy = w-radius-1, h-radius-1
	default:
		return true
	}

	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

// strokeHorizontal draws a horizontal segment centered on y with the given
// thickness, clipped to the image bounds and the rounded shape.
func strokeHorizontal(img *image.RGBA, x0, x1, y, thickness int, c color.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	radius := w / 5

	for dy := -(thickness / 2); dy <= thickness/2; dy++ {
		yy := y + dy
		if yy < 0 || yy >= h {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= w {
				continue
			}
			if insideRoundedRect(x, yy, w, h, radius) {
				img.SetRGBA(b.Min.X+x, b.Min.Y+yy, c)
			}
		}
	}
}
