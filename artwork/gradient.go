package artwork

import (
	"image"
	"image/color"
	"math"
)

// fillGradient paints a vertical multi-stop gradient over the whole canvas.
// Stops are ordered from the visual bottom (position 0) to the top
// (position 1).
func fillGradient(img *image.RGBA, stops []Stop) {
	b := img.Bounds()
	h := b.Dy()
	for y := 0; y < h; y++ {
		pos := 1.0
		if h > 1 {
			// Row 0 is the top of the canvas.
			pos = float64(h-1-y) / float64(h-1)
		}
		c := gradientAt(stops, pos)
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, b.Min.Y+y, c)
		}
	}
}

// gradientAt interpolates the gradient color at a position in [0,1].
// Positions outside the stop range clamp to the nearest stop.
func gradientAt(stops []Stop, pos float64) color.RGBA {
	if len(stops) == 0 {
		return color.RGBA{A: 255}
	}
	if pos <= stops[0].Position {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if pos >= last.Position {
		return last.Color
	}

	for i := 1; i < len(stops); i++ {
		if pos > stops[i].Position {
			continue
		}
		lo, hi := stops[i-1], stops[i]
		span := hi.Position - lo.Position
		t := 0.0
		if span > 0 {
			t = (pos - lo.Position) / span
		}
		return lerpRGBA(lo.Color, hi.Color, t)
	}
	return last.Color
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
		A: lerpChannel(a.A, b.A, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
