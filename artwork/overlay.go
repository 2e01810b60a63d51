package artwork

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// compositeOverlay scales the drawing onto the canvas according to the
// policy's overlay mode and draws it centered over the gradient.
func compositeOverlay(dst *image.RGBA, src image.Image, policy Policy) {
	var target image.Rectangle
	switch policy.Overlay {
	case OverlayContain:
		target = containRect(dst.Bounds(), src.Bounds(), policy.Margin)
	case OverlayCover:
		target = coverRect(dst.Bounds(), src.Bounds())
	default:
		return
	}
	// The scaler clips against the destination bounds, which crops the
	// cover-mode overflow.
	xdraw.CatmullRom.Scale(dst, target, src, src.Bounds(), xdraw.Over, nil)
}

// containRect computes the centered destination rectangle for an
// aspect-preserving fit within the margin fraction of the canvas.
func containRect(canvas, src image.Rectangle, margin float64) image.Rectangle {
	if margin <= 0 || margin > 1 {
		margin = 1
	}
	cw, ch := float64(canvas.Dx()), float64(canvas.Dy())
	sw, sh := float64(src.Dx()), float64(src.Dy())
	if sw == 0 || sh == 0 {
		return image.Rectangle{}
	}

	scale := margin * math.Min(cw/sw, ch/sh)
	w := int(math.Round(sw * scale))
	h := int(math.Round(sh * scale))

	x0 := canvas.Min.X + (canvas.Dx()-w)/2
	y0 := canvas.Min.Y + (canvas.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// coverRect computes the centered destination rectangle that fills the
// canvas completely; the overflow on the longer axis is cropped.
func coverRect(canvas, src image.Rectangle) image.Rectangle {
	cw, ch := float64(canvas.Dx()), float64(canvas.Dy())
	sw, sh := float64(src.Dx()), float64(src.Dy())
	if sw == 0 || sh == 0 {
		return image.Rectangle{}
	}

	scale := math.Max(cw/sw, ch/sh)
	w := int(math.Round(sw * scale))
	h := int(math.Round(sh * scale))

	x0 := canvas.Min.X + (canvas.Dx()-w)/2
	y0 := canvas.Min.Y + (canvas.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}
