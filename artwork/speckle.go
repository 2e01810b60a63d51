package artwork

import (
	"image"
	"math/rand"
)

// Speckle texture tuning. Density is the fraction of pixels touched; alpha
// is the blend strength of each grain. Low values keep the gradient
// dominant and give a paper-like finish.
const (
	speckleDensity = 0.08
	speckleAlpha   = 22
)

// applySpeckle blends random grayscale grains into the canvas at low
// opacity. The output is non-deterministic unless the caller seeded the
// renderer's randomness source.
func applySpeckle(img *image.RGBA, rng *rand.Rand) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rng.Float64() >= speckleDensity {
				continue
			}
			gray := uint8(rng.Intn(256))
			c := img.RGBAAt(x, y)
			c.R = blendChannel(c.R, gray, speckleAlpha)
			c.G = blendChannel(c.G, gray, speckleAlpha)
			c.B = blendChannel(c.B, gray, speckleAlpha)
			img.SetRGBA(x, y, c)
		}
	}
}

func blendChannel(base, over uint8, alpha uint8) uint8 {
	a := uint32(alpha)
	return uint8((uint32(base)*(255-a) + uint32(over)*a) / 255)
}
