package artwork

import (
	"image/color"
	"sort"
)

// ColorKey selects one of the fixed pass palettes.
type ColorKey string

// The palette set is deliberately small; requests name a key, never raw
// color values.
const (
	ColorBlue   ColorKey = "blue"
	ColorGreen  ColorKey = "green"
	ColorRed    ColorKey = "red"
	ColorPurple ColorKey = "purple"
	ColorSlate  ColorKey = "slate"
)

// Stop is a single gradient color stop. Position runs from 0 at the canvas
// bottom to 1 at the top.
type Stop struct {
	Position float64
	Color    color.RGBA
}

// Palette carries the gradient stops used for raster synthesis and the
// resolved colors written into the pass descriptor. Palettes are static
// configuration shared read-only across requests.
type Palette struct {
	Key   ColorKey
	Stops []Stop

	// Descriptor color assignments, in the rgb(r,g,b) form the consuming
	// platform expects.
	Background string
	Foreground string
	Label      string
}

var palettes = map[ColorKey]Palette{
	ColorBlue: {
		Key: ColorBlue,
		Stops: []Stop{
			{Position: 0.0, Color: color.RGBA{R: 30, G: 64, B: 130, A: 255}},
			{Position: 0.55, Color: color.RGBA{R: 62, G: 108, B: 180, A: 255}},
			{Position: 1.0, Color: color.RGBA{R: 132, G: 172, B: 224, A: 255}},
		},
		Background: "rgb(62,108,180)",
		Foreground: "rgb(255,255,255)",
		Label:      "rgb(214,228,248)",
	},
	ColorGreen: {
		Key: ColorGreen,
		Stops: []Stop{
			{Position: 0.0, Color: color.RGBA{R: 26, G: 94, B: 56, A: 255}},
			{Position: 0.55, Color: color.RGBA{R: 52, G: 138, B: 86, A: 255}},
			{Position: 1.0, Color: color.RGBA{R: 128, G: 196, B: 152, A: 255}},
		},
		Background: "rgb(52,138,86)",
		Foreground: "rgb(255,255,255)",
		Label:      "rgb(212,240,222)",
	},
	ColorRed: {
		Key: ColorRed,
		Stops: []Stop{
			{Position: 0.0, Color: color.RGBA{R: 132, G: 32, B: 38, A: 255}},
			{Position: 0.55, Color: color.RGBA{R: 186, G: 58, B: 64, A: 255}},
			{Position: 1.0, Color: color.RGBA{R: 232, G: 140, B: 140, A: 255}},
		},
		Background: "rgb(186,58,64)",
		Foreground: "rgb(255,255,255)",
		Label:      "rgb(248,216,216)",
	},
	ColorPurple: {
		Key: ColorPurple,
		Stops: []Stop{
			{Position: 0.0, Color: color.RGBA{R: 74, G: 40, B: 120, A: 255}},
			{Position: 0.55, Color: color.RGBA{R: 112, G: 72, B: 166, A: 255}},
			{Position: 1.0, Color: color.RGBA{R: 176, G: 146, B: 216, A: 255}},
		},
		Background: "rgb(112,72,166)",
		Foreground: "rgb(255,255,255)",
		Label:      "rgb(230,220,246)",
	},
	ColorSlate: {
		Key: ColorSlate,
		Stops: []Stop{
			{Position: 0.0, Color: color.RGBA{R: 52, G: 58, B: 66, A: 255}},
			{Position: 0.55, Color: color.RGBA{R: 90, G: 98, B: 108, A: 255}},
			{Position: 1.0, Color: color.RGBA{R: 158, G: 166, B: 176, A: 255}},
		},
		Background: "rgb(90,98,108)",
		Foreground: "rgb(255,255,255)",
		Label:      "rgb(226,230,234)",
	},
}

// PaletteFor resolves a color key to its palette. The second return value
// reports whether the key is known.
func PaletteFor(key ColorKey) (Palette, bool) {
	p, ok := palettes[key]
	return p, ok
}

// Keys returns the known color keys in sorted order.
func Keys() []ColorKey {
	keys := make([]ColorKey, 0, len(palettes))
	for k := range palettes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
