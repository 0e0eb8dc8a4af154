// Package export writes every artifact of a pipeline run: visualization
// PNGs, machine-readable binary rasters, and vector river exports.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/hydro"
)

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// WriteAccumulationPNG writes a log-scaled grayscale visualization of flow
// accumulation. Log scaling keeps small tributaries visible next to the
// main channels.
func WriteAccumulationPNG(path string, f *hydro.FlowField) error {
	maxAcc := uint32(1)
	for _, a := range f.Acc {
		if a > maxAcc {
			maxAcc = a
		}
	}
	scale := 255.0 / math.Log1p(float64(maxAcc))

	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for i, a := range f.Acc {
		img.Pix[i] = uint8(math.Log1p(float64(a)) * scale)
	}
	return writePNG(path, img)
}

// WriteRiversPNG writes the traced river network as a white-on-black mask.
func WriteRiversPNG(path string, mask []uint32, width, height int) error {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range mask {
		if v != 0 {
			img.Pix[i] = 255
		}
	}
	return writePNG(path, img)
}

// WriteTerrainRiversPNG writes the terrain in grayscale with river cells
// overlaid in blue.
func WriteTerrainRiversPNG(path string, g *dem.Grid, mask []uint32) error {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Data {
		o := i * 4
		if mask[i] != 0 {
			img.Pix[o+0] = 30
			img.Pix[o+1] = 90
			img.Pix[o+2] = 200
		} else {
			gray := uint8(v >> 8)
			img.Pix[o+0] = gray
			img.Pix[o+1] = gray
			img.Pix[o+2] = gray
		}
		img.Pix[o+3] = 255
	}
	return writePNG(path, img)
}

// WriteWatershedPNG writes the basin labelling with a distinct color per
// label from the deterministic golden-angle palette.
func WriteWatershedPNG(path string, ws *hydro.Watershed) error {
	img := image.NewRGBA(image.Rect(0, 0, ws.Width, ws.Height))
	for i, l := range ws.Labels {
		c := LabelColor(l)
		o := i * 4
		img.Pix[o+0] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = 255
	}
	return writePNG(path, img)
}

// WriteTWIPNG writes the wetness index normalized to grayscale.
func WriteTWIPNG(path string, m *hydro.Metrics) error {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range m.TWI {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.TWI {
		img.Pix[i] = uint8((v - lo) / span * 255)
	}
	return writePNG(path, img)
}

// WriteStreamOrderPNG writes Strahler stream order, brighter for higher
// orders.
func WriteStreamOrderPNG(path string, m *hydro.Metrics) error {
	var maxOrd uint8 = 1
	for _, v := range m.StreamOrder {
		if v > maxOrd {
			maxOrd = v
		}
	}
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.StreamOrder {
		if v != 0 {
			img.Pix[i] = uint8(uint32(v) * 255 / uint32(maxOrd))
		}
	}
	return writePNG(path, img)
}

// LabelColor maps a basin label to a stable, visually distinct color by
// rotating the hue through the golden angle. Pure function of the label;
// label 0 renders black.
func LabelColor(label uint32) color.RGBA {
	if label == 0 {
		return color.RGBA{A: 255}
	}
	hue := math.Mod(float64(label)*137.50776405, 360.0)
	return hsv(hue, 0.6, 0.9)
}

func hsv(h, s, v float64) color.RGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60.0, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8((r + m) * 255),
		G: uint8((g + m) * 255),
		B: uint8((b + m) * 255),
		A: 255,
	}
}
