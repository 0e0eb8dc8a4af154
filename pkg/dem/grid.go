// Package dem provides the elevation raster type and codecs used by the
// hydrology pipeline. Samples are unsigned 16-bit height codes; the mapping
// to world altitude is linear and configured per run.
package dem

import "fmt"

// Grid is an immutable row-major raster of 16-bit elevation samples.
type Grid struct {
	Width  int
	Height int
	Data   []uint16
}

// NewGrid creates a Grid, validating that data matches the dimensions.
func NewGrid(width, height int, data []uint16) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("grid data length %d does not match %dx%d", len(data), width, height)
	}
	return &Grid{Width: width, Height: height, Data: data}, nil
}

// At returns the sample at (x, y). Caller must ensure (x, y) is in bounds.
func (g *Grid) At(x, y int) uint16 {
	return g.Data[y*g.Width+x]
}

// InBounds reports whether (x, y) lies inside the raster.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// AltitudeMap converts raw height codes to world-space meters.
type AltitudeMap struct {
	MinAltitude float64 // meters at sample 0
	MaxAltitude float64 // meters at sample 65535
	TerrainSize float64 // world extent in meters along the longest raster axis
}

// Altitude returns the world altitude in meters for a raw sample.
func (m AltitudeMap) Altitude(sample uint16) float64 {
	return m.MinAltitude + float64(sample)/65535.0*(m.MaxAltitude-m.MinAltitude)
}

// CellSize returns the world-space size of one cell in meters for a grid
// with the given longest dimension.
func (m AltitudeMap) CellSize(maxDim int) float64 {
	if maxDim <= 0 {
		return 0
	}
	return m.TerrainSize / float64(maxDim)
}

// Downsample produces a lower-resolution grid whose longest dimension is at
// most maxDim, using max-pooling so ridgelines survive the reduction.
// Returns the receiver unchanged if maxDim is 0 or the grid already fits.
func (g *Grid) Downsample(maxDim int) *Grid {
	longest := g.Width
	if g.Height > longest {
		longest = g.Height
	}
	if maxDim <= 0 || longest <= maxDim {
		return g
	}

	scale := float64(maxDim) / float64(longest)
	nw := int(float64(g.Width) * scale)
	nh := int(float64(g.Height) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	out := make([]uint16, nw*nh)
	for y := 0; y < nh; y++ {
		// Source row range covered by this output row.
		sy0 := y * g.Height / nh
		sy1 := (y + 1) * g.Height / nh
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < nw; x++ {
			sx0 := x * g.Width / nw
			sx1 := (x + 1) * g.Width / nw
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			var best uint16
			for sy := sy0; sy < sy1; sy++ {
				row := g.Data[sy*g.Width:]
				for sx := sx0; sx < sx1; sx++ {
					if row[sx] > best {
						best = row[sx]
					}
				}
			}
			out[y*nw+x] = best
		}
	}
	return &Grid{Width: nw, Height: nh, Data: out}
}
