package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/geom"
	"github.com/openterra/watershed/pkg/hydro"
)

// SimplifyEpsilon is the Douglas-Peucker tolerance, in pixels of the
// processing raster, applied before spline fitting.
const SimplifyEpsilon = 1.0

// WriteRiversSVG writes every river as a spline-fitted cubic Bezier path.
// scale converts processing-raster pixels back to original-raster pixels
// so the SVG matches the input resolution even when the pipeline ran
// downsampled.
func WriteRiversSVG(path string, rivers []hydro.River, width, height int, scale float64) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`+"\n",
		int(float64(width)*scale), int(float64(height)*scale))

	for _, r := range rivers {
		pts := geom.Simplify(r.Points, SimplifyEpsilon)
		if scale != 1 {
			scaled := make([]geom.Point, len(pts))
			for i, p := range pts {
				scaled[i] = geom.Point{X: p.X * scale, Y: p.Y * scale}
			}
			pts = scaled
		}
		cmds := geom.FitSpline(pts, geom.DefaultTension)
		if len(cmds) == 0 {
			continue
		}

		var d strings.Builder
		for _, c := range cmds {
			switch c.Op {
			case geom.MoveTo:
				fmt.Fprintf(&d, "M %.2f %.2f", c.To.X, c.To.Y)
			case geom.CurveTo:
				fmt.Fprintf(&d, " C %.2f %.2f, %.2f %.2f, %.2f %.2f",
					c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.To.X, c.To.Y)
			}
		}

		// Stroke width scales with the river's size proxy.
		sw := math.Sqrt(float64(r.MaxAcc)) / 40.0 * scale
		if sw < 0.5 {
			sw = 0.5
		}
		fmt.Fprintf(&b, `  <path d="%s" fill="none" stroke="#1e5ac8" stroke-width="%.2f"/>`+"\n", d.String(), sw)
	}
	b.WriteString("</svg>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write svg %s: %w", path, err)
	}
	return nil
}

// WriteRiversGeoJSON writes river centerlines as a GeoJSON
// FeatureCollection of LineStrings in world-space meters.
func WriteRiversGeoJSON(path string, rivers []hydro.River, g *dem.Grid, alt dem.AltitudeMap) error {
	maxDim := g.Width
	if g.Height > maxDim {
		maxDim = g.Height
	}
	cellSize := alt.CellSize(maxDim)

	fc := geojson.NewFeatureCollection()
	for _, r := range rivers {
		ls := make(orb.LineString, len(r.Points))
		for i, p := range r.Points {
			ls[i] = orb.Point{p.X * cellSize, p.Y * cellSize}
		}
		f := geojson.NewFeature(ls)
		f.Properties["max_accumulation"] = r.MaxAcc
		f.Properties["width"] = riverWidth(r.MaxAcc, cellSize)
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write geojson %s: %w", path, err)
	}
	return nil
}

// riverWidth estimates channel width in meters from flow accumulation.
// Width grows with the square root of the contributing area, floored at
// half a cell.
func riverWidth(acc uint32, cellSize float64) float64 {
	w := cellSize * 0.1 * math.Sqrt(float64(acc))
	if min := cellSize * 0.5; w < min {
		w = min
	}
	return w
}
