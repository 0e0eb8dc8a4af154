package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/geom"
	"github.com/openterra/watershed/pkg/hydro"
)

func testRivers() []hydro.River {
	return []hydro.River{
		{
			Points: []geom.Point{{X: 0.5, Y: 0.5}, {X: 1.5, Y: 1.5}, {X: 2.5, Y: 1.5}, {X: 3.5, Y: 2.5}},
			Acc:    []uint32{10, 20, 30, 40},
			MaxAcc: 40,
		},
		{
			Points: []geom.Point{{X: 0.5, Y: 3.5}, {X: 1.5, Y: 3.5}, {X: 2.5, Y: 3.5}},
			Acc:    []uint32{5, 6, 7},
			MaxAcc: 7,
		},
	}
}

func TestWriteRiversSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rivers.svg")
	if err := WriteRiversSVG(path, testRivers(), 8, 8, 2.0); err != nil {
		t.Fatalf("WriteRiversSVG: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)

	if !strings.Contains(svg, `viewBox="0 0 16 16"`) {
		t.Errorf("viewBox not scaled to source resolution:\n%s", svg)
	}
	if got := strings.Count(svg, "<path"); got != 2 {
		t.Errorf("got %d paths, want 2", got)
	}
	if !strings.Contains(svg, "C ") {
		t.Error("paths carry no curve commands")
	}
}

func TestWriteRiversGeoJSON(t *testing.T) {
	g, err := dem.NewGrid(4, 4, make([]uint16, 16))
	if err != nil {
		t.Fatal(err)
	}
	alt := dem.AltitudeMap{MinAltitude: 0, MaxAltitude: 100, TerrainSize: 400}

	path := filepath.Join(t.TempDir(), "rivers.geojson")
	if err := WriteRiversGeoJSON(path, testRivers(), g, alt); err != nil {
		t.Fatalf("WriteRiversGeoJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("got %s with %d features, want FeatureCollection with 2", fc.Type, len(fc.Features))
	}
	f0 := fc.Features[0]
	if f0.Geometry.Type != "LineString" {
		t.Errorf("geometry type = %s, want LineString", f0.Geometry.Type)
	}
	// Cell size is 400/4 = 100 meters, so the first vertex lands at (50,50).
	if len(f0.Geometry.Coordinates) != 4 || f0.Geometry.Coordinates[0][0] != 50 || f0.Geometry.Coordinates[0][1] != 50 {
		t.Errorf("unexpected coordinates %v", f0.Geometry.Coordinates)
	}
	if _, ok := f0.Properties["max_accumulation"]; !ok {
		t.Error("max_accumulation property missing")
	}
	if w, ok := f0.Properties["width"].(float64); !ok || w <= 0 {
		t.Errorf("width property = %v", f0.Properties["width"])
	}
}

func TestHydrologyJSONShape(t *testing.T) {
	data := make([]uint16, 16)
	for i := range data {
		data[i] = uint16(i * 1000)
	}
	g, err := dem.NewGrid(4, 4, data)
	if err != nil {
		t.Fatal(err)
	}
	alt := dem.AltitudeMap{MinAltitude: 0, MaxAltitude: 200, TerrainSize: 400}

	path := filepath.Join(t.TempDir(), "hydrology.json")
	if err := WriteHydrologyJSON(path, testRivers(), g, alt); err != nil {
		t.Fatalf("WriteHydrologyJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var hd HydrologyData
	if err := json.Unmarshal(raw, &hd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if hd.TerrainSize != 400 {
		t.Errorf("terrain_size = %g, want 400", hd.TerrainSize)
	}
	if len(hd.Rivers) != 2 {
		t.Fatalf("got %d rivers, want 2", len(hd.Rivers))
	}
	if hd.Lakes == nil {
		t.Error("lakes key must be present even when empty")
	}
	for _, r := range hd.Rivers {
		for _, p := range r.Points {
			if p.Width <= 0 {
				t.Fatalf("river point has width %g", p.Width)
			}
			if p.X < 0 || p.X > 400 || p.Z < 0 || p.Z > 400 {
				t.Fatalf("river point (%g,%g) outside world bounds", p.X, p.Z)
			}
		}
	}
	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file still present: %v", err)
	}
}

func TestLabelColorStable(t *testing.T) {
	if c := LabelColor(0); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("label 0 = %v, want black", c)
	}
	if LabelColor(7) != LabelColor(7) {
		t.Error("same label produced different colors")
	}
	if LabelColor(1) == LabelColor(2) {
		t.Error("adjacent labels produced identical colors")
	}
}
