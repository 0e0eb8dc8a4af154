package hydro

import (
	"math"
	"testing"

	"github.com/openterra/watershed/pkg/dem"
)

func TestStrahlerConfluence(t *testing.T) {
	data := make([]uint16, 25)
	for i := range data {
		data[i] = 1000
	}
	// Sink the tail cell below sea level.
	data[4*5+1] = 0
	g := mustGrid(t, 5, 5, data)

	f := &FlowField{Width: 5, Height: 5, Dir: make([]int8, 25)}
	for i := range f.Dir {
		f.Dir[i] = NoFlow
	}
	set := func(x, y int, d int8) { f.Dir[y*5+x] = d }
	// Two first-order streams meeting at (1,1), then a straight run south.
	set(0, 0, 3) // SE
	set(2, 0, 5) // SW
	set(1, 1, 4) // S
	set(1, 2, 4)
	set(1, 3, 4)
	if err := f.Accumulate(); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}

	order := strahlerOrder(g, f, 1, 0)

	at := func(x, y int) uint8 { return order[y*5+x] }
	if at(0, 0) != 1 || at(2, 0) != 1 {
		t.Errorf("headwaters have orders %d and %d, want 1", at(0, 0), at(2, 0))
	}
	if at(1, 1) != 2 {
		t.Errorf("confluence order = %d, want 2", at(1, 1))
	}
	// A single inflow does not raise the order.
	if at(1, 2) != 2 || at(1, 3) != 2 {
		t.Errorf("downstream orders = %d, %d, want 2", at(1, 2), at(1, 3))
	}
	// Sea cells are never channels, whatever their accumulation.
	if at(1, 4) != 0 {
		t.Errorf("sea cell order = %d, want 0", at(1, 4))
	}
}

func TestComputeMetricsTWI(t *testing.T) {
	g := valleyGrid(t, 16, 9)
	f := resolved(t, g, 0)
	ws := Delineate(g, f, 0)

	cfg := DefaultMetricsConfig()
	cfg.Width = 16
	cfg.Height = 9
	cfg.Altitude = dem.AltitudeMap{MinAltitude: 0, MaxAltitude: 200, TerrainSize: 16384}
	cfg.FlowThreshold = 10

	m := ComputeMetrics(g, f, ws, cfg)

	for i, v := range m.TWI {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("TWI[%d] = %v", i, v)
		}
	}

	// The valley floor accumulates far more flow over gentler slopes than
	// the ridge row, so it must come out wetter.
	floor := m.TWI[4*16+8]
	ridge := m.TWI[0*16+8]
	if floor <= ridge {
		t.Errorf("TWI floor %v <= ridge %v", floor, ridge)
	}

	if m.BasinCount != ws.Count {
		t.Errorf("basin count = %d, want %d", m.BasinCount, ws.Count)
	}
}

func TestComputeMetricsResample(t *testing.T) {
	data := []uint16{100, 200, 300, 400}
	g := mustGrid(t, 2, 2, data)

	f := &FlowField{Width: 2, Height: 2, Dir: []int8{NoFlow, NoFlow, NoFlow, NoFlow}}
	if err := f.Accumulate(); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}

	ws := &Watershed{Width: 2, Height: 2, Labels: []uint32{1, 2, 3, 4}, Count: 4}

	cfg := DefaultMetricsConfig()
	cfg.Width = 4
	cfg.Height = 4
	cfg.Altitude = dem.AltitudeMap{MinAltitude: 0, MaxAltitude: 100, TerrainSize: 1000}

	m := ComputeMetrics(g, f, ws, cfg)

	// Each source cell covers a 2x2 block of the doubled output raster.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := ws.Labels[(y/2)*2+x/2]
			if got := m.BasinLabels[y*4+x]; got != want {
				t.Fatalf("label at (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}
