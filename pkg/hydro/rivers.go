package hydro

import (
	"sort"

	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/geom"
)

// River is one traced channel from headwater to outlet or junction.
// Points are pixel-space cell centers; Acc holds the flow accumulation at
// each point.
type River struct {
	Points []geom.Point
	Acc    []uint32
	MaxAcc uint32
}

// TraceRivers marks the river network: every cell reachable upstream from
// a sea or edge outlet whose flow accumulation meets minAcc. The returned
// mask is 0 for non-river cells and the cell's accumulation otherwise.
func TraceRivers(g *dem.Grid, f *FlowField, minAcc uint32, seaLevel uint16) []uint32 {
	n := f.Width * f.Height
	mask := make([]uint32, n)

	var outlets []int
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			if g.Data[i] <= seaLevel {
				// Sea cell fed by a qualifying land channel.
				for d := 0; d < 8; d++ {
					nx, ny := x+dirDX[d], y+dirDY[d]
					if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
						continue
					}
					ni := ny*f.Width + nx
					if g.Data[ni] > seaLevel && f.Acc[ni] >= minAcc && f.FlowsInto(nx, ny, x, y) {
						outlets = append(outlets, i)
						break
					}
				}
			} else if f.DrainsOffGrid(i) && f.Acc[i] >= minAcc {
				outlets = append(outlets, i)
			}
		}
	}

	// Reverse-flow BFS from each outlet; a cell is visited at most once.
	queue := make([]int, 0, 1024)
	var upstream []int
	for _, o := range outlets {
		if mask[o] != 0 {
			continue
		}
		mask[o] = f.Acc[o]
		queue = append(queue[:0], o)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			upstream = f.upstreamNeighbors(cur%f.Width, cur/f.Width, upstream[:0])
			for _, ni := range upstream {
				if mask[ni] == 0 && f.Acc[ni] >= minAcc {
					mask[ni] = f.Acc[ni]
					queue = append(queue, ni)
				}
			}
		}
	}

	return mask
}

// ExtractRivers converts the river mask into discrete polyline paths. A
// headwater is a river cell no other river cell flows into. Headwaters
// are processed in descending accumulation order so the largest channels
// claim shared downstream segments first; later traces terminate at the
// junction cell where they meet an already claimed channel. Paths shorter
// than three points are dropped as unusable for curve fitting.
func ExtractRivers(mask []uint32, f *FlowField) []River {
	var headwaters []int
	var upstream []int
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			if mask[i] == 0 {
				continue
			}
			hasRiverUpstream := false
			upstream = f.upstreamNeighbors(x, y, upstream[:0])
			for _, ni := range upstream {
				if mask[ni] != 0 {
					hasRiverUpstream = true
					break
				}
			}
			if !hasRiverUpstream {
				headwaters = append(headwaters, i)
			}
		}
	}

	sort.Slice(headwaters, func(a, b int) bool {
		return mask[headwaters[a]] > mask[headwaters[b]]
	})

	claimed := make([]bool, len(mask))
	var rivers []River

	for _, hw := range headwaters {
		if claimed[hw] {
			continue
		}
		r := River{}
		cur := hw
		for {
			if claimed[cur] {
				// Confluence into an already traced river; record the
				// junction and stop.
				r.append(f, cur)
				break
			}
			claimed[cur] = true
			r.append(f, cur)

			next, ok := f.Downstream(cur)
			if !ok || mask[next] == 0 {
				break
			}
			cur = next
		}
		if len(r.Points) >= 3 {
			rivers = append(rivers, r)
		}
	}

	return rivers
}

func (r *River) append(f *FlowField, i int) {
	x, y := i%f.Width, i/f.Width
	r.Points = append(r.Points, geom.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
	acc := f.Acc[i]
	r.Acc = append(r.Acc, acc)
	if acc > r.MaxAcc {
		r.MaxAcc = acc
	}
}
