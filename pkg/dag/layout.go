package dag

import (
	"hash/fnv"
	"math"
)

// Position is a 2D layout hint for dashboard consumers. The core never
// renders anything; positions are advisory.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout computes force-directed positions for every live node. Initial
// placement is seeded from the node id so repeated calls over the same graph
// are reproducible.
func (d *DAG) Layout(iterations int) map[string]Position {
	ids := d.Nodes()
	pos := make(map[string]Position, len(ids))
	if len(ids) == 0 {
		return pos
	}
	for _, id := range ids {
		h := fnv.New64a()
		h.Write([]byte(id))
		seed := h.Sum64()
		angle := float64(seed%3600) / 3600 * 2 * math.Pi
		radius := 1 + float64((seed>>16)%1000)/1000
		pos[id] = Position{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
	}

	k := 1.0 / math.Sqrt(float64(len(ids))) // ideal spring length
	edges := d.Edges()
	for iter := 0; iter < iterations; iter++ {
		disp := make(map[string]Position, len(ids))

		// Repulsion between every pair.
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				dx, dy := pos[a].X-pos[b].X, pos[a].Y-pos[b].Y
				dist := math.Hypot(dx, dy)
				if dist < 1e-9 {
					dist, dx = 1e-9, 1e-9
				}
				f := k * k / dist
				disp[a] = Position{X: disp[a].X + dx/dist*f, Y: disp[a].Y + dy/dist*f}
				disp[b] = Position{X: disp[b].X - dx/dist*f, Y: disp[b].Y - dy/dist*f}
			}
		}

		// Attraction along edges.
		for _, e := range edges {
			dx, dy := pos[e.From].X-pos[e.To].X, pos[e.From].Y-pos[e.To].Y
			dist := math.Hypot(dx, dy)
			if dist < 1e-9 {
				continue
			}
			f := dist * dist / k
			disp[e.From] = Position{X: disp[e.From].X - dx/dist*f, Y: disp[e.From].Y - dy/dist*f}
			disp[e.To] = Position{X: disp[e.To].X + dx/dist*f, Y: disp[e.To].Y + dy/dist*f}
		}

		// Apply with a cooling cap on per-iteration movement.
		temp := 0.1 * (1 - float64(iter)/float64(iterations+1))
		for _, id := range ids {
			dx, dy := disp[id].X, disp[id].Y
			dist := math.Hypot(dx, dy)
			if dist > temp {
				dx, dy = dx/dist*temp, dy/dist*temp
			}
			pos[id] = Position{X: pos[id].X + dx, Y: pos[id].Y + dy}
		}
	}
	return pos
}
