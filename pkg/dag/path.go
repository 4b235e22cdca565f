package dag

// CriticalPath returns the longest weighted root-to-leaf path and its total
// weight. Weights are supplied externally per node; a node absent from the
// map weighs 1. Edge traversal itself carries no weight.
func (d *DAG) CriticalPath(weights map[string]float64) ([]string, float64, error) {
	order, err := d.TopologicalSort()
	if err != nil {
		return nil, 0, err
	}
	if len(order) == 0 {
		return nil, 0, nil
	}

	weight := func(id string) float64 {
		if w, ok := weights[id]; ok {
			return w
		}
		return 1
	}

	dist := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		dist[id] = weight(id)
	}
	for _, id := range order {
		ni, _ := d.lookup(id)
		for _, ci := range d.sortedNeighbors(ni) {
			child := d.nodes[ci].id
			if cand := dist[id] + weight(child); cand > dist[child] {
				dist[child] = cand
				prev[child] = id
			}
		}
	}

	best := order[0]
	for _, id := range order[1:] {
		if dist[id] > dist[best] {
			best = id
		}
	}

	var path []string
	for id := best; ; {
		path = append(path, id)
		p, ok := prev[id]
		if !ok {
			break
		}
		id = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[best], nil
}
