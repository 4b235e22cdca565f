package dag

import "github.com/lprior-repo/oya-sub002/pkg/models"

// ToSnapshot captures the current structure with canonical ordering.
func (d *DAG) ToSnapshot() models.GraphSnapshot {
	return models.GraphSnapshot{Nodes: d.Nodes(), Edges: d.Edges()}
}

// FromSnapshot rebuilds a DAG from a snapshot. Validation runs as usual, so
// a snapshot that encodes a cycle or self-loop is rejected.
func FromSnapshot(s models.GraphSnapshot) (*DAG, error) {
	d := New()
	for _, id := range s.Nodes {
		if err := d.AddNode(id); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Edges {
		if err := d.AddEdge(e.From, e.To, e.Kind); err != nil {
			return nil, err
		}
	}
	return d, nil
}
