package models

// GraphSnapshot is the serializable structure of a dependency graph, with
// nodes and edges in canonical order.
type GraphSnapshot struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}
