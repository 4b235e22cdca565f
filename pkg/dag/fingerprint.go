package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint returns a stable hash of the graph structure. Nodes and edges
// are sorted canonically first so insertion order never affects the result.
func (d *DAG) Fingerprint() string {
	h := sha256.New()
	for _, id := range d.Nodes() {
		fmt.Fprintf(h, "n:%s\n", id)
	}
	for _, e := range d.Edges() {
		fmt.Fprintf(h, "e:%s>%s:%s\n", e.From, e.To, e.Kind)
	}
	return hex.EncodeToString(h.Sum(nil))
}
