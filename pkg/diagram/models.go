// Package diagram implements the Diagram Model Store, per spec.md §1's
// out-of-scope-but-persisted secondary responsibility and SPEC_FULL.md
// SUPPLEMENTED FEATURES item 5: a minimal CRUD contract for GLSP
// diagrams (nodes, edges) with no layout engine and no SVG export.
package diagram

import "time"

// NodeKind distinguishes a diagram node's role, per
// original_source/glsp-mcp-server's component/pipeline-stage node
// vocabulary.
type NodeKind string

const (
	NodeComponent NodeKind = "component"
	NodeStage     NodeKind = "stage"
	NodeSensor    NodeKind = "sensor"
	NodeAnnotation NodeKind = "annotation"
)

// Position is a node's location on the diagram canvas. Purely data:
// this store never computes or validates layout, per the explicit
// Non-goal "no layout engine".
type Position struct {
	X float64
	Y float64
}

// Node is one diagram node.
type Node struct {
	ID            string
	Kind          NodeKind
	ComponentName string // set when Kind == NodeComponent
	Label         string
	Position      Position
}

// Edge is one directed connection between two nodes.
type Edge struct {
	ID   string
	From string
	To   string
	Kind string
}

// Diagram is the full persisted unit, per SPEC_FULL.md's
// "Diagram {id, name, nodes, edges}" contract.
type Diagram struct {
	ID        string
	Name      string
	Nodes     []Node
	Edges     []Edge
	CreatedAt time.Time
	UpdatedAt time.Time
}
