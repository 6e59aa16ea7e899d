package domain

import "time"

// GraphKind identifies which kind of document a graph is.
type GraphKind string

const (
	GraphKindWorkspace   GraphKind = "workspace"
	GraphKindApplication GraphKind = "application"
	GraphKindInstruction GraphKind = "instruction"
)

// NodeKind identifies the variant of a node. A node's kind is fixed at
// creation; updates may only touch its data.
type NodeKind string

const (
	NodeKindApplication NodeKind = "application"
	NodeKindCollection  NodeKind = "collection"
	NodeKindInstruction NodeKind = "instruction"
	NodeKindSigner      NodeKind = "signer"
	NodeKindSysvar      NodeKind = "sysvar"
	NodeKindAccount     NodeKind = "account"
	NodeKindField       NodeKind = "field"
	NodeKindTask        NodeKind = "task"
)

// Data holds the kind-specific attributes of a graph or node
// (name, thumbnailUrl, ...).
type Data map[string]interface{}

// Merge returns a copy of d with the given changes shallow-merged on top.
// The receiver is not modified.
func (d Data) Merge(changes Data) Data {
	out := make(Data, len(d)+len(changes))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range changes {
		out[k] = v
	}
	return out
}

// Node is a typed element inside a graph.
type Node struct {
	ID   string   `json:"id" firestore:"id"`
	Kind NodeKind `json:"kind" firestore:"kind"`
	Data Data     `json:"data" firestore:"data"`
}

// GroupTag is the grouping label the visual layer derives from the node's
// kind (nodes of one kind share a compound parent on the canvas).
func (n Node) GroupTag() string {
	return string(n.Kind) + "s"
}

// Edge is a directed connection between two nodes of the same graph.
type Edge struct {
	ID     string `json:"id" firestore:"id"`
	Source string `json:"source" firestore:"source"`
	Target string `json:"target" firestore:"target"`
}

// Graph is one persisted workspace/application/instruction document.
// Graphs nest by shared id only: an application node inside a workspace
// carries the id of its own graph document.
type Graph struct {
	ID          string    `json:"id" firestore:"-"`
	Kind        GraphKind `json:"kind" firestore:"kind"`
	Data        Data      `json:"data" firestore:"data"`
	Nodes       []Node    `json:"nodes" firestore:"nodes"`
	Edges       []Edge    `json:"edges" firestore:"edges"`
	LastEventID string    `json:"last_event_id" firestore:"lastEventId"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id string) *Edge {
	for i := range g.Edges {
		if g.Edges[i].ID == id {
			return &g.Edges[i]
		}
	}
	return nil
}

// EdgesTouching returns every edge whose source or target is the given
// node id.
func (g *Graph) EdgesTouching(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID || e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Name is a convenience accessor for the graph's display name.
func (g *Graph) Name() string {
	if s, ok := g.Data["name"].(string); ok {
		return s
	}
	return ""
}
