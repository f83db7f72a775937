package graph

import (
	"fmt"

	"github.com/syssam/uow"
)

// Kind is the kind of a pending operation.
type Kind uint8

// Operation kinds.
const (
	Insert Kind = iota + 1
	Update
	Delete
	// PostUpdate assigns a foreign key that was left NULL by the insert
	// (or update) of its row, once the referenced row exists.
	PostUpdate
	// NullifyFK clears a foreign key before the referenced row is deleted.
	NullifyFK
	// Link inserts a row of a M2M join table.
	Link
	// Unlink deletes a row of a M2M join table.
	Unlink
)

var kindNames = [...]string{
	Insert:     "insert",
	Update:     "update",
	Delete:     "delete",
	PostUpdate: "post-update",
	NullifyFK:  "nullify",
	Link:       "link",
	Unlink:     "unlink",
}

// String returns the kind name.
func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is one pending operation.
type Node struct {
	ID   int
	Kind Kind
	Inst *uow.Instance
	// Rel is the relationship written by PostUpdate, NullifyFK, Link and
	// Unlink nodes. For Link and Unlink it is the side that writes links.
	Rel *uow.Relationship
	// Target is the instance referenced by Rel.
	Target *uow.Instance
	// Deferred lists the M2O relationships of an Insert or Update whose
	// foreign key is written by a PostUpdate node.
	Deferred []*uow.Relationship
}

// Seq returns the registration order of the instance of the node.
func (n *Node) Seq() uint64 { return n.Inst.Seq() }

// IsDeferred reports if the foreign key of r is written by a PostUpdate.
func (n *Node) IsDeferred(r *uow.Relationship) bool {
	for _, d := range n.Deferred {
		if d == r {
			return true
		}
	}
	return false
}

// String returns a readable form of the node, e.g. "insert Node(pending#3)".
func (n *Node) String() string {
	switch n.Kind {
	case Insert, Update, Delete:
		return n.Kind.String() + " " + n.Inst.String()
	default:
		return fmt.Sprintf("%s %s.%s -> %s", n.Kind, n.Inst, n.Rel.Name, n.Target)
	}
}

// Edge orders two nodes: From runs before To.
type Edge struct {
	From, To *Node
	// Rel is the relationship that produced the edge, if any.
	Rel *uow.Relationship
	// Breakable edges may be removed to resolve a cycle.
	Breakable bool
	removed   bool
}

// String returns a readable form of the edge.
func (e *Edge) String() string {
	s := e.From.String() + " -> " + e.To.String()
	if e.Rel != nil {
		s += " (" + e.Rel.String() + ")"
	}
	return s
}

type edgeKey struct {
	from, to int
	rel      *uow.Relationship
}

// Graph holds the operations of one flush and their ordering constraints.
// It is derived per flush and never stored.
type Graph struct {
	Nodes []*Node
	edges []*Edge
	index map[edgeKey]*Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[edgeKey]*Edge)}
}

// AddNode adds an operation on inst.
func (g *Graph) AddNode(kind Kind, inst *uow.Instance) *Node {
	n := &Node{ID: len(g.Nodes), Kind: kind, Inst: inst}
	g.Nodes = append(g.Nodes, n)
	return n
}

// AddEdge orders from before to. Adding an existing edge returns it; a
// repeated edge is breakable only if all its additions are.
func (g *Graph) AddEdge(from, to *Node, rel *uow.Relationship, breakable bool) *Edge {
	k := edgeKey{from: from.ID, to: to.ID, rel: rel}
	if e, ok := g.index[k]; ok && !e.removed {
		e.Breakable = e.Breakable && breakable
		return e
	}
	e := &Edge{From: from, To: to, Rel: rel, Breakable: breakable}
	g.edges = append(g.edges, e)
	g.index[k] = e
	return e
}

// Edges returns the edges of the graph in creation order.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !e.removed {
			edges = append(edges, e)
		}
	}
	return edges
}

// Adjacency returns the outgoing edges of every node, indexed by node ID.
func (g *Graph) Adjacency() [][]*Edge {
	adj := make([][]*Edge, len(g.Nodes))
	for _, e := range g.edges {
		if !e.removed {
			adj[e.From.ID] = append(adj[e.From.ID], e)
		}
	}
	return adj
}

// Break removes a breakable edge and adds the operation that replaces it:
//
//   - parent insert -> child insert/update: the child is written with a
//     NULL foreign key, and a PostUpdate node sets it after both.
//   - child delete -> parent delete: a NullifyFK node clears the foreign
//     key of the child before both deletes.
func (g *Graph) Break(e *Edge) (*Node, error) {
	if e.removed {
		return nil, fmt.Errorf("graph: edge %s was already broken", e)
	}
	if !e.Breakable || e.Rel == nil {
		return nil, fmt.Errorf("graph: edge %s cannot be broken", e)
	}
	var n *Node
	switch {
	case e.From.Kind == Insert && (e.To.Kind == Insert || e.To.Kind == Update):
		child := e.To
		e.removed = true
		child.Deferred = append(child.Deferred, e.Rel)
		n = g.AddNode(PostUpdate, child.Inst)
		n.Rel, n.Target = e.Rel, e.From.Inst
		g.AddEdge(e.From, n, e.Rel, false)
		g.AddEdge(child, n, e.Rel, false)
	case e.From.Kind == Delete && e.To.Kind == Delete:
		e.removed = true
		n = g.AddNode(NullifyFK, e.From.Inst)
		n.Rel, n.Target = e.Rel, e.To.Inst
		g.AddEdge(n, e.To, e.Rel, false)
		g.AddEdge(n, e.From, e.Rel, false)
	default:
		return nil, fmt.Errorf("graph: edge %s cannot be broken", e)
	}
	return n, nil
}
