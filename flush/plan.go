package flush

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/uow"
	"github.com/syssam/uow/cascade"
	"github.com/syssam/uow/graph"
)

// Batch is a group of operations of the same kind on the same table.
// The operations of a batch do not depend on each other.
type Batch struct {
	Kind   graph.Kind
	Entity *uow.Entity
	// Rel is set for the kinds that write one relationship.
	Rel   *uow.Relationship
	Nodes []*graph.Node
}

// Table returns the table written by the batch.
func (b *Batch) Table() string {
	if b.Kind == graph.Link || b.Kind == graph.Unlink {
		return b.Rel.JoinTable
	}
	return b.Entity.Table
}

// String returns a readable form of the batch, e.g. "insert nodes x3".
func (b *Batch) String() string {
	return fmt.Sprintf("%s %s x%d", b.Kind, b.Table(), len(b.Nodes))
}

// Plan is the ordered execution plan of a flush. Batches of one wave are
// independent from each other; every wave depends only on earlier waves.
type Plan struct {
	Graph *graph.Graph
	Waves [][]*Batch
}

// Batches returns the batches of the plan in execution order.
func (p *Plan) Batches() []*Batch {
	var out []*Batch
	for _, w := range p.Waves {
		out = append(out, w...)
	}
	return out
}

// Nodes returns the operations of the plan in execution order.
func (p *Plan) Nodes() []*graph.Node {
	var out []*graph.Node
	for _, b := range p.Batches() {
		out = append(out, b.Nodes...)
	}
	return out
}

// Empty reports if the plan has no operations.
func (p *Plan) Empty() bool { return len(p.Waves) == 0 }

// String returns the plan one operation per line, grouped by wave.
func (p *Plan) String() string {
	var b strings.Builder
	for i, w := range p.Waves {
		fmt.Fprintf(&b, "wave %d\n", i+1)
		for _, batch := range w {
			fmt.Fprintf(&b, "  %s\n", batch)
			for _, n := range batch.Nodes {
				fmt.Fprintf(&b, "    %s\n", n)
			}
		}
	}
	return b.String()
}

// NewPlan prepares the instances of res for writing, builds their
// dependency graph and orders it. ids may be nil.
func NewPlan(res *cascade.Result, ids graph.Resolver) (*Plan, error) {
	if err := Prepare(res); err != nil {
		return nil, err
	}
	return Order(graph.Build(res, ids))
}

// Prepare assigns the client-side defaults of the instances to insert,
// and their identity keys when their primary key is known. Instances to
// update get the update defaults of their unchanged fields.
func Prepare(res *cascade.Result) error {
	for _, inst := range res.Instances(uow.OpUpdate) {
		if !rowChanged(inst) {
			continue
		}
		for _, f := range inst.Entity().Fields {
			if !f.HasUpdateDefault() || inst.Attributes().Dirty(f.Name) {
				continue
			}
			v, err := f.UpdateDefaultValue()
			if err != nil {
				return fmt.Errorf("uow: %s.%s: %w", inst.Entity().Name, f.Name, err)
			}
			if err := inst.Set(f.Name, v); err != nil {
				return err
			}
		}
	}
	for _, inst := range res.Instances(uow.OpInsert) {
		for _, f := range inst.Entity().Fields {
			if inst.Attributes().IsSet(f.Name) || !f.HasDefault() {
				continue
			}
			v, err := f.DefaultValue()
			if err != nil {
				return fmt.Errorf("uow: %s.%s: %w", inst.Entity().Name, f.Name, err)
			}
			if err := inst.Set(f.Name, v); err != nil {
				return err
			}
		}
		if _, ok := inst.PrimaryKey(); ok {
			if err := inst.UpdateKey(); err != nil {
				return err
			}
		}
	}
	return nil
}

// rowChanged reports if the row of inst itself is written by its update,
// not only the rows of its collections.
func rowChanged(inst *uow.Instance) bool {
	attrs := inst.Attributes()
	if len(attrs.Diff()) > 0 {
		return true
	}
	for _, r := range inst.Entity().Relationships {
		if r.Rel == uow.M2O && attrs.RefChanged(r.Name) {
			return true
		}
	}
	return false
}

// Order resolves the cycles of g and sorts it into waves.
func Order(g *graph.Graph) (*Plan, error) {
	if err := breakCycles(g); err != nil {
		return nil, err
	}
	return layers(g)
}

// breakCycles breaks every cycle of g at its first breakable edge, in
// creation order, until g is acyclic. Edges are created in registration
// order of the dependent instance.
func breakCycles(g *graph.Graph) error {
	for {
		adj := g.Adjacency()
		broken := false
		for _, scc := range tarjanSCC(len(g.Nodes), adj) {
			if !cyclic(scc, adj) {
				continue
			}
			in := make(map[int]bool, len(scc))
			for _, id := range scc {
				in[id] = true
			}
			var victim *graph.Edge
			for _, e := range g.Edges() {
				if e.Breakable && in[e.From.ID] && in[e.To.ID] {
					victim = e
					break
				}
			}
			if victim == nil {
				return unresolvable(g, scc)
			}
			if _, err := g.Break(victim); err != nil {
				return err
			}
			broken = true
		}
		if !broken {
			return nil
		}
	}
}

func unresolvable(g *graph.Graph, scc []int) error {
	nodes := make([]*graph.Node, len(scc))
	for i, id := range scc {
		nodes[i] = g.Nodes[id]
	}
	slices.SortFunc(nodes, compareNodes)
	err := &uow.UnresolvableDependencyError{}
	for _, n := range nodes {
		if s := n.Inst.String(); !slices.Contains(err.Instances, s) {
			err.Instances = append(err.Instances, s)
		}
	}
	return err
}

// tarjanSCC returns the strongly connected components of the graph with
// n nodes and the given adjacency.
func tarjanSCC(n int, adj [][]*graph.Edge) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}
	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true
		for _, e := range adj[v] {
			w := e.To.ID
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}
	for v := 0; v < n; v++ {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// cyclic reports if scc has more than one node or a self loop.
func cyclic(scc []int, adj [][]*graph.Edge) bool {
	if len(scc) > 1 {
		return true
	}
	for _, e := range adj[scc[0]] {
		if e.To.ID == scc[0] {
			return true
		}
	}
	return false
}

type groupKey struct {
	kind   graph.Kind
	entity *uow.Entity
	rel    *uow.Relationship
}

// layers sorts the acyclic graph g with Kahn's algorithm. Each layer
// holds the nodes whose dependencies are in earlier layers, grouped
// into batches by kind and table. Batches are ordered by the lowest
// registration order of their nodes.
func layers(g *graph.Graph) (*Plan, error) {
	adj := g.Adjacency()
	indeg := make([]int, len(g.Nodes))
	for _, e := range g.Edges() {
		indeg[e.To.ID]++
	}
	var ready []*graph.Node
	for _, n := range g.Nodes {
		if indeg[n.ID] == 0 {
			ready = append(ready, n)
		}
	}
	plan := &Plan{Graph: g}
	done := 0
	for len(ready) > 0 {
		plan.Waves = append(plan.Waves, group(ready))
		done += len(ready)
		var next []*graph.Node
		for _, n := range ready {
			for _, e := range adj[n.ID] {
				if indeg[e.To.ID]--; indeg[e.To.ID] == 0 {
					next = append(next, e.To)
				}
			}
		}
		ready = next
	}
	if done != len(g.Nodes) {
		var left []int
		for _, n := range g.Nodes {
			if indeg[n.ID] > 0 {
				left = append(left, n.ID)
			}
		}
		return nil, unresolvable(g, left)
	}
	return plan, nil
}

func group(nodes []*graph.Node) []*Batch {
	nodes = slices.Clone(nodes)
	slices.SortFunc(nodes, compareNodes)
	var (
		batches []*Batch
		index   = make(map[groupKey]*Batch)
	)
	for _, n := range nodes {
		k := groupKey{kind: n.Kind, entity: n.Inst.Entity()}
		switch n.Kind {
		case graph.Link, graph.Unlink, graph.PostUpdate, graph.NullifyFK:
			k.rel = n.Rel
		}
		b, ok := index[k]
		if !ok {
			b = &Batch{Kind: k.kind, Entity: k.entity, Rel: k.rel}
			index[k] = b
			batches = append(batches, b)
		}
		b.Nodes = append(b.Nodes, n)
	}
	return batches
}

func compareNodes(a, b *graph.Node) int {
	if c := cmp.Compare(a.Seq(), b.Seq()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
