package graph

import (
	"slices"

	"github.com/syssam/uow"
	"github.com/syssam/uow/cascade"
	"github.com/syssam/uow/identity"
	"github.com/syssam/uow/schema/edge"
)

// Resolver finds tracked instances by identity key. It is used to
// relate instances through foreign-key values when the reference itself
// is not loaded. *identity.Map implements it.
type Resolver interface {
	Lookup(uow.Key) (*uow.Instance, bool)
	All() []*uow.Instance
}

type linkKey struct {
	kind     Kind
	rel      *uow.Relationship
	from, to *uow.Instance
}

type builder struct {
	g       *Graph
	ids     Resolver
	primary map[*uow.Instance]*Node
	links   map[linkKey]*Node
	// refs indexes the stored foreign keys of ids, built on first use.
	refs *identity.Refs
}

// Build returns the dependency graph of the operations in res. Nodes are
// created in registration order of their instances. ids may be nil.
func Build(res *cascade.Result, ids Resolver) *Graph {
	b := &builder{
		g:       New(),
		ids:     ids,
		primary: make(map[*uow.Instance]*Node),
		links:   make(map[linkKey]*Node),
	}
	insts := slices.Clone(res.Order)
	slices.SortStableFunc(insts, func(a, b *uow.Instance) int {
		switch {
		case a.Seq() < b.Seq():
			return -1
		case a.Seq() > b.Seq():
			return 1
		}
		return 0
	})
	for _, inst := range insts {
		var kind Kind
		switch res.Op(inst) {
		case uow.OpInsert:
			kind = Insert
		case uow.OpUpdate:
			kind = Update
		case uow.OpDelete:
			kind = Delete
		default:
			continue
		}
		b.primary[inst] = b.g.AddNode(kind, inst)
	}
	nodes := slices.Clone(b.g.Nodes)
	for _, n := range nodes {
		switch n.Kind {
		case Insert, Update:
			b.saveEdges(n)
		case Delete:
			b.deleteEdges(n)
			b.survivorEdges(n)
		}
	}
	for _, n := range nodes {
		b.linkNodes(n)
	}
	return b.g
}

// saveEdges orders the insert of every referenced parent before n.
func (b *builder) saveEdges(n *Node) {
	for _, r := range n.Inst.Entity().Relationships {
		if r.Rel != uow.M2O {
			continue
		}
		parent := b.parent(n.Inst, r)
		if parent == nil {
			continue
		}
		pn := b.primary[parent]
		if pn == nil || pn.Kind != Insert {
			continue
		}
		if pn == n {
			if _, ok := n.Inst.Key(); ok {
				// A client-assigned key can reference its own row.
				continue
			}
		}
		e := b.g.AddEdge(pn, n, r, r.Nullable)
		if r.Nullable && (r.PostUpdate || r.Inverse.PostUpdate) {
			// Cannot fail: the edge was just added as breakable.
			_, _ = b.g.Break(e)
		}
	}
}

// deleteEdges orders the delete of n before the delete of every parent
// it references, in storage or in memory.
func (b *builder) deleteEdges(n *Node) {
	for _, r := range n.Inst.Entity().Relationships {
		if r.Rel != uow.M2O {
			continue
		}
		for _, p := range b.parents(n.Inst, r) {
			pn := b.primary[p]
			if pn == nil || pn.Kind != Delete || pn == n {
				continue
			}
			b.g.AddEdge(n, pn, r, r.Nullable)
		}
	}
}

// survivorEdges handles the children of a deleted parent that are not
// deleted themselves: re-parented children are updated first, and the
// foreign keys of ON DELETE SET NULL children are cleared first.
func (b *builder) survivorEdges(n *Node) {
	for _, r := range n.Inst.Entity().Relationships {
		if r.Rel != uow.O2M && r.Rel != uow.O2O {
			continue
		}
		inv := r.Inverse
		for _, c := range b.children(n.Inst, r) {
			cn := b.primary[c]
			if cn != nil && cn.Kind == Delete {
				continue
			}
			if cn != nil && b.parent(c, inv) != n.Inst {
				b.g.AddEdge(cn, n, inv, false)
				continue
			}
			if (r.OnDelete == edge.SetNull || inv.OnDelete == edge.SetNull) && inv.Nullable {
				nf := b.g.AddNode(NullifyFK, c)
				nf.Rel, nf.Target = inv, n.Inst
				b.g.AddEdge(nf, n, inv, false)
				if cn != nil {
					b.g.AddEdge(nf, cn, inv, false)
				}
			}
		}
	}
}

// linkNodes adds the join table operations of the M2M relationships of n.
func (b *builder) linkNodes(n *Node) {
	for _, r := range n.Inst.Entity().Relationships {
		if r.Rel != uow.M2M {
			continue
		}
		switch n.Kind {
		case Insert, Update:
			for _, t := range n.Inst.Added(r) {
				if b.deleted(t) {
					continue
				}
				l := b.link(Link, r, n.Inst, t)
				b.after(l, n.Inst)
				b.after(l, t)
			}
			for _, t := range n.Inst.Removed(r) {
				l := b.link(Unlink, r, n.Inst, t)
				b.before(l, n.Inst)
				b.before(l, t)
			}
		case Delete:
			for _, t := range n.Inst.CommittedRelated(r) {
				l := b.link(Unlink, r, n.Inst, t)
				b.before(l, n.Inst)
				b.before(l, t)
			}
		}
	}
}

func (b *builder) link(kind Kind, r *uow.Relationship, from, to *uow.Instance) *Node {
	if !r.WritesLinks() {
		r, from, to = r.Inverse, to, from
	}
	k := linkKey{kind: kind, rel: r, from: from, to: to}
	if n, ok := b.links[k]; ok {
		return n
	}
	n := b.g.AddNode(kind, from)
	n.Rel, n.Target = r, to
	b.links[k] = n
	return n
}

// after orders n after the insert of inst, if any.
func (b *builder) after(n *Node, inst *uow.Instance) {
	if pn := b.primary[inst]; pn != nil && pn.Kind == Insert {
		b.g.AddEdge(pn, n, n.Rel, false)
	}
}

// before orders n before the delete of inst, if any.
func (b *builder) before(n *Node, inst *uow.Instance) {
	if pn := b.primary[inst]; pn != nil && pn.Kind == Delete {
		b.g.AddEdge(n, pn, n.Rel, false)
	}
}

func (b *builder) deleted(inst *uow.Instance) bool {
	n := b.primary[inst]
	return n != nil && n.Kind == Delete
}

// parent returns the instance currently referenced by the M2O relationship
// r of inst, falling back to the foreign-key value.
func (b *builder) parent(inst *uow.Instance, r *uow.Relationship) *uow.Instance {
	if rel := inst.Related(r); len(rel) > 0 {
		return rel[0]
	}
	if len(inst.Removed(r)) > 0 {
		return nil
	}
	return b.lookup(r.Target, inst.ForeignKey(r))
}

// parents returns the instances referenced by r in storage and in memory.
func (b *builder) parents(inst *uow.Instance, r *uow.Relationship) []*uow.Instance {
	var out []*uow.Instance
	add := func(p *uow.Instance) {
		if p != nil && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, p := range inst.CommittedRelated(r) {
		add(p)
	}
	for _, p := range inst.Related(r) {
		add(p)
	}
	add(b.lookup(r.Target, inst.CommittedForeignKey(r)))
	return out
}

// children returns the instances whose stored foreign key references
// parent through the O2M or O2O relationship r.
func (b *builder) children(parent *uow.Instance, r *uow.Relationship) []*uow.Instance {
	out := parent.CommittedRelated(r)
	key, ok := parent.Key()
	if b.ids == nil || !ok {
		return out
	}
	if b.refs == nil {
		b.refs = identity.NewRefs(b.ids.All()...)
	}
	for _, ref := range b.refs.Lookup(key) {
		if ref.Rel == r.Inverse && !slices.Contains(out, ref.Inst) {
			out = append(out, ref.Inst)
		}
	}
	return out
}

func (b *builder) lookup(e *uow.Entity, fk any) *uow.Instance {
	if fk == nil || b.ids == nil {
		return nil
	}
	key, err := uow.NewKey(e, fk)
	if err != nil {
		return nil
	}
	inst, _ := b.ids.Lookup(key)
	return inst
}
