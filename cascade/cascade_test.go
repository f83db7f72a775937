package cascade_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
	"github.com/syssam/uow/cascade"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

func registry(t *testing.T) *uow.Registry {
	t.Helper()
	reg, err := uow.NewRegistry(
		uow.Schema{
			Name:   "Node",
			Fields: []uow.Field{field.Int64("id"), field.String("name")},
			Edges: []uow.Edge{
				edge.To("children", "Node").Cascade(edge.All),
				edge.From("parent", "Node").Ref("children").Unique(),
			},
		},
		uow.Schema{
			Name:   "User",
			Fields: []uow.Field{field.Int64("id"), field.String("name")},
			Edges: []uow.Edge{
				edge.To("posts", "Post").Cascade(edge.SaveUpdate | edge.DeleteOrphan),
			},
		},
		uow.Schema{
			Name:   "Post",
			Fields: []uow.Field{field.Int64("id"), field.String("title")},
			Edges: []uow.Edge{
				edge.From("author", "User").Ref("posts").Unique(),
			},
		},
		uow.Schema{
			Name:   "A",
			Fields: []uow.Field{field.Int64("id")},
			Edges:  []uow.Edge{edge.To("bs", "B")},
		},
		uow.Schema{
			Name:   "B",
			Fields: []uow.Field{field.Int64("id")},
			Edges:  []uow.Edge{edge.From("as", "A").Ref("bs")},
		},
	)
	require.NoError(t, err)
	return reg
}

func newInstance(t *testing.T, reg *uow.Registry, name string) *uow.Instance {
	t.Helper()
	e, ok := reg.Entity(name)
	require.True(t, ok)
	return e.New()
}

func loaded(t *testing.T, reg *uow.Registry, name string, row map[string]any) *uow.Instance {
	t.Helper()
	inst := newInstance(t, reg, name)
	require.NoError(t, inst.Load(row))
	inst.Attach(nil, 0, uow.Persistent)
	return inst
}

func rel(t *testing.T, inst *uow.Instance, name string) *uow.Relationship {
	t.Helper()
	r, ok := inst.Entity().Relationship(name)
	require.True(t, ok)
	return r
}

func TestResolve_SaveUpdate(t *testing.T) {
	reg := registry(t)
	root, child, grandchild := newInstance(t, reg, "Node"), newInstance(t, reg, "Node"), newInstance(t, reg, "Node")
	require.NoError(t, root.Append("children", child))
	require.NoError(t, child.Append("children", grandchild))

	res, err := cascade.Resolve(cascade.Input{Saved: []*uow.Instance{root}})
	require.NoError(t, err)
	assert.Equal(t, []*uow.Instance{root, child, grandchild}, res.Order)
	for _, inst := range res.Order {
		assert.Equal(t, uow.OpInsert, res.Op(inst))
	}
	assert.Equal(t, res.Order, res.Instances(uow.OpInsert))
}

func TestResolve_Persistent(t *testing.T) {
	reg := registry(t)
	parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
	clean := loaded(t, reg, "Node", map[string]any{"id": 2, "name": "c", "parent_id": 1})
	dirty := loaded(t, reg, "Node", map[string]any{"id": 3, "name": "d", "parent_id": 1})
	children := rel(t, parent, "children")
	parent.RecordRelated(children, clean)
	parent.RecordRelated(children, dirty)
	require.NoError(t, dirty.Set("name", "changed"))

	res, err := cascade.Resolve(cascade.Input{Saved: []*uow.Instance{parent}})
	require.NoError(t, err)
	assert.Equal(t, uow.OpNone, res.Op(parent))
	assert.Equal(t, uow.OpNone, res.Op(clean))
	assert.Equal(t, uow.OpUpdate, res.Op(dirty))
	assert.True(t, res.Contains(clean))
}

func TestResolve_FixedPoint(t *testing.T) {
	reg := registry(t)
	a, b := newInstance(t, reg, "A"), newInstance(t, reg, "B")
	require.NoError(t, a.Append("bs", b))
	assert.Equal(t, []*uow.Instance{a}, b.Members("as"))

	res, err := cascade.Resolve(cascade.Input{Saved: []*uow.Instance{b}})
	require.NoError(t, err)
	assert.Equal(t, []*uow.Instance{b, a}, res.Order)

	again, err := cascade.Resolve(res.Input())
	require.NoError(t, err)
	assert.Equal(t, res.Order, again.Order)
	for _, inst := range res.Order {
		assert.Equal(t, res.Op(inst), again.Op(inst))
	}
}

func TestResolve_Delete(t *testing.T) {
	reg := registry(t)
	parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
	child := loaded(t, reg, "Node", map[string]any{"id": 2, "name": "c", "parent_id": 1})
	moved := loaded(t, reg, "Node", map[string]any{"id": 3, "name": "m", "parent_id": 1})
	children := rel(t, parent, "children")
	parent.RecordRelated(children, child)
	parent.RecordRelated(children, moved)
	// Still a child in storage, so the delete reaches it.
	require.NoError(t, moved.SetRef("parent", nil))
	require.NoError(t, child.Set("name", "changed"))

	res, err := cascade.Resolve(cascade.Input{
		Dirty:   []*uow.Instance{child, moved},
		Deleted: []*uow.Instance{parent},
	})
	require.NoError(t, err)
	for _, inst := range []*uow.Instance{parent, child, moved} {
		assert.Equal(t, uow.OpDelete, res.Op(inst), inst.String())
	}
	assert.Len(t, res.Instances(uow.OpDelete), 3)
}

func TestResolve_DeleteOrphan(t *testing.T) {
	reg := registry(t)
	user := loaded(t, reg, "User", map[string]any{"id": 1, "name": "a8m"})
	other := loaded(t, reg, "User", map[string]any{"id": 2, "name": "other"})
	orphan := loaded(t, reg, "Post", map[string]any{"id": 1, "title": "x", "author_id": 1})
	moved := loaded(t, reg, "Post", map[string]any{"id": 2, "title": "y", "author_id": 1})
	posts := rel(t, user, "posts")
	user.RecordRelated(posts, orphan)
	user.RecordRelated(posts, moved)

	require.NoError(t, user.Remove("posts", orphan, moved))
	require.NoError(t, other.Append("posts", moved))

	res, err := cascade.Resolve(cascade.Input{Dirty: []*uow.Instance{user, other, orphan, moved}})
	require.NoError(t, err)
	assert.Equal(t, uow.OpDelete, res.Op(orphan))
	assert.Equal(t, uow.OpUpdate, res.Op(moved))
}

func TestResolve_DeleteTransient(t *testing.T) {
	reg := registry(t)
	n := newInstance(t, reg, "Node")
	res, err := cascade.Resolve(cascade.Input{Deleted: []*uow.Instance{n}})
	require.NoError(t, err)
	assert.Empty(t, res.Order)
}

func TestResolve_Conflict(t *testing.T) {
	reg := registry(t)
	t.Run("insert", func(t *testing.T) {
		parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
		child := newInstance(t, reg, "Node")
		require.NoError(t, parent.Append("children", child))
		_, err := cascade.Resolve(cascade.Input{
			Saved:   []*uow.Instance{child},
			Deleted: []*uow.Instance{parent},
		})
		require.Error(t, err)
		var cerr *uow.CascadeConflictError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, [2]uow.Op{uow.OpInsert, uow.OpDelete}, cerr.Ops)
		assert.Equal(t, "Node.children", cerr.Via)
		assert.True(t, uow.IsCascadeConflict(err))
	})
	t.Run("explicit", func(t *testing.T) {
		parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
		child := loaded(t, reg, "Node", map[string]any{"id": 2, "name": "c", "parent_id": 1})
		parent.RecordRelated(rel(t, parent, "children"), child)
		_, err := cascade.Resolve(cascade.Input{
			Saved:   []*uow.Instance{child},
			Deleted: []*uow.Instance{parent},
		})
		assert.True(t, uow.IsCascadeConflict(err))
	})
	t.Run("derived", func(t *testing.T) {
		parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
		child := loaded(t, reg, "Node", map[string]any{"id": 2, "name": "c", "parent_id": 1})
		parent.RecordRelated(rel(t, parent, "children"), child)
		res, err := cascade.Resolve(cascade.Input{
			Saved:   []*uow.Instance{parent},
			Deleted: []*uow.Instance{child},
		})
		require.NoError(t, err)
		assert.Equal(t, uow.OpDelete, res.Op(child))
		assert.Equal(t, uow.OpNone, res.Op(parent))
	})
}

func TestResolve_DeleteReparented(t *testing.T) {
	reg := registry(t)
	parent := loaded(t, reg, "Node", map[string]any{"id": 1, "name": "p"})
	other := loaded(t, reg, "Node", map[string]any{"id": 2, "name": "o"})
	child := loaded(t, reg, "Node", map[string]any{"id": 3, "name": "c", "parent_id": 1})
	parent.RecordRelated(rel(t, parent, "children"), child)
	require.NoError(t, other.Append("children", child))

	res, err := cascade.Resolve(cascade.Input{
		Dirty:   []*uow.Instance{other, child},
		Deleted: []*uow.Instance{parent},
	})
	require.NoError(t, err)
	assert.Equal(t, uow.OpDelete, res.Op(parent))
	assert.Equal(t, uow.OpUpdate, res.Op(child))
	assert.Equal(t, uow.OpUpdate, res.Op(other))
}
