package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
	"github.com/syssam/uow/cascade"
	"github.com/syssam/uow/graph"
	"github.com/syssam/uow/identity"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

func registry(t *testing.T) *uow.Registry {
	t.Helper()
	reg, err := uow.NewRegistry(
		uow.Schema{
			Name:   "User",
			Fields: []uow.Field{field.Int64("id"), field.String("name")},
			Edges: []uow.Edge{
				edge.To("posts", "Post").OnDelete(edge.SetNull),
				edge.To("groups", "Group"),
			},
		},
		uow.Schema{
			Name:   "Post",
			Fields: []uow.Field{field.Int64("id"), field.String("title")},
			Edges:  []uow.Edge{edge.From("author", "User").Ref("posts").Unique()},
		},
		uow.Schema{
			Name:   "Group",
			Fields: []uow.Field{field.Int64("id")},
			Edges:  []uow.Edge{edge.From("users", "User").Ref("groups")},
		},
	)
	require.NoError(t, err)
	return reg
}

func instance(t *testing.T, reg *uow.Registry, name string, seq uint64, row map[string]any) *uow.Instance {
	t.Helper()
	e, ok := reg.Entity(name)
	require.True(t, ok)
	inst := e.New()
	state := uow.Pending
	if row != nil {
		require.NoError(t, inst.Load(row))
		state = uow.Persistent
	}
	inst.Attach(nil, seq, state)
	return inst
}

func edges(g *graph.Graph) []string {
	var out []string
	for _, e := range g.Edges() {
		out = append(out, e.String())
	}
	return out
}

func build(t *testing.T, in cascade.Input, ids graph.Resolver) *graph.Graph {
	t.Helper()
	res, err := cascade.Resolve(in)
	require.NoError(t, err)
	return graph.Build(res, ids)
}

func TestBuild_Insert(t *testing.T) {
	reg := registry(t)
	post := instance(t, reg, "Post", 1, nil)
	user := instance(t, reg, "User", 2, nil)
	require.NoError(t, post.SetRef("author", user))

	g := build(t, cascade.Input{Saved: []*uow.Instance{post}}, nil)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "insert Post(pending#1)", g.Nodes[0].String())
	assert.Equal(t, []string{"insert User(pending#2) -> insert Post(pending#1) (Post.author)"}, edges(g))
	assert.True(t, g.Edges()[0].Breakable)
}

func TestBuild_ForeignKeyLookup(t *testing.T) {
	reg := registry(t)
	user := instance(t, reg, "User", 1, nil)
	require.NoError(t, user.Set("id", 5))
	require.NoError(t, user.UpdateKey())
	post := instance(t, reg, "Post", 2, nil)
	require.NoError(t, post.Set("author_id", 5))

	ids := identity.New()
	key, _ := user.Key()
	require.NoError(t, ids.Register(user, key))
	g := build(t, cascade.Input{Saved: []*uow.Instance{user, post}}, ids)
	assert.Equal(t, []string{"insert User(5) -> insert Post(pending#2) (Post.author)"}, edges(g))
}

func TestBuild_SetNull(t *testing.T) {
	reg := registry(t)
	user := instance(t, reg, "User", 1, map[string]any{"id": 1, "name": "a8m"})
	post := instance(t, reg, "Post", 2, map[string]any{"id": 1, "title": "x", "author_id": 1})
	ids := identity.New()
	for _, inst := range []*uow.Instance{user, post} {
		key, _ := inst.Key()
		require.NoError(t, ids.Register(inst, key))
	}

	g := build(t, cascade.Input{Deleted: []*uow.Instance{user}}, ids)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, graph.NullifyFK, g.Nodes[1].Kind)
	assert.Equal(t, []string{"nullify Post(1).author -> User(1) -> delete User(1) (Post.author)"}, edges(g))
}

func TestBuild_Unlink(t *testing.T) {
	reg := registry(t)
	user := instance(t, reg, "User", 1, map[string]any{"id": 1, "name": "a8m"})
	group := instance(t, reg, "Group", 2, map[string]any{"id": 1})
	groups, _ := user.Entity().Relationship("groups")
	user.RecordRelated(groups, group)

	g := build(t, cascade.Input{Deleted: []*uow.Instance{group}}, nil)
	require.Len(t, g.Nodes, 2)
	unlink := g.Nodes[1]
	assert.Equal(t, graph.Unlink, unlink.Kind)
	assert.Same(t, groups, unlink.Rel)
	assert.Same(t, user, unlink.Inst)
	assert.Equal(t, []string{"unlink User(1).groups -> Group(1) -> delete Group(1) (User.groups)"}, edges(g))
}

func TestGraph_Break(t *testing.T) {
	reg := registry(t)
	post := instance(t, reg, "Post", 1, nil)
	user := instance(t, reg, "User", 2, nil)
	require.NoError(t, post.SetRef("author", user))
	g := build(t, cascade.Input{Saved: []*uow.Instance{post}}, nil)

	e := g.Edges()[0]
	n, err := g.Break(e)
	require.NoError(t, err)
	assert.Equal(t, graph.PostUpdate, n.Kind)
	assert.True(t, g.Nodes[0].IsDeferred(e.Rel))
	assert.Len(t, g.Edges(), 2)
	_, err = g.Break(e)
	assert.Error(t, err)
	_, err = g.Break(g.Edges()[0])
	assert.Error(t, err)
	assert.Equal(t, "post-update", graph.PostUpdate.String())
	assert.Equal(t, "Kind(42)", graph.Kind(42).String())
}
