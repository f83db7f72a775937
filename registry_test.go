package uow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

func testRegistry(t *testing.T) *uow.Registry {
	t.Helper()
	reg, err := uow.NewRegistry(
		uow.Schema{
			Name: "User",
			Fields: []uow.Field{
				field.Int64("id"),
				field.String("name"),
			},
			Edges: []uow.Edge{
				edge.To("posts", "Post").Cascade(edge.SaveUpdate | edge.DeleteOrphan),
				edge.To("groups", "Group"),
				edge.To("profile", "Profile").Unique(),
			},
		},
		uow.Schema{
			Name: "Post",
			Fields: []uow.Field{
				field.Int64("id"),
				field.String("title"),
				field.Int64("author_id"),
			},
			Edges: []uow.Edge{
				edge.From("author", "User").Ref("posts").Unique().Field("author_id").Required(),
			},
		},
		uow.Schema{
			Name:   "Group",
			Fields: []uow.Field{field.Int64("id"), field.String("name")},
			Edges: []uow.Edge{
				edge.From("users", "User").Ref("groups"),
			},
		},
		uow.Schema{
			Name:   "Profile",
			Fields: []uow.Field{field.UUID("id").Default(uuidNew)},
		},
		uow.Schema{
			Name: "Node",
			Fields: []uow.Field{
				field.Int64("id"),
				field.String("name"),
			},
			Edges: []uow.Edge{
				edge.To("children", "Node").Cascade(edge.All),
				edge.From("parent", "Node").Ref("children").Unique(),
			},
		},
	)
	require.NoError(t, err)
	return reg
}

func entity(t *testing.T, reg *uow.Registry, name string) *uow.Entity {
	t.Helper()
	e, ok := reg.Entity(name)
	require.True(t, ok, "entity %s", name)
	return e
}

func TestRegistry_Tables(t *testing.T) {
	reg := testRegistry(t)
	assert.Equal(t, "users", entity(t, reg, "User").Table)
	assert.Equal(t, "posts", entity(t, reg, "Post").Table)
	assert.Equal(t, "nodes", entity(t, reg, "Node").Table)
	var names []string
	for _, e := range reg.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"User", "Post", "Group", "Profile", "Node"}, names)
}

func TestRegistry_Relationships(t *testing.T) {
	reg := testRegistry(t)
	user, post := entity(t, reg, "User"), entity(t, reg, "Post")

	posts, ok := user.Relationship("posts")
	require.True(t, ok)
	author, ok := post.Relationship("author")
	require.True(t, ok)
	assert.Equal(t, uow.O2M, posts.Rel)
	assert.Equal(t, uow.M2O, author.Rel)
	assert.Same(t, author, posts.Inverse)
	assert.Same(t, posts, author.Inverse)
	assert.Equal(t, "author_id", posts.Column)
	assert.Equal(t, "author_id", author.Column)
	assert.False(t, author.Nullable)
	assert.False(t, posts.Nullable)
	assert.True(t, posts.Cascade.Has(edge.DeleteOrphan))
	assert.True(t, author.OwnsFK())
	assert.Equal(t, "author_id", author.ForeignKey().Name)

	groups, ok := user.Relationship("groups")
	require.True(t, ok)
	assert.Equal(t, uow.M2M, groups.Rel)
	assert.Equal(t, "user_groups", groups.JoinTable)
	assert.Equal(t, [2]string{"user_id", "group_id"}, groups.JoinCols)
	assert.Equal(t, [2]string{"group_id", "user_id"}, groups.Inverse.JoinCols)
	assert.Equal(t, uow.M2M, groups.Inverse.Rel)
	assert.True(t, groups.WritesLinks())
	assert.False(t, groups.Inverse.WritesLinks())

	profile, ok := user.Relationship("profile")
	require.True(t, ok)
	assert.Equal(t, uow.O2O, profile.Rel)
	require.NotNil(t, profile.Inverse)
	assert.True(t, profile.Inverse.Hidden)
	assert.Equal(t, uow.M2O, profile.Inverse.Rel)
	assert.Equal(t, "user_profile", profile.Column)
	fk, ok := entity(t, reg, "Profile").Field("user_profile")
	require.True(t, ok)
	assert.True(t, fk.Nillable)
	assert.Equal(t, field.TypeInt64, fk.Info.Type)
}

func TestRegistry_SelfReference(t *testing.T) {
	reg := testRegistry(t)
	node := entity(t, reg, "Node")
	parent, ok := node.Relationship("parent")
	require.True(t, ok)
	children, ok := node.Relationship("children")
	require.True(t, ok)
	assert.Same(t, children, parent.Inverse)
	assert.Equal(t, "parent_id", parent.Column)
	assert.True(t, parent.Nullable)
	assert.Equal(t, []string{"id", "name", "parent_id"}, node.Columns())
	assert.True(t, node.AutoIncrement())
	assert.False(t, entity(t, reg, "Profile").AutoIncrement())
}

func TestRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schemas []uow.Schema
		errMsg  string
	}{
		{
			name:    "missing primary key",
			schemas: []uow.Schema{{Name: "A", Fields: []uow.Field{field.String("name")}}},
			errMsg:  `uow: mapping A: primary key field "id" is not defined`,
		},
		{
			name:    "unknown target",
			schemas: []uow.Schema{{Name: "A", Fields: []uow.Field{field.Int("id")}, Edges: []uow.Edge{edge.To("bs", "B")}}},
			errMsg:  `uow: mapping A: edge "bs" references unknown entity "B"`,
		},
		{
			name: "duplicate entity",
			schemas: []uow.Schema{
				{Name: "A", Fields: []uow.Field{field.Int("id")}},
				{Name: "A", Fields: []uow.Field{field.Int("id")}},
			},
			errMsg: "uow: mapping A: entity defined twice",
		},
		{
			name: "missing ref",
			schemas: []uow.Schema{
				{Name: "A", Fields: []uow.Field{field.Int("id")}, Edges: []uow.Edge{edge.From("b", "B").Ref("as").Unique()}},
				{Name: "B", Fields: []uow.Field{field.Int("id")}},
			},
			errMsg: `uow: mapping A: edge "b" references missing edge "as" of B`,
		},
		{
			name: "foreign key type mismatch",
			schemas: []uow.Schema{
				{Name: "A", Fields: []uow.Field{field.Int64("id"), field.String("b_id")}, Edges: []uow.Edge{edge.From("b", "B").Unique()}},
				{Name: "B", Fields: []uow.Field{field.Int64("id")}},
			},
			errMsg: `uow: mapping A: foreign key "b_id" is string, but B.id is int64`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uow.NewRegistry(tt.schemas...)
			require.Error(t, err)
			assert.EqualError(t, err, tt.errMsg)
		})
	}
	assert.Panics(t, func() { uow.MustRegistry(tests[0].schemas...) })
}
