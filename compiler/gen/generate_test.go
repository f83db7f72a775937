package gen

import (
	"context"
	"go/parser"
	"go/token"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

type settings struct {
	Theme string `json:"theme"`
}

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
			Name: "UserGroup",
			Fields: []uow.Field{
				field.Int64("id"),
				field.Enum("kind").Values("public", "invite-only"),
				field.JSON("settings", settings{}).Nillable(),
				field.JSON("tags", []string{}),
				field.UUID("external_id"),
				field.Time("created_at"),
			},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestGenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths, err := Generate(context.Background(), registry(t), WithFs(fs), WithTarget("out"), WithPackage("model"), WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"out/node.go", "out/uow.go", "out/user_group.go"}, paths)

	for _, p := range paths {
		src, err := afero.ReadFile(fs, p)
		require.NoError(t, err)
		_, err = parser.ParseFile(token.NewFileSet(), p, src, parser.AllErrors)
		require.NoError(t, err, "%s:\n%s", p, src)
		assert.Contains(t, string(src), "// Code generated by uow. DO NOT EDIT.")
		assert.Contains(t, string(src), "package model")
	}

	node, err := afero.ReadFile(fs, "out/node.go")
	require.NoError(t, err)
	for _, s := range []string{
		"type Node struct {\n\t*uow.Instance\n}",
		`NodeID       = uow.NewField[int64]("id")`,
		`NodeParent   = uow.NewRef("parent")`,
		`NodeChildren = uow.NewCollection("children")`,
		"func NewNode(reg *uow.Registry) *Node {",
		"func AsNode(i *uow.Instance) *Node {",
		"func (n *Node) SetName(v string) *Node {",
		"func (n *Node) ParentID() int64 {",
		"func (n *Node) ClearParentID() error {",
		"func (n *Node) Parent() *Node {",
		"func (n *Node) SetParent(v *Node) error {",
		"func (n *Node) Children() []*Node {",
		"func (n *Node) AddChildren(vs ...*Node) error {",
		"func (n *Node) RemoveChildren(vs ...*Node) error {",
	} {
		assert.Contains(t, string(node), s)
	}

	group, err := afero.ReadFile(fs, "out/user_group.go")
	require.NoError(t, err)
	for _, s := range []string{
		"type UserGroup struct {",
		`UserGroupKindPublic     = "public"`,
		`UserGroupKindInviteOnly = "invite-only"`,
		`uow.NewField[any]("settings")`,
		`uow.NewField[[]string]("tags")`,
		`uow.NewField[uuid.UUID]("external_id")`,
		`uow.NewField[time.Time]("created_at")`,
		"func (u *UserGroup) ExternalID() uuid.UUID {",
	} {
		assert.Contains(t, string(group), s)
	}

	pkg, err := afero.ReadFile(fs, "out/uow.go")
	require.NoError(t, err)
	assert.Contains(t, string(pkg), `EntityNode      = "Node"`)
	assert.Contains(t, string(pkg), `EntityUserGroup = "UserGroup"`)
	assert.Contains(t, string(pkg), "func unwrap[T wrapper](vs []T) []*uow.Instance {")
}

func TestGenerate_Conflict(t *testing.T) {
	reg, err := uow.NewRegistry(uow.Schema{
		Name:   "Item",
		Fields: []uow.Field{field.Int64("id"), field.String("instance")},
	})
	require.NoError(t, err)
	_, err = Generate(context.Background(), reg, WithFs(afero.NewMemMapFs()))
	require.Error(t, err)
	assert.True(t, IsGenerationError(err))
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Item", gerr.Entity)
	assert.Contains(t, err.Error(), "method Instance")
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "model", cfg.Package)
	assert.Equal(t, DefaultHeader, cfg.Header)
	assert.Positive(t, cfg.Workers)

	for _, opt := range []Option{WithPackage("not-an-ident"), WithTarget(""), WithWorkers(0), WithFs(nil)} {
		_, err := NewConfig(opt)
		assert.True(t, IsConfigError(err), err)
	}
	cfg = &Config{}
	err = cfg.ApplyAll(WithPackage("1x"), WithWorkers(-1))
	assert.ErrorContains(t, err, "Package")
	assert.ErrorContains(t, err, "Workers")

	_, err = Generate(context.Background(), nil)
	assert.True(t, IsConfigError(err))
}

func TestPascal(t *testing.T) {
	for in, want := range map[string]string{
		"id":          "ID",
		"parent_id":   "ParentID",
		"UserGroup":   "UserGroup",
		"invite-only": "InviteOnly",
		"html_url":    "HTMLURL",
		"2fa":         "X2fa",
	} {
		assert.Equal(t, want, pascal(in), in)
	}
	assert.Equal(t, "n", receiver("Node"))
	assert.Equal(t, "ii", receiver("Item"))
}
