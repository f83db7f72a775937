package uow_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
)

var (
	uuidNew = uuid.New

	nodeName     = uow.NewField[string]("name")
	nodeParent   = uow.NewRef("parent")
	nodeChildren = uow.NewCollection("children")
)

func TestNewKey(t *testing.T) {
	reg := testRegistry(t)
	node := entity(t, reg, "Node")
	k1, err := uow.NewKey(node, 1)
	require.NoError(t, err)
	k2, err := uow.NewKey(node, int64(1))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, "Node(1)", k1.String())

	_, err = uow.NewKey(node)
	assert.Error(t, err)
	_, err = uow.NewKey(node, nil)
	assert.Error(t, err)
	_, err = uow.NewKey(node, "x")
	assert.Error(t, err)

	id := uuid.New()
	k, err := uow.NewKey(entity(t, reg, "Profile"), id.String())
	require.NoError(t, err)
	assert.Equal(t, "Profile("+id.String()+")", k.String())
}

func TestInstance_SetGet(t *testing.T) {
	reg := testRegistry(t)
	n := entity(t, reg, "Node").New()
	assert.Equal(t, uow.Transient, n.State())
	_, ok := n.Key()
	assert.False(t, ok)

	nodeName.Set(n, "root")
	assert.Equal(t, "root", nodeName.Get(n))
	assert.True(t, nodeName.Dirty(n))

	require.NoError(t, n.Set("id", 7))
	assert.Equal(t, int64(7), n.Get("id"))
	require.NoError(t, n.UpdateKey())
	key, ok := n.Key()
	require.True(t, ok)
	assert.Equal(t, "Node(7)", key.String())

	assert.Error(t, n.Set("unknown", 1))
	assert.Error(t, n.Set("name", nil))
	assert.Error(t, n.Set("id", "x"))
	require.NoError(t, n.Set("parent_id", nil))

	_, ok = uow.NewField[int64]("parent_id").Value(n)
	assert.False(t, ok)
	assert.Panics(t, func() { uow.NewField[int]("id").Get(n) })
}

func TestInstance_Load(t *testing.T) {
	reg := testRegistry(t)
	n := entity(t, reg, "Node").New()
	require.NoError(t, n.Load(map[string]any{"id": int64(3), "name": []byte("x"), "parent_id": nil, "extra": 1}))
	key, ok := n.Key()
	require.True(t, ok)
	assert.Equal(t, "Node(3)", key.String())
	assert.Equal(t, "x", nodeName.Get(n))
	assert.False(t, n.Modified())

	nodeName.Set(n, "y")
	assert.True(t, n.Modified())
	pk, ok := n.CommittedPrimaryKey()
	require.True(t, ok)
	assert.Equal(t, []any{int64(3)}, pk)
}

func TestInstance_RelationshipSync(t *testing.T) {
	reg := testRegistry(t)
	node := entity(t, reg, "Node")
	p1, p2, c := node.New(), node.New(), node.New()

	require.NoError(t, nodeParent.Set(c, p1))
	assert.Same(t, p1, nodeParent.Get(c))
	assert.Equal(t, []*uow.Instance{c}, nodeChildren.All(p1))

	// Moving the child updates both parents.
	require.NoError(t, nodeChildren.Add(p2, c))
	assert.Same(t, p2, nodeParent.Get(c))
	assert.Empty(t, nodeChildren.All(p1))
	assert.Equal(t, []*uow.Instance{c}, nodeChildren.All(p2))

	require.NoError(t, nodeChildren.Remove(p2, c))
	assert.Nil(t, nodeParent.Get(c))
	parent, _ := node.Relationship("parent")
	assert.Empty(t, c.Removed(parent))

	assert.Error(t, c.SetRef("children", p1))
	assert.Error(t, c.Append("parent", p1))
	assert.Error(t, c.SetRef("parent", entity(t, reg, "User").New()))
}

func TestInstance_OneToOneSync(t *testing.T) {
	reg := testRegistry(t)
	user, profile := entity(t, reg, "User"), entity(t, reg, "Profile")
	u1, u2, p := user.New(), user.New(), profile.New()
	require.NoError(t, u1.SetRef("profile", p))
	rel, _ := user.Relationship("profile")
	assert.Equal(t, []*uow.Instance{u1}, p.Related(rel.Inverse))

	require.NoError(t, u2.SetRef("profile", p))
	assert.Nil(t, u1.Ref("profile"))
	assert.Equal(t, []*uow.Instance{u2}, p.Related(rel.Inverse))
}

func TestInstance_SyncForeignKeys(t *testing.T) {
	reg := testRegistry(t)
	node := entity(t, reg, "Node")
	parentRel, _ := node.Relationship("parent")
	p, c := node.New(), node.New()
	require.NoError(t, nodeParent.Set(c, p))

	// The parent has no key yet.
	pending := c.SyncForeignKeys(nil)
	assert.Equal(t, []*uow.Relationship{parentRel}, pending)
	assert.Nil(t, c.ForeignKey(parentRel))

	require.NoError(t, p.Set("id", 10))
	assert.Empty(t, c.SyncForeignKeys(nil))
	assert.Equal(t, int64(10), c.ForeignKey(parentRel))

	// Skipped relationships are left alone.
	require.NoError(t, p.Set("id", 11))
	c.SyncForeignKeys(map[*uow.Relationship]bool{parentRel: true})
	assert.Equal(t, int64(10), c.ForeignKey(parentRel))

	c.Attributes().Commit()
	require.NoError(t, nodeParent.Set(c, nil))
	c.SyncForeignKeys(nil)
	assert.Nil(t, c.ForeignKey(parentRel))

	// A foreign key assigned directly is kept when the reference is unused.
	o := node.New()
	require.NoError(t, o.Set("parent_id", 5))
	o.SyncForeignKeys(nil)
	assert.Equal(t, int64(5), o.ForeignKey(parentRel))
}

func TestInstance_Unlink(t *testing.T) {
	reg := testRegistry(t)
	node := entity(t, reg, "Node")
	parentRel, _ := node.Relationship("parent")
	p, c := node.New(), node.New()
	c.RecordRelated(parentRel, p)
	assert.False(t, c.Modified())
	assert.False(t, p.Modified())
	assert.Equal(t, []*uow.Instance{p}, c.CommittedRelated(parentRel))

	c.Unlink(parentRel, p)
	assert.Nil(t, c.Ref("parent"))
	assert.Empty(t, p.Members("children"))
	assert.False(t, c.Modified())
	assert.False(t, p.Modified())
}

func TestInstance_ClearKey(t *testing.T) {
	reg := testRegistry(t)
	n := entity(t, reg, "Node").New()
	require.NoError(t, n.Load(map[string]any{"id": 1, "name": "a"}))
	n.ClearKey()
	_, ok := n.Key()
	assert.False(t, ok)
	assert.Nil(t, n.Get("id"))
	assert.Contains(t, n.String(), "Node(")
}
