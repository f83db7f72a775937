package identity_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow"
	"github.com/syssam/uow/identity"
	"github.com/syssam/uow/schema/field"
)

func nodeEntity(t *testing.T) *uow.Entity {
	t.Helper()
	reg, err := uow.NewRegistry(uow.Schema{
		Name:   "Node",
		Fields: []uow.Field{field.Int64("id"), field.String("name")},
	})
	require.NoError(t, err)
	e, _ := reg.Entity("Node")
	return e
}

func newNode(t *testing.T, e *uow.Entity, id int) (*uow.Instance, uow.Key) {
	t.Helper()
	n := e.New()
	require.NoError(t, n.Load(map[string]any{"id": id, "name": "n"}))
	key, ok := n.Key()
	require.True(t, ok)
	return n, key
}

func TestMap_Register(t *testing.T) {
	e := nodeEntity(t)
	m := identity.New()
	a, key := newNode(t, e, 1)
	require.NoError(t, m.Register(a, key))
	require.NoError(t, m.Register(a, key))
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains(a))

	b, _ := newNode(t, e, 1)
	err := m.Register(b, key)
	require.Error(t, err)
	assert.True(t, uow.IsIdentityConflict(err))
	assert.False(t, m.Contains(b))

	got, ok := m.Lookup(key)
	require.True(t, ok)
	assert.Same(t, a, got)

	m.Forget(key)
	_, ok = m.Lookup(key)
	assert.False(t, ok)
	assert.Zero(t, m.Len())
	m.Forget(key)
}

func TestMap_Order(t *testing.T) {
	e := nodeEntity(t)
	m := identity.New()
	var want []*uow.Instance
	for i := 1; i <= 5; i++ {
		n, key := newNode(t, e, i)
		require.NoError(t, m.Register(n, key))
		want = append(want, n)
	}
	assert.Equal(t, want, m.All())
	k3, _ := want[2].Key()
	m.Forget(k3)
	assert.Equal(t, []*uow.Instance{want[0], want[1], want[3], want[4]}, m.All())
	assert.Equal(t, []*uow.Instance{want[0], want[1], want[3], want[4]}, m.Clear())
	assert.Zero(t, m.Len())
}

// Random sequences of registrations and forgets never leave two distinct
// instances under one key.
func TestMap_Uniqueness(t *testing.T) {
	e := nodeEntity(t)
	rnd := rand.New(rand.NewSource(42))
	m := identity.New()
	holders := make(map[uow.Key]*uow.Instance)
	for range 1000 {
		n, key := newNode(t, e, rnd.Intn(20))
		switch rnd.Intn(3) {
		case 0:
			m.Forget(key)
			delete(holders, key)
		default:
			err := m.Register(n, key)
			if cur, ok := holders[key]; ok {
				require.True(t, uow.IsIdentityConflict(err))
				got, _ := m.Lookup(key)
				require.Same(t, cur, got)
				continue
			}
			require.NoError(t, err)
			holders[key] = n
		}
		seen := make(map[uow.Key]bool)
		for _, inst := range m.All() {
			k, _ := inst.Key()
			require.False(t, seen[k], "duplicate key %s", k)
			seen[k] = true
		}
	}
}
