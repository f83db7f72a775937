// Package identity implements the identity map of a session: at most one
// in-memory instance per row.
package identity

import "github.com/syssam/uow"

// Map holds the instances of a session by identity key. It is confined to
// the session that owns it and is not safe for concurrent use.
type Map struct {
	byKey map[uow.Key]*uow.Instance
	order []uow.Key
}

// New returns an empty identity map.
func New() *Map {
	return &Map{byKey: make(map[uow.Key]*uow.Instance)}
}

// Register maps key to inst. Registering the same instance twice is a
// no-op; registering a key held by another instance fails with
// *uow.IdentityConflictError.
func (m *Map) Register(inst *uow.Instance, key uow.Key) error {
	if cur, ok := m.byKey[key]; ok {
		if cur == inst {
			return nil
		}
		return uow.NewIdentityConflictError(key)
	}
	m.byKey[key] = inst
	m.order = append(m.order, key)
	return nil
}

// Lookup returns the instance registered under key.
func (m *Map) Lookup(key uow.Key) (*uow.Instance, bool) {
	inst, ok := m.byKey[key]
	return inst, ok
}

// Contains reports if inst is registered under any key.
func (m *Map) Contains(inst *uow.Instance) bool {
	key, ok := inst.Key()
	if !ok {
		return false
	}
	cur, ok := m.byKey[key]
	return ok && cur == inst
}

// Forget removes key from the map.
func (m *Map) Forget(key uow.Key) {
	if _, ok := m.byKey[key]; !ok {
		return
	}
	delete(m.byKey, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered instances.
func (m *Map) Len() int { return len(m.byKey) }

// All returns the registered instances in registration order.
func (m *Map) All() []*uow.Instance {
	all := make([]*uow.Instance, 0, len(m.order))
	for _, k := range m.order {
		all = append(all, m.byKey[k])
	}
	return all
}

// Clear removes all instances and returns them in registration order.
func (m *Map) Clear() []*uow.Instance {
	all := m.All()
	m.byKey = make(map[uow.Key]*uow.Instance)
	m.order = nil
	return all
}
