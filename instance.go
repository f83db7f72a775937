package uow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/uow/attribute"
	"github.com/syssam/uow/schema/field"
)

// Key identifies one row: the entity name and the canonical encoding of
// its primary-key values. Keys are comparable and can be used as map keys.
type Key struct {
	Entity string
	ID     string
}

// String returns the key in the form Entity(id).
func (k Key) String() string {
	return k.Entity + "(" + k.ID + ")"
}

// NewKey returns the identity key of the row of e with the given
// primary-key values. Values are normalized with the field types, so
// int(1) and int64(1) produce the same key.
func NewKey(e *Entity, values ...any) (Key, error) {
	if len(values) != len(e.PrimaryKey) {
		return Key{}, fmt.Errorf("uow: %s has %d primary key column(s), got %d value(s)", e.Name, len(e.PrimaryKey), len(values))
	}
	parts := make([]string, len(values))
	for i, pk := range e.PrimaryKey {
		v, err := pk.Convert(values[i])
		if err != nil {
			return Key{}, fmt.Errorf("uow: %s.%s: %w", e.Name, pk.Name, err)
		}
		if v == nil {
			return Key{}, fmt.Errorf("uow: %s.%s: primary key value is NULL", e.Name, pk.Name)
		}
		parts[i] = encodeKeyPart(pk.Info.Type, v)
	}
	return Key{Entity: e.Name, ID: strings.Join(parts, ",")}, nil
}

func encodeKeyPart(t field.Type, v any) string {
	switch v := v.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		if t == field.TypeString || t == field.TypeEnum {
			return strconv.Quote(v)
		}
		return v
	case uuid.UUID:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// State is the lifecycle state of an instance.
type State uint8

// Instance states.
const (
	// Transient instances are not attached to a session and have no row.
	Transient State = iota
	// Pending instances were added to a session and are inserted on flush.
	Pending
	// Persistent instances have a row and are tracked by a session.
	Persistent
	// Deleted instances had their row deleted by a flush that is not committed yet.
	Deleted
	// Detached instances have a row but are not tracked by any session.
	Detached
)

var stateNames = [...]string{
	Transient:  "transient",
	Pending:    "pending",
	Persistent: "persistent",
	Deleted:    "deleted",
	Detached:   "detached",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Op is a pending write operation on one instance.
type Op uint8

// Operations.
const (
	OpNone Op = iota
	OpInsert
	OpUpdate
	OpDelete
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "none"
	}
}

// Instance is a mapped object: one row of an entity, tracked or not.
// Instances are created with Entity.New and mutated through the typed
// accessors (Field, Ref, Collection) or the Set/Get methods.
type Instance struct {
	entity *Entity
	attrs  *attribute.Tracker
	key    Key
	hasKey bool
	state  State
	owner  any    // session holding the instance.
	seq    uint64 // registration order within the owner.
}

// New returns a new transient instance of the entity.
func (e *Entity) New() *Instance {
	t := attribute.New()
	for _, f := range e.Fields {
		t.Define(f.Name, f)
	}
	for _, r := range e.Relationships {
		if r.Collection() {
			t.DefineCollection(r.Name)
		} else {
			t.DefineRef(r.Name)
		}
	}
	return &Instance{entity: e, attrs: t}
}

// Entity returns the entity of the instance.
func (i *Instance) Entity() *Entity { return i.entity }

// Attributes returns the attribute tracker of the instance.
func (i *Instance) Attributes() *attribute.Tracker { return i.attrs }

// State returns the lifecycle state of the instance.
func (i *Instance) State() State { return i.state }

// Key returns the identity key of the instance, if it has one.
func (i *Instance) Key() (Key, bool) { return i.key, i.hasKey }

// Seq returns the registration order of the instance in its session.
func (i *Instance) Seq() uint64 { return i.seq }

// Owner returns the session that tracks the instance, or nil.
func (i *Instance) Owner() any { return i.owner }

// Attach records the owning session, the registration order and the
// state of the instance. It is called by sessions.
func (i *Instance) Attach(owner any, seq uint64, state State) {
	i.owner, i.seq, i.state = owner, seq, state
}

// SetState sets the lifecycle state of the instance.
func (i *Instance) SetState(s State) { i.state = s }

// Detach releases the instance from its session.
func (i *Instance) Detach() {
	i.owner = nil
	if i.hasKey {
		i.state = Detached
	} else {
		i.state = Transient
	}
}

// String returns a short description of the instance, e.g. Node(1) or
// Node(pending#3).
func (i *Instance) String() string {
	if i.hasKey {
		return i.key.String()
	}
	return fmt.Sprintf("%s(%s#%d)", i.entity.Name, i.state, i.seq)
}

// Set assigns the named field. The value is converted to the Go type of
// the field.
func (i *Instance) Set(name string, v any) error {
	f, ok := i.entity.Field(name)
	if !ok {
		return fmt.Errorf("uow: %s has no field %q", i.entity.Name, name)
	}
	cv, err := f.Convert(v)
	if err != nil {
		return fmt.Errorf("uow: %s.%s: %w", i.entity.Name, name, err)
	}
	if cv == nil && !f.Nillable {
		return fmt.Errorf("uow: %s.%s: field is not nillable", i.entity.Name, name)
	}
	i.attrs.Set(name, cv)
	return nil
}

// Get returns the current value of the named field.
func (i *Instance) Get(name string) any {
	return i.attrs.Get(name)
}

// Load records the values of a row read from storage as the committed
// state of the instance and computes its identity key. Columns that are
// not mapped are ignored.
func (i *Instance) Load(row map[string]any) error {
	for _, f := range i.entity.Fields {
		v, ok := row[f.Column()]
		if !ok {
			continue
		}
		cv, err := f.Convert(v)
		if err != nil {
			return fmt.Errorf("uow: %s.%s: %w", i.entity.Name, f.Name, err)
		}
		i.attrs.RecordOriginal(f.Name, cv)
	}
	return i.UpdateKey()
}

// PrimaryKey returns the current primary-key values of the instance.
// The second value reports if all of them are set.
func (i *Instance) PrimaryKey() ([]any, bool) {
	values := make([]any, len(i.entity.PrimaryKey))
	for j, pk := range i.entity.PrimaryKey {
		values[j] = i.attrs.Get(pk.Name)
		if values[j] == nil {
			return nil, false
		}
	}
	return values, true
}

// CommittedPrimaryKey returns the primary-key values stored in the row.
func (i *Instance) CommittedPrimaryKey() ([]any, bool) {
	values := make([]any, len(i.entity.PrimaryKey))
	for j, pk := range i.entity.PrimaryKey {
		v, ok := i.attrs.Committed(pk.Name)
		if !ok || v == nil {
			return nil, false
		}
		values[j] = v
	}
	return values, true
}

// UpdateKey computes the identity key from the current primary-key values.
func (i *Instance) UpdateKey() error {
	values, ok := i.PrimaryKey()
	if !ok {
		return fmt.Errorf("uow: %s: primary key is not set", i.entity.Name)
	}
	key, err := NewKey(i.entity, values...)
	if err != nil {
		return err
	}
	i.key, i.hasKey = key, true
	return nil
}

// ClearKey removes the identity key. Database generated primary-key
// values are cleared as well, as they do not refer to a row anymore.
func (i *Instance) ClearKey() {
	i.key, i.hasKey = Key{}, false
	if i.entity.AutoIncrement() {
		i.attrs.Set(i.entity.PrimaryKey[0].Name, nil)
	}
}

// Modified reports if the instance has changes to flush.
func (i *Instance) Modified() bool {
	return i.attrs.Modified()
}

// Snapshot is a saved copy of the tracked state of an instance.
type Snapshot struct {
	attrs  *attribute.Snapshot
	key    Key
	hasKey bool
	state  State
}

// Snapshot saves the attributes, the identity key and the state of the
// instance.
func (i *Instance) Snapshot() *Snapshot {
	return &Snapshot{attrs: i.attrs.Snapshot(), key: i.key, hasKey: i.hasKey, state: i.state}
}

// Restore sets the instance back to snap.
func (i *Instance) Restore(snap *Snapshot) {
	i.attrs.Restore(snap.attrs)
	i.key, i.hasKey, i.state = snap.key, snap.hasKey, snap.state
}
