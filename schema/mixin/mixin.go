package mixin

import (
	"time"

	"github.com/google/uuid"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/field"
)

// Schema is the default implementation of uow.Mixin. Custom mixins embed it.
type Schema struct{}

// Fields returns no fields.
func (Schema) Fields() []uow.Field { return nil }

// Edges returns no edges.
func (Schema) Edges() []uow.Edge { return nil }

var _ uow.Mixin = Schema{}

// ID adds an auto-incremented int64 primary key named id.
type ID struct{ Schema }

// Fields of the ID mixin.
func (ID) Fields() []uow.Field {
	return []uow.Field{
		field.Int64("id").Immutable(),
	}
}

// UUID adds a UUID primary key named id, generated on insert.
type UUID struct{ Schema }

// Fields of the UUID mixin.
func (UUID) Fields() []uow.Field {
	return []uow.Field{
		field.UUID("id").Default(uuid.New).Immutable(),
	}
}

// CreateTime adds created_at, set on insert.
type CreateTime struct{ Schema }

// Fields of the create time mixin.
func (CreateTime) Fields() []uow.Field {
	return []uow.Field{
		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("Timestamp when the entity was created"),
	}
}

// UpdateTime adds updated_at, set on insert and on every update of the row.
type UpdateTime struct{ Schema }

// Fields of the update time mixin.
func (UpdateTime) Fields() []uow.Field {
	return []uow.Field{
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("Timestamp when the entity was last updated"),
	}
}

// Time combines CreateTime and UpdateTime.
type Time struct{ Schema }

// Fields of the time mixin.
func (Time) Fields() []uow.Field {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// SoftDelete adds deleted_at. A row with deleted_at set is considered
// deleted but stays in its table.
type SoftDelete struct{ Schema }

// Fields of the soft delete mixin.
func (SoftDelete) Fields() []uow.Field {
	return []uow.Field{
		field.Time("deleted_at").
			Nillable().
			Comment("Timestamp when the entity was soft deleted"),
	}
}

// TenantID adds an immutable tenant_id.
type TenantID struct{ Schema }

// Fields of the tenant mixin.
func (TenantID) Fields() []uow.Field {
	return []uow.Field{
		field.String("tenant_id").
			MaxLen(64).
			Immutable(),
	}
}

// Compose returns a mixin with the fields and edges of all given mixins,
// in order.
func Compose(mixins ...uow.Mixin) uow.Mixin {
	return composed(mixins)
}

type composed []uow.Mixin

func (c composed) Fields() []uow.Field {
	var fields []uow.Field
	for _, m := range c {
		fields = append(fields, m.Fields()...)
	}
	return fields
}

func (c composed) Edges() []uow.Edge {
	var edges []uow.Edge
	for _, m := range c {
		edges = append(edges, m.Edges()...)
	}
	return edges
}
