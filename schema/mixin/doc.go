// Package mixin provides reusable sets of fields for uow schemas.
//
//	uow.Schema{
//		Name:   "Post",
//		Mixins: []uow.Mixin{mixin.ID{}, mixin.Time{}},
//		Fields: []uow.Field{field.String("title")},
//	}
//
// Mixin fields come before the declared fields of the schema, in the order
// of the mixins. Custom mixins embed Schema and override what they need:
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Fields() []uow.Field {
//		return []uow.Field{
//			field.String("created_by").Immutable(),
//			field.String("updated_by").Nillable(),
//		}
//	}
package mixin
