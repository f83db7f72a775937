// Package field provides fluent builders for describing the columns of a
// mapped entity.
//
//	field.Int64("id")
//	field.String("name").MaxLen(100)
//	field.Int64("parent_id").Nillable()
//	field.UUID("token").Default(uuid.New)
//	field.JSON("labels", map[string]any{})
//
// # Value semantics
//
// Every field type knows how to compare, copy and convert its values.
// The attribute tracker relies on these to decide if an attribute is
// dirty:
//
//   - Time values are compared with time.Time.Equal.
//   - Bytes values are compared with bytes.Equal and copied when recorded.
//   - JSON values are mutable. They are deep-copied with a msgpack round
//     trip and compared by their canonical encoding, so that mutating a
//     map or slice in place is detected on the next diff.
//
// Values read from a database row go through Descriptor.Convert, which
// maps driver representations (int64, []byte, string) to the Go type of
// the field.
package field
