package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string            // field name.
	Info       *TypeInfo         // field type info.
	StorageKey string            // sql column name. defaults to Name.
	Size       int               // max size parameter for string and blob types.
	Nillable   bool              // nullable column.
	Immutable  bool              // excluded from updates.
	Unique     bool              // unique index of field.
	Default    any               // default value or a no-arg function returning one.
	// UpdateDefault is assigned on update when the field is unchanged.
	UpdateDefault any
	Enums      []string          // enum values.
	SchemaType map[string]string // override the schema type per dialect.
	Comment    string            // field comment.
	Err        error
}

// TypeInfo holds the type of a field and the prototype of its Go value,
// if the field type is structured (JSON).
type TypeInfo struct {
	Type  Type
	RType reflect.Type
}

// String returns the Go type name of the field.
func (t TypeInfo) String() string {
	if t.RType != nil {
		return t.RType.String()
	}
	return t.Type.String()
}

// Column returns the column name of the field.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// Equal compares two values of this field.
func (d *Descriptor) Equal(a, b any) bool { return d.Info.Type.Equal(a, b) }

// Copy returns a detached copy of v.
func (d *Descriptor) Copy(v any) any { return d.Info.Type.Copy(v) }

// Convert converts v into the canonical Go value of the field. Values
// read from the database and values assigned by callers both pass
// through Convert before they are tracked.
func (d *Descriptor) Convert(v any) (any, error) {
	if d.Info.Type == TypeEnum {
		s, err := d.Info.Type.convert(v, nil)
		if err != nil || s == nil {
			return s, err
		}
		for _, e := range d.Enums {
			if e == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("field: %q is not a valid value for enum %q", s, d.Name)
	}
	return d.Info.Type.convert(v, d.Info.RType)
}

// Value returns the argument passed to the database driver for v.
// JSON values are encoded, other values are passed as is.
func (d *Descriptor) Value(v any) (any, error) {
	if v == nil || d.Info.Type != TypeJSON {
		return v, nil
	}
	return json.Marshal(v)
}

// HasDefault reports if the field has a client-side default.
func (d *Descriptor) HasDefault() bool { return d.Default != nil }

// DefaultValue returns the default value of the field. Function
// defaults, like time.Now or uuid.New, are called on each invocation.
func (d *Descriptor) DefaultValue() (any, error) {
	return d.value(d.Default)
}

// HasUpdateDefault reports if the field has a value assigned on update.
func (d *Descriptor) HasUpdateDefault() bool { return d.UpdateDefault != nil }

// UpdateDefaultValue returns the value assigned to the field on update.
func (d *Descriptor) UpdateDefaultValue() (any, error) {
	return d.value(d.UpdateDefault)
}

func (d *Descriptor) value(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return d.Convert(v)
	}
	if rv.Type().NumIn() != 0 || rv.Type().NumOut() != 1 {
		return nil, fmt.Errorf("field: default function of %q must be func() T", d.Name)
	}
	return d.Convert(rv.Call(nil)[0].Interface())
}

// Builder is the builder for all field types.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Info: &TypeInfo{Type: t}}}
}

// Bool returns a new Builder with type bool.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// String returns a new Builder with type string.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new string field without limitation on the size.
func Text(name string) *Builder {
	b := newBuilder(name, TypeString)
	b.desc.Size = maxTextSize
	return b
}

const maxTextSize = 1<<31 - 1

// Int returns a new Builder with type int.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int64 returns a new Builder with type int64.
func Int64(name string) *Builder { return newBuilder(name, TypeInt64) }

// Float returns a new Builder with type float64.
func Float(name string) *Builder { return newBuilder(name, TypeFloat64) }

// Time returns a new Builder with type time.Time.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// Bytes returns a new Builder with type []byte.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// UUID returns a new Builder with type uuid.UUID.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// Enum returns a new Builder with type enum.
func Enum(name string) *Builder { return newBuilder(name, TypeEnum) }

// JSON returns a new Builder with type json that is serialized to
// the underlying database in JSON format. The typ argument is a
// prototype of the Go value, e.g. map[string]any{} or []string{}.
//
//	field.JSON("dirs", []string{})
//	field.JSON("info", map[string]any{})
func JSON(name string, typ any) *Builder {
	b := newBuilder(name, TypeJSON)
	if typ == nil {
		b.desc.Err = errors.New("field: JSON prototype must not be nil")
		return b
	}
	b.desc.Info.RType = reflect.TypeOf(typ)
	return b
}

// StorageKey sets the storage key (column name) of the field.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Nillable indicates that this field is a nullable column.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Optional is an alias of Nillable.
func (b *Builder) Optional() *Builder { return b.Nillable() }

// Immutable indicates that this field cannot be updated.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// Unique makes the field unique within all rows of its table.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Default sets the default value of the field. It accepts a literal
// value or a function with the signature func() T.
//
//	field.UUID("id").Default(uuid.New)
//	field.String("status").Default("draft")
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	return b
}

// UpdateDefault sets the value assigned to the field when its row is
// updated and the field itself was not changed.
//
//	field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now)
func (b *Builder) UpdateDefault(v any) *Builder {
	b.desc.UpdateDefault = v
	return b
}

// MaxLen sets the max size of a string or bytes field.
func (b *Builder) MaxLen(n int) *Builder {
	if n <= 0 {
		b.desc.Err = fmt.Errorf("field: invalid size %d for %q", n, b.desc.Name)
	}
	b.desc.Size = n
	return b
}

// Values adds values to an enum field.
func (b *Builder) Values(values ...string) *Builder {
	if b.desc.Info.Type != TypeEnum {
		b.desc.Err = fmt.Errorf("field: Values called on non-enum field %q", b.desc.Name)
		return b
	}
	b.desc.Enums = append(b.desc.Enums, values...)
	return b
}

// SchemaType overrides the default database type with a custom
// schema type (per dialect) for the field.
func (b *Builder) SchemaType(types map[string]string) *Builder {
	b.desc.SchemaType = types
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the field descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if b.desc.Info.Type == TypeEnum && len(b.desc.Enums) == 0 && b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("field: missing values for enum field %q", b.desc.Name)
	}
	return b.desc
}
