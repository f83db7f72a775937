package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// A Type represents a field type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeJSON
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeInt
	TypeInt64
	TypeFloat64
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeJSON:    "json.RawMessage",
	TypeUUID:    "uuid.UUID",
	TypeBytes:   "[]byte",
	TypeEnum:    "string",
	TypeString:  "string",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type if known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat64
}

// Mutable reports if values of this type can change in place, which
// means they are copied when recorded and compared by content.
func (t Type) Mutable() bool {
	return t == TypeJSON || t == TypeBytes
}

// Equal reports whether a and b represent the same value of type t.
// A nil value is only equal to another nil value.
func (t Type) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch t {
	case TypeBytes:
		ab, aok := a.([]byte)
		bb, bok := b.([]byte)
		if aok && bok {
			return bytes.Equal(ab, bb)
		}
	case TypeTime:
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		if aok && bok {
			return at.Equal(bt)
		}
	case TypeJSON:
		ab, aerr := canonical(a)
		bb, berr := canonical(b)
		if aerr == nil && berr == nil {
			return bytes.Equal(ab, bb)
		}
		return reflect.DeepEqual(a, b)
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Copy returns a copy of v that does not share memory with it.
// Immutable values are returned as is. JSON values are copied with
// a msgpack round trip into a value of the same dynamic type; if v
// cannot be encoded, v itself is returned.
func (t Type) Copy(v any) any {
	if v == nil || !t.Mutable() {
		return v
	}
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return v
	}
	ptr := reflect.New(reflect.TypeOf(v))
	if err := msgpack.Unmarshal(raw, ptr.Interface()); err != nil {
		return v
	}
	return ptr.Elem().Interface()
}

// canonical encodes v with sorted map keys and compact numbers, so two
// values that differ only in map order or integer width encode equally.
func canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// convert converts a value coming from the caller or from a database
// row into the canonical Go representation of type t.
func (t Type) convert(v any, proto reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		}
	case TypeString, TypeEnum:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case TypeInt, TypeInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if t == TypeInt {
			return int(n), nil
		}
		return n, nil
	case TypeFloat64:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		default:
			if n, err := toInt64(v); err == nil {
				return float64(n), nil
			}
		}
	case TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			return parseTime(v)
		case []byte:
			return parseTime(string(v))
		}
	case TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
	case TypeBytes:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case TypeJSON:
		var raw []byte
		switch v := v.(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			return v, nil
		}
		if proto == nil {
			var out any
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
		ptr := reflect.New(proto)
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
	return nil, fmt.Errorf("field: cannot convert %T to %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("field: %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("field: %d overflows int64", v)
		}
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("field: cannot convert %T to int64", v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("field: unrecognized time format %q", s)
}
