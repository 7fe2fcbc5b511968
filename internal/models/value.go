package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValueKind identifies which variant a Value holds
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a dynamically typed payload used for open-ended fields such as
// metadata, task results and structured data. It encodes identically to JSON
// and BSON so records round-trip through either backend.
// The zero Value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Map is a string-keyed collection of Values
type Map map[string]Value

func Null() Value               { return Value{} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Object wraps a map as a Value
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// IsZero lets bson omitempty drop null values
func (v Value) IsZero() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) {
	return v.m, v.kind == KindMap
}

// Get returns the member of a map value
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	member, ok := v.m[key]
	return member, ok
}

// Equal reports deep equality
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := other.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts the value to plain Go types:
// nil, bool, float64, string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// ValueOf converts decoded JSON or BSON data into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(n), nil
	case time.Time:
		return String(t.UTC().Format(time.RFC3339Nano)), nil
	case primitive.DateTime:
		return String(t.Time().UTC().Format(time.RFC3339Nano)), nil
	case primitive.ObjectID:
		return String(t.Hex()), nil
	case primitive.Decimal128:
		return String(t.String()), nil
	case primitive.Null, primitive.Undefined:
		return Null(), nil
	case []any:
		return listOf(t)
	case primitive.A:
		return listOf(t)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return List(items...), nil
	case map[string]any:
		return mapOf(t)
	case primitive.M:
		return mapOf(t)
	case primitive.D:
		m := make(map[string]Value, len(t))
		for _, e := range t {
			item, err := ValueOf(e.Value)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", e.Key, err)
			}
			m[e.Key] = item
		}
		return Object(m), nil
	case Map:
		return Object(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func listOf(items []any) (Value, error) {
	out := make([]Value, len(items))
	for i, item := range items {
		v, err := ValueOf(item)
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return List(out...), nil
}

func mapOf(m map[string]any) (Value, error) {
	out := make(map[string]Value, len(m))
	for k, item := range m {
		v, err := ValueOf(item)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return Object(out), nil
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// OptionalValue is a request field that tells an explicit null apart from an
// omitted field. Set is true whenever the key was present in the body.
type OptionalValue struct {
	Value Value
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. It is called for a literal null
// too, unlike a *Value field which decoding leaves nil.
func (o *OptionalValue) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(data)
}

// MarshalBSONValue implements bson.ValueMarshaler
func (v Value) MarshalBSONValue() (bsontype.Type, []byte, error) {
	switch v.kind {
	case KindNull:
		return bson.TypeNull, nil, nil
	case KindMap:
		// Sorted keys keep stored documents stable across writes.
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := make(bson.D, 0, len(keys))
		for _, k := range keys {
			doc = append(doc, bson.E{Key: k, Value: v.m[k]})
		}
		return bson.MarshalValue(doc)
	case KindList:
		arr := make(bson.A, len(v.list))
		for i, item := range v.list {
			arr[i] = item
		}
		return bson.MarshalValue(arr)
	default:
		return bson.MarshalValue(v.Interface())
	}
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (v *Value) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var raw any
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&raw); err != nil {
		return err
	}
	decoded, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
