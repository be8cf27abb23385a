package tool

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// ExecutionResult is what a handler, and ultimately the router, returns.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Output        string        `json:"output"`
	Confidence    float64       `json:"confidence"`
	ExecutionTime time.Duration `json:"execution_time"`
	Metadata      Metadata      `json:"metadata,omitempty"`
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindMap
)

// Value is a metadata value: a string, number, bool or nested map. The
// zero Value has KindInvalid and stands for JSON null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	flag bool
	m    Metadata
}

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int wraps i as a number.
func Int(i int) Value { return Number(float64(i)) }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Map wraps a nested metadata map.
func Map(m Metadata) Value { return Value{kind: KindMap, m: m} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the number and whether v holds one.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the bool and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsMap returns the nested map and whether v holds one.
func (v Value) AsMap() (Metadata, bool) { return v.m, v.kind == KindMap }

// Interface returns v as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, inner := range v.m {
			out[k] = inner.Interface()
		}
		return out
	}
	return nil
}

// ValueOf converts a decoded JSON value. nil becomes the zero Value.
// Unsupported types are rendered with %v so nothing is silently dropped.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Int(t)
	case int64:
		return Number(float64(t))
	case map[string]any:
		m := make(Metadata, len(t))
		for k, inner := range t {
			m[k] = ValueOf(inner)
		}
		return Map(m)
	case Metadata:
		return Map(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	switch x.(type) {
	case nil, string, bool, float64, map[string]any:
		*v = ValueOf(x)
		return nil
	}
	return fmt.Errorf("unsupported metadata value %s", string(b))
}

// Metadata is auxiliary result data keyed by unique names.
type Metadata map[string]Value

// Merge returns a new map holding m overlaid with other; keys present in
// both take other's value.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
