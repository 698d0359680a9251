package store

import (
	"encoding/json"
	"errors"
	"maps"
)

// Kind tags which field of a Value is set.
type Kind uint8

const (
	KindBlob Kind = iota
	KindString
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// ErrInvalidValue is returned when a JSON value sets zero or several kinds.
var ErrInvalidValue = errors.New("store: value must set exactly one of blob, string, map")

// Value is a stored value: an opaque blob, a string, or a map of nested
// values. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Blob   []byte
	String string
	Map    map[string]Value
}

// Blob wraps b as a blob value. b is not copied.
func Blob(b []byte) Value { return Value{Kind: KindBlob, Blob: b} }

// String wraps s as a string value.
func String(s string) Value { return Value{Kind: KindString, String: s} }

// Map wraps m as a map value. m is not copied.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// Size is the payload size in bytes: the length of a blob or string, or the
// sum of len(key)+Size() over a map.
func (v Value) Size() uint64 {
	switch v.Kind {
	case KindBlob:
		return uint64(len(v.Blob))
	case KindString:
		return uint64(len(v.String))
	case KindMap:
		var n uint64
		for k, e := range v.Map {
			n += uint64(len(k)) + e.Size()
		}
		return n
	default:
		return 0
	}
}

// Clone returns a deep copy that shares no memory with v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindBlob:
		if v.Blob == nil {
			return v
		}
		return Blob(append(make([]byte, 0, len(v.Blob)), v.Blob...))
	case KindMap:
		if v.Map == nil {
			return v
		}
		m := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = e.Clone()
		}
		return Map(m)
	default:
		return v
	}
}

// Equal reports whether v and o hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBlob:
		return string(v.Blob) == string(o.Blob)
	case KindString:
		return v.String == o.String
	case KindMap:
		return maps.EqualFunc(v.Map, o.Map, Value.Equal)
	default:
		return true
	}
}

// jsonValue is the wire form: exactly one field is present.
// Blobs travel as base64, the encoding/json default for []byte.
type jsonValue struct {
	Blob   *[]byte           `json:"blob,omitempty"`
	String *string           `json:"string,omitempty"`
	Map    *map[string]Value `json:"map,omitempty"`
}

// MarshalJSON encodes v as {"blob":..}, {"string":..} or {"map":{..}}.
func (v Value) MarshalJSON() ([]byte, error) {
	var jv jsonValue
	switch v.Kind {
	case KindBlob:
		b := v.Blob
		if b == nil {
			b = []byte{}
		}
		jv.Blob = &b
	case KindString:
		s := v.String
		jv.String = &s
	case KindMap:
		m := v.Map
		if m == nil {
			m = map[string]Value{}
		}
		jv.Map = &m
	default:
		return nil, ErrInvalidValue
	}
	return json.Marshal(jv)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	set := 0
	for _, present := range []bool{jv.Blob != nil, jv.String != nil, jv.Map != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidValue
	}
	switch {
	case jv.Blob != nil:
		*v = Blob(*jv.Blob)
	case jv.String != nil:
		*v = String(*jv.String)
	default:
		*v = Map(*jv.Map)
	}
	return nil
}
