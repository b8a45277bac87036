package core

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// State values cross the session boundary in a canonical form so that deep
// copy and deep equality are cheap structural operations:
//
//	nil | bool | json.Number | string | []any | map[string]any
//
// NormalizeValue converts any JSON-serializable Go value into that form by a
// marshal/unmarshal round trip with UseNumber, which doubles as the
// serializability check. CopyValue and EqualValues operate on normalized trees.

// NormalizeValue returns the canonical JSON tree for v, or an INVALID_VALUE
// error if v cannot be marshaled to JSON.
func NormalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, Errorf(CodeInvalidValue, "value is not JSON-serializable: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, Errorf(CodeInvalidValue, "value is not JSON-serializable: %v", err)
	}
	return out, nil
}

// NormalizeMap normalizes every value of m, returning a fresh canonical map.
// A nil input yields an empty map.
func NormalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

// CopyValue deep-copies a canonical JSON tree. Scalars are immutable and
// returned as-is; maps and slices are rebuilt recursively.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, e := range t {
			cp[k] = CopyValue(e)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = CopyValue(e)
		}
		return cp
	default:
		return v
	}
}

// CopyMap deep-copies a canonical string-keyed map.
func CopyMap(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = CopyValue(v)
	}
	return cp
}

// EqualValues reports structural equality of two values after normalization,
// so e.g. int(42) compares equal to json.Number("42"). Non-serializable
// inputs compare unequal.
func EqualValues(a, b any) bool {
	na, err := NormalizeValue(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeValue(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}
