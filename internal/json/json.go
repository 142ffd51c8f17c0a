// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package json implements the JSON representation used by the object store
// and the client API. Unlike encoding/json it keeps a typed value tree with
// insertion-ordered objects, distinguishes integers from floats, and offers
// a canonical encoding for payloads that get signed.
package json

import (
	"fmt"
	"math"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Type identifies the variant held by a Value.
type Type int

const (
	TypeNull Type = iota
	TypeObject
	TypeArray
	TypeString
	TypeInteger
	TypeFloat
	TypeBoolean
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	}
	return "invalid"
}

// Value is a tagged variant over the JSON types.
type Value struct {
	typ Type
	obj *Object
	arr []*Value
	str string
	num int64
	flt float64
	boo bool
}

// Object is an insertion-ordered string-keyed map of values.
type Object struct {
	om *orderedmap.OrderedMap[string, *Value]
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{om: orderedmap.New[string, *Value]()}
}

// Get returns the value stored under key, or nil.
func (o *Object) Get(key string) *Value {
	if o == nil {
		return nil
	}
	v, _ := o.om.Get(key)
	return v
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.om.Get(key)
	return ok
}

// Set stores v under key, replacing any previous value.
func (o *Object) Set(key string, v *Value) {
	if v == nil {
		v = Null()
	}
	o.om.Set(key, v)
}

// Delete removes key. It reports whether the key was present.
func (o *Object) Delete(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.om.Delete(key)
	return ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.om.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.om.Len())
	for pair := o.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// sortedKeys returns the keys in lexicographic order, for canonical output.
func (o *Object) sortedKeys() []string {
	keys := o.Keys()
	sort.Strings(keys)
	return keys
}

// Range calls fn for each key/value pair in insertion order until fn
// returns false.
func (o *Object) Range(fn func(key string, v *Value) bool) {
	if o == nil {
		return
	}
	for pair := o.om.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// ObjectValue wraps an object as a value.
func ObjectValue(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{typ: TypeObject, obj: o}
}

// ArrayValue builds an array value from the given elements.
func ArrayValue(elems ...*Value) *Value {
	arr := make([]*Value, 0, len(elems))
	arr = append(arr, elems...)
	return &Value{typ: TypeArray, arr: arr}
}

// StringValue wraps a string.
func StringValue(s string) *Value {
	return &Value{typ: TypeString, str: s}
}

// IntValue wraps a 64-bit signed integer.
func IntValue(i int64) *Value {
	return &Value{typ: TypeInteger, num: i}
}

// FloatValue wraps a float.
func FloatValue(f float64) *Value {
	return &Value{typ: TypeFloat, flt: f}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) *Value {
	return &Value{typ: TypeBoolean, boo: b}
}

// Null returns the null value.
func Null() *Value {
	return &Value{typ: TypeNull}
}

// Type returns the variant tag. A nil value reads as null.
func (v *Value) Type() Type {
	if v == nil {
		return TypeNull
	}
	return v.typ
}

// AsObject returns the object variant, or nil if v is not an object.
func (v *Value) AsObject() *Object {
	if v == nil || v.typ != TypeObject {
		return nil
	}
	return v.obj
}

// AsArray returns the array elements, or nil if v is not an array.
func (v *Value) AsArray() []*Value {
	if v == nil || v.typ != TypeArray {
		return nil
	}
	return v.arr
}

// AsString returns the string variant, or "" if v is not a string.
func (v *Value) AsString() string {
	if v == nil || v.typ != TypeString {
		return ""
	}
	return v.str
}

// AsInt returns the integer variant. Floats are truncated; anything else
// reads as 0.
func (v *Value) AsInt() int64 {
	if v == nil {
		return 0
	}
	switch v.typ {
	case TypeInteger:
		return v.num
	case TypeFloat:
		return int64(v.flt)
	}
	return 0
}

// AsFloat returns the float variant. Integers are widened; anything else
// reads as 0.
func (v *Value) AsFloat() float64 {
	if v == nil {
		return 0
	}
	switch v.typ {
	case TypeFloat:
		return v.flt
	case TypeInteger:
		return float64(v.num)
	}
	return 0
}

// AsBool returns the boolean variant, or false if v is not a boolean.
func (v *Value) AsBool() bool {
	if v == nil || v.typ != TypeBoolean {
		return false
	}
	return v.boo
}

// Append adds elements to an array value. It is a no-op on other types.
func (v *Value) Append(elems ...*Value) {
	if v == nil || v.typ != TypeArray {
		return
	}
	v.arr = append(v.arr, elems...)
}

// RemoveIndex deletes the element at i from an array value.
func (v *Value) RemoveIndex(i int) {
	if v == nil || v.typ != TypeArray || i < 0 || i >= len(v.arr) {
		return
	}
	v.arr = append(v.arr[:i], v.arr[i+1:]...)
}

// Duplicate deep-copies a value.
func (v *Value) Duplicate() *Value {
	if v == nil {
		return Null()
	}
	switch v.typ {
	case TypeObject:
		return ObjectValue(v.obj.Duplicate())
	case TypeArray:
		arr := make([]*Value, len(v.arr))
		for i, e := range v.arr {
			arr[i] = e.Duplicate()
		}
		return &Value{typ: TypeArray, arr: arr}
	default:
		dup := *v
		return &dup
	}
}

// Duplicate deep-copies an object.
func (o *Object) Duplicate() *Object {
	dup := NewObject()
	o.Range(func(key string, v *Value) bool {
		dup.Set(key, v.Duplicate())
		return true
	})
	return dup
}

// GetPath descends through nested objects by key and returns the value at
// the end of the path, or nil if any step is missing or not an object.
func GetPath(o *Object, keys ...string) *Value {
	if len(keys) == 0 {
		return nil
	}
	cur := o
	for _, key := range keys[:len(keys)-1] {
		cur = cur.Get(key).AsObject()
		if cur == nil {
			return nil
		}
	}
	return cur.Get(keys[len(keys)-1])
}

// SetPath stores v at the end of the key path, creating intermediate
// objects as needed. Intermediate non-object values are replaced.
func SetPath(o *Object, v *Value, keys ...string) {
	if o == nil || len(keys) == 0 {
		return
	}
	cur := o
	for _, key := range keys[:len(keys)-1] {
		next := cur.Get(key).AsObject()
		if next == nil {
			next = NewObject()
			cur.Set(key, ObjectValue(next))
		}
		cur = next
	}
	cur.Set(keys[len(keys)-1], v)
}

// Merge recursively merges src into dst. Object values merge key-wise;
// everything else in src replaces the value in dst.
func Merge(dst, src *Object) {
	if dst == nil || src == nil {
		return
	}
	src.Range(func(key string, v *Value) bool {
		if v.Type() == TypeObject {
			if into := dst.Get(key).AsObject(); into != nil {
				Merge(into, v.AsObject())
				return true
			}
		}
		dst.Set(key, v.Duplicate())
		return true
	})
}

// FromInterface converts a plain decoded tree (as produced by hjson or
// encoding/json into interface{}) to a Value.
func FromInterface(x interface{}) (*Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return IntValue(int64(t)), nil
		}
		return FloatValue(t), nil
	case []interface{}:
		arr := ArrayValue()
		for _, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return nil, err
			}
			arr.Append(ev)
		}
		return arr, nil
	case map[string]interface{}:
		obj := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ev, err := FromInterface(t[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, ev)
		}
		return ObjectValue(obj), nil
	}
	return nil, fmt.Errorf("json: cannot represent %T", x)
}

// Interface converts a value back to a plain interface{} tree.
func (v *Value) Interface() interface{} {
	switch v.Type() {
	case TypeObject:
		m := make(map[string]interface{}, v.obj.Len())
		v.obj.Range(func(key string, e *Value) bool {
			m[key] = e.Interface()
			return true
		})
		return m
	case TypeArray:
		arr := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			arr[i] = e.Interface()
		}
		return arr
	case TypeString:
		return v.str
	case TypeInteger:
		return v.num
	case TypeFloat:
		return v.flt
	case TypeBoolean:
		return v.boo
	}
	return nil
}

// Equal reports deep equality of two values. Integer and float variants
// are distinct even when numerically equal.
func (v *Value) Equal(other *Value) bool {
	if v.Type() != other.Type() {
		return false
	}
	switch v.Type() {
	case TypeNull:
		return true
	case TypeString:
		return v.str == other.str
	case TypeInteger:
		return v.num == other.num
	case TypeFloat:
		return v.flt == other.flt
	case TypeBoolean:
		return v.boo == other.boo
	case TypeArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		if v.obj.Len() != other.obj.Len() {
			return false
		}
		eq := true
		v.obj.Range(func(key string, e *Value) bool {
			oe := other.obj.Get(key)
			if oe == nil || !e.Equal(oe) {
				eq = false
				return false
			}
			return true
		})
		return eq
	}
	return false
}
