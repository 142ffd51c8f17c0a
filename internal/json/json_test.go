// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, s string) *Object {
	t.Helper()
	obj, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	require.NotNil(t, obj)
	return obj
}

func TestDecodeBasic(t *testing.T) {
	obj := decodeString(t, `{"a":1,"b":"two","c":3.5,"d":true,"e":null,"f":[1,2],"g":{"h":-4}}`)

	assert.Equal(t, int64(1), obj.Get("a").AsInt())
	assert.Equal(t, TypeInteger, obj.Get("a").Type())
	assert.Equal(t, "two", obj.Get("b").AsString())
	assert.Equal(t, 3.5, obj.Get("c").AsFloat())
	assert.Equal(t, TypeFloat, obj.Get("c").Type())
	assert.True(t, obj.Get("d").AsBool())
	assert.Equal(t, TypeNull, obj.Get("e").Type())
	assert.Len(t, obj.Get("f").AsArray(), 2)
	assert.Equal(t, int64(-4), GetPath(obj, "g", "h").AsInt())
}

func TestDecodeDuplicateKeyLaterWins(t *testing.T) {
	obj := decodeString(t, `{"a":1,"a":2}`)
	assert.Equal(t, 1, obj.Len())
	assert.Equal(t, int64(2), obj.Get("a").AsInt())
}

func TestDecodeStringEscapes(t *testing.T) {
	obj := decodeString(t, `{"s":"a\"b\\c\/d\b\t\n\f\r"}`)
	assert.Equal(t, "a\"b\\c/d\b\t\n\f\r", obj.Get("s").AsString())
}

func TestDecodeUnicodeEscape(t *testing.T) {
	obj := decodeString(t, `{"s":"caf\u00e9"}`)
	assert.Equal(t, "café", obj.Get("s").AsString())
}

func TestDecodeSurrogatePair(t *testing.T) {
	obj := decodeString(t, `{"s":"\ud83d\ude00"}`)
	assert.Equal(t, "\U0001F600", obj.Get("s").AsString())
}

func TestDecodeUnpairedSurrogate(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"s":"\ud83d"}`))
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = Decode(strings.NewReader(`{"s":"\ude00"}`))
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestDecodeEscapedNulDropped(t *testing.T) {
	obj := decodeString(t, `{"s":"a\u0000b"}`)
	assert.Equal(t, "ab", obj.Get("s").AsString())
}

func TestDecodeRawControlByteRejected(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"s\":\"a\x01b\"}"))
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestDecodeNoExponent(t *testing.T) {
	// The exponent is not part of the number; the trailing garbage then
	// fails the object grammar.
	_, err := Decode(strings.NewReader(`{"n":1e5}`))
	assert.Error(t, err)
}

func TestDecodeMalformedNumbers(t *testing.T) {
	for _, in := range []string{`{"n":-}`, `{"n":1.}`, `{"n":1.2.3}`} {
		_, err := Decode(strings.NewReader(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestDecodeNotJSON(t *testing.T) {
	for _, in := range []string{"", "[1,2]", "hello", "{", `{"a"}`} {
		_, err := Decode(strings.NewReader(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestRoundTrip(t *testing.T) {
	in := `{"a":1,"b":"two","c":3.5,"d":true,"e":null,"f":[1,"x",{"y":[]}],"g":{"h":-4}}`
	obj := decodeString(t, in)

	out := string(Marshal(obj, EncodeDefault))
	again := decodeString(t, out)

	assert.True(t, ObjectValue(obj).Equal(ObjectValue(again)))
}

func TestEncodePreservesKeyOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("z", IntValue(1))
	obj.Set("a", IntValue(2))
	obj.Set("m", IntValue(3))

	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(Marshal(obj, EncodeDefault)))
}

func TestEncodeCanonicalSortsKeys(t *testing.T) {
	obj := NewObject()
	obj.Set("z", IntValue(1))
	obj.Set("a", IntValue(2))
	obj.Set("m", ObjectValue(NewObject()))
	obj.Get("m").AsObject().Set("b", IntValue(3))
	obj.Get("m").AsObject().Set("a", IntValue(4))

	assert.Equal(t, `{"a":2,"m":{"a":4,"b":3},"z":1}`, string(Marshal(obj, EncodeCanonical)))
}

func TestEncodePretty(t *testing.T) {
	obj := NewObject()
	obj.Set("a", ArrayValue(IntValue(1)))

	want := "{\n  \"a\": [\n    1\n  ]\n}"
	assert.Equal(t, want, string(Marshal(obj, EncodePretty)))
}

func TestEncodeEscapes(t *testing.T) {
	obj := NewObject()
	obj.Set("s", StringValue("a\"b\\c\nd\x01"))

	assert.Equal(t, `{"s":"a\"b\\c\nd"}`, string(Marshal(obj, EncodeDefault)))
}

func TestMerge(t *testing.T) {
	dst := decodeString(t, `{"a":1,"b":{"c":2,"d":3},"e":[1]}`)
	src := decodeString(t, `{"b":{"d":4,"f":5},"e":[2,3],"g":"new"}`)

	Merge(dst, src)

	assert.Equal(t, int64(1), dst.Get("a").AsInt())
	assert.Equal(t, int64(2), GetPath(dst, "b", "c").AsInt())
	assert.Equal(t, int64(4), GetPath(dst, "b", "d").AsInt())
	assert.Equal(t, int64(5), GetPath(dst, "b", "f").AsInt())
	assert.Len(t, dst.Get("e").AsArray(), 2)
	assert.Equal(t, "new", dst.Get("g").AsString())
}

func TestSetPathCreatesIntermediates(t *testing.T) {
	obj := NewObject()
	SetPath(obj, StringValue("bob"), "deactivate", "by")

	assert.Equal(t, "bob", GetPath(obj, "deactivate", "by").AsString())
}

func TestDuplicateIsDeep(t *testing.T) {
	obj := decodeString(t, `{"a":{"b":[1,2]}}`)
	dup := obj.Duplicate()

	GetPath(dup, "a").AsObject().Set("b", IntValue(9))
	assert.Len(t, GetPath(obj, "a", "b").AsArray(), 2)
}

func TestFromInterfaceRoundTrip(t *testing.T) {
	v, err := FromInterface(map[string]interface{}{
		"port":  float64(8008),
		"ratio": 1.5,
		"tags":  []interface{}{"a", "b"},
	})
	require.NoError(t, err)

	obj := v.AsObject()
	require.NotNil(t, obj)
	assert.Equal(t, TypeInteger, obj.Get("port").Type())
	assert.Equal(t, int64(8008), obj.Get("port").AsInt())
	assert.Equal(t, TypeFloat, obj.Get("ratio").Type())
	assert.Len(t, obj.Get("tags").AsArray(), 2)
}
