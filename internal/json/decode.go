// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Decode errors surfaced to callers that need to distinguish bad input
// from I/O trouble.
var (
	ErrBadInput = errors.New("json: malformed input")
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenObjectOpen
	tokenObjectClose
	tokenArrayOpen
	tokenArrayClose
	tokenColon
	tokenComma
	tokenString
	tokenInteger
	tokenFloat
	tokenTrue
	tokenFalse
	tokenNull
)

type token struct {
	kind tokenKind
	str  string
	num  int64
	flt  float64
}

type decoder struct {
	r *bufio.Reader
}

// Decode parses a single JSON object from r. Trailing data after the
// object is left unread. Any syntax violation returns an error wrapping
// ErrBadInput.
func Decode(r io.Reader) (*Object, error) {
	d := &decoder{r: bufio.NewReader(r)}
	tok, err := d.next()
	if err != nil {
		return nil, err
	}
	if tok.kind != tokenObjectOpen {
		return nil, fmt.Errorf("%w: expected object", ErrBadInput)
	}
	v, err := d.object()
	if err != nil {
		return nil, err
	}
	return v.AsObject(), nil
}

// DecodeValue parses any single JSON value from r.
func DecodeValue(r io.Reader) (*Value, error) {
	d := &decoder{r: bufio.NewReader(r)}
	tok, err := d.next()
	if err != nil {
		return nil, err
	}
	return d.value(tok)
}

func (d *decoder) value(tok token) (*Value, error) {
	switch tok.kind {
	case tokenObjectOpen:
		return d.object()
	case tokenArrayOpen:
		return d.array()
	case tokenString:
		return StringValue(tok.str), nil
	case tokenInteger:
		return IntValue(tok.num), nil
	case tokenFloat:
		return FloatValue(tok.flt), nil
	case tokenTrue:
		return BoolValue(true), nil
	case tokenFalse:
		return BoolValue(false), nil
	case tokenNull:
		return Null(), nil
	case tokenEOF:
		return nil, fmt.Errorf("%w: unexpected end of input", ErrBadInput)
	}
	return nil, fmt.Errorf("%w: unexpected token", ErrBadInput)
}

// object parses the remainder of an object after the opening brace.
// A duplicate key discards the previously stored value.
func (d *decoder) object() (*Value, error) {
	obj := NewObject()
	first := true
	for {
		tok, err := d.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenObjectClose && first {
			return ObjectValue(obj), nil
		}
		if !first {
			if tok.kind == tokenObjectClose {
				return ObjectValue(obj), nil
			}
			if tok.kind != tokenComma {
				return nil, fmt.Errorf("%w: expected ',' or '}'", ErrBadInput)
			}
			tok, err = d.next()
			if err != nil {
				return nil, err
			}
		}
		if tok.kind != tokenString {
			return nil, fmt.Errorf("%w: expected object key", ErrBadInput)
		}
		key := tok.str

		tok, err = d.next()
		if err != nil {
			return nil, err
		}
		if tok.kind != tokenColon {
			return nil, fmt.Errorf("%w: expected ':'", ErrBadInput)
		}

		tok, err = d.next()
		if err != nil {
			return nil, err
		}
		val, err := d.value(tok)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
		first = false
	}
}

func (d *decoder) array() (*Value, error) {
	arr := ArrayValue()
	first := true
	for {
		tok, err := d.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenArrayClose {
			return arr, nil
		}
		if !first {
			if tok.kind != tokenComma {
				return nil, fmt.Errorf("%w: expected ',' or ']'", ErrBadInput)
			}
			tok, err = d.next()
			if err != nil {
				return nil, err
			}
		}
		val, err := d.value(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(val)
		first = false
	}
}

func (d *decoder) next() (token, error) {
	c, err := d.skipSpace()
	if err == io.EOF {
		return token{kind: tokenEOF}, nil
	}
	if err != nil {
		return token{}, err
	}

	switch c {
	case '{':
		return token{kind: tokenObjectOpen}, nil
	case '}':
		return token{kind: tokenObjectClose}, nil
	case '[':
		return token{kind: tokenArrayOpen}, nil
	case ']':
		return token{kind: tokenArrayClose}, nil
	case ':':
		return token{kind: tokenColon}, nil
	case ',':
		return token{kind: tokenComma}, nil
	case '"':
		s, err := d.string()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokenString, str: s}, nil
	case 't':
		if err := d.literal("rue"); err != nil {
			return token{}, err
		}
		return token{kind: tokenTrue}, nil
	case 'f':
		if err := d.literal("alse"); err != nil {
			return token{}, err
		}
		return token{kind: tokenFalse}, nil
	case 'n':
		if err := d.literal("ull"); err != nil {
			return token{}, err
		}
		return token{kind: tokenNull}, nil
	}

	if c == '-' || (c >= '0' && c <= '9') {
		return d.number(c)
	}

	return token{}, fmt.Errorf("%w: unexpected byte %q", ErrBadInput, c)
}

func (d *decoder) skipSpace() (byte, error) {
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c, nil
	}
}

func (d *decoder) literal(rest string) error {
	for i := 0; i < len(rest); i++ {
		c, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: truncated literal", ErrBadInput)
		}
		if c != rest[i] {
			return fmt.Errorf("%w: bad literal", ErrBadInput)
		}
	}
	return nil
}

// string parses the remainder of a string after the opening quote.
// Escaped NUL is dropped rather than embedded; unescaped control bytes
// are rejected.
func (d *decoder) string() (string, error) {
	var sb strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: unterminated string", ErrBadInput)
		}
		switch {
		case c == '"':
			return sb.String(), nil
		case c == '\\':
			if err := d.escape(&sb); err != nil {
				return "", err
			}
		case c <= 0x1F:
			return "", fmt.Errorf("%w: raw control byte in string", ErrBadInput)
		default:
			sb.WriteByte(c)
		}
	}
}

func (d *decoder) escape(sb *strings.Builder) error {
	c, err := d.r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: truncated escape", ErrBadInput)
	}
	switch c {
	case '"', '\\', '/':
		sb.WriteByte(c)
	case 'b':
		sb.WriteByte('\b')
	case 't':
		sb.WriteByte('\t')
	case 'n':
		sb.WriteByte('\n')
	case 'f':
		sb.WriteByte('\f')
	case 'r':
		sb.WriteByte('\r')
	case 'u':
		return d.unicodeEscape(sb)
	default:
		return fmt.Errorf("%w: unknown escape \\%c", ErrBadInput, c)
	}
	return nil
}

func (d *decoder) unicodeEscape(sb *strings.Builder) error {
	cp, err := d.hex4()
	if err != nil {
		return err
	}

	if utf16.IsSurrogate(rune(cp)) {
		if cp >= 0xDC00 {
			return fmt.Errorf("%w: unpaired low surrogate", ErrBadInput)
		}
		// A high surrogate requires the low half immediately after it.
		if c, err := d.r.ReadByte(); err != nil || c != '\\' {
			return fmt.Errorf("%w: missing low surrogate", ErrBadInput)
		}
		if c, err := d.r.ReadByte(); err != nil || c != 'u' {
			return fmt.Errorf("%w: missing low surrogate", ErrBadInput)
		}
		low, err := d.hex4()
		if err != nil {
			return err
		}
		r := utf16.DecodeRune(rune(cp), rune(low))
		if r == utf8.RuneError {
			return fmt.Errorf("%w: invalid surrogate pair", ErrBadInput)
		}
		sb.WriteRune(r)
		return nil
	}

	if cp == 0 {
		// Drop escaped NUL so it can never be embedded in stored strings.
		return nil
	}

	sb.WriteRune(rune(cp))
	return nil
}

func (d *decoder) hex4() (uint32, error) {
	var cp uint32
	for i := 0; i < 4; i++ {
		c, err := d.r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: truncated \\u escape", ErrBadInput)
		}
		cp <<= 4
		switch {
		case c >= '0' && c <= '9':
			cp |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			cp |= uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			cp |= uint32(c-'A') + 10
		default:
			return 0, fmt.Errorf("%w: bad hex digit in \\u escape", ErrBadInput)
		}
	}
	return cp, nil
}

// number parses an integer or a float with a single fractional part.
// Exponents are not accepted.
func (d *decoder) number(first byte) (token, error) {
	var sb strings.Builder
	sb.WriteByte(first)

	isFloat := false
	for {
		c, err := d.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, err
		}
		if c >= '0' && c <= '9' {
			sb.WriteByte(c)
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			sb.WriteByte(c)
			continue
		}
		d.r.UnreadByte()
		break
	}

	text := sb.String()
	if text == "-" || strings.HasSuffix(text, ".") {
		return token{}, fmt.Errorf("%w: malformed number %q", ErrBadInput, text)
	}

	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, fmt.Errorf("%w: malformed number %q", ErrBadInput, text)
		}
		return token{kind: tokenFloat, flt: f}, nil
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, fmt.Errorf("%w: malformed number %q", ErrBadInput, text)
	}
	return token{kind: tokenInteger, num: n}, nil
}
