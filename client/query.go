package client

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Query is an ordered set of query parameters. Keys are encoded in the
// order they were first set. A nil value, or a nil pointer, marks the
// parameter as unset and it is left out of the encoding entirely.
//
// The zero value is ready to use, and a nil *Query encodes to "".
type Query struct {
	keys   []string
	values map[string]any
}

// NewQuery returns an empty Query.
func NewQuery() *Query {
	return &Query{}
}

// Set assigns value to key and returns q for chaining. Setting a key a
// second time replaces its value but keeps its original position.
//
// Supported values are strings, booleans, integer and float kinds,
// [fmt.Stringer] and pointers to any of those. Floats are written in
// plain decimal notation, never with an exponent: 1e21 encodes as
// "1000000000000000000000".
func (q *Query) Set(key string, value any) *Query {
	if q.values == nil {
		q.values = make(map[string]any)
	}

	if _, exists := q.values[key]; !exists {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value

	return q
}

// Get returns the value stored for key.
func (q *Query) Get(key string) (any, bool) {
	if q == nil {
		return nil, false
	}

	v, ok := q.values[key]
	return v, ok
}

// Len returns the number of parameters that would be encoded.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}

	var n int
	for _, k := range q.keys {
		if _, ok := formatValue(q.values[k]); ok {
			n++
		}
	}

	return n
}

// Encode serializes the set parameters as application/x-www-form-urlencoded
// in insertion order. It returns "" when nothing is set.
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}

	var sb strings.Builder
	for _, k := range q.keys {
		v, ok := formatValue(q.values[k])
		if !ok {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(formEscape(k))
		sb.WriteByte('=')
		sb.WriteString(formEscape(v))
	}

	return sb.String()
}

// formatValue renders a query value. ok is false for unset values.
func formatValue(value any) (string, bool) {
	if value == nil {
		return "", false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		if _, ok := value.(fmt.Stringer); !ok {
			return formatValue(rv.Elem().Interface())
		}
	}

	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		return fmt.Sprint(value), true
	}
}

const upperHex = "0123456789ABCDEF"

// formEscape escapes s the way HTML forms and URLSearchParams do:
// ASCII letters, digits and "*-._" pass through, space becomes '+',
// every other byte is percent-encoded. This differs from
// url.QueryEscape, which leaves '~' alone and escapes '*'.
func formEscape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			sb.WriteByte(c)
		case c == '*', c == '-', c == '.', c == '_':
			sb.WriteByte(c)
		case c == ' ':
			sb.WriteByte('+')
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperHex[c>>4])
			sb.WriteByte(upperHex[c&15])
		}
	}

	return sb.String()
}
