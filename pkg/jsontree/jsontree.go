// Package jsontree holds an untyped JSON value tree used for opaque record payloads
// and for structural comparison of encoded records.
package jsontree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

// Kind is the tag of a Value
type Kind uint8

const (
	// KindInvalid is the zero Value; it stands for an absent value.
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindInvalid: "absent",
	KindNull:    "null",
	KindBool:    "bool",
	KindNumber:  "number",
	KindString:  "string",
	KindArray:   "array",
	KindObject:  "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Member is one key/value entry of an object
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. Numbers keep their literal text; objects keep
// first-seen key order, and a repeated key keeps its last value.
type Value struct {
	kind       Kind
	boolean    bool
	text       string // string contents or number literal
	items      []Value
	members    []Member
	index      map[string]int
	duplicates []string
}

// Null returns the JSON null value
func Null() Value { return Value{kind: KindNull} }

// Bool returns a JSON boolean
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// String returns a JSON string
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int returns a JSON number holding n
func Int(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// Number returns a JSON number from its literal text. The literal is validated.
func Number(literal string) (Value, error) {
	if err := fastjson.Validate(literal); err != nil {
		return Value{}, fmt.Errorf("invalid number literal %q: %w", literal, err)
	}
	pv, err := fastjson.Parse(literal)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number literal %q: %w", literal, err)
	}
	if pv.Type() != fastjson.TypeNumber || strings.TrimSpace(literal) != literal {
		return Value{}, fmt.Errorf("invalid number literal %q", literal)
	}
	return Value{kind: KindNumber, text: literal}, nil
}

// Array returns a JSON array of the given items
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// Object returns a JSON object of the given members
func Object(members ...Member) Value {
	v := Value{kind: KindObject, index: make(map[string]int, len(members))}
	for _, m := range members {
		v.set(m.Key, m.Value)
	}
	return v
}

func (v *Value) set(key string, val Value) {
	if i, ok := v.index[key]; ok {
		v.members[i].Value = val
		return
	}
	v.index[key] = len(v.members)
	v.members = append(v.members, Member{Key: key, Value: val})
}

// Kind returns the value's tag
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// BoolValue returns the boolean held by a KindBool value
func (v Value) BoolValue() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// StringValue returns the contents of a KindString value
func (v Value) StringValue() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// NumberLiteral returns the literal text of a KindNumber value
func (v Value) NumberLiteral() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// Int64 returns a KindNumber value as an integer. Literals with a fraction or
// exponent, and integers outside the int64 range, are rejected.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("value is %s, not number", v.kind)
	}
	return strconv.ParseInt(v.text, 10, 64)
}

// Float64 returns a KindNumber value as a float
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("value is %s, not number", v.kind)
	}
	return strconv.ParseFloat(v.text, 64)
}

// Items returns the elements of a KindArray value
func (v Value) Items() []Value {
	return v.items
}

// Members returns the entries of a KindObject value in key order
func (v Value) Members() []Member {
	return v.members
}

// Duplicates returns the keys that appeared more than once in a parsed object,
// once per repetition, in the order the repetitions were read.
func (v Value) Duplicates() []string {
	return v.duplicates
}

// Len returns the number of array items or object members
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Get returns the member stored under key of a KindObject value
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i, ok := v.index[key]
	if !ok {
		return Value{}, false
	}
	return v.members[i].Value, true
}

// Describe renders v for diagnostics, abbreviating long encodings.
func (v Value) Describe() string {
	if !v.IsValid() {
		return "<absent>"
	}
	s := string(v.MarshalTo(nil))
	const limit = 256
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func (v Value) String() string {
	return v.Describe()
}
