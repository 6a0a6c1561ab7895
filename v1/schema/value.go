package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxDepth bounds the nesting of arrays and objects accepted by Parse.
const MaxDepth = 1000

var (
	// ErrDecode is returned when a raw record is not a well-formed JSON document.
	ErrDecode = errors.New("schema: malformed record")

	// ErrNotObject is returned when a record decodes but its top-level value is not an object.
	ErrNotObject = errors.New("schema: record is not an object")
)

// Kind identifies the shape of a decoded Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a decoded JSON value. Only the field matching Kind is meaningful.
// Numbers keep their lexical form so integer and floating representations
// can be told apart after decoding.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  json.Number
	String  string
	Items   []Value
	Members Object
}

// Member is a single name/value pair of an object.
type Member struct {
	Name  string
	Value Value
}

// Object is an ordered list of members in source order.
type Object []Member

// Get returns the value of the named member.
func (o Object) Get(name string) (Value, bool) {
	for _, m := range o {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// set replaces the value of an existing member in place or appends a new one.
// A repeated key keeps its first position and its last value.
func (o Object) set(name string, v Value) Object {
	for i := range o {
		if o[i].Name == name {
			o[i].Value = v
			return o
		}
	}
	return append(o, Member{Name: name, Value: v})
}

// Text renders a scalar the way it appears in the record: strings unquoted,
// numbers in their source form. Arrays and objects are rendered as compact JSON.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.String
	case KindNumber:
		return v.Number.String()
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNull:
		return "null"
	default:
		b, err := json.Marshal(v.native())
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func (v Value) native() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.String
	case KindArray:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.native()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.Members))
		for _, m := range v.Members {
			out[m.Name] = m.Value.native()
		}
		return out
	default:
		return nil
	}
}

// Parse decodes exactly one JSON document. Object member order is preserved.
// Trailing data after the document is rejected.
func Parse(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := parseValue(dec, 0)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("%w: unexpected data after top-level value", ErrDecode)
	}
	return v, nil
}

// ParseObject decodes raw and requires the top-level value to be an object.
func ParseObject(raw []byte) (Object, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObject {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, v.Kind)
	}
	return v.Members, nil
}

func parseValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return Value{}, fmt.Errorf("nesting exceeds %d levels", MaxDepth)
		}
		switch t {
		case '{':
			return parseObject(dec, depth+1)
		case '[':
			return parseArray(dec, depth+1)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t}, nil
	case string:
		return Value{Kind: KindString, String: t}, nil
	case nil:
		return Value{Kind: KindNull}, nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", t)
	}
}

func parseObject(dec *json.Decoder, depth int) (Value, error) {
	members := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		name, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, want string", tok)
		}

		v, err := parseValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		members = members.set(name, v)
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KindObject, Members: members}, nil
}

func parseArray(dec *json.Decoder, depth int) (Value, error) {
	items := []Value{}
	for dec.More() {
		v, err := parseValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}

	// closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KindArray, Items: items}, nil
}
