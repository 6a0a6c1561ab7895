package schema

import (
	"fmt"
	"strings"
)

// EmptySchema is the canonical schema of a record that could not be decoded
// as an object.
const EmptySchema = "{}"

// Field is one entry of a derived schema.
type Field struct {
	Name string
	Type TypeTag
}

// Fields is an ordered field→type mapping.
type Fields []Field

// Names returns the field names in order.
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}

// Lookup returns the tag of the named field.
func (f Fields) Lookup(name string) (TypeTag, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Type, true
		}
	}
	return "", false
}

// Canonical serializes the mapping as a compact JSON object with keys in order.
func (f Fields) Canonical() string {
	if len(f) == 0 {
		return EmptySchema
	}

	var sb strings.Builder
	sb.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(quote(field.Name))
		sb.WriteByte(':')
		sb.WriteString(quote(string(field.Type)))
	}
	sb.WriteByte('}')
	return sb.String()
}

const hexDigits = "0123456789ABCDEF"

// quote produces a JSON string literal. Only the quote, the backslash and
// characters below 0x20 are escaped; control characters without a short form
// use uppercase hex. Everything else, including U+2028 and U+2029, is written
// as is, so definitions stored by other writers of this format compare
// byte for byte.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '\f':
			sb.WriteString(`\f`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if c < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[c>>4])
				sb.WriteByte(hexDigits[c&0xF])
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// FieldsOf classifies each member of an already decoded object.
func FieldsOf(obj Object) Fields {
	fields := make(Fields, 0, len(obj))
	for _, m := range obj {
		fields = append(fields, Field{Name: m.Name, Type: InferType(m.Value)})
	}
	return fields
}

// DeriveFields decodes raw and returns its ordered field mapping. The error wraps
// ErrDecode or ErrNotObject.
func DeriveFields(raw []byte) (Fields, error) {
	obj, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	return FieldsOf(obj), nil
}

// Derive returns the canonical schema string of raw. Malformed input and
// non-object records yield EmptySchema.
func Derive(raw []byte) string {
	fields, err := DeriveFields(raw)
	if err != nil {
		return EmptySchema
	}
	return fields.Canonical()
}

// ParseCanonical reads a canonical schema string back into its field mapping.
func ParseCanonical(canonical string) (Fields, error) {
	obj, err := ParseObject([]byte(canonical))
	if err != nil {
		return nil, err
	}

	fields := make(Fields, 0, len(obj))
	for _, m := range obj {
		if m.Value.Kind != KindString || !TypeTag(m.Value.String).Valid() {
			return nil, fmt.Errorf("%w: field %q has no valid type tag", ErrDecode, m.Name)
		}
		fields = append(fields, Field{Name: m.Name, Type: TypeTag(m.Value.String)})
	}
	return fields, nil
}
