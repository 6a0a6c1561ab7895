package schema

import (
	"strconv"
	"strings"
)

// TypeTag is the type class assigned to a top-level field.
type TypeTag string

const (
	TypeInteger TypeTag = "integer"
	TypeLong    TypeTag = "long"
	TypeDouble  TypeTag = "double"
	TypeBoolean TypeTag = "boolean"
	TypeArray   TypeTag = "array"
	TypeObject  TypeTag = "object"
	TypeString  TypeTag = "string"
)

// Valid reports whether t is one of the known tags.
func (t TypeTag) Valid() bool {
	switch t {
	case TypeInteger, TypeLong, TypeDouble, TypeBoolean, TypeArray, TypeObject, TypeString:
		return true
	}
	return false
}

// InferType classifies a decoded value. It never fails: anything that is not
// a boolean, a representable number, an array or an object is a string,
// including null and integers wider than 64 bits.
func InferType(v Value) TypeTag {
	switch v.Kind {
	case KindBool:
		return TypeBoolean
	case KindNumber:
		return inferNumber(v.Number.String())
	case KindArray:
		return TypeArray
	case KindObject:
		return TypeObject
	default:
		return TypeString
	}
}

func inferNumber(lexeme string) TypeTag {
	if strings.ContainsAny(lexeme, ".eE") {
		return TypeDouble
	}
	if _, err := strconv.ParseInt(lexeme, 10, 32); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseInt(lexeme, 10, 64); err == nil {
		return TypeLong
	}
	return TypeString
}
