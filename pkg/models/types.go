package models

import (
	"fmt"
	"strings"
)

// Type is the value type tag of a property. It decides how values are
// coerced into store scalars and which operators a condition may use.
type Type string

const (
	String        Type = "string"
	Integer       Type = "integer"
	Float         Type = "float"
	Boolean       Type = "boolean"
	Time          Type = "time"
	Binary        Type = "binary"
	ObjectID      Type = "object_id"
	RefType       Type = "reference"
	Discriminator Type = "discriminator"
	Decimal       Type = "decimal"
	UUID          Type = "uuid"
)

var typeAliases = map[string]Type{
	"string":        String,
	"text":          String,
	"integer":       Integer,
	"int":           Integer,
	"float":         Float,
	"boolean":       Boolean,
	"bool":          Boolean,
	"time":          Time,
	"datetime":      Time,
	"date":          Time,
	"binary":        Binary,
	"object_id":     ObjectID,
	"objectid":      ObjectID,
	"reference":     RefType,
	"ref":           RefType,
	"discriminator": Discriminator,
	"decimal":       Decimal,
	"uuid":          UUID,
}

// ParseType resolves a type name as written in schema files.
func ParseType(name string) (Type, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown property type %q", name)
	}
	return t, nil
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	_, err := ParseType(string(t))
	return err == nil
}

// Textual reports whether pattern operators (like, regexp) apply to t.
func (t Type) Textual() bool {
	return t == String
}

// Orderable reports whether range operators (lt, lte, gt, gte) apply to t.
func (t Type) Orderable() bool {
	switch t {
	case Binary, RefType, Boolean:
		return false
	default:
		return true
	}
}

func (t Type) String() string {
	return string(t)
}
