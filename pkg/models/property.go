package models

import (
	"fmt"
	"slices"

	"github.com/docmapper/mongoadapter/pkg/constants"
)

// Visibility controls whether a member takes part in marshalling.
// Only Public members are written to and read from documents.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// Property describes a typed scalar field of a model.
// Properties belong to the schema and are never mutated by marshalling.
type Property struct {
	// Name is the logical attribute name.
	Name string
	// Field is the store field name. Empty means Name.
	Field string
	Type  Type

	// Nullable allows an explicit null to be written for the property.
	Nullable   bool
	Key        bool
	Visibility Visibility

	// Tags holds the discriminator tags accepted by a Discriminator property.
	// It is filled in when the schema registry is built.
	Tags []string
}

// FieldName returns the name of the document field holding the property.
func (p *Property) FieldName() string {
	if p.Field != "" {
		return p.Field
	}
	return p.Name
}

// Readable reports whether the property is publicly readable.
func (p *Property) Readable() bool {
	return p.Visibility == Public
}

// HasTag reports whether tag is a known discriminator tag.
// An empty tag set accepts any tag.
func (p *Property) HasTag(tag string) bool {
	if len(p.Tags) == 0 {
		return true
	}
	return slices.Contains(p.Tags, tag)
}

// CheckNull fails with ErrInvalidValue when v is nil and p does not accept null.
// The store identifier field always does, so the store can assign it.
func (p *Property) CheckNull(v any) error {
	if !isNil(v) || p.Nullable || p.FieldName() == constants.IDField {
		return nil
	}
	return fmt.Errorf("%w: %s is not nullable", constants.ErrInvalidValue, p.Name)
}
