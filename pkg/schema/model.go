// Package schema holds the model descriptors the adapter marshals against.
//
// Models are declared as plain data and registered in a [Registry]. Building the
// registry resolves embedment targets, inherits members into subtypes, computes
// discriminator tags and the list of publicly readable members. Marshalling
// only ever consults that precomputed list.
package schema

import (
	"strings"

	"github.com/docmapper/mongoadapter/pkg/models"
)

// Kind is the cardinality of an embedment.
type Kind int

const (
	OneToOne Kind = iota + 1
	OneToMany
)

func (k Kind) String() string {
	switch k {
	case OneToOne:
		return "one_to_one"
	case OneToMany:
		return "one_to_many"
	default:
		return "unknown"
	}
}

// Embedment relates an owning model to a model stored inside its documents.
type Embedment struct {
	// Name is the relation name used in resources and attribute maps.
	Name string
	// Field is the document field. Empty means Name.
	Field string
	Kind  Kind
	// Target names the embedded model.
	Target     string
	Visibility models.Visibility

	model *Model
}

// FieldName returns the document field holding the embedded document(s).
func (e *Embedment) FieldName() string {
	if e.Field != "" {
		return e.Field
	}
	return e.Name
}

// Model returns the resolved target model. It is nil before the registry is built.
func (e *Embedment) Model() *Model {
	return e.model
}

// Member is one entry of a model's publicly readable member list:
// exactly one of Property and Embedment is set.
type Member struct {
	Property  *models.Property
	Embedment *Embedment
}

// Name returns the logical name of the member.
func (m Member) Name() string {
	if m.Property != nil {
		return m.Property.Name
	}
	return m.Embedment.Name
}

// FieldName returns the document field of the member.
func (m Member) FieldName() string {
	if m.Property != nil {
		return m.Property.FieldName()
	}
	return m.Embedment.FieldName()
}

// Model describes a resource type.
type Model struct {
	Name string
	// Storage is the collection name. Subtypes share the root model's collection.
	// Empty means the lower-cased model name.
	Storage string
	// Parent names the model this one extends. Parent members are inherited.
	Parent string
	// Embedded marks models that only live inside other documents.
	Embedded bool

	Properties []*models.Property
	Embedments []*Embedment

	parent        *Model
	subtypes      map[string]*Model
	members       []Member
	byField       map[string]Member
	byName        map[string]Member
	key           []*models.Property
	discriminator *models.Property
}

// DiscriminatorTag returns the tag stored for documents of this model.
func (m *Model) DiscriminatorTag() string {
	return m.Name
}

// Collection returns the name of the collection the model is stored in.
func (m *Model) Collection() string {
	root := m
	for root.parent != nil {
		root = root.parent
	}
	if root.Storage != "" {
		return root.Storage
	}
	return strings.ToLower(root.Name)
}

// Members returns the publicly readable properties and embedments in declaration order,
// inherited members first.
func (m *Model) Members() []Member {
	return m.members
}

// Key returns the key properties in declaration order.
func (m *Model) Key() []*models.Property {
	return m.key
}

// Discriminator returns the discriminator property, or nil.
func (m *Model) Discriminator() *models.Property {
	return m.discriminator
}

// Property looks up a property by logical name, including non-public ones.
func (m *Model) Property(name string) *models.Property {
	for cur := m; cur != nil; cur = cur.parent {
		for _, p := range cur.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Embedment looks up an embedment by relation name.
func (m *Model) Embedment(name string) *Embedment {
	for cur := m; cur != nil; cur = cur.parent {
		for _, e := range cur.Embedments {
			if e.Name == name {
				return e
			}
		}
	}
	return nil
}

// MemberByField returns the public member stored under the given document field.
func (m *Model) MemberByField(field string) (Member, bool) {
	member, ok := m.byField[field]
	return member, ok
}

// MemberByName returns the public member with the given logical name.
func (m *Model) MemberByName(name string) (Member, bool) {
	member, ok := m.byName[name]
	return member, ok
}

// Subtype returns the model registered under a discriminator tag within this model's
// hierarchy, including the model itself.
func (m *Model) Subtype(tag string) (*Model, bool) {
	if tag == m.Name {
		return m, true
	}
	sub, ok := m.subtypes[tag]
	return sub, ok
}

// IsA reports whether m is other or one of its descendants.
func (m *Model) IsA(other *Model) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}
