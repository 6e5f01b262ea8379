// Package marshal converts resources and raw attribute maps into store documents
// and store documents back into attribute maps.
//
// Only the members a model exposes publicly are written and read. Embedments are
// expanded recursively: a one-to-one relation becomes a nested document, a
// one-to-many relation an ordered array of nested documents.
package marshal

import (
	"fmt"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/docmapper/mongoadapter/pkg/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Source is what a document can be built from.
type Source interface {
	*resource.Resource | resource.Attributes
}

type options struct {
	omitIdentity bool
	skipUnset    bool
	rejectNull   bool
}

// Option tunes ToDocument.
type Option func(*options)

// OmitIdentity leaves the store identifier field out of the document.
// Update documents are built this way so the store-managed identifier is never overwritten.
func OmitIdentity() Option {
	return func(o *options) { o.omitIdentity = true }
}

// SkipUnset writes only the members the source carries a value for.
// Without it an unset property is written as null.
func SkipUnset() Option {
	return func(o *options) { o.skipUnset = true }
}

// RejectNull fails with ErrInvalidValue when the source sets a property that is
// not nullable to nil. Unset properties are not affected.
func RejectNull() Option {
	return func(o *options) { o.rejectNull = true }
}

// ToDocument marshals src as a document of model m.
// A typed resource is marshalled as its own model when that model is a subtype of m.
func ToDocument[S Source](m *schema.Model, src S, opts ...Option) (bson.D, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return encode(m, node(any(src)), o, 0)
}

// source is the uniform view of a resource or an attribute map.
type source interface {
	value(name string) (any, bool)
	one(name string) (any, bool)
	many(name string) ([]any, bool)
	model() *schema.Model
}

func node(v any) source {
	switch x := v.(type) {
	case *resource.Resource:
		if x == nil {
			return nil
		}
		return resourceSource{x}
	case resource.Attributes:
		return attributeSource(x)
	case map[string]any:
		return attributeSource(x)
	}
	return nil
}

type resourceSource struct{ r *resource.Resource }

func (s resourceSource) value(name string) (any, bool) {
	v, ok := s.r.Attributes[name]
	return v, ok
}

func (s resourceSource) one(name string) (any, bool) {
	child, ok := s.r.One[name]
	if !ok || child == nil {
		return nil, false
	}
	return child, true
}

func (s resourceSource) many(name string) ([]any, bool) {
	children, ok := s.r.Many[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(children))
	for i, c := range children {
		out[i] = c
	}
	return out, true
}

func (s resourceSource) model() *schema.Model {
	return s.r.Model
}

type attributeSource resource.Attributes

func (s attributeSource) value(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

func (s attributeSource) one(name string) (any, bool) {
	v, ok := s[name]
	if r, isResource := v.(*resource.Resource); !ok || v == nil || (isResource && r == nil) {
		return nil, false
	}
	return v, true
}

func (s attributeSource) many(name string) ([]any, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return nil, ok
	}
	switch list := v.(type) {
	case []resource.Attributes:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []*resource.Resource:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []any:
		return list, true
	}
	return []any{v}, true
}

func (s attributeSource) model() *schema.Model {
	return nil
}

// concrete picks the model a source is marshalled as: the resource's own model, or
// the subtype its discriminator names.
func concrete(m *schema.Model, src source) (*schema.Model, error) {
	if own := src.model(); own != nil {
		if !own.IsA(m) {
			return nil, fmt.Errorf("%w: resource of model %q is not a %q", constants.ErrInvalidValue, own.Name, m.Name)
		}
		return own, nil
	}
	d := m.Discriminator()
	if d == nil {
		return m, nil
	}
	v, ok := src.value(d.Name)
	if !ok || v == nil {
		return m, nil
	}
	var tag string
	switch t := v.(type) {
	case string:
		tag = t
	case models.Discriminated:
		tag = t.DiscriminatorTag()
	default:
		return m, nil
	}
	sub, ok := m.Subtype(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a subtype of %q", constants.ErrUnknownDiscriminator, tag, m.Name)
	}
	return sub, nil
}

func encode(m *schema.Model, src source, o options, depth int) (bson.D, error) {
	if depth > constants.MaxEmbedDepth {
		return nil, &Error{Model: m.Name, Err: fmt.Errorf("embedments nest deeper than %d levels", constants.MaxEmbedDepth)}
	}
	if src == nil {
		return nil, &Error{Model: m.Name, Err: fmt.Errorf("%w: nothing to marshal", constants.ErrInvalidValue)}
	}
	cm, err := concrete(m, src)
	if err != nil {
		return nil, &Error{Model: m.Name, Err: err}
	}

	doc := bson.D{}
	for _, member := range cm.Members() {
		field := member.FieldName()
		if p := member.Property; p != nil {
			if o.omitIdentity && field == constants.IDField {
				continue
			}
			v, ok := src.value(p.Name)
			if !ok && o.skipUnset {
				continue
			}
			switch {
			case p.Type == models.Discriminator && v == nil:
				v = cm
			case ok && o.rejectNull:
				if err := p.CheckNull(v); err != nil {
					return nil, wrap(cm.Name, field, err)
				}
			}
			enc, err := models.Encode(p, v)
			if err != nil {
				return nil, wrap(cm.Name, field, err)
			}
			doc = append(doc, bson.E{Key: field, Value: enc})
			continue
		}

		e := member.Embedment
		switch e.Kind {
		case schema.OneToOne:
			child, ok := src.one(e.Name)
			if !ok {
				continue
			}
			sub, err := encode(e.Model(), node(child), options{rejectNull: o.rejectNull}, depth+1)
			if err != nil {
				return nil, wrap(cm.Name, field, err)
			}
			doc = append(doc, bson.E{Key: field, Value: sub})
		case schema.OneToMany:
			children, ok := src.many(e.Name)
			if !ok && o.skipUnset {
				continue
			}
			arr := make(bson.A, 0, len(children))
			for i, child := range children {
				sub, err := encode(e.Model(), node(child), options{rejectNull: o.rejectNull}, depth+1)
				if err != nil {
					return nil, wrap(cm.Name, fmt.Sprintf("%s.%d", field, i), err)
				}
				arr = append(arr, sub)
			}
			doc = append(doc, bson.E{Key: field, Value: arr})
		}
	}
	return doc, nil
}
