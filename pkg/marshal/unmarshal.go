package marshal

import (
	"fmt"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/docmapper/mongoadapter/pkg/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// FromDocument decodes a store document of model m into an attribute map.
// The document may be a bson.D, bson.M, map[string]any or bson.Raw. When m has a
// discriminator, the document is decoded as the subtype it names. Fields that
// match no public member are ignored.
func FromDocument(m *schema.Model, doc any) (resource.Attributes, error) {
	attrs, _, err := decode(m, doc, 0)
	return attrs, err
}

// ResolveModel returns the concrete model of a stored document: the subtype its
// discriminator names, or m itself.
func ResolveModel(m *schema.Model, doc any) (*schema.Model, error) {
	d, err := document(doc)
	if err != nil {
		return nil, &Error{Model: m.Name, Err: err}
	}
	cm, err := resolve(m, d)
	if err != nil {
		return nil, &Error{Model: m.Name, Field: m.Discriminator().FieldName(), Err: err}
	}
	return cm, nil
}

// Decode is FromDocument that also reports the concrete model the document was decoded as.
func Decode(m *schema.Model, doc any) (*schema.Model, resource.Attributes, error) {
	attrs, cm, err := decode(m, doc, 0)
	return cm, attrs, err
}

func decode(m *schema.Model, doc any, depth int) (resource.Attributes, *schema.Model, error) {
	if depth > constants.MaxEmbedDepth {
		return nil, nil, &Error{Model: m.Name, Err: fmt.Errorf("documents nest deeper than %d levels", constants.MaxEmbedDepth)}
	}
	d, err := document(doc)
	if err != nil {
		return nil, nil, &Error{Model: m.Name, Err: err}
	}
	cm, err := resolve(m, d)
	if err != nil {
		return nil, nil, &Error{Model: m.Name, Field: m.Discriminator().FieldName(), Err: err}
	}

	attrs := resource.Attributes{}
	for _, elem := range d {
		member, ok := cm.MemberByField(elem.Key)
		if !ok {
			continue
		}
		if p := member.Property; p != nil {
			v, err := models.Decode(p, elem.Value)
			if err != nil {
				return nil, nil, wrap(cm.Name, elem.Key, err)
			}
			attrs[p.Name] = v
			continue
		}

		e := member.Embedment
		if elem.Value == nil {
			continue
		}
		switch e.Kind {
		case schema.OneToOne:
			child, _, err := decode(e.Model(), elem.Value, depth+1)
			if err != nil {
				return nil, nil, wrap(cm.Name, elem.Key, err)
			}
			attrs[e.Name] = child
		case schema.OneToMany:
			items, ok := elem.Value.(bson.A)
			if !ok {
				items, ok = elem.Value.([]any)
			}
			if !ok {
				return nil, nil, wrap(cm.Name, elem.Key, fmt.Errorf("%w: expected an array, got %T", constants.ErrInvalidValue, elem.Value))
			}
			list := make([]resource.Attributes, 0, len(items))
			for i, item := range items {
				child, _, err := decode(e.Model(), item, depth+1)
				if err != nil {
					return nil, nil, wrap(cm.Name, fmt.Sprintf("%s.%d", elem.Key, i), err)
				}
				list = append(list, child)
			}
			attrs[e.Name] = list
		}
	}
	return attrs, cm, nil
}

func resolve(m *schema.Model, d bson.D) (*schema.Model, error) {
	p := m.Discriminator()
	if p == nil {
		return m, nil
	}
	for _, elem := range d {
		if elem.Key != p.FieldName() {
			continue
		}
		tag, ok := elem.Value.(string)
		if !ok {
			return m, nil
		}
		sub, ok := m.Subtype(tag)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a subtype of %q", constants.ErrUnknownDiscriminator, tag, m.Name)
		}
		return sub, nil
	}
	return m, nil
}

// document normalizes the accepted document forms into a bson.D.
// Map forms have no field order; their fields are visited in map order.
func document(doc any) (bson.D, error) {
	switch d := doc.(type) {
	case bson.D:
		return d, nil
	case bson.M:
		return fromMap(d), nil
	case map[string]any:
		return fromMap(d), nil
	case bson.Raw:
		var out bson.D
		if err := bson.Unmarshal(d, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", constants.ErrInvalidValue, err)
		}
		return out, nil
	case []byte:
		return document(bson.Raw(d))
	}
	return nil, fmt.Errorf("%w: %T is not a document", constants.ErrInvalidValue, doc)
}

func fromMap(m map[string]any) bson.D {
	d := make(bson.D, 0, len(m))
	for k, v := range m {
		d = append(d, bson.E{Key: k, Value: v})
	}
	return d
}
