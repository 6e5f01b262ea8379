// Package resource holds the in-memory forms the adapter marshals from and into:
// typed resources bound to a model, and raw attribute maps.
package resource

import (
	"fmt"
	"maps"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Attributes is a raw attribute map keyed by logical member name.
// Embedments are held as Attributes (one to one) or []Attributes (one to many).
type Attributes map[string]any

// Clone returns a deep copy of the map structure. Scalar values are shared.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		switch x := v.(type) {
		case Attributes:
			out[k] = x.Clone()
		case []Attributes:
			list := make([]Attributes, len(x))
			for i, item := range x {
				list[i] = item.Clone()
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

// Resource is a typed instance of a model.
type Resource struct {
	Model *schema.Model
	// Attributes holds property values by logical name.
	Attributes Attributes
	// One holds one-to-one embedded resources by relation name.
	One map[string]*Resource
	// Many holds one-to-many embedded resources by relation name.
	Many map[string][]*Resource
}

func New(m *schema.Model, attrs Attributes) *Resource {
	if attrs == nil {
		attrs = Attributes{}
	}
	return &Resource{Model: m, Attributes: attrs}
}

// Get returns a property value.
func (r *Resource) Get(name string) any {
	return r.Attributes[name]
}

// Set assigns a property value.
func (r *Resource) Set(name string, v any) {
	if r.Attributes == nil {
		r.Attributes = Attributes{}
	}
	r.Attributes[name] = v
}

// Embed sets a one-to-one embedded resource.
func (r *Resource) Embed(relation string, child *Resource) *Resource {
	if r.One == nil {
		r.One = make(map[string]*Resource)
	}
	r.One[relation] = child
	return r
}

// Append adds resources to a one-to-many relation, keeping their order.
func (r *Resource) Append(relation string, children ...*Resource) *Resource {
	if r.Many == nil {
		r.Many = make(map[string][]*Resource)
	}
	r.Many[relation] = append(r.Many[relation], children...)
	return r
}

// KeyValue is one component of a resource key.
type KeyValue struct {
	Property *models.Property
	Value    any
}

// Key computes the resource's key from its current property values.
// Every key property must carry a non-nil value.
func (r *Resource) Key() ([]KeyValue, error) {
	props := r.Model.Key()
	key := make([]KeyValue, 0, len(props))
	for _, p := range props {
		v, ok := r.Attributes[p.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s.%s", constants.ErrMissingKey, r.Model.Name, p.Name)
		}
		key = append(key, KeyValue{Property: p, Value: v})
	}
	return key, nil
}

// ToAttributes flattens the resource, including its embedded resources,
// into a raw attribute map.
func (r *Resource) ToAttributes() Attributes {
	out := maps.Clone(r.Attributes)
	if out == nil {
		out = Attributes{}
	}
	for name, child := range r.One {
		if child == nil {
			continue
		}
		out[name] = child.ToAttributes()
	}
	for name, children := range r.Many {
		list := make([]Attributes, 0, len(children))
		for _, child := range children {
			list = append(list, child.ToAttributes())
		}
		out[name] = list
	}
	return out
}

// FromAttributes builds a typed resource from a raw attribute map, turning embedment
// entries into embedded resources of the related model. Entries that name no member
// of m are kept as plain attributes.
func FromAttributes(m *schema.Model, attrs Attributes) (*Resource, error) {
	r := New(m, nil)
	if err := r.Merge(attrs); err != nil {
		return nil, err
	}
	return r, nil
}

// Merge overlays attrs onto the resource. Embedment entries replace the embedded
// resources of that relation and may be given as attribute maps or resources,
// singly for one to one and as a slice of either for one to many. A nil entry clears
// the relation. Any other form fails with ErrInvalidValue and leaves r unchanged.
func (r *Resource) Merge(attrs Attributes) error {
	one := map[string]*Resource{}
	many := map[string][]*Resource{}
	for name, v := range attrs {
		e := r.Model.Embedment(name)
		if e == nil || e.Model() == nil {
			continue
		}
		switch e.Kind {
		case schema.OneToOne:
			child, err := embedded(e, v)
			if err != nil {
				return err
			}
			one[name] = child
		case schema.OneToMany:
			children, err := embeddedList(e, v)
			if err != nil {
				return err
			}
			many[name] = children
		}
	}

	for name, v := range attrs {
		if _, ok := one[name]; ok {
			continue
		}
		if _, ok := many[name]; ok {
			continue
		}
		r.Set(name, v)
	}
	for name, child := range one {
		if child == nil {
			delete(r.One, name)
			continue
		}
		r.Embed(name, child)
	}
	for name, children := range many {
		if r.Many == nil {
			r.Many = make(map[string][]*Resource)
		}
		r.Many[name] = children
	}
	return nil
}

func embedded(e *schema.Embedment, v any) (*Resource, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Resource:
		if x == nil {
			return nil, nil
		}
		if x.Model == nil || !x.Model.IsA(e.Model()) {
			return nil, fmt.Errorf("%w: relation %q expects a %s resource", constants.ErrInvalidValue, e.Name, e.Model().Name)
		}
		return x, nil
	case Attributes:
		return FromAttributes(e.Model(), x)
	case map[string]any:
		return FromAttributes(e.Model(), x)
	}
	return nil, fmt.Errorf("%w: relation %q cannot hold %T", constants.ErrInvalidValue, e.Name, v)
}

func embeddedList(e *schema.Embedment, v any) ([]*Resource, error) {
	var items []any
	switch list := v.(type) {
	case nil:
		return []*Resource{}, nil
	case []*Resource:
		items = make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}
	case []Attributes:
		items = make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}
	case []map[string]any:
		items = make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}
	case []any:
		items = list
	default:
		return nil, fmt.Errorf("%w: relation %q cannot hold %T", constants.ErrInvalidValue, e.Name, v)
	}

	children := make([]*Resource, 0, len(items))
	for i, item := range items {
		child, err := embedded(e, item)
		if err != nil {
			return nil, fmt.Errorf("%s.%d: %w", e.Name, i, err)
		}
		if child == nil {
			return nil, fmt.Errorf("%w: relation %q has a nil element at %d", constants.ErrInvalidValue, e.Name, i)
		}
		children = append(children, child)
	}
	return children, nil
}
