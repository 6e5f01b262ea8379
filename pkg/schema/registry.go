package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
)

// Registry holds model definitions by name.
// Register every model, then call Build once before using any of them.
type Registry struct {
	models map[string]*Model
	order  []*Model
	built  bool
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds models to the registry.
func (r *Registry) Register(ms ...*Model) error {
	for _, m := range ms {
		if m == nil || m.Name == "" {
			return fmt.Errorf("%w: model without a name", constants.ErrSchema)
		}
		if _, exists := r.models[m.Name]; exists {
			return fmt.Errorf("%w: model %q registered twice", constants.ErrSchema, m.Name)
		}
		r.models[m.Name] = m
		r.order = append(r.order, m)
	}
	r.built = false
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(ms ...*Model) *Registry {
	if err := r.Register(ms...); err != nil {
		panic(err)
	}
	return r
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	return r.order
}

// Model returns a registered model by name.
func (r *Registry) Model(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", constants.ErrUnknownModel, name)
	}
	return m, nil
}

// Resolve returns the kind and target model of a relation declared on model.
func (r *Registry) Resolve(model, relation string) (Kind, *Model, error) {
	m, err := r.Model(model)
	if err != nil {
		return 0, nil, err
	}
	e := m.Embedment(relation)
	if e == nil {
		return 0, nil, fmt.Errorf("%w: %q on model %q", constants.ErrUnknownRelation, relation, model)
	}
	if e.model == nil {
		return 0, nil, fmt.Errorf("%w: registry is not built", constants.ErrSchema)
	}
	return e.Kind, e.model, nil
}

// Build validates the schema and computes the derived data every model carries.
// All configuration problems found are reported together.
func (r *Registry) Build() error {
	var errs []error

	for _, m := range r.order {
		m.parent = nil
		m.subtypes = make(map[string]*Model)
		if m.Parent == "" {
			continue
		}
		parent, ok := r.models[m.Parent]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: model %q extends unknown model %q", constants.ErrSchema, m.Name, m.Parent))
			continue
		}
		m.parent = parent
	}

	for _, m := range r.order {
		if hasParentCycle(m) {
			errs = append(errs, fmt.Errorf("%w: model %q inherits from itself", constants.ErrSchema, m.Name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, m := range r.order {
		for ancestor := m.parent; ancestor != nil; ancestor = ancestor.parent {
			ancestor.subtypes[m.Name] = m
		}
		for _, e := range m.Embedments {
			errs = append(errs, r.resolveEmbedment(m, e)...)
		}
	}

	for _, m := range r.order {
		errs = append(errs, computeMembers(m)...)
	}

	for _, m := range r.order {
		if m.discriminator == nil || !slices.Contains(m.Properties, m.discriminator) {
			continue
		}
		tags := []string{m.Name}
		for _, other := range r.order {
			if other != m && other.IsA(m) {
				tags = append(tags, other.Name)
			}
		}
		m.discriminator.Tags = tags
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.built = true
	return nil
}

// Built reports whether Build has succeeded since the last Register.
func (r *Registry) Built() bool {
	return r.built
}

func (r *Registry) resolveEmbedment(owner *Model, e *Embedment) []error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, fmt.Errorf("%w: model %q has an unnamed embedment", constants.ErrSchema, owner.Name))
	}
	if e.Kind != OneToOne && e.Kind != OneToMany {
		errs = append(errs, fmt.Errorf("%w: embedment %q on model %q has no kind", constants.ErrSchema, e.Name, owner.Name))
	}
	target, ok := r.models[e.Target]
	if !ok {
		errs = append(errs, fmt.Errorf("%w: embedment %q on model %q targets unknown model %q", constants.ErrSchema, e.Name, owner.Name, e.Target))
		return errs
	}
	e.model = target
	return errs
}

func hasParentCycle(m *Model) bool {
	seen := map[*Model]bool{}
	for cur := m; cur != nil; cur = cur.parent {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

func lineage(m *Model) []*Model {
	var chain []*Model
	for cur := m; cur != nil; cur = cur.parent {
		chain = append([]*Model{cur}, chain...)
	}
	return chain
}

func computeMembers(m *Model) []error {
	var errs []error

	m.members = nil
	m.key = nil
	m.discriminator = nil
	m.byField = make(map[string]Member)
	m.byName = make(map[string]Member)

	declared := map[string]Member{}
	fields := map[string]string{}

	add := func(member Member, public bool) {
		name := member.Name()
		if prev, ok := declared[name]; ok {
			if prev.Embedment != nil && member.Embedment != nil && prev.Embedment.Kind != member.Embedment.Kind {
				errs = append(errs, fmt.Errorf("%w: relation %q on model %q is declared as both %s and %s",
					constants.ErrSchema, name, m.Name, prev.Embedment.Kind, member.Embedment.Kind))
				return
			}
			errs = append(errs, fmt.Errorf("%w: member %q declared twice on model %q", constants.ErrSchema, name, m.Name))
			return
		}
		field := member.FieldName()
		if owner, ok := fields[field]; ok {
			errs = append(errs, fmt.Errorf("%w: members %q and %q of model %q share field %q",
				constants.ErrSchema, owner, name, m.Name, field))
			return
		}
		declared[name] = member
		fields[field] = name
		if !public {
			return
		}
		m.members = append(m.members, member)
		m.byField[field] = member
		m.byName[name] = member
	}

	for _, cur := range lineage(m) {
		for _, p := range cur.Properties {
			if p.Name == "" {
				errs = append(errs, fmt.Errorf("%w: model %q has an unnamed property", constants.ErrSchema, m.Name))
				continue
			}
			if !p.Type.Valid() {
				errs = append(errs, fmt.Errorf("%w: property %q on model %q has unknown type %q", constants.ErrSchema, p.Name, m.Name, p.Type))
				continue
			}
			add(Member{Property: p}, p.Readable())
			if p.Key {
				if !p.Readable() {
					errs = append(errs, fmt.Errorf("%w: key property %q on model %q is not public", constants.ErrSchema, p.Name, m.Name))
				}
				m.key = append(m.key, p)
			}
			if p.Type == models.Discriminator {
				if m.discriminator != nil {
					errs = append(errs, fmt.Errorf("%w: model %q has more than one discriminator", constants.ErrSchema, m.Name))
				}
				m.discriminator = p
			}
		}
		for _, e := range cur.Embedments {
			add(Member{Embedment: e}, e.Visibility == models.Public)
		}
	}

	if len(m.key) == 0 && !m.Embedded {
		errs = append(errs, fmt.Errorf("%w: model %q has no key property", constants.ErrSchema, m.Name))
	}
	return errs
}
