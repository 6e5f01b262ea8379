package schema

import (
	"fmt"
	"io"
	"os"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a schema file:
//
//	models:
//	  - name: Person
//	    storage: people
//	    properties:
//	      - {name: id, field: _id, type: object_id, key: true}
//	      - {name: name, type: string}
//	    embedments:
//	      - {name: address, kind: one_to_one, model: Address}
type File struct {
	Models []ModelSpec `yaml:"models"`
}

type ModelSpec struct {
	Name       string          `yaml:"name"`
	Storage    string          `yaml:"storage,omitempty"`
	Parent     string          `yaml:"parent,omitempty"`
	Embedded   bool            `yaml:"embedded,omitempty"`
	Properties []PropertySpec  `yaml:"properties"`
	Embedments []EmbedmentSpec `yaml:"embedments,omitempty"`
}

type PropertySpec struct {
	Name       string `yaml:"name"`
	Field      string `yaml:"field,omitempty"`
	Type       string `yaml:"type"`
	Key        bool   `yaml:"key,omitempty"`
	Nullable   bool   `yaml:"nullable,omitempty"`
	Visibility string `yaml:"visibility,omitempty"`
}

type EmbedmentSpec struct {
	Name       string `yaml:"name"`
	Field      string `yaml:"field,omitempty"`
	Kind       string `yaml:"kind"`
	Model      string `yaml:"model"`
	Visibility string `yaml:"visibility,omitempty"`
}

// Load reads a YAML schema, registers its models in a new registry and builds it.
func Load(r io.Reader) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode schema: %v", constants.ErrSchema, err)
	}

	reg := NewRegistry()
	for _, spec := range f.Models {
		m, err := spec.model()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	if err := reg.Build(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadFile is Load for a file on disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (s ModelSpec) model() (*Model, error) {
	m := &Model{
		Name:     s.Name,
		Storage:  s.Storage,
		Parent:   s.Parent,
		Embedded: s.Embedded,
	}
	for _, ps := range s.Properties {
		typ, err := models.ParseType(ps.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: model %q property %q: %v", constants.ErrSchema, s.Name, ps.Name, err)
		}
		vis, err := parseVisibility(ps.Visibility)
		if err != nil {
			return nil, fmt.Errorf("%w: model %q property %q: %v", constants.ErrSchema, s.Name, ps.Name, err)
		}
		m.Properties = append(m.Properties, &models.Property{
			Name:       ps.Name,
			Field:      ps.Field,
			Type:       typ,
			Key:        ps.Key,
			Nullable:   ps.Nullable,
			Visibility: vis,
		})
	}
	for _, es := range s.Embedments {
		kind, err := parseKind(es.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: model %q embedment %q: %v", constants.ErrSchema, s.Name, es.Name, err)
		}
		vis, err := parseVisibility(es.Visibility)
		if err != nil {
			return nil, fmt.Errorf("%w: model %q embedment %q: %v", constants.ErrSchema, s.Name, es.Name, err)
		}
		m.Embedments = append(m.Embedments, &Embedment{
			Name:       es.Name,
			Field:      es.Field,
			Kind:       kind,
			Target:     es.Model,
			Visibility: vis,
		})
	}
	return m, nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "one_to_one", "one":
		return OneToOne, nil
	case "one_to_many", "many":
		return OneToMany, nil
	}
	return 0, fmt.Errorf("unknown embedment kind %q", s)
}

func parseVisibility(s string) (models.Visibility, error) {
	switch s {
	case "", "public":
		return models.Public, nil
	case "protected":
		return models.Protected, nil
	case "private":
		return models.Private, nil
	}
	return 0, fmt.Errorf("unknown visibility %q", s)
}
