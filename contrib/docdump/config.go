// Package docdump exports the documents of one model as a JSON-lines file or a
// CBOR sequence, alongside a manifest describing the dump.
package docdump

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Format is the encoding of dumped rows.
type Format string

const (
	JSONLines Format = "jsonl"
	CBOR      Format = "cbor"
)

// Config holds all options of a dump.
type Config struct {
	// URL is the store URL, e.g. "mongodb://localhost:27017/app" or "memory:///app".
	URL string
	// Schema is the path of the YAML schema file.
	Schema string
	// Model names the model to dump.
	Model string

	// Sort lists properties to order by, each optionally suffixed with ":desc".
	Sort []string
	// Fields restricts the dumped properties. Key properties are always dumped.
	Fields []string
	// Limit caps the number of rows. Negative means no limit.
	Limit  int
	Offset int

	Format Format
	// Output file path
	Output string
	// Base directory for dumps (prefixes output path)
	Dir string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		URL:    "mongodb://localhost:27017/",
		Limit:  -1,
		Format: JSONLines,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("store url is required")
	}
	if c.Schema == "" {
		return fmt.Errorf("schema path is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch c.Format {
	case JSONLines, CBOR:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

// OutputPath returns the full output path, applying Dir prefix if set
func (c *Config) OutputPath() string {
	if c.Dir != "" && c.Output != "" {
		return filepath.Join(c.Dir, c.Output)
	}
	return c.Output
}

// Query builds the query the dump runs against m.
func (c *Config) Query(m *schema.Model) (query.Query, error) {
	q := query.New(m)
	for _, spec := range c.Sort {
		name, dir, _ := strings.Cut(strings.TrimSpace(spec), ":")
		p, err := property(m, name)
		if err != nil {
			return q, err
		}
		o := query.Order{Property: p, Direction: query.Asc}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			o.Direction = query.Desc
		default:
			return q, fmt.Errorf("sort %q: unknown direction %q", spec, dir)
		}
		q = q.OrderBy(o)
	}
	var fields []*models.Property
	for _, name := range c.Fields {
		p, err := property(m, strings.TrimSpace(name))
		if err != nil {
			return q, err
		}
		fields = append(fields, p)
	}
	if len(fields) > 0 {
		q = q.Select(fields...)
	}
	if c.Limit >= 0 {
		q = q.Limit(c.Limit)
	}
	return q.Offset(c.Offset), nil
}

func property(m *schema.Model, name string) (*models.Property, error) {
	member, ok := m.MemberByName(name)
	if !ok || member.Property == nil {
		return nil, fmt.Errorf("model %q has no public property %q", m.Name, name)
	}
	return member.Property, nil
}
