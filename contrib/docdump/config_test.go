package docdump

import (
	"testing"

	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := NewConfig()
		c.Schema = "schema.yaml"
		c.Model = "Person"
		return c
	}

	testcases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "cbor", mutate: func(c *Config) { c.Format = CBOR }},
		{name: "missing url", mutate: func(c *Config) { c.URL = "" }, wantErr: "store url is required"},
		{name: "missing schema", mutate: func(c *Config) { c.Schema = "" }, wantErr: "schema path is required"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model is required"},
		{name: "unknown format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: `unknown format "xml"`},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestConfig_OutputPath(t *testing.T) {
	c := NewConfig()
	assert.Empty(t, c.OutputPath())
	c.Output = "people.jsonl"
	assert.Equal(t, "people.jsonl", c.OutputPath())
	c.Dir = "/backups"
	assert.Equal(t, "/backups/people.jsonl", c.OutputPath())
}

func TestConfig_Query(t *testing.T) {
	person := fixture.Model("Person")

	c := NewConfig()
	c.Sort = []string{"name", "age:desc"}
	c.Fields = []string{"name"}
	c.Limit = 5
	c.Offset = 10
	q, err := c.Query(person)
	require.NoError(t, err)

	assert.Equal(t, []query.Order{
		{Property: person.Property("name"), Direction: query.Asc},
		{Property: person.Property("age"), Direction: query.Desc},
	}, q.Order())
	limit, ok := q.MaxRows()
	assert.True(t, ok)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, q.Skip())
	assert.Len(t, q.Fields(), 1)

	c = NewConfig()
	q, err = c.Query(person)
	require.NoError(t, err)
	_, ok = q.MaxRows()
	assert.False(t, ok, "a negative limit reads everything")

	for _, bad := range []*Config{
		{Sort: []string{"secret"}},
		{Sort: []string{"name:sideways"}},
		{Fields: []string{"phones"}},
	} {
		_, err := bad.Query(person)
		assert.Error(t, err)
	}
}
