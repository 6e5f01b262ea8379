package resource_test

import (
	"testing"

	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource_Key(t *testing.T) {
	book := fixture.Model("Book")

	r := resource.New(book, resource.Attributes{"isbn": "978-0", "edition": 2, "title": "Go"})
	key, err := r.Key()
	require.NoError(t, err)
	require.Len(t, key, 2)
	assert.Equal(t, "isbn", key[0].Property.Name)
	assert.Equal(t, "978-0", key[0].Value)
	assert.Equal(t, "edition", key[1].Property.Name)
	assert.Equal(t, 2, key[1].Value)

	r.Set("edition", 3)
	key, err = r.Key()
	require.NoError(t, err)
	assert.Equal(t, 3, key[1].Value, "keys are computed from current values")

	_, err = resource.New(book, resource.Attributes{"isbn": "978-0"}).Key()
	require.ErrorIs(t, err, constants.ErrMissingKey)
}

func TestResource_Attributes(t *testing.T) {
	reg := fixture.Registry()
	person, err := reg.Model("Person")
	require.NoError(t, err)
	address, err := reg.Model("Address")
	require.NoError(t, err)
	phone, err := reg.Model("Phone")
	require.NoError(t, err)

	r := resource.New(person, resource.Attributes{"name": "Ada"}).
		Embed("address", resource.New(address, resource.Attributes{"city": "London"})).
		Append("phones",
			resource.New(phone, resource.Attributes{"number": "1"}),
			resource.New(phone, resource.Attributes{"number": "2"}),
		)

	attrs := r.ToAttributes()
	assert.Equal(t, resource.Attributes{
		"name":    "Ada",
		"address": resource.Attributes{"city": "London"},
		"phones": []resource.Attributes{
			{"number": "1"},
			{"number": "2"},
		},
	}, attrs)

	back, err := resource.FromAttributes(person, attrs)
	require.NoError(t, err)
	assert.Equal(t, "Ada", back.Get("name"))
	require.NotNil(t, back.One["address"])
	assert.Equal(t, "London", back.One["address"].Get("city"))
	require.Len(t, back.Many["phones"], 2)
	assert.Equal(t, "2", back.Many["phones"][1].Get("number"))

	clone := attrs.Clone()
	clone["address"].(resource.Attributes)["city"] = "Paris"
	assert.Equal(t, "London", attrs["address"].(resource.Attributes)["city"])
}

func TestResource_Merge(t *testing.T) {
	reg := fixture.Registry()
	person, err := reg.Model("Person")
	require.NoError(t, err)
	address, err := reg.Model("Address")
	require.NoError(t, err)
	phone, err := reg.Model("Phone")
	require.NoError(t, err)

	work := resource.New(phone, resource.Attributes{"number": "1"})
	cell := resource.New(phone, resource.Attributes{"number": "2"})

	testcases := []struct {
		name    string
		attrs   resource.Attributes
		city    string
		numbers []string
	}{
		{
			name:    "attribute maps",
			attrs:   resource.Attributes{"address": resource.Attributes{"city": "Paris"}, "phones": []resource.Attributes{{"number": "1"}, {"number": "2"}}},
			city:    "Paris",
			numbers: []string{"1", "2"},
		},
		{
			name:    "plain maps",
			attrs:   resource.Attributes{"address": map[string]any{"city": "Paris"}, "phones": []map[string]any{{"number": "1"}}},
			city:    "Paris",
			numbers: []string{"1"},
		},
		{
			name:    "resources",
			attrs:   resource.Attributes{"address": resource.New(address, resource.Attributes{"city": "Rome"}), "phones": []*resource.Resource{work, cell}},
			city:    "Rome",
			numbers: []string{"1", "2"},
		},
		{
			name:    "mixed list",
			attrs:   resource.Attributes{"phones": []any{work, resource.Attributes{"number": "3"}, map[string]any{"number": "4"}}},
			city:    "London",
			numbers: []string{"1", "3", "4"},
		},
		{
			name:    "nil clears",
			attrs:   resource.Attributes{"address": nil, "phones": nil},
			numbers: []string{},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			r := resource.New(person, resource.Attributes{"name": "Ada"}).
				Embed("address", resource.New(address, resource.Attributes{"city": "London"})).
				Append("phones", resource.New(phone, resource.Attributes{"number": "0"}))

			require.NoError(t, r.Merge(tc.attrs))

			if tc.city == "" {
				assert.Nil(t, r.One["address"])
			} else {
				require.NotNil(t, r.One["address"])
				assert.Equal(t, tc.city, r.One["address"].Get("city"))
			}
			numbers := []string{}
			for _, p := range r.Many["phones"] {
				numbers = append(numbers, p.Get("number").(string))
			}
			assert.Equal(t, tc.numbers, numbers)
			assert.NotContains(t, r.Attributes, "phones")
			assert.NotContains(t, r.Attributes, "address")
		})
	}
}

func TestResource_MergeInvalid(t *testing.T) {
	reg := fixture.Registry()
	person, err := reg.Model("Person")
	require.NoError(t, err)
	phone, err := reg.Model("Phone")
	require.NoError(t, err)

	testcases := []struct {
		name  string
		attrs resource.Attributes
	}{
		{name: "scalar for one to one", attrs: resource.Attributes{"address": "London"}},
		{name: "wrong model for one to one", attrs: resource.Attributes{"address": resource.New(phone, nil)}},
		{name: "scalar for one to many", attrs: resource.Attributes{"phones": "555"}},
		{name: "scalar element", attrs: resource.Attributes{"phones": []any{resource.Attributes{"number": "1"}, 42}}},
		{name: "nil element", attrs: resource.Attributes{"phones": []*resource.Resource{nil}}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			r := resource.New(person, resource.Attributes{"name": "Ada"}).
				Append("phones", resource.New(phone, resource.Attributes{"number": "0"}))

			attrs := tc.attrs.Clone()
			attrs["name"] = "Grace"
			err := r.Merge(attrs)
			require.ErrorIs(t, err, constants.ErrInvalidValue)
			assert.Equal(t, "Ada", r.Get("name"), "a failed merge leaves the resource unchanged")
			require.Len(t, r.Many["phones"], 1)
		})
	}
}
