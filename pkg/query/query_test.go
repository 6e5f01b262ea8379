package query_test

import (
	"testing"

	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/stretchr/testify/assert"
)

func TestQuery_immutable(t *testing.T) {
	person := fixture.Model("Person")
	age := person.Property("age")
	name := person.Property("name")

	base := query.New(person).OrderBy(query.Order{Property: name, Direction: query.Asc})
	paged := base.Limit(3).Offset(5).OrderBy(query.Order{Property: age, Direction: query.Desc})
	filtered := base.Where(query.Gt(age, 18)).Where(query.Lt(age, 65))

	_, hasLimit := base.MaxRows()
	assert.False(t, hasLimit)
	assert.Equal(t, 0, base.Skip())
	assert.Len(t, base.Order(), 1)
	assert.Nil(t, base.Condition())

	limit, hasLimit := paged.MaxRows()
	assert.True(t, hasLimit)
	assert.Equal(t, 3, limit)
	assert.Equal(t, 5, paged.Skip())
	assert.Equal(t, []query.Order{
		{Property: name, Direction: query.Asc},
		{Property: age, Direction: query.Desc},
	}, paged.Order())

	assert.Equal(t, query.And{query.Gt(age, 18), query.Lt(age, 65)}, filtered.Condition())
	assert.Same(t, person, filtered.Model())

	limit, _ = base.Limit(-1).MaxRows()
	assert.Equal(t, 0, limit)
	assert.Nil(t, base.Fields())
	assert.Len(t, base.Select(name).Fields(), 1)
}
