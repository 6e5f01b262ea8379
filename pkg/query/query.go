package query

import (
	"slices"

	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Direction is a sort direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// Order is one sort pair.
type Order struct {
	Property  *models.Property
	Direction Direction
}

// Query describes what to read from a model's collection.
// A Query is a value: builder methods return a modified copy and never change the receiver.
type Query struct {
	model     *schema.Model
	condition Condition
	order     []Order
	limit     int
	hasLimit  bool
	offset    int
	fields    []*models.Property
}

// New returns a query matching every document of m.
func New(m *schema.Model) Query {
	return Query{model: m}
}

// Where adds c to the query's condition. Repeated calls are conjoined.
func (q Query) Where(c Condition) Query {
	switch {
	case c == nil:
	case q.condition == nil:
		q.condition = c
	default:
		q.condition = And{q.condition, c}
	}
	return q
}

// OrderBy appends sort pairs. Earlier pairs take precedence.
func (q Query) OrderBy(orders ...Order) Query {
	q.order = append(slices.Clip(q.order), orders...)
	return q
}

// Limit caps the number of rows read. Zero reads nothing.
func (q Query) Limit(n int) Query {
	q.limit = max(n, 0)
	q.hasLimit = true
	return q
}

// Offset skips the first n rows.
func (q Query) Offset(n int) Query {
	q.offset = max(n, 0)
	return q
}

// Select restricts the properties read. Key properties are always read.
func (q Query) Select(props ...*models.Property) Query {
	q.fields = append(slices.Clip(q.fields), props...)
	return q
}

func (q Query) Model() *schema.Model {
	return q.model
}

// Condition returns the root condition, nil when the query matches everything.
func (q Query) Condition() Condition {
	return q.condition
}

func (q Query) Order() []Order {
	return slices.Clone(q.order)
}

// MaxRows returns the limit and whether one is set.
func (q Query) MaxRows() (int, bool) {
	return q.limit, q.hasLimit
}

func (q Query) Skip() int {
	return q.offset
}

// Fields returns the selected properties, nil when every property is read.
func (q Query) Fields() []*models.Property {
	return slices.Clone(q.fields)
}
