package mongoadapter

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Executor runs queries against a connection.
type Executor struct {
	conn   connection.Connection
	logger logger.Logger
}

func NewExecutor(conn connection.Connection, l logger.Logger) *Executor {
	if l == nil {
		l = logger.Nop()
	}
	return &Executor{conn: conn, logger: l}
}

// Read runs q and returns its rows. Translation failures return before any store round trip.
// A limit of zero yields no rows without querying the store.
func (e *Executor) Read(ctx context.Context, q query.Query) (*Rows, error) {
	m := q.Model()
	filter, err := e.filter(q)
	if err != nil {
		return nil, err
	}

	var opts connection.FindOptions
	if limit, ok := q.MaxRows(); ok {
		if limit == 0 {
			return &Rows{ctx: ctx, model: m}, nil
		}
		opts.Limit = int64(limit)
	}
	opts.Skip = int64(q.Skip())
	for _, o := range q.Order() {
		if o.Property == nil {
			return nil, fmt.Errorf("read %s: %w: sort pair without a property", m.Name, constants.ErrInvalidValue)
		}
		dir := 1
		if o.Direction == query.Desc {
			dir = -1
		}
		opts.Sort = append(opts.Sort, bson.E{Key: o.Property.FieldName(), Value: dir})
	}
	opts.Projection = projection(m, q.Fields())

	coll := m.Collection()
	e.logger.Debug("find", "collection", coll, "filter", filter, "skip", opts.Skip, "limit", opts.Limit)
	cur, err := e.conn.Find(ctx, coll, filter, opts)
	if err != nil {
		return nil, e.storeError("find", coll, err)
	}
	return &Rows{ctx: ctx, cur: cur, model: m, collection: coll, exec: e}, nil
}

// Count returns the number of documents q matches. Sort, offset, limit and
// projection are ignored.
func (e *Executor) Count(ctx context.Context, q query.Query) (int64, error) {
	filter, err := e.filter(q)
	if err != nil {
		return 0, err
	}
	coll := q.Model().Collection()
	n, err := e.conn.Count(ctx, coll, filter)
	if err != nil {
		return 0, e.storeError("count", coll, err)
	}
	return n, nil
}

// Reduce folds property p over the documents q matches, in the store.
// Min and max return nil when nothing matches; so does avg.
func (e *Executor) Reduce(ctx context.Context, q query.Query, op connection.ReduceOp, p *models.Property) (any, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: reduce without a property", constants.ErrInvalidValue)
	}
	switch {
	case !op.Valid():
		return nil, fmt.Errorf("%w: reduce %q", constants.ErrUnsupportedOperator, op)
	case (op == connection.Sum || op == connection.Avg) && !numeric(p.Type):
		return nil, fmt.Errorf("%w: %s on %s property %q", constants.ErrUnsupportedOperator, op, p.Type, p.FieldName())
	case !p.Type.Orderable():
		return nil, fmt.Errorf("%w: %s on %s property %q", constants.ErrUnsupportedOperator, op, p.Type, p.FieldName())
	}

	filter, err := e.filter(q)
	if err != nil {
		return nil, err
	}
	coll := q.Model().Collection()
	v, err := e.conn.Reduce(ctx, coll, filter, op, p.FieldName())
	if err != nil {
		return nil, e.storeError("reduce", coll, err)
	}

	if v == nil {
		if op == connection.Sum {
			return zero(p.Type), nil
		}
		return nil, nil
	}
	if op == connection.Avg && p.Type != models.Decimal {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: avg of %q returned %T", constants.ErrInvalidValue, p.FieldName(), v)
		}
		return f, nil
	}
	out, err := models.Decode(p, v)
	if err != nil {
		return nil, fmt.Errorf("%s of %q: %w", op, p.FieldName(), err)
	}
	return out, nil
}

// Sum is Reduce with connection.Sum.
func (e *Executor) Sum(ctx context.Context, q query.Query, p *models.Property) (any, error) {
	return e.Reduce(ctx, q, connection.Sum, p)
}

// filter translates the query condition. Reads of a subtype stored in a shared
// collection are restricted to that subtype and its descendants.
func (e *Executor) filter(q query.Query) (bson.D, error) {
	m := q.Model()
	if m == nil {
		return nil, fmt.Errorf("%w: query without a model", constants.ErrUnknownModel)
	}
	if m.Embedded {
		return nil, fmt.Errorf("%w: model %q is embedded and has no collection", constants.ErrSchema, m.Name)
	}
	if d := m.Discriminator(); d != nil {
		var tags []any
		for _, tag := range d.Tags {
			if _, ok := m.Subtype(tag); ok {
				tags = append(tags, tag)
			}
		}
		if len(tags) < len(d.Tags) {
			q = q.Where(query.In(d, tags))
		}
	}
	filter, err := query.Translate(q.Condition())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.Name, err)
	}
	return filter, nil
}

func (e *Executor) storeError(op, coll string, err error) error {
	e.logger.Error("store request failed", "op", op, "collection", coll, "error", err)
	return &StoreError{Op: op, Collection: coll, Err: err}
}

// projection lists the fields to read. Key fields and the discriminator are always read.
func projection(m *schema.Model, props []*models.Property) []string {
	if len(props) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var fields []string
	add := func(p *models.Property) {
		if p == nil || seen[p.FieldName()] {
			return
		}
		seen[p.FieldName()] = true
		fields = append(fields, p.FieldName())
	}
	for _, p := range m.Key() {
		add(p)
	}
	add(m.Discriminator())
	for _, p := range props {
		add(p)
	}
	return fields
}

func numeric(t models.Type) bool {
	return t == models.Integer || t == models.Float || t == models.Decimal
}

func zero(t models.Type) any {
	switch t {
	case models.Integer:
		return int64(0)
	case models.Float:
		return float64(0)
	case models.Decimal:
		return apd.New(0, 0)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
