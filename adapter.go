package mongoadapter

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/connection/memory"
	"github.com/docmapper/mongoadapter/pkg/connection/mongodb"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"github.com/docmapper/mongoadapter/pkg/marshal"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/docmapper/mongoadapter/pkg/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Adapter is the entry point for persisting resources. It owns one connection,
// established on first use. An Adapter is safe for concurrent use when its
// connection is.
type Adapter struct {
	registry *schema.Registry
	logger   logger.Logger

	mu        sync.Mutex
	conn      connection.Connection
	connected bool
}

type Option func(*Adapter)

func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithRegistry sets the registry Model looks models up in.
func WithRegistry(r *schema.Registry) Option {
	return func(a *Adapter) { a.registry = r }
}

// New returns an Adapter over conn. The connection is not established until the first operation.
func New(conn connection.Connection, opts ...Option) *Adapter {
	a := &Adapter{conn: conn}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Nop()
	}
	return a
}

// Open validates cfg and returns an Adapter for it. A memory scheme selects the
// in-process store; anything else connects to MongoDB.
func Open(cfg *connection.Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var conn connection.Connection
	if cfg.Memory() {
		conn = memory.New(cfg)
	} else {
		conn = mongodb.New(cfg)
	}
	if cfg.Logger != nil {
		opts = append([]Option{WithLogger(cfg.Logger)}, opts...)
	}
	return New(conn, opts...), nil
}

// withConnection runs fn with the established connection, connecting first if needed.
func (a *Adapter) withConnection(ctx context.Context, fn func(connection.Connection) error) error {
	a.mu.Lock()
	if !a.connected {
		if err := a.conn.Connect(ctx); err != nil {
			a.mu.Unlock()
			a.logger.Error("connect failed", "error", err)
			return err
		}
		a.connected = true
	}
	conn := a.conn
	a.mu.Unlock()
	return fn(conn)
}

// Reconnect closes the connection, if established, and connects again.
func (a *Adapter) Reconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		if err := a.conn.Close(ctx); err != nil {
			a.logger.Warn("close before reconnect failed", "error", err)
		}
		a.connected = false
	}
	if err := a.conn.Connect(ctx); err != nil {
		return err
	}
	a.connected = true
	return nil
}

func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}
	a.connected = false
	return a.conn.Close(ctx)
}

// Connection returns the underlying connection handle.
func (a *Adapter) Connection() connection.Connection {
	return a.conn
}

// Model looks a model up in the adapter's registry.
func (a *Adapter) Model(name string) (*schema.Model, error) {
	if a.registry == nil {
		return nil, fmt.Errorf("%w: %q: adapter has no registry", constants.ErrUnknownModel, name)
	}
	return a.registry.Model(name)
}

// Create inserts resources in order and writes the identifier the store assigns back
// onto each resource. It stops at the first failure and returns how many resources
// were stored before it.
func (a *Adapter) Create(ctx context.Context, resources ...*resource.Resource) (int, error) {
	n := 0
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		for _, r := range resources {
			if err := a.create(ctx, conn, r); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (a *Adapter) create(ctx context.Context, conn connection.Connection, r *resource.Resource) error {
	if err := persistent(r); err != nil {
		return err
	}
	doc, err := marshal.ToDocument(r.Model, r, marshal.RejectNull())
	if err != nil {
		return err
	}
	doc = withoutNilIdentity(doc)

	coll := r.Model.Collection()
	id, err := conn.Insert(ctx, coll, doc)
	if err != nil {
		return a.storeError("insert", coll, err)
	}

	for _, p := range r.Model.Key() {
		if p.FieldName() != constants.IDField {
			continue
		}
		v, err := models.Decode(p, id)
		if err != nil {
			v = id
		}
		r.Set(p.Name, v)
	}
	if d := r.Model.Discriminator(); d != nil && r.Get(d.Name) == nil {
		r.Set(d.Name, r.Model.DiscriminatorTag())
	}
	a.logger.Debug("created", "collection", coll, "id", id)
	return nil
}

// Read runs q. See Executor.Read.
func (a *Adapter) Read(ctx context.Context, q query.Query) (*Rows, error) {
	var rows *Rows
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		var err error
		rows, err = NewExecutor(conn, a.logger).Read(ctx, q)
		return err
	})
	return rows, err
}

func (a *Adapter) Count(ctx context.Context, q query.Query) (int64, error) {
	var n int64
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		var err error
		n, err = NewExecutor(conn, a.logger).Count(ctx, q)
		return err
	})
	return n, err
}

// Aggregate folds property p over the documents q matches. See Executor.Reduce.
func (a *Adapter) Aggregate(ctx context.Context, q query.Query, op connection.ReduceOp, p *models.Property) (any, error) {
	var v any
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		var err error
		v, err = NewExecutor(conn, a.logger).Reduce(ctx, q, op, p)
		return err
	})
	return v, err
}

// Sum is Aggregate with connection.Sum. It returns the zero of p's type when nothing matches.
func (a *Adapter) Sum(ctx context.Context, q query.Query, p *models.Property) (any, error) {
	return a.Aggregate(ctx, q, connection.Sum, p)
}

// Update applies attrs to each resource and persists the result with a point update
// keyed by the resource's current key. Attributes in attrs take precedence over the
// resource's own values. The store identifier is never written. On success the
// resource carries the new values.
func (a *Adapter) Update(ctx context.Context, attrs resource.Attributes, resources ...*resource.Resource) (int, error) {
	n := 0
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		for _, r := range resources {
			if err := a.update(ctx, conn, attrs, r); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (a *Adapter) update(ctx context.Context, conn connection.Connection, attrs resource.Attributes, r *resource.Resource) error {
	if err := persistent(r); err != nil {
		return err
	}
	filter, err := keyFilter(r)
	if err != nil {
		return err
	}

	if _, err := marshal.ToDocument(r.Model, attrs, marshal.SkipUnset(), marshal.RejectNull()); err != nil {
		return err
	}
	merged := &resource.Resource{
		Model:      r.Model,
		Attributes: maps.Clone(r.Attributes),
		One:        maps.Clone(r.One),
		Many:       maps.Clone(r.Many),
	}
	if err := merged.Merge(attrs); err != nil {
		return err
	}
	doc, err := marshal.ToDocument(r.Model, merged, marshal.OmitIdentity(), marshal.SkipUnset())
	if err != nil {
		return err
	}

	update := bson.D{}
	if len(doc) > 0 {
		update = append(update, bson.E{Key: "$set", Value: doc})
	}
	if unset := clearedRelations(r.Model, attrs); len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	coll := r.Model.Collection()
	if len(update) > 0 {
		res, err := conn.Update(ctx, coll, filter, update, connection.UpdateOptions{})
		if err != nil {
			return a.storeError("update", coll, err)
		}
		if res.Matched == 0 {
			a.logger.Warn("update matched no document", "collection", coll, "filter", filter)
		}
	}
	r.Attributes, r.One, r.Many = merged.Attributes, merged.One, merged.Many
	a.logger.Debug("updated", "collection", coll, "filter", filter)
	return nil
}

// Delete removes each resource with a point removal keyed by its current key.
func (a *Adapter) Delete(ctx context.Context, resources ...*resource.Resource) (int, error) {
	n := 0
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		for _, r := range resources {
			if err := persistent(r); err != nil {
				return err
			}
			filter, err := keyFilter(r)
			if err != nil {
				return err
			}
			coll := r.Model.Collection()
			if _, err := conn.Delete(ctx, coll, filter, connection.DeleteOptions{}); err != nil {
				return a.storeError("delete", coll, err)
			}
			a.logger.Debug("deleted", "collection", coll, "filter", filter)
			n++
		}
		return nil
	})
	return n, err
}

// Execute issues a caller-supplied selector and update document against the collection
// of each resource, bypassing condition translation and marshalling. An update
// document without $-operators replaces the matched document.
func (a *Adapter) Execute(ctx context.Context, resources []*resource.Resource, selector, document bson.D, opts connection.UpdateOptions) (int, error) {
	n := 0
	err := a.withConnection(ctx, func(conn connection.Connection) error {
		for _, r := range resources {
			if err := persistent(r); err != nil {
				return err
			}
			coll := r.Model.Collection()
			if _, err := conn.Update(ctx, coll, selector, document, opts); err != nil {
				return a.storeError("execute", coll, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

func (a *Adapter) storeError(op, coll string, err error) error {
	a.logger.Error("store request failed", "op", op, "collection", coll, "error", err)
	return &StoreError{Op: op, Collection: coll, Err: err}
}

func persistent(r *resource.Resource) error {
	if r == nil || r.Model == nil {
		return fmt.Errorf("%w: resource without a model", constants.ErrUnknownModel)
	}
	if r.Model.Embedded {
		return fmt.Errorf("%w: model %q is embedded and has no collection", constants.ErrSchema, r.Model.Name)
	}
	return nil
}

// keyFilter matches exactly the key fields of r with their current values.
func keyFilter(r *resource.Resource) (bson.D, error) {
	key, err := r.Key()
	if err != nil {
		return nil, err
	}
	return query.Translate(query.ForKey(key))
}

// clearedRelations lists the fields of one-to-one relations attrs sets to nil.
func clearedRelations(m *schema.Model, attrs resource.Attributes) bson.D {
	var unset bson.D
	for _, member := range m.Members() {
		e := member.Embedment
		if e == nil || e.Kind != schema.OneToOne {
			continue
		}
		if v, ok := attrs[e.Name]; ok && isNilResource(v) {
			unset = append(unset, bson.E{Key: e.FieldName(), Value: ""})
		}
	}
	return unset
}

func isNilResource(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *resource.Resource:
		return x == nil
	}
	return false
}

// withoutNilIdentity drops an unset identifier so the store assigns one.
func withoutNilIdentity(doc bson.D) bson.D {
	for i, e := range doc {
		if e.Key == constants.IDField && e.Value == nil {
			return append(doc[:i:i], doc[i+1:]...)
		}
	}
	return doc
}
