// Package memory implements connection.Connection on an embedded lungo engine.
//
// lungo evaluates the MongoDB query, sort, projection and update dialect in process
// through an API shaped like the official driver's. Collections live in a lungo
// memory store owned by the connection, so data survives Close and a later Connect.
// Reductions run here, since the engine has no aggregation pipeline.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/256dpi/lungo"
	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDuplicateKey = errors.New("duplicate key")

type Connection struct {
	config *connection.Config
	logger logger.Logger
	users  map[string]string
	store  *lungo.MemoryStore

	mu        sync.Mutex
	engine    *lungo.Engine
	db        lungo.IDatabase
	calls     int
	failAfter int
	failErr   error
}

var _ connection.Connection = (*Connection)(nil)

type Option func(*Connection)

// WithUser registers credentials Connect checks a configured username against.
func WithUser(username, password string) Option {
	return func(c *Connection) {
		c.users[username] = password
	}
}

func New(cfg *connection.Config, opts ...Option) *Connection {
	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}
	c := &Connection{
		config:    cfg,
		logger:    l,
		users:     map[string]string{},
		store:     lungo.NewMemoryStore(),
		failAfter: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect validates the config, checks the credentials when a username is configured
// and opens the engine over the connection's store.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	if u := c.config.Username; u != "" {
		if pw, ok := c.users[u]; !ok || pw != c.config.Password {
			return &connection.Error{Op: "authenticate", Err: fmt.Errorf("authentication failed for user %q on %q", u, c.config.AuthDatabase())}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return nil
	}
	client, engine, err := lungo.Open(ctx, lungo.Options{Store: c.store})
	if err != nil {
		return &connection.Error{Op: "connect", Err: err}
	}
	c.engine = engine
	c.db = client.Database(c.config.DatabaseName())
	c.logger.Debug("connected", "store", "memory", "database", c.config.DatabaseName())
	return nil
}

func (c *Connection) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	c.engine.Close()
	c.engine, c.db = nil, nil
	return nil
}

// FailNext makes the next request fail with err.
func (c *Connection) FailNext(err error) {
	c.FailAfter(0, err)
}

// FailAfter lets n requests succeed and fails the one after them with err.
func (c *Connection) FailAfter(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAfter, c.failErr = n, err
}

// Calls returns the number of requests served or failed so far.
func (c *Connection) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Documents returns a copy of a collection in natural order. It is not counted as a request.
func (c *Connection) Documents(collection string) []bson.D {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db == nil {
		return nil
	}
	ctx := context.Background()
	cur, err := db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil
	}
	var out []bson.D
	if err := cur.All(ctx, &out); err != nil {
		return nil
	}
	return out
}

// collection counts a request, applies any injected failure and returns the handle.
func (c *Connection) collection(name string) (lungo.ICollection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.db == nil {
		return nil, constants.ErrNotConnected
	}
	switch {
	case c.failAfter == 0:
		c.failAfter = -1
		return nil, c.failErr
	case c.failAfter > 0:
		c.failAfter--
	}
	return c.db.Collection(name), nil
}

func (c *Connection) Insert(ctx context.Context, collection string, doc bson.D) (any, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	for _, e := range doc {
		if e.Key != constants.IDField {
			continue
		}
		n, err := coll.CountDocuments(ctx, bson.D{{Key: constants.IDField, Value: e.Value}})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %s %v", ErrDuplicateKey, collection, e.Value)
		}
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (c *Connection) Find(ctx context.Context, collection string, filter bson.D, opts connection.FindOptions) (connection.Cursor, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if len(opts.Projection) > 0 {
		proj := make(bson.D, 0, len(opts.Projection))
		for _, f := range opts.Projection {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		fo.SetProjection(proj)
	}
	cur, err := coll.Find(ctx, orEmpty(filter), fo)
	if err != nil {
		return nil, err
	}
	return &cursor{cur: cur}, nil
}

func (c *Connection) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, orEmpty(filter))
}

// Reduce folds field over the matching documents with the server's $group semantics.
func (c *Connection) Reduce(ctx context.Context, collection string, filter bson.D, op connection.ReduceOp, field string) (any, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: reduce %q", constants.ErrUnsupportedOperator, op)
	}
	coll, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, orEmpty(filter), options.Find().SetProjection(bson.D{{Key: field, Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	values := make([]any, 0, len(docs))
	for _, d := range docs {
		if v, ok := lookup(d, field); ok {
			values = append(values, v)
		}
	}
	return reduce(op, values), nil
}

func (c *Connection) Update(ctx context.Context, collection string, filter, update bson.D, opts connection.UpdateOptions) (connection.UpdateResult, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return connection.UpdateResult{}, err
	}

	var res *mongo.UpdateResult
	switch {
	case !isOperatorDocument(update):
		if opts.Multi {
			return connection.UpdateResult{}, errors.New("a replacement document applies to a single document")
		}
		res, err = coll.ReplaceOne(ctx, orEmpty(filter), update, options.Replace().SetUpsert(opts.Upsert))
	case opts.Multi:
		res, err = coll.UpdateMany(ctx, orEmpty(filter), update, options.Update().SetUpsert(opts.Upsert))
	default:
		res, err = coll.UpdateOne(ctx, orEmpty(filter), update, options.Update().SetUpsert(opts.Upsert))
	}
	if err != nil {
		return connection.UpdateResult{}, err
	}
	return connection.UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		UpsertedID: res.UpsertedID,
	}, nil
}

func (c *Connection) Delete(ctx context.Context, collection string, filter bson.D, opts connection.DeleteOptions) (int64, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return 0, err
	}
	var res *mongo.DeleteResult
	if opts.Multi {
		res, err = coll.DeleteMany(ctx, orEmpty(filter))
	} else {
		res, err = coll.DeleteOne(ctx, orEmpty(filter))
	}
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func orEmpty(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func isOperatorDocument(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

// cursor re-encodes each engine document so Document can hand out raw bytes.
type cursor struct {
	cur     lungo.ICursor
	current bson.Raw
	err     error
}

func (c *cursor) Next(ctx context.Context) bool {
	c.current = nil
	if c.err != nil || !c.cur.Next(ctx) {
		return false
	}
	var d bson.D
	if err := c.cur.Decode(&d); err != nil {
		c.err = err
		return false
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		c.err = err
		return false
	}
	c.current = raw
	return true
}

func (c *cursor) Document() bson.Raw { return c.current }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	c.current = nil
	return c.cur.Close(ctx)
}
