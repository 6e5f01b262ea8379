// Package mongodb implements connection.Connection on the official MongoDB driver.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connection talks to one MongoDB database. The driver client is safe for concurrent use;
// mu guards swapping it on Connect and Close.
type Connection struct {
	config *connection.Config
	logger logger.Logger

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

var _ connection.Connection = (*Connection)(nil)

func New(c *connection.Config) *Connection {
	l := c.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &Connection{config: c, logger: l}
}

func (c *Connection) preConnectionChecks() error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	if c.config.Memory() {
		return &connection.Error{Op: "connect", Err: fmt.Errorf("scheme %q is not served by the mongodb connection", c.config.Scheme)}
	}
	return nil
}

// Connect creates the client and pings the primary, so an unreachable server or bad
// credentials fail here rather than on the first query. A previous client is disconnected.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.preConnectionChecks(); err != nil {
		return err
	}

	opts := options.Client().ApplyURI(c.config.URI())
	if c.config.Timeout > 0 {
		opts.SetConnectTimeout(c.config.Timeout).SetServerSelectionTimeout(c.config.Timeout)
	}
	if c.config.Username != "" {
		opts.SetAuth(options.Credential{
			AuthSource: c.config.AuthDatabase(),
			Username:   c.config.Username,
			Password:   c.config.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return &connection.Error{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		op := "connect"
		if c.config.Username != "" {
			op = "authenticate"
		}
		return &connection.Error{Op: op, Err: err}
	}

	c.mu.Lock()
	prev := c.client
	c.client = client
	c.db = client.Database(c.config.DatabaseName())
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Disconnect(ctx)
	}
	c.logger.Debug("connected", "uri", c.config.URI(), "database", c.config.DatabaseName())
	return nil
}

func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client, c.db = nil, nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func (c *Connection) collection(name string) (*mongo.Collection, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return nil, constants.ErrNotConnected
	}
	return db.Collection(name), nil
}

func (c *Connection) Insert(ctx context.Context, collection string, doc bson.D) (any, error) {
	coll, err := c.collection(collection)
	if err != nil {
		return nil, err
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

// Reduce runs a $match/$group pipeline.
func (c *Connection) Reduce(ctx context.Context, collection string, filter bson.D, op connection.ReduceOp, field string) (any, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: reduce %q", constants.ErrUnsupportedOperator, op)
	}
	coll, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orEmpty(filter)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "value", Value: bson.D{{Key: "$" + string(op), Value: "$" + field}}},
		}}},
	}
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return nil, cur.Err()
	}
	var out struct {
		Value any `bson:"value"`
	}
	if err := cur.Decode(&out); err != nil {
		return nil, err
	}
	return out.Value, nil
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
		res, err = coll.ReplaceOne(ctx, filter, update, options.Replace().SetUpsert(opts.Upsert))
	case opts.Multi:
		res, err = coll.UpdateMany(ctx, filter, update, options.Update().SetUpsert(opts.Upsert))
	default:
		res, err = coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(opts.Upsert))
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
		res, err = coll.DeleteMany(ctx, filter)
	} else {
		res, err = coll.DeleteOne(ctx, filter)
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

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool  { return c.cur.Next(ctx) }
func (c *cursor) Document() bson.Raw             { return c.cur.Current }
func (c *cursor) Err() error                     { return c.cur.Err() }
func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
