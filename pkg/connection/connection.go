// Package connection defines the store connection the adapter talks to and its configuration.
//
// Implementations live in subpackages: mongodb drives a MongoDB server through the
// official driver, memory keeps collections in process.
package connection

import (
	"context"
	"fmt"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"go.mongodb.org/mongo-driver/bson"
)

// Connection is a handle on one database of a document store.
// Implementations must be safe for concurrent use.
type Connection interface {
	// Connect establishes the connection, authenticating when credentials are configured.
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Insert stores doc and returns its identifier, assigning one when doc has none.
	Insert(ctx context.Context, collection string, doc bson.D) (any, error)
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) (Cursor, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
	// Reduce folds field over the matching documents in the store. It returns nil
	// when nothing matches.
	Reduce(ctx context.Context, collection string, filter bson.D, op ReduceOp, field string) (any, error)
	// Update applies update to the matching documents. An update without $-operators
	// replaces the matched document.
	Update(ctx context.Context, collection string, filter, update bson.D, opts UpdateOptions) (UpdateResult, error)
	Delete(ctx context.Context, collection string, filter bson.D, opts DeleteOptions) (int64, error)
}

// Cursor iterates over query results. It is forward-only.
type Cursor interface {
	Next(ctx context.Context) bool
	// Document returns the current document. It is valid until the next call to Next.
	Document() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

type FindOptions struct {
	// Projection lists the fields to return. Empty returns whole documents.
	Projection []string
	Sort       bson.D
	Skip       int64
	// Limit caps the number of documents. Zero means no limit.
	Limit int64
}

type UpdateOptions struct {
	Upsert bool
	// Multi updates every match instead of the first one.
	Multi bool
}

type UpdateResult struct {
	Matched  int64
	Modified int64
	// UpsertedID is set when an upsert inserted a document.
	UpsertedID any
}

type DeleteOptions struct {
	// Multi deletes every match instead of the first one.
	Multi bool
}

// ReduceOp is a numeric aggregate evaluated by the store.
type ReduceOp string

const (
	Sum ReduceOp = "sum"
	Avg ReduceOp = "avg"
	Min ReduceOp = "min"
	Max ReduceOp = "max"
)

func (op ReduceOp) Valid() bool {
	switch op {
	case Sum, Avg, Min, Max:
		return true
	}
	return false
}

// Error reports a failure to configure, reach or authenticate against the store.
// It matches constants.ErrConnection.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s: %v", constants.ErrConnection, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == constants.ErrConnection
}
