// Package mongoadapter maps ORM-level models onto MongoDB collections.
//
// # Models and Resources
//
// Models are declared in a [schema.Registry], either in Go or loaded from YAML with
// [schema.Load]. A model lists typed properties and embedments: related models whose
// resources are stored inside the owning document, as a single nested document
// (one to one) or as an ordered array of nested documents (one to many).
//
// A [resource.Resource] is an instance of a model. Reads yield raw
// [resource.Attributes] keyed by property name.
//
// # Queries
//
// A [query.Query] names a model, a condition tree, sort pairs, an offset, a limit and
// optionally the properties to read. [query.Translate] compiles the condition tree
// into a MongoDB filter document; [Adapter.Read] runs the query and streams rows
// lazily as the caller advances.
//
// # Connections
//
// [Open] builds an adapter from a [connection.Config]. The connection is established
// on first use and reused afterwards. Re-establishing it after a dropped connection
// or a fork is explicit: call [Adapter.Reconnect].
//
// The in-process store in [github.com/docmapper/mongoadapter/pkg/connection/memory]
// runs an embedded lungo engine, which understands the same filter dialect, and is
// selected with a memory:// URL.
//
// # Errors
//
// Failures match the sentinels in [github.com/docmapper/mongoadapter/pkg/constants]
// with errors.Is. Store round trips that fail after the connection is up return a
// [*StoreError]; they are logged and never retried.
package mongoadapter
