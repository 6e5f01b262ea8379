package mongoadapter

import (
	"context"
	"iter"

	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/marshal"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Rows is a forward-only sequence of query results. Each document is decoded when
// the caller advances to it. Rows cannot be restarted; Close releases the cursor
// and is safe to call more than once.
//
//	rows, err := adapter.Read(ctx, q)
//	if err != nil {
//		return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//		fmt.Println(rows.Attributes())
//	}
//	return rows.Err()
type Rows struct {
	ctx        context.Context
	cur        connection.Cursor
	model      *schema.Model
	collection string
	exec       *Executor

	current      resource.Attributes
	currentModel *schema.Model
	err          error
	done         bool
}

// Next advances to the next row. It returns false when the rows are exhausted or
// an error occurred; check Err to tell them apart.
func (r *Rows) Next() bool {
	if r.done || r.cur == nil {
		r.done = true
		return false
	}
	if !r.cur.Next(r.ctx) {
		if err := r.cur.Err(); err != nil {
			r.err = r.exec.storeError("iterate", r.collection, err)
		}
		_ = r.Close()
		return false
	}
	m, attrs, err := marshal.Decode(r.model, r.cur.Document())
	if err != nil {
		r.err = err
		_ = r.Close()
		return false
	}
	r.current, r.currentModel = attrs, m
	return true
}

// Attributes returns the current row.
func (r *Rows) Attributes() resource.Attributes {
	return r.current
}

// Model returns the concrete model of the current row, which may be a subtype
// of the queried model.
func (r *Rows) Model() *schema.Model {
	return r.currentModel
}

// Resource returns the current row as a typed resource.
func (r *Rows) Resource() (*resource.Resource, error) {
	if r.current == nil {
		return nil, nil
	}
	return resource.FromAttributes(r.currentModel, r.current)
}

func (r *Rows) Err() error {
	return r.err
}

func (r *Rows) Close() error {
	r.done = true
	if r.cur == nil {
		return nil
	}
	cur := r.cur
	r.cur = nil
	return cur.Close(r.ctx)
}

// All iterates over the remaining rows. An error ends the sequence as its last element.
func (r *Rows) All() iter.Seq2[resource.Attributes, error] {
	return func(yield func(resource.Attributes, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.current, nil) {
				return
			}
		}
		if r.err != nil {
			yield(nil, r.err)
		}
	}
}

// Collect reads the remaining rows into a slice and closes the rows.
func (r *Rows) Collect() ([]resource.Attributes, error) {
	var out []resource.Attributes
	for attrs, err := range r.All() {
		if err != nil {
			return out, err
		}
		out = append(out, attrs)
	}
	return out, nil
}
