package docdump

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/apd/v3"
	mongoadapter "github.com/docmapper/mongoadapter"
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dumper streams the rows of a query into a writer.
type Dumper struct {
	adapter *mongoadapter.Adapter
	format  Format
	cbor    cbor.EncMode
}

func New(a *mongoadapter.Adapter, format Format) (*Dumper, error) {
	mode, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return nil, err
	}
	return &Dumper{adapter: a, format: format, cbor: mode}, nil
}

type encoder interface {
	Encode(v any) error
}

// Dump writes each row q yields to w and returns the number of rows written.
// Rows are read one at a time.
func (d *Dumper) Dump(ctx context.Context, w io.Writer, q query.Query) (int, error) {
	var enc encoder
	switch d.format {
	case JSONLines:
		enc = json.NewEncoder(w)
	case CBOR:
		enc = d.cbor.NewEncoder(w)
	default:
		return 0, fmt.Errorf("unknown format %q", d.format)
	}

	rows, err := d.adapter.Read(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := enc.Encode(plain(rows.Attributes())); err != nil {
			return n, fmt.Errorf("failed to encode row %d: %w", n, err)
		}
		n++
	}
	return n, rows.Err()
}

// plain turns decoded attribute values into forms both encoders render the same way.
func plain(v any) any {
	switch x := v.(type) {
	case resource.Attributes:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plain(item)
		}
		return out
	case []resource.Attributes:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	case models.Reference:
		return x.String()
	case *apd.Decimal:
		return x.String()
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
