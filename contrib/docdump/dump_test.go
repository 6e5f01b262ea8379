package docdump

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/docmapper/mongoadapter/contrib/testenv"
	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func bookConfig() *Config {
	return &Config{Model: "Book", Sort: []string{"pages"}, Limit: -1, Format: JSONLines}
}

func TestDumper_Dump(t *testing.T) {
	a := testenv.MustNew("docdump", fixture.Registry())
	person, err := a.Model("Person")
	require.NoError(t, err)
	phone, err := a.Model("Phone")
	require.NoError(t, err)

	balance, _, err := apd.NewFromString("12.50")
	require.NoError(t, err)
	ada := resource.New(person, resource.Attributes{
		"name":    "Ada",
		"born":    time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
		"balance": balance,
	})
	ada.Append("phones", resource.New(phone, resource.Attributes{"kind": "home", "number": "555-0100"}))
	_, err = a.Create(context.Background(), ada)
	require.NoError(t, err)
	id := ada.Get("id").(primitive.ObjectID).Hex()

	q := query.New(person).Select(person.Property("name"), person.Property("born"), person.Property("balance"))

	t.Run("json lines", func(t *testing.T) {
		d, err := New(a, JSONLines)
		require.NoError(t, err)
		var buf bytes.Buffer
		n, err := d.Dump(context.Background(), &buf, q)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"type":"Person","name":"Ada","born":"1815-12-10T00:00:00Z","balance":"12.50"}`, id), buf.String())
	})

	t.Run("cbor sequence", func(t *testing.T) {
		d, err := New(a, CBOR)
		require.NoError(t, err)
		var buf bytes.Buffer
		n, err := d.Dump(context.Background(), &buf, query.New(person))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		var row map[string]any
		require.NoError(t, cbor.Unmarshal(buf.Bytes(), &row))
		assert.Equal(t, "Ada", row["name"])
		assert.Equal(t, "12.50", row["balance"])
		phones, ok := row["phones"].([]any)
		require.True(t, ok, "got %T", row["phones"])
		require.Len(t, phones, 1)
		assert.Equal(t, "555-0100", phones[0].(map[any]any)["number"])
	})
}

func TestDoWith(t *testing.T) {
	a := testenv.MustNew("docdump", fixture.Registry())
	book, err := a.Model("Book")
	require.NoError(t, err)
	for i := 3; i >= 1; i-- {
		r := resource.New(book, resource.Attributes{"isbn": fmt.Sprintf("978-%02d", i), "edition": 1, "title": fmt.Sprintf("Volume %d", i), "pages": i * 100})
		_, err := a.Create(context.Background(), r)
		require.NoError(t, err)
	}

	config := bookConfig()
	config.Dir = t.TempDir()
	config.Output = "books.jsonl"
	config.Offset = 1

	manifest, err := DoWith(context.Background(), a, config, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.Rows)
	assert.Equal(t, "books", manifest.Collection)

	data, err := os.ReadFile(filepath.Join(config.Dir, "books.jsonl"))
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), manifest.SHA256)
	assert.Equal(t, int64(len(data)), manifest.Size)

	var pages []int
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var row struct {
			Pages int `json:"pages"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		pages = append(pages, row.Pages)
	}
	assert.Equal(t, []int{200, 300}, pages)

	read, err := ReadManifest(config.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, manifest.SHA256, read.SHA256)
	assert.Equal(t, "Book", read.Model)

	n, err := Count(context.Background(), a, config)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "count ignores offset and limit")
}

func TestManifest_Validate(t *testing.T) {
	testcases := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{name: "valid", manifest: Manifest{Format: CBOR, Model: "Book", Collection: "books"}},
		{name: "format", manifest: Manifest{Format: "xml", Model: "Book", Collection: "books"}, wantErr: "invalid manifest format: xml"},
		{name: "model", manifest: Manifest{Format: CBOR, Collection: "books"}, wantErr: "manifest missing model"},
		{name: "collection", manifest: Manifest{Format: CBOR, Model: "Book"}, wantErr: "manifest missing collection"},
		{name: "rows", manifest: Manifest{Format: CBOR, Model: "Book", Collection: "books", Rows: -1}, wantErr: "manifest has a negative row count"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.manifest.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
