package zerolog_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docmapper/mongoadapter/pkg/logger"
	zl "github.com/docmapper/mongoadapter/pkg/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	l, err := zl.New().FromWriter(buffer).Level(zerolog.DebugLevel).Make()
	require.NoError(t, err)
	var _ logger.Logger = l

	testcases := []struct {
		fn    func(msg string, args ...any)
		level string
	}{
		{fn: l.Error, level: "error"},
		{fn: l.Warn, level: "warn"},
		{fn: l.Info, level: "info"},
		{fn: l.Debug, level: "debug"},
	}

	for _, tc := range testcases {
		t.Run(tc.level, func(t *testing.T) {
			buffer.Reset()
			tc.fn("store call failed", "collection", "people", "err", errors.New("boom"))

			var line map[string]any
			require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
			assert.Equal(t, tc.level, line["level"])
			assert.Equal(t, "store call failed", line["message"])
			assert.Equal(t, "people", line["collection"])
			assert.Equal(t, "boom", line["err"])
		})
	}
}

func TestLogger_level(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	l, err := zl.New().FromWriter(buffer).Make()
	require.NoError(t, err)

	l.Debug("hidden")
	assert.Zero(t, buffer.Len())
}

func TestLogger_path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.log")
	l, err := zl.New().FromPath(path).Make()
	require.NoError(t, err)

	l.Info("opened", "database", "app")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"database":"app"`)
}
