package docdump

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	mongoadapter "github.com/docmapper/mongoadapter"
	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Open connects an adapter to the store and schema named by config.
func Open(config *Config, l logger.Logger) (*mongoadapter.Adapter, error) {
	reg, err := schema.LoadFile(config.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	conf, err := connection.ParseConfig(config.URL)
	if err != nil {
		return nil, err
	}
	if l != nil {
		conf.Logger = l
	}
	return mongoadapter.Open(conf, mongoadapter.WithRegistry(reg))
}

// Do runs a dump against a freshly opened adapter. The configuration should be
// validated before calling this function.
func Do(ctx context.Context, config *Config, l logger.Logger) (*Manifest, error) {
	a, err := Open(config, l)
	if err != nil {
		return nil, err
	}
	defer a.Close(ctx)
	return DoWith(ctx, a, config, l)
}

// DoWith dumps through an existing adapter. Without an output path rows go to stdout
// and no manifest is written.
func DoWith(ctx context.Context, a *mongoadapter.Adapter, config *Config, l logger.Logger) (*Manifest, error) {
	if l == nil {
		l = logger.Nop()
	}
	m, err := a.Model(config.Model)
	if err != nil {
		return nil, err
	}
	q, err := config.Query(m)
	if err != nil {
		return nil, err
	}
	dumper, err := New(a, config.Format)
	if err != nil {
		return nil, err
	}

	path := config.OutputPath()
	if path == "" {
		n, err := dumper.Dump(ctx, os.Stdout, q)
		if err != nil {
			return nil, err
		}
		l.Info("dump completed", "model", m.Name, "rows", n)
		return &Manifest{Format: config.Format, Model: m.Name, Collection: m.Collection(), Rows: n}, nil
	}

	start := time.Now()
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	sum := sha256.New()
	n, err := dumper.Dump(ctx, io.MultiWriter(f, sum), q)
	if err != nil {
		return nil, fmt.Errorf("dump failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Filename:   info.Name(),
		Format:     config.Format,
		CreatedAt:  start.UTC(),
		Size:       info.Size(),
		Database:   databaseName(config.URL),
		Model:      m.Name,
		Collection: m.Collection(),
		Rows:       n,
		SHA256:     hex.EncodeToString(sum.Sum(nil)),
	}
	if err := WriteManifest(path, manifest); err != nil {
		return nil, err
	}
	l.Info("dump completed", "model", m.Name, "rows", n, "output", path, "size", formatBytes(info.Size()), "elapsed", time.Since(start))
	return manifest, nil
}

// Count returns the number of rows a dump with config would write, ignoring limit and offset.
func Count(ctx context.Context, a *mongoadapter.Adapter, config *Config) (int64, error) {
	m, err := a.Model(config.Model)
	if err != nil {
		return 0, err
	}
	q, err := config.Query(m)
	if err != nil {
		return 0, err
	}
	return a.Count(ctx, q)
}

func databaseName(rawURL string) string {
	conf, err := connection.ParseConfig(rawURL)
	if err != nil {
		return ""
	}
	return conf.DatabaseName()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
