package docdump

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// Manifest describes a dump file.
type Manifest struct {
	Filename  string    `json:"filename"`
	Format    Format    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	Database   string `json:"database"`
	Model      string `json:"model"`
	Collection string `json:"collection"`
	Rows       int    `json:"rows"`

	SHA256 string `json:"sha256,omitempty"`
}

// Validate validates the manifest fields for consistency and completeness
func (m *Manifest) Validate() error {
	if m.Format != JSONLines && m.Format != CBOR {
		return fmt.Errorf("invalid manifest format: %s", m.Format)
	}
	if m.Model == "" {
		return fmt.Errorf("manifest missing model")
	}
	if m.Collection == "" {
		return fmt.Errorf("manifest missing collection")
	}
	if m.Rows < 0 {
		return fmt.Errorf("manifest has a negative row count")
	}
	return nil
}

// ManifestPath returns the manifest file path for a dump file.
func ManifestPath(dumpPath string) string {
	return dumpPath + ".manifest.json"
}

// WriteManifest validates m and writes it next to the dump file.
func WriteManifest(dumpPath string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(ManifestPath(dumpPath), data, 0o644)
}

// ReadManifest reads the manifest of a dump file.
func ReadManifest(dumpPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(dumpPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
