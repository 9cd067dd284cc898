// Package metadata maintains an Iceberg-style table description for the
// parquet trade archive: one manifest per written file, a table metadata
// document tracking snapshots, and a flat catalog entry pointing at it.
// External query engines can read the archive through these files without
// scanning the bucket.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DataFile describes one parquet file the trade writer uploaded.
type DataFile struct {
	Path        string         `json:"path"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition"`
	Timestamp   time.Time      `json:"-"`
}

// ManifestEntry is one row of a manifest file. Status 1 marks an added file.
type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

// Snapshot records one table state, created per added file.
type Snapshot struct {
	SnapshotID     int64  `json:"snapshot-id"`
	SequenceNumber int64  `json:"sequence-number"`
	TimestampMs    int64  `json:"timestamp-ms"`
	Manifest       string `json:"manifest-list"`
}

// TableMetadata is the top-level table document, format version 2.
type TableMetadata struct {
	FormatVersion     int        `json:"format-version"`
	TableUUID         string     `json:"table-uuid"`
	Location          string     `json:"location"`
	CurrentSnapshotID int64      `json:"current-snapshot-id"`
	Snapshots         []Snapshot `json:"snapshots"`
}

// Generator accumulates snapshots for one table. Not safe for concurrent
// use; the trade writer serializes flushes.
type Generator struct {
	root      string
	tableName string
	tableUUID string
	snapshots []Snapshot
}

// NewGenerator returns a generator whose metadata tree lives under root.
func NewGenerator(root, tableName string) *Generator {
	return &Generator{
		root:      root,
		tableName: tableName,
		tableUUID: uuid.NewString(),
	}
}

// AddFile appends a snapshot for the given file, writing its manifest and
// refreshing the table metadata.
func (g *Generator) AddFile(df DataFile) error {
	snapID := df.Timestamp.UnixNano()
	manifestFile := fmt.Sprintf("manifest-%d.json", snapID)
	manifestPath := filepath.Join(g.root, "metadata", manifestFile)
	if err := writeJSON(manifestPath, []ManifestEntry{{Status: 1, DataFile: df}}, false); err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", df.Path, err)
	}

	g.snapshots = append(g.snapshots, Snapshot{
		SnapshotID:     snapID,
		SequenceNumber: int64(len(g.snapshots) + 1),
		TimestampMs:    df.Timestamp.UnixMilli(),
		Manifest:       manifestFile,
	})
	return g.writeTableMetadata()
}

func (g *Generator) writeTableMetadata() error {
	if len(g.snapshots) == 0 {
		return nil
	}
	tm := TableMetadata{
		FormatVersion:     2,
		TableUUID:         g.tableUUID,
		Location:          g.root,
		CurrentSnapshotID: g.snapshots[len(g.snapshots)-1].SnapshotID,
		Snapshots:         g.snapshots,
	}
	return writeJSON(filepath.Join(g.root, "metadata", "metadata.json"), tm, true)
}

// WriteCatalogEntry writes a catalog record mapping the table name to its
// current metadata location.
func (g *Generator) WriteCatalogEntry(catalogDir string) error {
	entry := map[string]string{
		"name":              g.tableName,
		"metadata_location": filepath.Join(g.root, "metadata", "metadata.json"),
	}
	return writeJSON(filepath.Join(catalogDir, fmt.Sprintf("%s.json", g.tableName)), entry, true)
}

func writeJSON(path string, v any, indent bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		b   []byte
		err error
	)
	if indent {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
