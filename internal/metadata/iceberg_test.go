package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func addTestFile(t *testing.T, gen *Generator, ts time.Time) {
	t.Helper()
	err := gen.AddFile(DataFile{
		Path:        "s3://bucket/trades/pair=BTC-USDT/2024/03/05/trades_BTC-USDT_20240305143045.parquet",
		FileSize:    100,
		RecordCount: 10,
		Partition: map[string]any{
			"pair": "BTC-USDT",
			"date": "2024-03-05",
		},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
}

func TestGeneratorWritesManifestAndMetadata(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "trades")

	now := time.Unix(1709649045, 0)
	addTestFile(t, gen, now)

	raw, err := os.ReadFile(filepath.Join(dir, "metadata", "metadata.json"))
	if err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	var tm TableMetadata
	if err := json.Unmarshal(raw, &tm); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if tm.FormatVersion != 2 || tm.TableUUID == "" {
		t.Fatalf("unexpected table metadata: %+v", tm)
	}
	if len(tm.Snapshots) != 1 || tm.CurrentSnapshotID != tm.Snapshots[0].SnapshotID {
		t.Fatalf("snapshot bookkeeping wrong: %+v", tm)
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata", tm.Snapshots[0].Manifest)); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}

func TestGeneratorSequencesSnapshots(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "trades")

	base := time.Unix(1709649045, 0)
	addTestFile(t, gen, base)
	addTestFile(t, gen, base.Add(time.Minute))

	raw, err := os.ReadFile(filepath.Join(dir, "metadata", "metadata.json"))
	if err != nil {
		t.Fatalf("metadata not written: %v", err)
	}
	var tm TableMetadata
	if err := json.Unmarshal(raw, &tm); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if len(tm.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(tm.Snapshots))
	}
	if tm.Snapshots[0].SequenceNumber != 1 || tm.Snapshots[1].SequenceNumber != 2 {
		t.Fatalf("sequence numbers wrong: %+v", tm.Snapshots)
	}
	if tm.CurrentSnapshotID != tm.Snapshots[1].SnapshotID {
		t.Fatalf("current snapshot not advanced: %+v", tm)
	}
}

func TestWriteCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "trades")
	addTestFile(t, gen, time.Unix(1709649045, 0))

	catalogDir := filepath.Join(dir, "catalog")
	if err := gen.WriteCatalogEntry(catalogDir); err != nil {
		t.Fatalf("WriteCatalogEntry: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(catalogDir, "trades.json"))
	if err != nil {
		t.Fatalf("catalog entry not written: %v", err)
	}
	var entry map[string]string
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("catalog entry not valid JSON: %v", err)
	}
	if entry["name"] != "trades" || entry["metadata_location"] != filepath.Join(dir, "metadata", "metadata.json") {
		t.Fatalf("unexpected catalog entry: %v", entry)
	}
}
