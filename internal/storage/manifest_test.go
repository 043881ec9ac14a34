package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
)

func TestManifestRoundtrip(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "run.bkp")
	m := &Manifest{
		RunID:       "run-1",
		JobID:       "job-1",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Compression: domain.CompressionAlgorithmGzip,
		Encryption:  domain.EncryptionAlgorithmAESGCM,
		Files: []ManifestEntry{
			{Path: "a.txt", Size: 13, Mode: 0o600, Checksum: "abc123"},
			{Path: "sub/b.log", Size: 42, Mode: 0o644, Checksum: "def456"},
		},
	}

	if err := WriteManifest(archivePath, m); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	loaded, err := ReadManifest(archivePath)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	if loaded.RunID != m.RunID || loaded.JobID != m.JobID {
		t.Errorf("identity fields differ: %+v", loaded)
	}
	if loaded.Compression != m.Compression || loaded.Encryption != m.Encryption {
		t.Errorf("envelope fields differ: %+v", loaded)
	}
	if len(loaded.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(loaded.Files))
	}
	if loaded.Files[1].Path != "sub/b.log" || loaded.Files[1].Checksum != "def456" {
		t.Errorf("entry differs: %+v", loaded.Files[1])
	}
}

func TestReadManifestMissing(t *testing.T) {
	if _, err := ReadManifest(filepath.Join(t.TempDir(), "absent.bkp")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestRemoveArchive(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "run.bkp")
	if err := os.WriteFile(archivePath, []byte("archive"), 0o600); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	if err := WriteManifest(archivePath, &Manifest{RunID: "run-1"}); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if err := RemoveArchive(archivePath); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Error("archive still present")
	}
	if _, err := os.Stat(ManifestPath(archivePath)); !os.IsNotExist(err) {
		t.Error("manifest still present")
	}

	// Removing an already-removed archive is not an error
	if err := RemoveArchive(archivePath); err != nil {
		t.Errorf("second remove failed: %v", err)
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		rel      string
		expected bool
	}{
		{"full path match", []string{"docs/*.md"}, "docs/readme.md", true},
		{"base name match", []string{"*.log"}, "deep/nested/app.log", true},
		{"no match", []string{"*.txt"}, "app.log", false},
		{"empty patterns", nil, "anything", false},
		{"exact name", []string{"Makefile"}, "Makefile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesAny(tt.patterns, tt.rel); got != tt.expected {
				t.Errorf("MatchesAny(%v, %q) = %v, expected %v", tt.patterns, tt.rel, got, tt.expected)
			}
		})
	}
}
