package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
)

// ManifestEntry records one backed-up file. Checksums are per-file SHA-256
// over the original (pre-compression) content.
type ManifestEntry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Mode     uint32 `json:"mode"`
	Checksum string `json:"checksum"`
}

// Manifest is the restore-side source of truth for an archive. It is written
// next to the archive only after a run completes; a cancelled run leaves no
// manifest behind.
type Manifest struct {
	RunID       string                      `json:"run_id"`
	JobID       string                      `json:"job_id"`
	CreatedAt   time.Time                   `json:"created_at"`
	Compression domain.CompressionAlgorithm `json:"compression"`
	Encryption  domain.EncryptionAlgorithm  `json:"encryption"`
	Files       []ManifestEntry             `json:"files"`
}

func ManifestPath(archivePath string) string {
	return archivePath + ".manifest.json"
}

func WriteManifest(archivePath string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(archivePath), data, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func ReadManifest(archivePath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(archivePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// RemoveArchive deletes an archive and its manifest, ignoring files that are
// already gone.
func RemoveArchive(archivePath string) error {
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	if err := os.Remove(ManifestPath(archivePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}
	return nil
}

// MatchesAny reports whether rel matches any of the glob patterns, either on
// the full relative path or on the base name.
func MatchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
