package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the durable per-session registry document other tools
// (session analyzers, test suites) rely on. It lives under metadata/.
const ManifestName = "manifest.json"

// Manifest is the on-disk form of a session's registry and step log. It is
// rewritten atomically on every mutation so an acknowledged track_file or
// log entry survives a crash.
type Manifest struct {
	SessionID     string        `json:"session_id"`
	LayoutVersion int           `json:"layout_version"`
	State         string        `json:"state"`
	Meta          Meta          `json:"meta"`
	CreatedAt     time.Time     `json:"created_at"`
	Steps         []StepEntry   `json:"steps"`
	Files         []TrackedFile `json:"files"`
	Summary       *Summary      `json:"summary,omitempty"`
}

// writeManifest persists the manifest with temp-file + rename semantics.
// Each call writes a private temp file so concurrent flushes never share an
// inode; the rename itself is atomic.
func writeManifest(root string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Join(root, "metadata")
	tmp, err := os.CreateTemp(dir, "manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create manifest temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, ManifestName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a session manifest from a session root directory.
func ReadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "metadata", ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
