package results

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactName is the file the table is persisted to inside the output directory.
const ArtifactName = "detections.gob"

// Save writes the table to path, creating parent directories.
func Save(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // G304: output path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create detections file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(t); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close detections file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move detections into place: %w", err)
	}
	return nil
}

// Load reads a table written by Save and checks its dimensions.
func Load(path string, numClasses, numImages int) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: output path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var t Table
	if err := gob.NewDecoder(f).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}
	if err := t.Validate(numClasses, numImages); err != nil {
		return nil, err
	}
	return &t, nil
}
