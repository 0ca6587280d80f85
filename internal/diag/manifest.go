package diag

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the manifest's file name within a dump directory.
const ManifestFileName = "manifest.yaml"

// ManifestEntry records one dump written into a dump directory.
type ManifestEntry struct {
	File     string `yaml:"file"`
	Reason   string `yaml:"reason"`
	Recorded string `yaml:"recorded"`
}

// Manifest is the YAML index of dumps accumulated in a single dump
// directory (config.Config.DumpDir), read by ltfsck --recover to surface
// prior diagnostic evidence alongside a recovery attempt.
type Manifest struct {
	Entries []ManifestEntry `yaml:"entries"`
}

// LoadManifest reads the manifest at dir/ManifestFileName. A missing
// manifest is not an error: it means the directory has no recorded
// dumps yet.
func LoadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}

		return Manifest{}, fmt.Errorf("reading dump manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing dump manifest: %w", err)
	}

	return m, nil
}

// RecordDump appends an entry for a dump file just written under dir and
// rewrites dir/ManifestFileName. file is the dump's base name, not a full
// path.
func RecordDump(dir, file, reason string, recorded time.Time) error {
	m, err := LoadManifest(dir)
	if err != nil {
		return err
	}

	m.Entries = append(m.Entries, ManifestEntry{
		File:     file,
		Reason:   reason,
		Recorded: recorded.UTC().Format(time.RFC3339),
	})

	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding dump manifest: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}

	return atomic.WriteFile(filepath.Join(dir, ManifestFileName), bytes.NewReader(out))
}
