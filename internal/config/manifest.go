package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// BATCH MANIFEST
// =============================================================================
//
// A manifest lists the files of one batch, in processing order:
//
//   output: ./salida/febrero.xlsx
//   items:
//     - path: monroe/febrero.csv
//       provider: monroe
//       account: sucursal centro
//     - folder: keller/febrero
//       provider: keller
//
// Relative paths are resolved against the manifest's directory. An account
// may be a label from the account store or a literal id; keller items take
// their account from the store and may omit it.
//
// =============================================================================

// Manifest is a batch description loaded from YAML.
type Manifest struct {
	// Output overrides the generated output file name when set.
	Output string `yaml:"output"`

	// Items are processed in order.
	Items []ManifestItem `yaml:"items" validate:"required,min=1,dive"`
}

// ManifestItem is one file, or every matching file of one folder.
type ManifestItem struct {
	Path     string `yaml:"path" validate:"required_without=Folder"`
	Folder   string `yaml:"folder" validate:"required_without=Path"`
	Provider string `yaml:"provider" validate:"required"`
	Account  string `yaml:"account"`
}

// LoadManifest reads and validates a batch manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := validateStruct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	m.Output = resolve(base, m.Output)
	for i := range m.Items {
		m.Items[i].Path = resolve(base, m.Items[i].Path)
		m.Items[i].Folder = resolve(base, m.Items[i].Folder)
	}
	return &m, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
