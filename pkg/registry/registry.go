// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LoadManifest reads the manifest at path. File references are resolved and
// their content is loaded into Content.
func LoadManifest(path string) (*TemplateManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m TemplateManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Templates {
		entry := &m.Templates[i]
		if entry.File == "" {
			continue
		}
		body, err := os.ReadFile(filepath.Join(base, entry.File))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Key(), err)
		}
		entry.Content = string(body)
	}

	return &m, nil
}

// Validate checks the manifest structure. It does not compile templates.
func (m *TemplateManifest) Validate() error {
	if len(m.Templates) == 0 {
		return fmt.Errorf("manifest contains no templates")
	}

	seen := make(map[string]bool, len(m.Templates))
	for i, entry := range m.Templates {
		if entry.Application == "" {
			return fmt.Errorf("template #%d missing required field: application", i)
		}
		if entry.Name == "" {
			return fmt.Errorf("template #%d missing required field: name", i)
		}
		if seen[entry.Key()] {
			return fmt.Errorf("duplicate template: %s", entry.Key())
		}
		seen[entry.Key()] = true
	}
	return nil
}

// Add appends entry, refusing duplicates.
func (m *TemplateManifest) Add(entry TemplateEntry) error {
	for _, existing := range m.Templates {
		if existing.Key() == entry.Key() {
			return fmt.Errorf("template %s already exists", entry.Key())
		}
	}
	m.Templates = append(m.Templates, entry)
	m.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Save writes the manifest. Content loaded from a File is not written back.
func Save(m *TemplateManifest, path string) error {
	out := *m
	out.Templates = make([]TemplateEntry, len(m.Templates))
	for i, entry := range m.Templates {
		if entry.File != "" {
			entry.Content = ""
		}
		out.Templates[i] = entry
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
