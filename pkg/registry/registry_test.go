package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestJSON = `{
  "version": "1.0.0",
  "templates": [
    {"application": "app1", "name": "welcome", "file": "app1/welcome.ftl"},
    {"application": "app1", "name": "reset", "content": "<p>${link}</p>", "sampleModel": {"link": "x"}}
  ]
}`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app1", "welcome.ftl"), []byte("<p>Hi ${firstName}</p>"), 0o644))
	path := filepath.Join(dir, "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(manifestJSON), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(writeManifest(t))
	require.NoError(t, err)
	require.Len(t, m.Templates, 2)

	assert.Equal(t, "<p>Hi ${firstName}</p>", m.Templates[0].Content)
	assert.Equal(t, "app1/reset", m.Templates[1].Key())
	assert.Equal(t, "x", m.Templates[1].SampleModel["link"])
	assert.NoError(t, m.Validate())
}

func TestLoadManifest_MissingFile(t *testing.T) {
	path := writeManifest(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "app1", "welcome.ftl")))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app1/welcome")
}

func TestTemplateManifest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entries []TemplateEntry
		wantErr string
	}{
		{name: "empty", wantErr: "no templates"},
		{name: "missing application", entries: []TemplateEntry{{Name: "n"}}, wantErr: "application"},
		{name: "missing name", entries: []TemplateEntry{{Application: "a"}}, wantErr: "name"},
		{
			name:    "duplicate",
			entries: []TemplateEntry{{Application: "a", Name: "n"}, {Application: "a", Name: "n"}},
			wantErr: "duplicate template: a/n",
		},
		{
			name:    "same name in two applications",
			entries: []TemplateEntry{{Application: "a", Name: "n"}, {Application: "b", Name: "n"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&TemplateManifest{Templates: tt.entries}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddAndSave(t *testing.T) {
	path := writeManifest(t)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	require.NoError(t, m.Add(TemplateEntry{Application: "app2", Name: "invoice", Content: "<p>${total}</p>"}))
	assert.Error(t, m.Add(TemplateEntry{Application: "app1", Name: "welcome"}))
	assert.NotEmpty(t, m.LastUpdated)

	require.NoError(t, Save(m, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Hi ${firstName}")

	reloaded, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Templates, 3)
	assert.Equal(t, "<p>Hi ${firstName}</p>", reloaded.Templates[0].Content)
	assert.Equal(t, "<p>${total}</p>", reloaded.Templates[2].Content)
}
