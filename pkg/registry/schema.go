// pkg/registry/schema.go
package registry

// TemplateManifest lists the stored templates a deployment ships with.
type TemplateManifest struct {
	Version     string          `json:"version"`
	LastUpdated string          `json:"lastUpdated"`
	Templates   []TemplateEntry `json:"templates"`
}

// TemplateEntry is one (application, name) template. The body is either
// inline in Content or read from File, relative to the manifest.
type TemplateEntry struct {
	Application string                 `json:"application"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	File        string                 `json:"file,omitempty"`
	Content     string                 `json:"content,omitempty"`
	SampleModel map[string]interface{} `json:"sampleModel,omitempty"`
}

func (e TemplateEntry) Key() string {
	return e.Application + "/" + e.Name
}
