package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/render"
	"notification-workers/pkg/registry"
)

// Upserter stores a template by (application, name).
type Upserter interface {
	Upsert(ctx context.Context, tpl *models.NotificationTemplate) error
}

// Evictor drops a cached template.
type Evictor interface {
	Evict(ctx context.Context, application, name string) error
}

func addTemplate(path string, entry registry.TemplateEntry) error {
	m, err := registry.LoadManifest(path)
	if os.IsNotExist(err) {
		m, err = &registry.TemplateManifest{Version: "1.0.0"}, nil
	}
	if err != nil {
		return err
	}
	if err := m.Add(entry); err != nil {
		return err
	}
	return registry.Save(m, path)
}

// validateManifest checks the manifest structure and compiles every
// template. Templates with a sample model are also executed against it.
// All template errors are reported before returning.
func validateManifest(m *registry.TemplateManifest, out io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}

	engine := render.NewEngine()
	failed := 0
	for _, entry := range m.Templates {
		tpl, err := engine.Compile(entry.Content)
		if err == nil && entry.SampleModel != nil {
			_, err = tpl.Execute(entry.SampleModel)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "  ✗ %s: %v\n", entry.Key(), err)
			continue
		}
		fmt.Fprintf(out, "  ✓ %s\n", entry.Key())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(m.Templates))
	}
	return nil
}

// pushManifest upserts every entry and evicts its cache key. evictor may be
// nil when no cache is configured. An eviction failure is logged; the stale
// copy expires with its TTL.
func pushManifest(ctx context.Context, m *registry.TemplateManifest, repo Upserter, evictor Evictor, log logger.Logger, out io.Writer) error {
	for _, entry := range m.Templates {
		tpl := &models.NotificationTemplate{
			Application: entry.Application,
			Name:        entry.Name,
			Content:     entry.Content,
		}
		if err := repo.Upsert(ctx, tpl); err != nil {
			return err
		}

		if evictor != nil {
			if err := evictor.Evict(ctx, entry.Application, entry.Name); err != nil {
				log.Warn("Template cache eviction failed", map[string]interface{}{
					"application": entry.Application,
					"name":        entry.Name,
					"error":       err.Error(),
				})
			}
		}

		fmt.Fprintf(out, "  pushed %s (id %s)\n", entry.Key(), tpl.ID)
	}
	return nil
}
