package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/templates"
	"notification-workers/pkg/registry"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifest(entries ...registry.TemplateEntry) *registry.TemplateManifest {
	return &registry.TemplateManifest{Version: "1.0.0", Templates: entries}
}

func TestValidateManifest(t *testing.T) {
	tests := []struct {
		name    string
		entries []registry.TemplateEntry
		wantErr string
		wantOut []string
	}{
		{
			name: "all compile",
			entries: []registry.TemplateEntry{
				{Application: "app1", Name: "welcome", Content: "<p>Hi ${firstName}</p>"},
				{Application: "app1", Name: "reset", Content: "${link}", SampleModel: map[string]interface{}{"link": "x"}},
			},
			wantOut: []string{"✓ app1/welcome", "✓ app1/reset"},
		},
		{
			name: "syntax error",
			entries: []registry.TemplateEntry{
				{Application: "app1", Name: "ok", Content: "fine"},
				{Application: "app1", Name: "broken", Content: "${name ==}"},
			},
			wantErr: "1 of 2 templates failed",
			wantOut: []string{"✓ app1/ok", "✗ app1/broken"},
		},
		{
			name: "sample model misses a key",
			entries: []registry.TemplateEntry{
				{Application: "app1", Name: "reset", Content: "${link}", SampleModel: map[string]interface{}{"other": 1}},
			},
			wantErr: "1 of 1 templates failed",
			wantOut: []string{`"link" is missing`},
		},
		{
			name:    "duplicate entries",
			entries: []registry.TemplateEntry{{Application: "a", Name: "n"}, {Application: "a", Name: "n"}},
			wantErr: "duplicate template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := validateManifest(manifest(tt.entries...), &out)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			for _, s := range tt.wantOut {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestPushManifest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	key := templates.CacheKey("app1", "welcome")
	require.NoError(t, mr.Set(key, `{"content":"stale"}`))
	require.NoError(t, mr.Set(templates.CacheKey("app1", "other"), "kept"))

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO notification_templates`).
		WithArgs(sqlmock.AnyArg(), "app1", "welcome", "<p>Hi ${firstName}</p>").
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow("tpl-1", now))
	mock.ExpectQuery(`INSERT INTO notification_templates`).
		WithArgs(sqlmock.AnyArg(), "app2", "invoice", "${total}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow("tpl-2", now))

	log := logger.NewTestLogger(t)
	evictor := templates.NewCachedResolver(nil, rdb, time.Minute, log)

	var out bytes.Buffer
	err = pushManifest(context.Background(), manifest(
		registry.TemplateEntry{Application: "app1", Name: "welcome", Content: "<p>Hi ${firstName}</p>"},
		registry.TemplateEntry{Application: "app2", Name: "invoice", Content: "${total}"},
	), templates.NewRepository(db), evictor, log, &out)
	require.NoError(t, err)

	assert.False(t, mr.Exists(key))
	assert.True(t, mr.Exists(templates.CacheKey("app1", "other")))
	assert.Contains(t, out.String(), "pushed app1/welcome (id tpl-1)")
	assert.Contains(t, out.String(), "pushed app2/invoice (id tpl-2)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingUpserter struct{ calls int }

func (f *failingUpserter) Upsert(ctx context.Context, tpl *models.NotificationTemplate) error {
	f.calls++
	return fmt.Errorf("connection refused")
}

type failingEvictor struct{}

func (failingEvictor) Evict(ctx context.Context, application, name string) error {
	return fmt.Errorf("redis down")
}

type okUpserter struct{}

func (okUpserter) Upsert(ctx context.Context, tpl *models.NotificationTemplate) error {
	tpl.ID = tpl.Application + "-" + tpl.Name
	return nil
}

func TestPushManifest_StopsOnUpsertError(t *testing.T) {
	repo := &failingUpserter{}
	err := pushManifest(context.Background(), manifest(
		registry.TemplateEntry{Application: "a", Name: "one", Content: "1"},
		registry.TemplateEntry{Application: "a", Name: "two", Content: "2"},
	), repo, nil, logger.NewTestLogger(t), &bytes.Buffer{})

	require.Error(t, err)
	assert.Equal(t, 1, repo.calls)
}

func TestPushManifest_EvictionFailureIsNotFatal(t *testing.T) {
	var out bytes.Buffer
	err := pushManifest(context.Background(), manifest(
		registry.TemplateEntry{Application: "a", Name: "one", Content: "1"},
	), okUpserter{}, failingEvictor{}, logger.NewTestLogger(t), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "pushed a/one (id a-one)")
}

func TestAddTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "templates.json")

	require.NoError(t, addTemplate(path, registry.TemplateEntry{Application: "app1", Name: "welcome", Content: "hi"}))
	require.NoError(t, addTemplate(path, registry.TemplateEntry{Application: "app1", Name: "reset", Content: "${link}"}))
	assert.Error(t, addTemplate(path, registry.TemplateEntry{Application: "app1", Name: "welcome", Content: "again"}))

	m, err := registry.LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Templates, 2)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "app1/reset", m.Templates[1].Key())
}
