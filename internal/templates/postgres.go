package templates

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/models"

	"github.com/google/uuid"
)

const (
	selectTemplateQuery = `SELECT id, application, name, content, updated_at FROM notification_templates WHERE application = $1 AND name = $2`

	upsertTemplateQuery = `INSERT INTO notification_templates (id, application, name, content, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (application, name) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
RETURNING id, updated_at`

	listTemplatesQuery = `SELECT id, application, name, content, updated_at FROM notification_templates WHERE application = $1 ORDER BY name`
)

// Repository reads and writes notification_templates. (application, name)
// carries a unique constraint.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Resolve(ctx context.Context, application, name string) (*models.NotificationTemplate, error) {
	var tpl models.NotificationTemplate
	err := r.db.QueryRowContext(ctx, selectTemplateQuery, application, name).Scan(
		&tpl.ID, &tpl.Application, &tpl.Name, &tpl.Content, &tpl.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewTemplateNotFoundError(application, name)
		}
		return nil, errors.NewTemplateLookupFailedError(application, name, err)
	}
	return &tpl, nil
}

// Upsert stores tpl, replacing the content of an existing (application, name)
// row. ID and UpdatedAt are filled from the stored row.
func (r *Repository) Upsert(ctx context.Context, tpl *models.NotificationTemplate) error {
	id := tpl.ID
	if id == "" {
		id = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, upsertTemplateQuery, id, tpl.Application, tpl.Name, tpl.Content).Scan(
		&tpl.ID, &tpl.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("upsert template %s/%s: %w", tpl.Application, tpl.Name, err))
	}
	return nil
}

func (r *Repository) List(ctx context.Context, application string) ([]models.NotificationTemplate, error) {
	rows, err := r.db.QueryContext(ctx, listTemplatesQuery, application)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()

	var out []models.NotificationTemplate
	for rows.Next() {
		var tpl models.NotificationTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Application, &tpl.Name, &tpl.Content, &tpl.UpdatedAt); err != nil {
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return out, nil
}
