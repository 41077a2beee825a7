package templates

import (
	"context"

	"notification-workers/internal/models"
)

// Resolver finds the stored template for an application. A missing template
// is reported as TEMPLATE_NOT_FOUND, any storage failure as
// TEMPLATE_LOOKUP_FAILED.
type Resolver interface {
	Resolve(ctx context.Context, application, name string) (*models.NotificationTemplate, error)
}

// ResolverFunc adapts a lookup function to Resolver.
type ResolverFunc func(ctx context.Context, application, name string) (*models.NotificationTemplate, error)

func (f ResolverFunc) Resolve(ctx context.Context, application, name string) (*models.NotificationTemplate, error) {
	return f(ctx, application, name)
}
