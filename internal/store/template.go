package store

import (
	"context"
	"database/sql"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

// TemplateStore persists the document template catalog.
type TemplateStore interface {
	// Get returns the template for docType regardless of its active flag.
	// Returns ErrTemplateNotFound if no such template exists.
	Get(ctx context.Context, docType string) (*domain.Template, error)

	// List returns every template ordered by doc type.
	List(ctx context.Context) ([]*domain.Template, error)

	// Create inserts a new template. Returns ErrTemplateExists on a duplicate doc type.
	Create(ctx context.Context, t *domain.Template) error

	// Update overwrites every mutable column of an existing template.
	// Returns ErrTemplateNotFound if the template does not exist.
	Update(ctx context.Context, t *domain.Template) error

	// UpdateContent changes only display name and prompt skeleton, leaving
	// cost, provider settings and the active flag untouched.
	UpdateContent(ctx context.Context, docType, displayName, promptTemplate string) error

	// Delete removes a template. Returns ErrTemplateNotFound if it does not exist.
	Delete(ctx context.Context, docType string) error

	// WithTx returns a new TemplateStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TemplateStore
}
