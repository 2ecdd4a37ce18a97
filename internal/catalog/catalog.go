// Package catalog owns the document template catalog: lookups for the
// generation pipeline and the administrative operations behind the admin API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
)

// Catalog errors
var (
	// ErrTemplateNotFound is returned when no template exists for a doc type.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateInactive is returned when a template exists but is disabled.
	ErrTemplateInactive = errors.New("template is inactive")

	// ErrTemplateExists is returned when creating a doc type that already exists.
	ErrTemplateExists = errors.New("template already exists")

	// ErrInvalidTemplate wraps validation failures of a template.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Catalog resolves templates and applies administrative changes.
type Catalog struct {
	store  store.TemplateStore
	logger *slog.Logger
}

// New creates a Catalog backed by templates.
func New(templates store.TemplateStore, logger *slog.Logger) *Catalog {
	if templates == nil {
		panic("template store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:  templates,
		logger: logger.With(slog.String("component", "catalog")),
	}
}

// Resolve returns a private copy of the active template for docType.
func (c *Catalog) Resolve(ctx context.Context, docType string) (*domain.Template, error) {
	tpl, err := c.store.Get(ctx, docType)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrTemplateInactive, docType)
	}
	return tpl.Clone(), nil
}

// ResolveAll resolves every doc type, failing on the first one that cannot
// be resolved.
func (c *Catalog) ResolveAll(ctx context.Context, docTypes []string) (map[string]*domain.Template, error) {
	out := make(map[string]*domain.Template, len(docTypes))
	for _, dt := range docTypes {
		tpl, err := c.Resolve(ctx, dt)
		if err != nil {
			return nil, err
		}
		out[dt] = tpl
	}
	return out, nil
}

// List returns every template, active or not.
func (c *Catalog) List(ctx context.Context) ([]*domain.Template, error) {
	return c.store.List(ctx)
}

// Get returns a template regardless of its active flag.
func (c *Catalog) Get(ctx context.Context, docType string) (*domain.Template, error) {
	tpl, err := c.store.Get(ctx, docType)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tpl, nil
}

// Create validates and stores a new template.
func (c *Catalog) Create(ctx context.Context, tpl *domain.Template) error {
	if err := validate(tpl); err != nil {
		return err
	}
	if err := c.store.Create(ctx, tpl); err != nil {
		return mapStoreError(err)
	}
	logger.FromContextOrDefault(ctx, c.logger).Info("template created",
		slog.String("doc_type", tpl.DocType),
		slog.String("provider", string(tpl.Provider)),
		slog.String("model", tpl.Model))
	return nil
}

// Patch is a partial template update. Nil fields are left unchanged.
type Patch struct {
	DisplayName      *string
	CreditCost       *int
	LanguageSource   *domain.LanguageSource
	Provider         *domain.Provider
	Model            *string
	PromptTemplate   *string
	InstructionRules *[]string
	IsActive         *bool
}

// Apply copies the set fields of p onto tpl.
func (p Patch) Apply(tpl *domain.Template) {
	if p.DisplayName != nil {
		tpl.DisplayName = *p.DisplayName
	}
	if p.CreditCost != nil {
		tpl.CreditCost = *p.CreditCost
	}
	if p.LanguageSource != nil {
		tpl.LanguageSource = *p.LanguageSource
	}
	if p.Provider != nil {
		tpl.Provider = *p.Provider
	}
	if p.Model != nil {
		tpl.Model = *p.Model
	}
	if p.PromptTemplate != nil {
		tpl.PromptTemplate = *p.PromptTemplate
	}
	if p.InstructionRules != nil {
		tpl.InstructionRules = append([]string(nil), (*p.InstructionRules)...)
	}
	if p.IsActive != nil {
		tpl.IsActive = *p.IsActive
	}
}

// Update applies patch to the stored template and returns the result. The
// provider/model pair is validated after the patch is applied, so changing
// only the provider to one that does not offer the current model fails.
func (c *Catalog) Update(ctx context.Context, docType string, patch Patch) (*domain.Template, error) {
	tpl, err := c.store.Get(ctx, docType)
	if err != nil {
		return nil, mapStoreError(err)
	}
	patch.Apply(tpl)
	if err := validate(tpl); err != nil {
		return nil, err
	}
	if err := c.store.Update(ctx, tpl); err != nil {
		return nil, mapStoreError(err)
	}
	logger.FromContextOrDefault(ctx, c.logger).Info("template updated",
		slog.String("doc_type", docType),
		slog.Bool("is_active", tpl.IsActive))
	return tpl, nil
}

// Delete removes a template. Tasks created earlier keep their snapshot.
func (c *Catalog) Delete(ctx context.Context, docType string) error {
	if err := c.store.Delete(ctx, docType); err != nil {
		return mapStoreError(err)
	}
	logger.FromContextOrDefault(ctx, c.logger).Info("template deleted", slog.String("doc_type", docType))
	return nil
}

func validate(tpl *domain.Template) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if err := generation.ValidateModel(tpl.Provider, tpl.Model); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrTemplateNotFound):
		return ErrTemplateNotFound
	case errors.Is(err, store.ErrTemplateExists):
		return ErrTemplateExists
	default:
		return err
	}
}
