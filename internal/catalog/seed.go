package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
)

// Defaults applied to seeded templates.
const (
	DefaultCreditCost     = 1
	DefaultLanguageSource = domain.LanguageSourceDocumentation
	DefaultProvider       = domain.ProviderOpenAI
	DefaultModel          = "gpt-4"
)

//go:embed defaults.json
var defaultsJSON []byte

// DefaultTemplate is one entry of the built-in catalog.
type DefaultTemplate struct {
	DocType        string `json:"doc_type"`
	DisplayName    string `json:"display_name"`
	Category       string `json:"category"`
	PromptTemplate string `json:"prompt_template"`
}

// Defaults returns the built-in catalog in seed order.
func Defaults() ([]DefaultTemplate, error) {
	var defs []DefaultTemplate
	if err := json.Unmarshal(defaultsJSON, &defs); err != nil {
		return nil, fmt.Errorf("decode default templates: %w", err)
	}
	return defs, nil
}

// SeedResult counts what a seeding run did.
type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// Seed creates missing default templates. With force, existing templates get
// the default display name and prompt; their cost, provider settings and
// active flag are never touched. Defaults without a prompt are skipped.
func (c *Catalog) Seed(ctx context.Context, force bool) (SeedResult, error) {
	defs, err := Defaults()
	if err != nil {
		return SeedResult{}, err
	}
	return c.seed(ctx, defs, force)
}

func (c *Catalog) seed(ctx context.Context, defs []DefaultTemplate, force bool) (SeedResult, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	res := SeedResult{Total: len(defs)}

	for _, def := range defs {
		if def.PromptTemplate == "" {
			log.Warn("default template has no prompt, skipping", slog.String("doc_type", def.DocType))
			res.Skipped++
			continue
		}

		_, err := c.store.Get(ctx, def.DocType)
		switch {
		case err == nil:
			if !force {
				res.Skipped++
				continue
			}
			if err := c.store.UpdateContent(ctx, def.DocType, def.DisplayName, def.PromptTemplate); err != nil {
				return res, fmt.Errorf("refresh %s: %w", def.DocType, err)
			}
			res.Updated++
		case errors.Is(err, store.ErrTemplateNotFound):
			tpl := &domain.Template{
				DocType:        def.DocType,
				DisplayName:    def.DisplayName,
				CreditCost:     DefaultCreditCost,
				LanguageSource: DefaultLanguageSource,
				Provider:       DefaultProvider,
				Model:          DefaultModel,
				PromptTemplate: def.PromptTemplate,
				IsActive:       true,
			}
			if err := c.store.Create(ctx, tpl); err != nil {
				// Lost a race with a concurrent seed.
				if errors.Is(err, store.ErrTemplateExists) {
					res.Skipped++
					continue
				}
				return res, fmt.Errorf("create %s: %w", def.DocType, err)
			}
			res.Created++
		default:
			return res, fmt.Errorf("look up %s: %w", def.DocType, err)
		}
	}

	log.Info("template catalog seeded",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Bool("force", force))
	return res, nil
}
