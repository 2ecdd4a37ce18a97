package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
)

// PostgresTemplateStore implements store.TemplateStore.
type PostgresTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTemplateStore creates a template store. If logger is nil, a
// default logger is used.
func NewPostgresTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresTemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

var _ store.TemplateStore = (*PostgresTemplateStore)(nil)

const templateColumns = `doc_type, display_name, credit_cost, language_source, llm_provider,
		llm_model, prompt_template, instruction_rules, is_active, created_at, updated_at`

// WithTx implements store.TemplateStore.WithTx
func (s *PostgresTemplateStore) WithTx(tx *sql.Tx) store.TemplateStore {
	return &PostgresTemplateStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var t domain.Template
	var rules []byte
	if err := row.Scan(
		&t.DocType,
		&t.DisplayName,
		&t.CreditCost,
		&t.LanguageSource,
		&t.Provider,
		&t.Model,
		&t.PromptTemplate,
		&rules,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &t.InstructionRules); err != nil {
			return nil, fmt.Errorf("decode instruction rules of %s: %w", t.DocType, err)
		}
	}
	return &t, nil
}

func encodeRules(rules []string) ([]byte, error) {
	if rules == nil {
		rules = []string{}
	}
	return json.Marshal(rules)
}

// Get implements store.TemplateStore.Get
func (s *PostgresTemplateStore) Get(ctx context.Context, docType string) (*domain.Template, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + templateColumns + ` FROM document_templates WHERE doc_type = $1`

	t, err := scanTemplate(s.db.QueryRowContext(ctx, query, docType))
	if err != nil {
		mapped := mapNotFound(err, store.ErrTemplateNotFound)
		if mapped != store.ErrTemplateNotFound {
			log.Error("failed to get template",
				slog.String("doc_type", docType),
				slog.String("error", err.Error()))
		}
		return nil, mapped
	}
	return t, nil
}

// List implements store.TemplateStore.List
func (s *PostgresTemplateStore) List(ctx context.Context) ([]*domain.Template, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + templateColumns + ` FROM document_templates ORDER BY doc_type`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list templates", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	templates := []*domain.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			log.Error("failed to scan template row", slog.String("error", err.Error()))
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return templates, nil
}

// Create implements store.TemplateStore.Create
func (s *PostgresTemplateStore) Create(ctx context.Context, t *domain.Template) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := t.Validate(); err != nil {
		return err
	}
	rules, err := encodeRules(t.InstructionRules)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
		INSERT INTO document_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.DocType, t.DisplayName, t.CreditCost, t.LanguageSource, t.Provider,
		t.Model, t.PromptTemplate, rules, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTemplateExists
		}
		log.Error("failed to create template",
			slog.String("doc_type", t.DocType),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("template created", slog.String("doc_type", t.DocType))
	return nil
}

// Update implements store.TemplateStore.Update
func (s *PostgresTemplateStore) Update(ctx context.Context, t *domain.Template) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := t.Validate(); err != nil {
		return err
	}
	rules, err := encodeRules(t.InstructionRules)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE document_templates
		SET display_name = $2, credit_cost = $3, language_source = $4, llm_provider = $5,
			llm_model = $6, prompt_template = $7, instruction_rules = $8, is_active = $9,
			updated_at = $10
		WHERE doc_type = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		t.DocType, t.DisplayName, t.CreditCost, t.LanguageSource, t.Provider,
		t.Model, t.PromptTemplate, rules, t.IsActive, t.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update template",
			slog.String("doc_type", t.DocType),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrTemplateNotFound); err != nil {
		return err
	}

	log.Info("template updated", slog.String("doc_type", t.DocType))
	return nil
}

// UpdateContent implements store.TemplateStore.UpdateContent
func (s *PostgresTemplateStore) UpdateContent(
	ctx context.Context,
	docType, displayName, promptTemplate string,
) error {
	query := `
		UPDATE document_templates
		SET display_name = $2, prompt_template = $3, updated_at = $4
		WHERE doc_type = $1
	`
	result, err := s.db.ExecContext(ctx, query, docType, displayName, promptTemplate, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTemplateNotFound)
}

// Delete implements store.TemplateStore.Delete
func (s *PostgresTemplateStore) Delete(ctx context.Context, docType string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM document_templates WHERE doc_type = $1`, docType)
	if err != nil {
		log.Error("failed to delete template",
			slog.String("doc_type", docType),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrTemplateNotFound); err != nil {
		return err
	}

	log.Info("template deleted", slog.String("doc_type", docType))
	return nil
}
