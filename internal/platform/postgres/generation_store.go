package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

// PostgresGenerationTaskStore implements store.GenerationTaskStore.
type PostgresGenerationTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGenerationTaskStore creates a generation task store.
func NewPostgresGenerationTaskStore(db store.DBTX, logger *slog.Logger) *PostgresGenerationTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGenerationTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_task_store")),
	}
}

var _ store.GenerationTaskStore = (*PostgresGenerationTaskStore)(nil)

// WithTx implements store.GenerationTaskStore.WithTx
func (s *PostgresGenerationTaskStore) WithTx(tx *sql.Tx) store.GenerationTaskStore {
	return &PostgresGenerationTaskStore{db: tx, logger: s.logger}
}

// Create implements store.GenerationTaskStore.Create. Callers run it in a
// transaction so the task never exists without its documents.
func (s *PostgresGenerationTaskStore) Create(ctx context.Context, task *domain.GenerationTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_tasks
			(id, application_id, user_id, status, completed_docs, total_docs, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		task.ID, task.ApplicationID, task.UserID, task.Status, task.CompletedDocs,
		task.TotalDocs, task.ErrorMessage, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create generation task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	for _, doc := range task.Documents {
		if doc.Template == nil {
			return fmt.Errorf("%w: %s", domain.ErrMissingTemplate, doc.DocType)
		}
		snapshot, err := json.Marshal(doc.Template)
		if err != nil {
			return fmt.Errorf("encode template snapshot: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO generation_task_documents
				(task_id, doc_type, position, status, error_message, template_snapshot, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, task.ID, doc.DocType, doc.Position, doc.Status, doc.ErrorMessage, snapshot, doc.UpdatedAt)
		if err != nil {
			log.Error("failed to create generation task document",
				slog.String("task_id", task.ID.String()),
				slog.String("doc_type", doc.DocType),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	log.Info("generation task created",
		slog.String("task_id", task.ID.String()),
		slog.Int("total_docs", task.TotalDocs))
	return nil
}

// Get implements store.GenerationTaskStore.Get
func (s *PostgresGenerationTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var task domain.GenerationTask
	err := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, user_id, status, completed_docs, total_docs, error_message, created_at, updated_at
		FROM generation_tasks
		WHERE id = $1
	`, id).Scan(
		&task.ID,
		&task.ApplicationID,
		&task.UserID,
		&task.Status,
		&task.CompletedDocs,
		&task.TotalDocs,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGenerationTaskNotFound
		}
		log.Error("failed to get generation task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_type, position, status, error_message, template_snapshot, updated_at
		FROM generation_task_documents
		WHERE task_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var doc domain.GenerationTaskDocument
		var snapshot []byte
		if err := rows.Scan(
			&doc.DocType,
			&doc.Position,
			&doc.Status,
			&doc.ErrorMessage,
			&snapshot,
			&doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation task document: %w", err)
		}
		var tpl domain.Template
		if err := json.Unmarshal(snapshot, &tpl); err != nil {
			return nil, fmt.Errorf("decode template snapshot of %s: %w", doc.DocType, err)
		}
		doc.Template = &tpl
		task.Documents = append(task.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &task, nil
}

// UpdateStatus implements store.GenerationTaskStore.UpdateStatus
func (s *PostgresGenerationTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`, id, status, errorMsg, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrGenerationTaskNotFound)
}

// MarkDocumentProcessing implements store.GenerationTaskStore.MarkDocumentProcessing
func (s *PostgresGenerationTaskStore) MarkDocumentProcessing(
	ctx context.Context,
	taskID uuid.UUID,
	docType string,
) error {
	return s.transitionDocument(ctx, taskID, docType, domain.DocumentStatusProcessing, "")
}

// MarkDocumentFailed implements store.GenerationTaskStore.MarkDocumentFailed
func (s *PostgresGenerationTaskStore) MarkDocumentFailed(
	ctx context.Context,
	taskID uuid.UUID,
	docType, reason string,
) error {
	return s.transitionDocument(ctx, taskID, docType, domain.DocumentStatusFailed, reason)
}

func (s *PostgresGenerationTaskStore) transitionDocument(
	ctx context.Context,
	taskID uuid.UUID,
	docType string,
	status domain.DocumentStatus,
	reason string,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_task_documents
		SET status = $3, error_message = $4, updated_at = $5
		WHERE task_id = $1 AND doc_type = $2 AND status IN ('pending', 'processing')
	`, taskID, docType, status, reason, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrDocumentTerminal); err != nil {
		return s.explainMissingDocument(ctx, taskID, docType, err)
	}
	return nil
}

// CompleteDocument implements store.GenerationTaskStore.CompleteDocument
func (s *PostgresGenerationTaskStore) CompleteDocument(ctx context.Context, taskID uuid.UUID, docType string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.transitionDocument(ctx, taskID, docType, domain.DocumentStatusDone, ""); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET completed_docs = completed_docs + 1, updated_at = $2
		WHERE id = $1 AND completed_docs < total_docs
	`, taskID, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrConflict); err != nil {
		log.Error("completed_docs already at total_docs",
			slog.String("task_id", taskID.String()),
			slog.String("doc_type", docType))
		return err
	}
	return nil
}

// explainMissingDocument distinguishes a terminal document from one that
// does not exist when a conditional update touched no rows.
func (s *PostgresGenerationTaskStore) explainMissingDocument(
	ctx context.Context,
	taskID uuid.UUID,
	docType string,
	fallback error,
) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM generation_task_documents WHERE task_id = $1 AND doc_type = $2)
	`, taskID, docType).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrTaskDocumentNotFound
	}
	return fallback
}

// PostgresGeneratedDocumentStore implements store.GeneratedDocumentStore.
type PostgresGeneratedDocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGeneratedDocumentStore creates a generated document store.
func NewPostgresGeneratedDocumentStore(db store.DBTX, logger *slog.Logger) *PostgresGeneratedDocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGeneratedDocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "generated_document_store")),
	}
}

var _ store.GeneratedDocumentStore = (*PostgresGeneratedDocumentStore)(nil)

// WithTx implements store.GeneratedDocumentStore.WithTx
func (s *PostgresGeneratedDocumentStore) WithTx(tx *sql.Tx) store.GeneratedDocumentStore {
	return &PostgresGeneratedDocumentStore{db: tx, logger: s.logger}
}

// Create implements store.GeneratedDocumentStore.Create
func (s *PostgresGeneratedDocumentStore) Create(ctx context.Context, doc *domain.GeneratedDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_documents
			(id, application_id, task_id, doc_type, format, content, llm_provider, llm_model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		doc.ID, doc.ApplicationID, doc.TaskID, doc.DocType, doc.Format,
		doc.Content, doc.Provider, doc.Model, doc.CreatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create generated document",
			slog.String("task_id", doc.TaskID.String()),
			slog.String("doc_type", doc.DocType),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// ListByApplication implements store.GeneratedDocumentStore.ListByApplication
func (s *PostgresGeneratedDocumentStore) ListByApplication(
	ctx context.Context,
	applicationID uuid.UUID,
) ([]*domain.GeneratedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, task_id, doc_type, format, content, llm_provider, llm_model, created_at
		FROM generated_documents
		WHERE application_id = $1
		ORDER BY created_at DESC
	`, applicationID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	docs := []*domain.GeneratedDocument{}
	for rows.Next() {
		var d domain.GeneratedDocument
		if err := rows.Scan(
			&d.ID,
			&d.ApplicationID,
			&d.TaskID,
			&d.DocType,
			&d.Format,
			&d.Content,
			&d.Provider,
			&d.Model,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generated document: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return docs, nil
}

// CountByTask implements store.GeneratedDocumentStore.CountByTask
func (s *PostgresGeneratedDocumentStore) CountByTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_documents WHERE task_id = $1`, taskID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}
