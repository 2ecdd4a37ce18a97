package store

import (
	"context"
	"database/sql"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/google/uuid"
)

// GenerationTaskStore persists generation tasks and their per-document state.
type GenerationTaskStore interface {
	// Create inserts the task together with one row per requested document.
	Create(ctx context.Context, task *domain.GenerationTask) error

	// Get loads a task with its documents in request order.
	// Returns ErrGenerationTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)

	// UpdateStatus sets the overall status and error message of a task.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, errorMsg string) error

	// MarkDocumentProcessing moves a non-terminal document to processing.
	// Returns ErrDocumentTerminal if it already finished.
	MarkDocumentProcessing(ctx context.Context, taskID uuid.UUID, docType string) error

	// MarkDocumentFailed records a failure for a non-terminal document.
	// Returns ErrDocumentTerminal if it already finished.
	MarkDocumentFailed(ctx context.Context, taskID uuid.UUID, docType, reason string) error

	// CompleteDocument marks a non-terminal document done and increments
	// completed_docs. Must run in the same transaction that persists the
	// generated document. Returns ErrDocumentTerminal if it already finished.
	CompleteDocument(ctx context.Context, taskID uuid.UUID, docType string) error

	// WithTx returns a new GenerationTaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) GenerationTaskStore
}

// GeneratedDocumentStore persists generated documents. Rows are immutable.
type GeneratedDocumentStore interface {
	// Create inserts a document.
	Create(ctx context.Context, doc *domain.GeneratedDocument) error

	// ListByApplication returns the documents of an application, newest first.
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.GeneratedDocument, error)

	// CountByTask returns how many documents a task produced.
	CountByTask(ctx context.Context, taskID uuid.UUID) (int, error)

	// WithTx returns a new GeneratedDocumentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) GeneratedDocumentStore
}
