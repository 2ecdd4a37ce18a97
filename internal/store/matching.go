package store

import (
	"context"
	"database/sql"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/google/uuid"
)

// MatchingStore persists matching score tasks and their results.
type MatchingStore interface {
	// CreateTask inserts a pending task.
	CreateTask(ctx context.Context, task *domain.MatchingScoreTask) error

	// GetTask returns ErrMatchingTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.MatchingScoreTask, error)

	// FindActiveTask returns the newest pending or processing task of an
	// application, or ErrMatchingTaskNotFound.
	FindActiveTask(ctx context.Context, applicationID uuid.UUID) (*domain.MatchingScoreTask, error)

	// UpdateTaskStatus sets status and error message of a task.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, errorMsg string) error

	// GetCurrentScore returns the current score of an application, or ErrMatchingScoreNotFound.
	GetCurrentScore(ctx context.Context, applicationID uuid.UUID) (*domain.MatchingScore, error)

	// GetScoreByTask returns the score produced by a task, or ErrMatchingScoreNotFound.
	GetScoreByTask(ctx context.Context, taskID uuid.UUID) (*domain.MatchingScore, error)

	// SaveCurrentScore demotes the previous current score of the application
	// and inserts score as current. Must run inside a transaction.
	SaveCurrentScore(ctx context.Context, score *domain.MatchingScore) error

	// WithTx returns a new MatchingStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MatchingStore
}

// ApplicationStore reads the application data owned by other parts of the
// product and exposes it as a generation context.
type ApplicationStore interface {
	// GetContext returns the context of an application owned by userID.
	// Returns ErrApplicationNotFound when the application does not exist or
	// belongs to another user.
	GetContext(ctx context.Context, userID, applicationID uuid.UUID) (*domain.ApplicationContext, error)

	// CheckOwnership returns ErrApplicationNotFound unless userID owns the application.
	CheckOwnership(ctx context.Context, userID, applicationID uuid.UUID) error
}
