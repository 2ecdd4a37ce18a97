package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/easybewerbung/bewerbung-api/internal/prompt"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

const (
	reasonMalformedResult = "model returned an unreadable analysis"
	reasonScoreSaveFailed = "matching score could not be saved"
)

// MatchingDeps are the collaborators of a MatchingScoreTask.
type MatchingDeps struct {
	DB           *sql.DB
	Matching     store.MatchingStore
	Applications store.ApplicationStore
	Invoker      generation.Invoker
	Credits      Charger
	Provider     domain.Provider
	Model        string
	Cost         int
	Logger       *slog.Logger
}

func (d MatchingDeps) validate() error {
	if d.DB == nil || d.Matching == nil || d.Applications == nil || d.Invoker == nil || d.Credits == nil {
		return ErrNilDependency
	}
	return nil
}

type matchingPayload struct {
	MatchingTaskID uuid.UUID `json:"matching_task_id"`
}

// MatchingScoreTask runs one matching score calculation.
type MatchingScoreTask struct {
	id             uuid.UUID
	matchingTaskID uuid.UUID
	deps           MatchingDeps
	logger         *slog.Logger
	status         TaskStatus
}

// NewMatchingScoreTask creates the executor for matchingTaskID.
func NewMatchingScoreTask(matchingTaskID uuid.UUID, deps MatchingDeps) (*MatchingScoreTask, error) {
	return newMatchingScoreTask(uuid.New(), matchingTaskID, deps)
}

func newMatchingScoreTask(id, matchingTaskID uuid.UUID, deps MatchingDeps) (*MatchingScoreTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if matchingTaskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &MatchingScoreTask{
		id:             id,
		matchingTaskID: matchingTaskID,
		deps:           deps,
		logger: deps.Logger.With(
			"task_type", TaskTypeMatchingScore,
			"matching_task_id", matchingTaskID),
		status: TaskStatusPending,
	}, nil
}

// MatchingScoreFactory rebuilds stored matching score tasks.
func MatchingScoreFactory(deps MatchingDeps) Factory {
	return func(rec Record) (Task, error) {
		var p matchingPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return newMatchingScoreTask(rec.ID, p.MatchingTaskID, deps)
	}
}

// ID returns the task's unique identifier
func (t *MatchingScoreTask) ID() uuid.UUID { return t.id }

// Type returns the task type identifier
func (t *MatchingScoreTask) Type() string { return TaskTypeMatchingScore }

// Status returns the current task status
func (t *MatchingScoreTask) Status() TaskStatus { return t.status }

// Payload returns the task data as a byte slice
func (t *MatchingScoreTask) Payload() []byte {
	data, err := json.Marshal(matchingPayload{MatchingTaskID: t.matchingTaskID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Execute calculates the score, charges for it and stores it as the
// application's current score.
func (t *MatchingScoreTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	mt, err := t.deps.Matching.GetTask(ctx, t.matchingTaskID)
	if err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to load matching task", "error", err)
		return fmt.Errorf("failed to load matching task: %w", err)
	}
	if mt.Status.IsTerminal() {
		t.status = TaskStatusCompleted
		t.logger.Info("matching task already finished", "status", mt.Status)
		return nil
	}

	if err := t.deps.Matching.UpdateTaskStatus(ctx, mt.ID, domain.TaskStatusProcessing, ""); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to mark matching task processing: %w", err)
	}

	app, err := t.deps.Applications.GetContext(ctx, mt.UserID, mt.ApplicationID)
	if err != nil {
		t.logger.Error("failed to load application context", "error", err)
		return t.fail(ctx, mt.ID, reasonContextUnavailable)
	}
	if strings.TrimSpace(app.CVText) == "" {
		return t.fail(ctx, mt.ID, reasonNoCV)
	}

	raw, err := t.deps.Invoker.Invoke(ctx, t.deps.Provider, t.deps.Model, prompt.MatchingPrompt(app))
	if err != nil {
		t.logger.Warn("provider call failed", "error", err)
		return t.fail(ctx, mt.ID, providerReason(err))
	}
	result, err := prompt.ParseMatchingResult(raw)
	if err != nil {
		t.logger.Warn("unreadable matching result", "error", err)
		return t.fail(ctx, mt.ID, reasonMalformedResult)
	}

	ref := domain.MatchingDebitReference(mt.ID)
	if err := t.deps.Credits.TryDebit(ctx, mt.UserID, t.deps.Cost, ref); err != nil {
		t.logger.Warn("debit failed", "error", err)
		return t.fail(ctx, mt.ID, debitReason(err))
	}

	score := &domain.MatchingScore{
		ID:              uuid.New(),
		ApplicationID:   mt.ApplicationID,
		TaskID:          mt.ID,
		OverallScore:    result.OverallScore,
		Strengths:       result.Strengths,
		Gaps:            result.Gaps,
		Recommendations: result.Recommendations,
		Story:           result.Story,
		CreatedAt:       time.Now().UTC(),
	}
	err = store.RunInTransaction(ctx, t.deps.DB, func(ctx context.Context, tx *sql.Tx) error {
		txStore := t.deps.Matching.WithTx(tx)
		if err := txStore.SaveCurrentScore(ctx, score); err != nil {
			return err
		}
		return txStore.UpdateTaskStatus(ctx, mt.ID, domain.TaskStatusCompleted, "")
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) && t.savedEarlier(ctx, mt.ID) {
			t.logger.Info("matching score saved by an earlier run")
			if err := t.deps.Matching.UpdateTaskStatus(ctx, mt.ID, domain.TaskStatusCompleted, ""); err != nil {
				t.status = TaskStatusFailed
				return fmt.Errorf("failed to complete matching task: %w", err)
			}
			t.status = TaskStatusCompleted
			return nil
		}
		t.logger.Error("failed to save matching score", "error", err)
		if refundErr := t.deps.Credits.Refund(ctx, mt.UserID, t.deps.Cost, ref); refundErr != nil {
			t.logger.Error("refund failed, leaving task for a later run", "reference", ref, "error", refundErr)
			t.status = TaskStatusPending
			return fmt.Errorf("%w: a charge for an unsaved score is still held", ErrDeferred)
		}
		return t.fail(ctx, mt.ID, reasonScoreSaveFailed)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("matching score calculated",
		"application_id", mt.ApplicationID,
		"overall_score", score.OverallScore)
	return nil
}

// savedEarlier reports whether a score produced by this matching task is
// already stored. A duplicate key alone can also come from another task of
// the same application.
func (t *MatchingScoreTask) savedEarlier(ctx context.Context, matchingTaskID uuid.UUID) bool {
	_, err := t.deps.Matching.GetScoreByTask(ctx, matchingTaskID)
	if err != nil && !errors.Is(err, store.ErrMatchingScoreNotFound) {
		t.logger.Error("failed to look up stored score", "error", err)
	}
	return err == nil
}

// fail records a failed outcome. The runner sees success because the
// failure is part of the task's result, not of its execution.
func (t *MatchingScoreTask) fail(ctx context.Context, id uuid.UUID, reason string) error {
	if err := t.deps.Matching.UpdateTaskStatus(ctx, id, domain.TaskStatusFailed, reason); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to record matching failure: %w", err)
	}
	t.status = TaskStatusCompleted
	return nil
}
