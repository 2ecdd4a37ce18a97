package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/easybewerbung/bewerbung-api/internal/task"
	"github.com/google/uuid"
)

const reasonScoreNotQueued = "matching score could not be queued"

// StartStatus tells the caller what StartMatchingScore did.
type StartStatus string

const (
	// StartQueued means a new task was stored and queued.
	StartQueued StartStatus = "queued"
	// StartInProgress means an earlier task of the application is still running.
	StartInProgress StartStatus = "in_progress"
	// StartAlreadyCalculated means the current score was returned as is.
	StartAlreadyCalculated StartStatus = "already_calculated"
)

// MatchingStart is the result of StartMatchingScore. Task is set unless
// Status is StartAlreadyCalculated, in which case Score is set.
type MatchingStart struct {
	Status StartStatus
	Task   *domain.MatchingScoreTask
	Score  *domain.MatchingScore
}

// MatchingStatus is a task together with its score once it completed.
type MatchingStatus struct {
	Task  *domain.MatchingScoreTask
	Score *domain.MatchingScore
}

// MatchingService runs matching score calculations.
type MatchingService interface {
	StartMatchingScore(ctx context.Context, userID, applicationID uuid.UUID, recalculate bool) (*MatchingStart, error)
	GetMatchingStatus(ctx context.Context, userID, applicationID, taskID uuid.UUID) (*MatchingStatus, error)
	GetCurrentScore(ctx context.Context, userID, applicationID uuid.UUID) (*domain.MatchingScore, error)
}

type matchingServiceImpl struct {
	matching     store.MatchingStore
	applications store.ApplicationStore
	credits      CreditChecker
	runner       task.Submitter
	newTask      TaskFactory
	cost         int
	logger       *slog.Logger
}

// NewMatchingService creates a MatchingService charging cost credits per score.
func NewMatchingService(
	matching store.MatchingStore,
	applications store.ApplicationStore,
	credits CreditChecker,
	runner task.Submitter,
	newTask TaskFactory,
	cost int,
	logger *slog.Logger,
) (MatchingService, error) {
	if matching == nil || applications == nil || credits == nil || runner == nil || newTask == nil {
		return nil, &ServiceError{
			Service:   "matching",
			Operation: "create_service",
			Message:   "dependencies cannot be nil",
		}
	}
	if cost < 0 {
		return nil, &ServiceError{
			Service:   "matching",
			Operation: "create_service",
			Message:   "cost cannot be negative",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchingServiceImpl{
		matching:     matching,
		applications: applications,
		credits:      credits,
		runner:       runner,
		newTask:      newTask,
		cost:         cost,
		logger:       logger.With("component", "matching_service"),
	}, nil
}

func (s *matchingServiceImpl) StartMatchingScore(
	ctx context.Context,
	userID, applicationID uuid.UUID,
	recalculate bool,
) (*MatchingStart, error) {
	log := s.logger.With("user_id", userID, "application_id", applicationID)

	if err := s.applications.CheckOwnership(ctx, userID, applicationID); err != nil {
		return nil, NewServiceError("matching", "start_matching", "failed to check application", err)
	}

	if !recalculate {
		current, err := s.matching.GetCurrentScore(ctx, applicationID)
		switch {
		case err == nil:
			return &MatchingStart{Status: StartAlreadyCalculated, Score: current}, nil
		case !errors.Is(err, store.ErrMatchingScoreNotFound):
			return nil, NewServiceError("matching", "start_matching", "failed to read current score", err)
		}

		active, err := s.matching.FindActiveTask(ctx, applicationID)
		switch {
		case err == nil:
			log.Info("matching score already in progress", "task_id", active.ID)
			return &MatchingStart{Status: StartInProgress, Task: active}, nil
		case !errors.Is(err, store.ErrMatchingTaskNotFound):
			return nil, NewServiceError("matching", "start_matching", "failed to read active task", err)
		}
	}

	ok, err := s.credits.Covers(ctx, userID, s.cost)
	if err != nil {
		return nil, NewServiceError("matching", "start_matching", "failed to read credit balance", err)
	}
	if !ok {
		log.Info("matching request rejected: insufficient credits", "required", s.cost)
		return nil, ErrInsufficientCredits
	}

	mt, err := domain.NewMatchingScoreTask(userID, applicationID, recalculate)
	if err != nil {
		return nil, NewServiceError("matching", "start_matching", "invalid matching request", err)
	}
	if err := s.matching.CreateTask(ctx, mt); err != nil {
		log.Error("failed to store matching task", "error", err)
		return nil, NewServiceError("matching", "start_matching", "failed to store task", err)
	}

	t, err := s.newTask(mt.ID)
	if err == nil {
		err = s.runner.Submit(ctx, t)
	}
	if err != nil {
		log.Error("failed to queue matching task", "task_id", mt.ID, "error", err)
		if updateErr := s.matching.UpdateTaskStatus(ctx, mt.ID, domain.TaskStatusFailed, reasonScoreNotQueued); updateErr != nil {
			log.Error("failed to mark unqueued task failed", "task_id", mt.ID, "error", updateErr)
		}
		return nil, ErrQueueUnavailable
	}

	log.Info("matching task accepted", "task_id", mt.ID, "recalculate", recalculate)
	return &MatchingStart{Status: StartQueued, Task: mt}, nil
}

func (s *matchingServiceImpl) GetMatchingStatus(
	ctx context.Context,
	userID, applicationID, taskID uuid.UUID,
) (*MatchingStatus, error) {
	mt, err := s.matching.GetTask(ctx, taskID)
	if err != nil {
		return nil, NewServiceError("matching", "get_status", "failed to load task", err)
	}
	if mt.UserID != userID || mt.ApplicationID != applicationID {
		return nil, ErrTaskNotFound
	}

	out := &MatchingStatus{Task: mt}
	if mt.Status == domain.TaskStatusCompleted {
		score, err := s.matching.GetScoreByTask(ctx, mt.ID)
		switch {
		case err == nil:
			out.Score = score
		case !errors.Is(err, store.ErrMatchingScoreNotFound):
			return nil, NewServiceError("matching", "get_status", "failed to load score", err)
		}
	}
	return out, nil
}

func (s *matchingServiceImpl) GetCurrentScore(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) (*domain.MatchingScore, error) {
	if err := s.applications.CheckOwnership(ctx, userID, applicationID); err != nil {
		return nil, NewServiceError("matching", "get_current_score", "failed to check application", err)
	}
	score, err := s.matching.GetCurrentScore(ctx, applicationID)
	if err != nil {
		return nil, NewServiceError("matching", "get_current_score", "failed to load score", err)
	}
	return score, nil
}
