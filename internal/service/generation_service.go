package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/easybewerbung/bewerbung-api/internal/task"
	"github.com/google/uuid"
)

const reasonNotQueued = "generation could not be queued"

// TemplateResolver resolves requested doc types to active catalog templates.
type TemplateResolver interface {
	// ResolveAll fails on the first unknown or inactive doc type.
	ResolveAll(ctx context.Context, docTypes []string) (map[string]*domain.Template, error)
}

// CreditChecker answers balance questions without changing the balance.
type CreditChecker interface {
	Covers(ctx context.Context, userID uuid.UUID, amount int) (bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// TaskFactory builds the background executor for a stored domain task.
type TaskFactory func(domainTaskID uuid.UUID) (task.Task, error)

// GenerationService accepts generation requests and reports their progress.
type GenerationService interface {
	// StartGeneration validates the request, snapshots the templates, checks
	// that the balance covers the first document and queues the task.
	StartGeneration(ctx context.Context, userID, applicationID uuid.UUID, docTypes []string) (*domain.GenerationTask, error)

	// GetGenerationStatus returns the stored state of a task of the application.
	GetGenerationStatus(ctx context.Context, userID, applicationID, taskID uuid.UUID) (*domain.GenerationTask, error)

	// ListDocuments returns the generated documents of an application, newest first.
	ListDocuments(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.GeneratedDocument, error)
}

type generationServiceImpl struct {
	db           *sql.DB
	tasks        store.GenerationTaskStore
	documents    store.GeneratedDocumentStore
	applications store.ApplicationStore
	templates    TemplateResolver
	credits      CreditChecker
	runner       task.Submitter
	newTask      TaskFactory
	logger       *slog.Logger
}

// NewGenerationService creates a GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	db *sql.DB,
	tasks store.GenerationTaskStore,
	documents store.GeneratedDocumentStore,
	applications store.ApplicationStore,
	templates TemplateResolver,
	credits CreditChecker,
	runner task.Submitter,
	newTask TaskFactory,
	logger *slog.Logger,
) (GenerationService, error) {
	if db == nil || tasks == nil || documents == nil || applications == nil ||
		templates == nil || credits == nil || runner == nil || newTask == nil {
		return nil, &ServiceError{
			Service:   "generation",
			Operation: "create_service",
			Message:   "dependencies cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &generationServiceImpl{
		db:           db,
		tasks:        tasks,
		documents:    documents,
		applications: applications,
		templates:    templates,
		credits:      credits,
		runner:       runner,
		newTask:      newTask,
		logger:       logger.With("component", "generation_service"),
	}, nil
}

func (s *generationServiceImpl) StartGeneration(
	ctx context.Context,
	userID, applicationID uuid.UUID,
	docTypes []string,
) (*domain.GenerationTask, error) {
	log := s.logger.With("user_id", userID, "application_id", applicationID)

	if err := s.applications.CheckOwnership(ctx, userID, applicationID); err != nil {
		return nil, NewServiceError("generation", "start_generation", "failed to check application", err)
	}

	gt, err := domain.NewGenerationTask(userID, applicationID, docTypes)
	if err != nil {
		return nil, NewServiceError("generation", "start_generation", "invalid generation request", err)
	}

	templates, err := s.templates.ResolveAll(ctx, docTypes)
	if err != nil {
		log.Info("generation request rejected by catalog", "error", err)
		return nil, NewServiceError("generation", "start_generation", "failed to resolve templates", err)
	}

	firstCost := templates[docTypes[0]].CreditCost
	ok, err := s.credits.Covers(ctx, userID, firstCost)
	if err != nil {
		return nil, NewServiceError("generation", "start_generation", "failed to read credit balance", err)
	}
	if !ok {
		log.Info("generation request rejected: insufficient credits", "required", firstCost)
		return nil, ErrInsufficientCredits
	}

	if err := gt.AttachTemplates(templates); err != nil {
		return nil, NewServiceError("generation", "start_generation", "failed to snapshot templates", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Create(ctx, gt)
	})
	if err != nil {
		log.Error("failed to store generation task", "error", err)
		return nil, NewServiceError("generation", "start_generation", "failed to store task", err)
	}

	if err := s.submit(ctx, gt.ID); err != nil {
		log.Error("failed to queue generation task", "task_id", gt.ID, "error", err)
		if updateErr := s.tasks.UpdateStatus(ctx, gt.ID, domain.TaskStatusFailed, reasonNotQueued); updateErr != nil {
			log.Error("failed to mark unqueued task failed", "task_id", gt.ID, "error", updateErr)
		}
		return nil, ErrQueueUnavailable
	}

	log.Info("generation task accepted", "task_id", gt.ID, "total_docs", gt.TotalDocs)
	return gt, nil
}

func (s *generationServiceImpl) submit(ctx context.Context, id uuid.UUID) error {
	t, err := s.newTask(id)
	if err != nil {
		return err
	}
	return s.runner.Submit(ctx, t)
}

func (s *generationServiceImpl) GetGenerationStatus(
	ctx context.Context,
	userID, applicationID, taskID uuid.UUID,
) (*domain.GenerationTask, error) {
	gt, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to load generation task", "task_id", taskID, "error", err)
		}
		return nil, NewServiceError("generation", "get_status", "failed to load task", err)
	}
	if gt.UserID != userID || gt.ApplicationID != applicationID {
		return nil, ErrTaskNotFound
	}
	return gt, nil
}

func (s *generationServiceImpl) ListDocuments(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) ([]*domain.GeneratedDocument, error) {
	if err := s.applications.CheckOwnership(ctx, userID, applicationID); err != nil {
		return nil, NewServiceError("generation", "list_documents", "failed to check application", err)
	}
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		s.logger.Error("failed to list documents", "application_id", applicationID, "error", err)
		return nil, NewServiceError("generation", "list_documents", "failed to list documents", err)
	}
	return docs, nil
}
