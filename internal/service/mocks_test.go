package service

import (
	"context"
	"database/sql"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/easybewerbung/bewerbung-api/internal/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockGenerationTaskStore mocks store.GenerationTaskStore
type MockGenerationTaskStore struct {
	mock.Mock
}

func (m *MockGenerationTaskStore) Create(ctx context.Context, gt *domain.GenerationTask) error {
	return m.Called(ctx, gt).Error(0)
}

func (m *MockGenerationTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationTask), args.Error(1)
}

func (m *MockGenerationTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	return m.Called(ctx, id, status, errorMsg).Error(0)
}

func (m *MockGenerationTaskStore) MarkDocumentProcessing(ctx context.Context, taskID uuid.UUID, docType string) error {
	return m.Called(ctx, taskID, docType).Error(0)
}

func (m *MockGenerationTaskStore) MarkDocumentFailed(ctx context.Context, taskID uuid.UUID, docType, reason string) error {
	return m.Called(ctx, taskID, docType, reason).Error(0)
}

func (m *MockGenerationTaskStore) CompleteDocument(ctx context.Context, taskID uuid.UUID, docType string) error {
	return m.Called(ctx, taskID, docType).Error(0)
}

func (m *MockGenerationTaskStore) WithTx(*sql.Tx) store.GenerationTaskStore {
	return m
}

// MockDocumentStore mocks store.GeneratedDocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.GeneratedDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentStore) ListByApplication(
	ctx context.Context,
	applicationID uuid.UUID,
) ([]*domain.GeneratedDocument, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GeneratedDocument), args.Error(1)
}

func (m *MockDocumentStore) CountByTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	args := m.Called(ctx, taskID)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentStore) WithTx(*sql.Tx) store.GeneratedDocumentStore {
	return m
}

// MockApplicationStore mocks store.ApplicationStore
type MockApplicationStore struct {
	mock.Mock
}

func (m *MockApplicationStore) GetContext(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) (*domain.ApplicationContext, error) {
	args := m.Called(ctx, userID, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApplicationContext), args.Error(1)
}

func (m *MockApplicationStore) CheckOwnership(ctx context.Context, userID, applicationID uuid.UUID) error {
	return m.Called(ctx, userID, applicationID).Error(0)
}

// MockMatchingStore mocks store.MatchingStore
type MockMatchingStore struct {
	mock.Mock
}

func (m *MockMatchingStore) CreateTask(ctx context.Context, mt *domain.MatchingScoreTask) error {
	return m.Called(ctx, mt).Error(0)
}

func (m *MockMatchingStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.MatchingScoreTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchingScoreTask), args.Error(1)
}

func (m *MockMatchingStore) FindActiveTask(
	ctx context.Context,
	applicationID uuid.UUID,
) (*domain.MatchingScoreTask, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchingScoreTask), args.Error(1)
}

func (m *MockMatchingStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	return m.Called(ctx, id, status, errorMsg).Error(0)
}

func (m *MockMatchingStore) GetCurrentScore(ctx context.Context, applicationID uuid.UUID) (*domain.MatchingScore, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchingScore), args.Error(1)
}

func (m *MockMatchingStore) GetScoreByTask(ctx context.Context, taskID uuid.UUID) (*domain.MatchingScore, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchingScore), args.Error(1)
}

func (m *MockMatchingStore) SaveCurrentScore(ctx context.Context, score *domain.MatchingScore) error {
	return m.Called(ctx, score).Error(0)
}

func (m *MockMatchingStore) WithTx(*sql.Tx) store.MatchingStore {
	return m
}

// MockTemplateResolver mocks TemplateResolver
type MockTemplateResolver struct {
	mock.Mock
}

func (m *MockTemplateResolver) ResolveAll(
	ctx context.Context,
	docTypes []string,
) (map[string]*domain.Template, error) {
	args := m.Called(ctx, docTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Template), args.Error(1)
}

// MockCredits mocks CreditChecker and CreditReader
type MockCredits struct {
	mock.Mock
}

func (m *MockCredits) Covers(ctx context.Context, userID uuid.UUID, amount int) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockCredits) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCredits) Transactions(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]domain.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CreditTransaction), args.Error(1)
}

// MockTaskRunner mocks task.Submitter
type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) Submit(ctx context.Context, t task.Task) error {
	return m.Called(ctx, t).Error(0)
}

// mockTaskFactory returns a TaskFactory building task.MockTasks whose ID is
// the domain task ID, so submissions can be matched in expectations.
func mockTaskFactory() TaskFactory {
	return func(id uuid.UUID) (task.Task, error) {
		return task.NewMockTask(id, task.MockTaskType, nil), nil
	}
}

func submittedTask(id *uuid.UUID) interface{} {
	return mock.MatchedBy(func(t task.Task) bool {
		*id = t.ID()
		return true
	})
}
