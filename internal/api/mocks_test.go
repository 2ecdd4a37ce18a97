package api

import (
	"context"

	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockGenerationService mocks service.GenerationService
type MockGenerationService struct {
	mock.Mock
}

func (m *MockGenerationService) StartGeneration(
	ctx context.Context,
	userID, applicationID uuid.UUID,
	docTypes []string,
) (*domain.GenerationTask, error) {
	args := m.Called(ctx, userID, applicationID, docTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationTask), args.Error(1)
}

func (m *MockGenerationService) GetGenerationStatus(
	ctx context.Context,
	userID, applicationID, taskID uuid.UUID,
) (*domain.GenerationTask, error) {
	args := m.Called(ctx, userID, applicationID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationTask), args.Error(1)
}

func (m *MockGenerationService) ListDocuments(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) ([]*domain.GeneratedDocument, error) {
	args := m.Called(ctx, userID, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GeneratedDocument), args.Error(1)
}

// MockMatchingService mocks service.MatchingService
type MockMatchingService struct {
	mock.Mock
}

func (m *MockMatchingService) StartMatchingScore(
	ctx context.Context,
	userID, applicationID uuid.UUID,
	recalculate bool,
) (*service.MatchingStart, error) {
	args := m.Called(ctx, userID, applicationID, recalculate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MatchingStart), args.Error(1)
}

func (m *MockMatchingService) GetMatchingStatus(
	ctx context.Context,
	userID, applicationID, taskID uuid.UUID,
) (*service.MatchingStatus, error) {
	args := m.Called(ctx, userID, applicationID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MatchingStatus), args.Error(1)
}

func (m *MockMatchingService) GetCurrentScore(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) (*domain.MatchingScore, error) {
	args := m.Called(ctx, userID, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchingScore), args.Error(1)
}

// MockCreditService mocks service.CreditService
type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) ListTransactions(
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

// MockTemplateAdmin mocks TemplateAdmin
type MockTemplateAdmin struct {
	mock.Mock
}

func (m *MockTemplateAdmin) List(ctx context.Context) ([]*domain.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Template), args.Error(1)
}

func (m *MockTemplateAdmin) Get(ctx context.Context, docType string) (*domain.Template, error) {
	args := m.Called(ctx, docType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

func (m *MockTemplateAdmin) Create(ctx context.Context, tpl *domain.Template) error {
	return m.Called(ctx, tpl).Error(0)
}

func (m *MockTemplateAdmin) Update(ctx context.Context, docType string, patch catalog.Patch) (*domain.Template, error) {
	args := m.Called(ctx, docType, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

func (m *MockTemplateAdmin) Delete(ctx context.Context, docType string) error {
	return m.Called(ctx, docType).Error(0)
}

func (m *MockTemplateAdmin) Seed(ctx context.Context, force bool) (catalog.SeedResult, error) {
	args := m.Called(ctx, force)
	return args.Get(0).(catalog.SeedResult), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }
