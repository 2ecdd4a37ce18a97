package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type generationMocks struct {
	tasks     *MockGenerationTaskStore
	documents *MockDocumentStore
	apps      *MockApplicationStore
	templates *MockTemplateResolver
	credits   *MockCredits
	runner    *MockTaskRunner
	sql       sqlmock.Sqlmock
}

func newGenerationService(t *testing.T) (GenerationService, *generationMocks) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := &generationMocks{
		tasks:     new(MockGenerationTaskStore),
		documents: new(MockDocumentStore),
		apps:      new(MockApplicationStore),
		templates: new(MockTemplateResolver),
		credits:   new(MockCredits),
		runner:    new(MockTaskRunner),
		sql:       sqlMock,
	}
	svc, err := NewGenerationService(db, m.tasks, m.documents, m.apps, m.templates, m.credits,
		m.runner, mockTaskFactory(), nil)
	require.NoError(t, err)
	return svc, m
}

func templatesFor(costs map[string]int) map[string]*domain.Template {
	out := make(map[string]*domain.Template, len(costs))
	for dt, cost := range costs {
		out[dt] = &domain.Template{
			DocType:        dt,
			DisplayName:    dt,
			CreditCost:     cost,
			LanguageSource: domain.LanguageSourceDocumentation,
			Provider:       domain.ProviderOpenAI,
			Model:          "gpt-4",
			PromptTemplate: "Write {doc_type_display}",
			IsActive:       true,
		}
	}
	return out
}

func TestNewGenerationServiceNilDependencies(t *testing.T) {
	_, err := NewGenerationService(nil, nil, nil, nil, nil, nil, nil, nil, nil)
	var svcErr *ServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestStartGeneration(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()
	docTypes := []string{"cover_letter", "cv"}

	t.Run("accepts and queues", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.templates.On("ResolveAll", ctx, docTypes).
			Return(templatesFor(map[string]int{"cover_letter": 2, "cv": 5}), nil)
		m.credits.On("Covers", ctx, userID, 2).Return(true, nil)
		m.sql.ExpectBegin()
		m.tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.GenerationTask")).Return(nil)
		m.sql.ExpectCommit()
		var submitted uuid.UUID
		m.runner.On("Submit", ctx, submittedTask(&submitted)).Return(nil)

		gt, err := svc.StartGeneration(ctx, userID, appID, docTypes)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusPending, gt.Status)
		assert.Equal(t, 2, gt.TotalDocs)
		assert.Equal(t, docTypes, gt.DocTypes())
		for _, d := range gt.Documents {
			require.NotNil(t, d.Template, d.DocType)
			assert.Equal(t, domain.DocumentStatusPending, d.Status)
		}
		assert.Equal(t, gt.ID, submitted)
		m.runner.AssertExpectations(t)
		assert.NoError(t, m.sql.ExpectationsWereMet())
	})

	t.Run("only the first document must be covered", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.templates.On("ResolveAll", ctx, docTypes).
			Return(templatesFor(map[string]int{"cover_letter": 1, "cv": 9}), nil)
		m.credits.On("Covers", ctx, userID, 1).Return(false, nil)

		_, err := svc.StartGeneration(ctx, userID, appID, docTypes)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		m.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		m.runner.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("unknown template aborts without billing", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.templates.On("ResolveAll", ctx, docTypes).
			Return(nil, errors.Join(catalog.ErrTemplateNotFound, errors.New("cv")))

		_, err := svc.StartGeneration(ctx, userID, appID, docTypes)
		assert.ErrorIs(t, err, catalog.ErrTemplateNotFound)
		m.credits.AssertNotCalled(t, "Covers", mock.Anything, mock.Anything, mock.Anything)
		m.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("foreign application", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(store.ErrApplicationNotFound)

		_, err := svc.StartGeneration(ctx, userID, appID, docTypes)
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})

	t.Run("invalid request", func(t *testing.T) {
		cases := map[string][]string{
			"empty":     {},
			"duplicate": {"cv", "cv"},
			"malformed": {"Cover Letter"},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				svc, m := newGenerationService(t)
				m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)

				_, err := svc.StartGeneration(ctx, userID, appID, req)
				assert.ErrorIs(t, err, ErrInvalidRequest)
				m.templates.AssertNotCalled(t, "ResolveAll", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("queue rejection marks the task failed", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.templates.On("ResolveAll", ctx, []string{"cv"}).Return(templatesFor(map[string]int{"cv": 1}), nil)
		m.credits.On("Covers", ctx, userID, 1).Return(true, nil)
		m.sql.ExpectBegin()
		m.tasks.On("Create", mock.Anything, mock.Anything).Return(nil)
		m.sql.ExpectCommit()
		m.runner.On("Submit", ctx, mock.Anything).Return(errors.New("task queue is full"))
		m.tasks.On("UpdateStatus", ctx, mock.Anything, domain.TaskStatusFailed, reasonNotQueued).Return(nil)

		_, err := svc.StartGeneration(ctx, userID, appID, []string{"cv"})
		assert.ErrorIs(t, err, ErrQueueUnavailable)
		m.tasks.AssertExpectations(t)
	})
}

func TestGetGenerationStatus(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()
	gt, err := domain.NewGenerationTask(userID, appID, []string{"cv"})
	require.NoError(t, err)

	t.Run("own task", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.tasks.On("Get", ctx, gt.ID).Return(gt, nil)

		got, err := svc.GetGenerationStatus(ctx, userID, appID, gt.ID)
		require.NoError(t, err)
		assert.Equal(t, gt.ID, got.ID)
	})

	t.Run("other application", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.tasks.On("Get", ctx, gt.ID).Return(gt, nil)

		_, err := svc.GetGenerationStatus(ctx, userID, uuid.New(), gt.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("other user", func(t *testing.T) {
		svc, m := newGenerationService(t)
		m.tasks.On("Get", ctx, gt.ID).Return(gt, nil)

		_, err := svc.GetGenerationStatus(ctx, uuid.New(), appID, gt.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("unknown task", func(t *testing.T) {
		svc, m := newGenerationService(t)
		id := uuid.New()
		m.tasks.On("Get", ctx, id).Return(nil, store.ErrGenerationTaskNotFound)

		_, err := svc.GetGenerationStatus(ctx, userID, appID, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()

	svc, m := newGenerationService(t)
	doc, err := domain.NewGeneratedDocument(appID, uuid.New(), "cv", "text", domain.ProviderOpenAI, "gpt-4")
	require.NoError(t, err)
	m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
	m.documents.On("ListByApplication", ctx, appID).Return([]*domain.GeneratedDocument{doc}, nil)

	docs, err := svc.ListDocuments(ctx, userID, appID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	svc, m = newGenerationService(t)
	m.apps.On("CheckOwnership", ctx, userID, appID).Return(store.ErrApplicationNotFound)
	_, err = svc.ListDocuments(ctx, userID, appID)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}
