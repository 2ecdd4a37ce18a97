package service

import (
	"context"
	"errors"
	"testing"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type matchingMocks struct {
	matching *MockMatchingStore
	apps     *MockApplicationStore
	credits  *MockCredits
	runner   *MockTaskRunner
}

func newMatchingService(t *testing.T) (MatchingService, *matchingMocks) {
	t.Helper()
	m := &matchingMocks{
		matching: new(MockMatchingStore),
		apps:     new(MockApplicationStore),
		credits:  new(MockCredits),
		runner:   new(MockTaskRunner),
	}
	svc, err := NewMatchingService(m.matching, m.apps, m.credits, m.runner, mockTaskFactory(), 1, nil)
	require.NoError(t, err)
	return svc, m
}

func TestNewMatchingServiceValidation(t *testing.T) {
	_, err := NewMatchingService(nil, nil, nil, nil, nil, 1, nil)
	assert.Error(t, err)

	_, err = NewMatchingService(new(MockMatchingStore), new(MockApplicationStore), new(MockCredits),
		new(MockTaskRunner), mockTaskFactory(), -1, nil)
	assert.Error(t, err)
}

func TestStartMatchingScore(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()

	t.Run("returns the current score", func(t *testing.T) {
		svc, m := newMatchingService(t)
		current := &domain.MatchingScore{ID: uuid.New(), ApplicationID: appID, OverallScore: 71, IsCurrent: true}
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.matching.On("GetCurrentScore", ctx, appID).Return(current, nil)

		res, err := svc.StartMatchingScore(ctx, userID, appID, false)
		require.NoError(t, err)
		assert.Equal(t, StartAlreadyCalculated, res.Status)
		assert.Same(t, current, res.Score)
		m.credits.AssertNotCalled(t, "Covers", mock.Anything, mock.Anything, mock.Anything)
		m.runner.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("returns the task in flight", func(t *testing.T) {
		svc, m := newMatchingService(t)
		active, err := domain.NewMatchingScoreTask(userID, appID, false)
		require.NoError(t, err)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.matching.On("GetCurrentScore", ctx, appID).Return(nil, store.ErrMatchingScoreNotFound)
		m.matching.On("FindActiveTask", ctx, appID).Return(active, nil)

		res, err := svc.StartMatchingScore(ctx, userID, appID, false)
		require.NoError(t, err)
		assert.Equal(t, StartInProgress, res.Status)
		assert.Equal(t, active.ID, res.Task.ID)
		m.matching.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})

	t.Run("queues a new task", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.matching.On("GetCurrentScore", ctx, appID).Return(nil, store.ErrMatchingScoreNotFound)
		m.matching.On("FindActiveTask", ctx, appID).Return(nil, store.ErrMatchingTaskNotFound)
		m.credits.On("Covers", ctx, userID, 1).Return(true, nil)
		m.matching.On("CreateTask", ctx, mock.AnythingOfType("*domain.MatchingScoreTask")).Return(nil)
		var submitted uuid.UUID
		m.runner.On("Submit", ctx, submittedTask(&submitted)).Return(nil)

		res, err := svc.StartMatchingScore(ctx, userID, appID, false)
		require.NoError(t, err)
		assert.Equal(t, StartQueued, res.Status)
		assert.Equal(t, domain.TaskStatusPending, res.Task.Status)
		assert.Equal(t, res.Task.ID, submitted)
	})

	t.Run("recalculate skips the current score", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.credits.On("Covers", ctx, userID, 1).Return(true, nil)
		m.matching.On("CreateTask", ctx, mock.Anything).Return(nil)
		m.runner.On("Submit", ctx, mock.Anything).Return(nil)

		res, err := svc.StartMatchingScore(ctx, userID, appID, true)
		require.NoError(t, err)
		assert.Equal(t, StartQueued, res.Status)
		assert.True(t, res.Task.Recalculate)
		m.matching.AssertNotCalled(t, "GetCurrentScore", mock.Anything, mock.Anything)
	})

	t.Run("insufficient credits", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.credits.On("Covers", ctx, userID, 1).Return(false, nil)

		_, err := svc.StartMatchingScore(ctx, userID, appID, true)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		m.matching.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})

	t.Run("queue rejection", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
		m.credits.On("Covers", ctx, userID, 1).Return(true, nil)
		m.matching.On("CreateTask", ctx, mock.Anything).Return(nil)
		m.runner.On("Submit", ctx, mock.Anything).Return(errors.New("closed"))
		m.matching.On("UpdateTaskStatus", ctx, mock.Anything, domain.TaskStatusFailed, reasonScoreNotQueued).Return(nil)

		_, err := svc.StartMatchingScore(ctx, userID, appID, true)
		assert.ErrorIs(t, err, ErrQueueUnavailable)
		m.matching.AssertExpectations(t)
	})
}

func TestGetMatchingStatus(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()
	mt, err := domain.NewMatchingScoreTask(userID, appID, false)
	require.NoError(t, err)

	t.Run("pending task has no score", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.matching.On("GetTask", ctx, mt.ID).Return(mt, nil)

		st, err := svc.GetMatchingStatus(ctx, userID, appID, mt.ID)
		require.NoError(t, err)
		assert.Nil(t, st.Score)
		m.matching.AssertNotCalled(t, "GetScoreByTask", mock.Anything, mock.Anything)
	})

	t.Run("completed task carries its score", func(t *testing.T) {
		done := *mt
		done.Status = domain.TaskStatusCompleted
		score := &domain.MatchingScore{ID: uuid.New(), TaskID: mt.ID, OverallScore: 64}
		svc, m := newMatchingService(t)
		m.matching.On("GetTask", ctx, mt.ID).Return(&done, nil)
		m.matching.On("GetScoreByTask", ctx, mt.ID).Return(score, nil)

		st, err := svc.GetMatchingStatus(ctx, userID, appID, mt.ID)
		require.NoError(t, err)
		assert.Equal(t, 64, st.Score.OverallScore)
	})

	t.Run("foreign task", func(t *testing.T) {
		svc, m := newMatchingService(t)
		m.matching.On("GetTask", ctx, mt.ID).Return(mt, nil)

		_, err := svc.GetMatchingStatus(ctx, uuid.New(), appID, mt.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("unknown task", func(t *testing.T) {
		svc, m := newMatchingService(t)
		id := uuid.New()
		m.matching.On("GetTask", ctx, id).Return(nil, store.ErrMatchingTaskNotFound)

		_, err := svc.GetMatchingStatus(ctx, userID, appID, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestGetCurrentScore(t *testing.T) {
	ctx := context.Background()
	userID, appID := uuid.New(), uuid.New()

	svc, m := newMatchingService(t)
	m.apps.On("CheckOwnership", ctx, userID, appID).Return(nil)
	m.matching.On("GetCurrentScore", ctx, appID).Return(nil, store.ErrMatchingScoreNotFound)

	_, err := svc.GetCurrentScore(ctx, userID, appID)
	assert.ErrorIs(t, err, ErrScoreNotFound)
}
