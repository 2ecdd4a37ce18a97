package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchingFixture struct {
	mt       *domain.MatchingScoreTask
	matching *fakeMatchingStore
	credits  *fakeCredits
	invoker  *fakeInvoker
	mock     sqlmock.Sqlmock
	deps     MatchingDeps
}

func newMatchingFixture(t *testing.T, balance int, answer string) *matchingFixture {
	t.Helper()

	mt, err := domain.NewMatchingScoreTask(uuid.New(), uuid.New(), false)
	require.NoError(t, err)

	db, mock := newTxDB(t)
	f := &matchingFixture{
		mt:       mt,
		matching: newFakeMatchingStore(mt),
		credits:  newFakeCredits(balance),
		invoker: &fakeInvoker{fn: func(domain.Provider, string, string) (string, error) {
			return answer, nil
		}},
		mock: mock,
	}
	f.deps = MatchingDeps{
		DB:       db,
		Matching: f.matching,
		Applications: &fakeApplications{app: &domain.ApplicationContext{
			JobTitle: "Engineer",
			Company:  "Acme",
			CVText:   "Ten years of Go",
		}},
		Invoker:  f.invoker,
		Credits:  f.credits,
		Provider: domain.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		Cost:     1,
		Logger:   testLogger(),
	}
	return f
}

func (f *matchingFixture) run(t *testing.T) *domain.MatchingScoreTask {
	t.Helper()
	task, err := NewMatchingScoreTask(f.mt.ID, f.deps)
	require.NoError(t, err)
	require.NoError(t, task.Execute(context.Background()))
	mt, err := f.matching.GetTask(context.Background(), f.mt.ID)
	require.NoError(t, err)
	return mt
}

const goodAnswer = "```json\n{\"overall_score\": 88, \"strengths\": [\"Go\"], \"gaps\": [\"Rust\"], " +
	"\"recommendations\": [\"Mention open source\"], \"story\": \"Strong backend fit.\"}\n```"

func TestMatchingScore_Success(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	previous := &domain.MatchingScore{ID: uuid.New(), ApplicationID: f.mt.ApplicationID, IsCurrent: true}
	f.matching.scores = append(f.matching.scores, previous)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusCompleted, mt.Status)
	sc, err := f.matching.GetCurrentScore(context.Background(), f.mt.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, 88, sc.OverallScore)
	assert.Equal(t, []string{"Rust"}, sc.Gaps)
	assert.Equal(t, f.mt.ID, sc.TaskID)
	assert.False(t, previous.IsCurrent, "previous score is superseded")
	assert.Len(t, f.matching.scores, 2, "previous score is retained")
	assert.Equal(t, 2, f.credits.currentBalance())
}

func TestMatchingScore_MalformedAnswer(t *testing.T) {
	f := newMatchingFixture(t, 3, "I think the candidate fits well.")

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusFailed, mt.Status)
	assert.Equal(t, reasonMalformedResult, mt.ErrorMessage)
	assert.Equal(t, 3, f.credits.currentBalance())
}

func TestMatchingScore_NoCV(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	f.deps.Applications = &fakeApplications{app: &domain.ApplicationContext{JobTitle: "Engineer"}}

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusFailed, mt.Status)
	assert.Equal(t, reasonNoCV, mt.ErrorMessage)
	assert.Equal(t, 0, f.invoker.callCount())
}

func TestMatchingScore_InsufficientCredits(t *testing.T) {
	f := newMatchingFixture(t, 0, goodAnswer)

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusFailed, mt.Status)
	assert.Equal(t, reasonInsufficientCredits, mt.ErrorMessage)
	assert.Empty(t, f.matching.scores)
}

func TestMatchingScore_SaveFailureRefunds(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	f.matching.saveErr = errors.New("connection reset")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusFailed, mt.Status)
	assert.Equal(t, reasonScoreSaveFailed, mt.ErrorMessage)
	assert.Equal(t, 3, f.credits.currentBalance())
}

func TestMatchingScore_RefundFailureDefers(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	f.matching.saveErr = errors.New("connection reset")
	f.credits.refundErr = errors.New("connection reset")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	task, err := NewMatchingScoreTask(f.mt.ID, f.deps)
	require.NoError(t, err)
	require.ErrorIs(t, task.Execute(context.Background()), ErrDeferred)

	mt, err := f.matching.GetTask(context.Background(), f.mt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, mt.Status)
	assert.Equal(t, 2, f.credits.currentBalance())
}

func TestMatchingScore_CurrentScoreConflictRefunds(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	f.matching.saveErr = fmt.Errorf("%w: idx_matching_scores_current", store.ErrDuplicate)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusFailed, mt.Status)
	assert.Equal(t, reasonScoreSaveFailed, mt.ErrorMessage)
	assert.Equal(t, 3, f.credits.currentBalance())
	assert.True(t, f.credits.refunded[domain.MatchingDebitReference(f.mt.ID)])
	_, err := f.matching.GetScoreByTask(context.Background(), f.mt.ID)
	assert.ErrorIs(t, err, store.ErrMatchingScoreNotFound)
}

func TestMatchingScore_ScoreSavedByEarlierRun(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	ref := domain.MatchingDebitReference(f.mt.ID)
	require.NoError(t, f.credits.TryDebit(context.Background(), f.mt.UserID, 1, ref))
	f.matching.scores = append(f.matching.scores, &domain.MatchingScore{
		ID:            uuid.New(),
		ApplicationID: f.mt.ApplicationID,
		TaskID:        f.mt.ID,
		OverallScore:  70,
		IsCurrent:     true,
	})
	f.matching.saveErr = fmt.Errorf("%w: matching_scores_task_id_key", store.ErrDuplicate)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	mt := f.run(t)

	assert.Equal(t, domain.TaskStatusCompleted, mt.Status)
	assert.Equal(t, 2, f.credits.currentBalance(), "charged once")
	assert.False(t, f.credits.refunded[ref])
}

func TestMatchingScore_SkipsFinishedTask(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)
	f.matching.tasks[f.mt.ID].Status = domain.TaskStatusCompleted

	f.run(t)

	assert.Equal(t, 0, f.invoker.callCount())
}

func TestMatchingScoreFactory(t *testing.T) {
	f := newMatchingFixture(t, 3, goodAnswer)

	original, err := NewMatchingScoreTask(f.mt.ID, f.deps)
	require.NoError(t, err)

	rebuilt, err := MatchingScoreFactory(f.deps)(Record{
		ID:      original.ID(),
		Type:    TaskTypeMatchingScore,
		Payload: original.Payload(),
	})
	require.NoError(t, err)
	assert.Equal(t, original.ID(), rebuilt.ID())
	assert.Equal(t, original.Payload(), rebuilt.Payload())
}
