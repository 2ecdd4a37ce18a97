package task

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/ledger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTxDB returns a sqlmock database for code that opens transactions around
// fake stores. Expectations are checked at cleanup.
func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

type fakeGenerationStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.GenerationTask

	completeErr error
}

func newFakeGenerationStore(tasks ...*domain.GenerationTask) *fakeGenerationStore {
	s := &fakeGenerationStore{tasks: map[uuid.UUID]*domain.GenerationTask{}}
	for _, gt := range tasks {
		s.tasks[gt.ID] = gt
	}
	return s
}

func copyTask(gt *domain.GenerationTask) *domain.GenerationTask {
	c := *gt
	c.Documents = append([]domain.GenerationTaskDocument(nil), gt.Documents...)
	return &c
}

func (s *fakeGenerationStore) Create(_ context.Context, gt *domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[gt.ID] = copyTask(gt)
	return nil
}

func (s *fakeGenerationStore) Get(_ context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gt, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrGenerationTaskNotFound
	}
	return copyTask(gt), nil
}

func (s *fakeGenerationStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gt, ok := s.tasks[id]
	if !ok {
		return store.ErrGenerationTaskNotFound
	}
	gt.Status = status
	gt.ErrorMessage = msg
	return nil
}

func (s *fakeGenerationStore) transition(id uuid.UUID, docType string, status domain.DocumentStatus, reason string) error {
	gt, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskDocumentNotFound
	}
	for i := range gt.Documents {
		if gt.Documents[i].DocType != docType {
			continue
		}
		if gt.Documents[i].Status.IsTerminal() {
			return store.ErrDocumentTerminal
		}
		gt.Documents[i].Status = status
		gt.Documents[i].ErrorMessage = reason
		return nil
	}
	return store.ErrTaskDocumentNotFound
}

func (s *fakeGenerationStore) MarkDocumentProcessing(_ context.Context, id uuid.UUID, docType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, docType, domain.DocumentStatusProcessing, "")
}

func (s *fakeGenerationStore) MarkDocumentFailed(_ context.Context, id uuid.UUID, docType, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, docType, domain.DocumentStatusFailed, reason)
}

func (s *fakeGenerationStore) CompleteDocument(_ context.Context, id uuid.UUID, docType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	if err := s.transition(id, docType, domain.DocumentStatusDone, ""); err != nil {
		return err
	}
	s.tasks[id].CompletedDocs++
	return nil
}

func (s *fakeGenerationStore) WithTx(*sql.Tx) store.GenerationTaskStore { return s }

func (s *fakeGenerationStore) doc(id uuid.UUID, docType string) domain.GenerationTaskDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.tasks[id].Documents {
		if d.DocType == docType {
			return d
		}
	}
	return domain.GenerationTaskDocument{}
}

type fakeDocumentStore struct {
	mu        sync.Mutex
	docs      []*domain.GeneratedDocument
	createErr error
}

func (s *fakeDocumentStore) Create(_ context.Context, doc *domain.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *fakeDocumentStore) ListByApplication(_ context.Context, appID uuid.UUID) ([]*domain.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.GeneratedDocument{}
	for i := len(s.docs) - 1; i >= 0; i-- {
		if s.docs[i].ApplicationID == appID {
			out = append(out, s.docs[i])
		}
	}
	return out, nil
}

func (s *fakeDocumentStore) CountByTask(_ context.Context, taskID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.docs {
		if d.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (s *fakeDocumentStore) WithTx(*sql.Tx) store.GeneratedDocumentStore { return s }

type fakeApplications struct {
	app *domain.ApplicationContext
	err error
}

func (f *fakeApplications) GetContext(context.Context, uuid.UUID, uuid.UUID) (*domain.ApplicationContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.app, nil
}

func (f *fakeApplications) CheckOwnership(context.Context, uuid.UUID, uuid.UUID) error {
	return f.err
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []string
	fn    func(provider domain.Provider, model, prompt string) (string, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, provider domain.Provider, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	return f.fn(provider, model, prompt)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeCredits follows the ledger rules: references are charged once and a
// refunded reference cannot be charged again.
type fakeCredits struct {
	mu       sync.Mutex
	balance  int
	debits    map[string]int
	refunded  map[string]bool
	refundErr error
}

func newFakeCredits(balance int) *fakeCredits {
	return &fakeCredits{balance: balance, debits: map[string]int{}, refunded: map[string]bool{}}
}

func (f *fakeCredits) TryDebit(_ context.Context, _ uuid.UUID, amount int, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount == 0 {
		return nil
	}
	if f.refunded[ref] {
		return ledger.ErrAlreadyRefunded
	}
	if _, ok := f.debits[ref]; ok {
		return nil
	}
	if f.balance < amount {
		return ledger.ErrInsufficientCredits
	}
	f.balance -= amount
	f.debits[ref] = amount
	return nil
}

func (f *fakeCredits) Refund(_ context.Context, _ uuid.UUID, amount int, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	if _, ok := f.debits[ref]; !ok || f.refunded[ref] {
		return nil
	}
	f.refunded[ref] = true
	f.balance += amount
	return nil
}

func (f *fakeCredits) currentBalance() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance
}

type fakeMatchingStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.MatchingScoreTask
	scores  []*domain.MatchingScore
	saveErr error
}

func newFakeMatchingStore(tasks ...*domain.MatchingScoreTask) *fakeMatchingStore {
	s := &fakeMatchingStore{tasks: map[uuid.UUID]*domain.MatchingScoreTask{}}
	for _, mt := range tasks {
		s.tasks[mt.ID] = mt
	}
	return s
}

func (s *fakeMatchingStore) CreateTask(_ context.Context, mt *domain.MatchingScoreTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *mt
	s.tasks[mt.ID] = &c
	return nil
}

func (s *fakeMatchingStore) GetTask(_ context.Context, id uuid.UUID) (*domain.MatchingScoreTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrMatchingTaskNotFound
	}
	c := *mt
	return &c, nil
}

func (s *fakeMatchingStore) FindActiveTask(_ context.Context, appID uuid.UUID) (*domain.MatchingScoreTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mt := range s.tasks {
		if mt.ApplicationID == appID && !mt.Status.IsTerminal() {
			c := *mt
			return &c, nil
		}
	}
	return nil, store.ErrMatchingTaskNotFound
}

func (s *fakeMatchingStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.tasks[id]
	if !ok {
		return store.ErrMatchingTaskNotFound
	}
	mt.Status = status
	mt.ErrorMessage = msg
	return nil
}

func (s *fakeMatchingStore) GetCurrentScore(_ context.Context, appID uuid.UUID) (*domain.MatchingScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scores {
		if sc.ApplicationID == appID && sc.IsCurrent {
			return sc, nil
		}
	}
	return nil, store.ErrMatchingScoreNotFound
}

func (s *fakeMatchingStore) GetScoreByTask(_ context.Context, taskID uuid.UUID) (*domain.MatchingScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scores {
		if sc.TaskID == taskID {
			return sc, nil
		}
	}
	return nil, store.ErrMatchingScoreNotFound
}

func (s *fakeMatchingStore) SaveCurrentScore(_ context.Context, score *domain.MatchingScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, sc := range s.scores {
		if sc.ApplicationID == score.ApplicationID {
			sc.IsCurrent = false
		}
	}
	score.IsCurrent = true
	s.scores = append(s.scores, score)
	return nil
}

func (s *fakeMatchingStore) WithTx(*sql.Tx) store.MatchingStore { return s }
