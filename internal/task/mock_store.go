package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface in memory for testing
type MockTaskStore struct {
	mutex          sync.RWMutex
	records        map[uuid.UUID]*Record
	SaveFn         func(ctx context.Context, task Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		records: make(map[uuid.UUID]*Record),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.Put(Record{
			ID:      task.ID(),
			Type:    task.Type(),
			Payload: task.Payload(),
			Status:  task.Status(),
		})
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		rec, exists := store.records[taskID]
		if !exists {
			return nil
		}
		rec.Status = status
		rec.ErrorMessage = errorMsg
		rec.UpdatedAt = time.Now()
		return nil
	}

	return store
}

// Put stores a record directly, for seeding recovery scenarios.
func (s *MockTaskStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.ID] = &rec
}

// Get returns a copy of the stored record.
func (s *MockTaskStore) Get(id uuid.UUID) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// GetPendingTasks retrieves tasks with "pending" status
func (s *MockTaskStore) GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(TaskStatusPending, olderThan), nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *MockTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now()
	var out []Record
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && now.Sub(rec.UpdatedAt) <= olderThan {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// WithTx returns the same store; the mock has no transactions.
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}
