package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state shared by generation and matching tasks.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// DocumentStatus is the state of one document inside a generation task.
type DocumentStatus string

// Possible document status values
const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusDone       DocumentStatus = "done"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether the document has finished, successfully or not.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusDone || s == DocumentStatusFailed
}

// MaxDocumentsPerTask bounds a single generation request.
const MaxDocumentsPerTask = 20

// Generation task validation errors
var (
	ErrNoDocTypes         = errors.New("at least one document type is required")
	ErrTooManyDocTypes    = errors.New("too many document types requested")
	ErrDuplicateDocType   = errors.New("document type requested more than once")
	ErrEmptyApplicationID = errors.New("application ID cannot be empty")
	ErrEmptyUserID        = errors.New("user ID cannot be empty")
	ErrMissingTemplate    = errors.New("no template for document type")
)

// GenerationTaskDocument tracks one requested document of a task. Template
// is the catalog snapshot taken when the task was accepted.
type GenerationTaskDocument struct {
	DocType      string         `json:"doc_type"`
	Position     int            `json:"position"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error,omitempty"`
	Template     *Template      `json:"-"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GenerationTask is the durable record of one generation request.
// CompletedDocs only grows, and only together with a persisted document.
type GenerationTask struct {
	ID            uuid.UUID                `json:"id"`
	ApplicationID uuid.UUID                `json:"application_id"`
	UserID        uuid.UUID                `json:"user_id"`
	Status        TaskStatus               `json:"status"`
	CompletedDocs int                      `json:"completed_docs"`
	TotalDocs     int                      `json:"total_docs"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	Documents     []GenerationTaskDocument `json:"documents"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// NewGenerationTask creates a pending task with one pending entry per doc type,
// keeping the requested order.
func NewGenerationTask(userID, applicationID uuid.UUID, docTypes []string) (*GenerationTask, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if applicationID == uuid.Nil {
		return nil, ErrEmptyApplicationID
	}
	if len(docTypes) == 0 {
		return nil, ErrNoDocTypes
	}
	if len(docTypes) > MaxDocumentsPerTask {
		return nil, ErrTooManyDocTypes
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(docTypes))
	docs := make([]GenerationTaskDocument, 0, len(docTypes))
	for i, dt := range docTypes {
		if !docTypePattern.MatchString(dt) {
			return nil, ErrInvalidDocType
		}
		if _, dup := seen[dt]; dup {
			return nil, ErrDuplicateDocType
		}
		seen[dt] = struct{}{}
		docs = append(docs, GenerationTaskDocument{
			DocType:   dt,
			Position:  i,
			Status:    DocumentStatusPending,
			UpdatedAt: now,
		})
	}

	return &GenerationTask{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		UserID:        userID,
		Status:        TaskStatusPending,
		TotalDocs:     len(docs),
		Documents:     docs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DocTypes returns the requested doc types in request order.
func (t *GenerationTask) DocTypes() []string {
	out := make([]string, len(t.Documents))
	for i, d := range t.Documents {
		out[i] = d.DocType
	}
	return out
}

// AllDocumentsTerminal reports whether every document has finished.
func (t *GenerationTask) AllDocumentsTerminal() bool {
	for _, d := range t.Documents {
		if !d.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AttachTemplates stores a snapshot of each document's template. Every
// document must have a matching template.
func (t *GenerationTask) AttachTemplates(templates map[string]*Template) error {
	for i := range t.Documents {
		tpl, ok := templates[t.Documents[i].DocType]
		if !ok || tpl == nil {
			return fmt.Errorf("%w: %s", ErrMissingTemplate, t.Documents[i].DocType)
		}
		t.Documents[i].Template = tpl.Clone()
	}
	return nil
}

// Outcome is the final task status once every document is terminal: any
// success completes the task, otherwise it failed.
func (t *GenerationTask) Outcome() TaskStatus {
	if t.CompletedDocs > 0 {
		return TaskStatusCompleted
	}
	return TaskStatusFailed
}
