package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentFormatText is the only format the pipeline produces; rendering to
// PDF or editable formats happens downstream.
const DocumentFormatText = "TEXT"

// ErrEmptyDocumentContent is returned when a provider produced no text.
var ErrEmptyDocumentContent = errors.New("generated document content cannot be empty")

// GeneratedDocument is an immutable result of one successful document
// generation. Regeneration inserts a new row.
type GeneratedDocument struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	TaskID        uuid.UUID `json:"task_id"`
	DocType       string    `json:"doc_type"`
	Format        string    `json:"format"`
	Content       string    `json:"content"`
	Provider      Provider  `json:"llm_provider"`
	Model         string    `json:"llm_model"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewGeneratedDocument builds a document for a finished generation.
func NewGeneratedDocument(
	applicationID, taskID uuid.UUID,
	docType, content string,
	provider Provider,
	model string,
) (*GeneratedDocument, error) {
	if applicationID == uuid.Nil {
		return nil, ErrEmptyApplicationID
	}
	if content == "" {
		return nil, ErrEmptyDocumentContent
	}
	return &GeneratedDocument{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		TaskID:        taskID,
		DocType:       docType,
		Format:        DocumentFormatText,
		Content:       content,
		Provider:      provider,
		Model:         model,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
