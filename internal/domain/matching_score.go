package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchingScoreTask is the durable record of one score calculation.
type MatchingScoreTask struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID uuid.UUID  `json:"application_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Recalculate   bool       `json:"recalculate"`
	Status        TaskStatus `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewMatchingScoreTask creates a pending scoring task.
func NewMatchingScoreTask(userID, applicationID uuid.UUID, recalculate bool) (*MatchingScoreTask, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if applicationID == uuid.Nil {
		return nil, ErrEmptyApplicationID
	}
	now := time.Now().UTC()
	return &MatchingScoreTask{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		UserID:        userID,
		Recalculate:   recalculate,
		Status:        TaskStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MatchingScore is the structured result of a matching analysis. At most one
// score per application is current; older ones stay as history.
type MatchingScore struct {
	ID              uuid.UUID `json:"id"`
	ApplicationID   uuid.UUID `json:"application_id"`
	TaskID          uuid.UUID `json:"task_id"`
	OverallScore    int       `json:"overall_score"`
	Strengths       []string  `json:"strengths"`
	Gaps            []string  `json:"gaps"`
	Recommendations []string  `json:"recommendations"`
	Story           string    `json:"story,omitempty"`
	IsCurrent       bool      `json:"is_current"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClampScore limits a raw model score to the 0..100 range.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
