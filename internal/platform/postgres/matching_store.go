package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

// PostgresMatchingStore implements store.MatchingStore.
type PostgresMatchingStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMatchingStore creates a matching store.
func NewPostgresMatchingStore(db store.DBTX, logger *slog.Logger) *PostgresMatchingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMatchingStore{
		db:     db,
		logger: logger.With(slog.String("component", "matching_store")),
	}
}

var _ store.MatchingStore = (*PostgresMatchingStore)(nil)

// WithTx implements store.MatchingStore.WithTx
func (s *PostgresMatchingStore) WithTx(tx *sql.Tx) store.MatchingStore {
	return &PostgresMatchingStore{db: tx, logger: s.logger}
}

const matchingTaskColumns = `id, application_id, user_id, recalculate, status, error_message, created_at, updated_at`

func scanMatchingTask(row rowScanner) (*domain.MatchingScoreTask, error) {
	var t domain.MatchingScoreTask
	err := row.Scan(
		&t.ID,
		&t.ApplicationID,
		&t.UserID,
		&t.Recalculate,
		&t.Status,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask implements store.MatchingStore.CreateTask
func (s *PostgresMatchingStore) CreateTask(ctx context.Context, task *domain.MatchingScoreTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matching_score_tasks (`+matchingTaskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		task.ID, task.ApplicationID, task.UserID, task.Recalculate,
		task.Status, task.ErrorMessage, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create matching task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetTask implements store.MatchingStore.GetTask
func (s *PostgresMatchingStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.MatchingScoreTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchingTaskColumns+` FROM matching_score_tasks WHERE id = $1`, id)
	t, err := scanMatchingTask(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrMatchingTaskNotFound)
	}
	return t, nil
}

// FindActiveTask implements store.MatchingStore.FindActiveTask
func (s *PostgresMatchingStore) FindActiveTask(
	ctx context.Context,
	applicationID uuid.UUID,
) (*domain.MatchingScoreTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+matchingTaskColumns+`
		FROM matching_score_tasks
		WHERE application_id = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
		LIMIT 1
	`, applicationID)
	t, err := scanMatchingTask(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrMatchingTaskNotFound)
	}
	return t, nil
}

// UpdateTaskStatus implements store.MatchingStore.UpdateTaskStatus
func (s *PostgresMatchingStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMsg string,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE matching_score_tasks
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`, id, status, errorMsg, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMatchingTaskNotFound)
}

const matchingScoreColumns = `id, application_id, task_id, overall_score, strengths, gaps,
		recommendations, story, is_current, created_at`

func scanMatchingScore(row rowScanner) (*domain.MatchingScore, error) {
	var sc domain.MatchingScore
	var strengths, gaps, recs []byte
	if err := row.Scan(
		&sc.ID,
		&sc.ApplicationID,
		&sc.TaskID,
		&sc.OverallScore,
		&strengths,
		&gaps,
		&recs,
		&sc.Story,
		&sc.IsCurrent,
		&sc.CreatedAt,
	); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw []byte
		dst *[]string
	}{{strengths, &sc.Strengths}, {gaps, &sc.Gaps}, {recs, &sc.Recommendations}} {
		if len(f.raw) == 0 {
			*f.dst = []string{}
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode matching score lists: %w", err)
		}
	}
	return &sc, nil
}

// GetCurrentScore implements store.MatchingStore.GetCurrentScore
func (s *PostgresMatchingStore) GetCurrentScore(
	ctx context.Context,
	applicationID uuid.UUID,
) (*domain.MatchingScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+matchingScoreColumns+`
		FROM matching_scores
		WHERE application_id = $1 AND is_current
	`, applicationID)
	sc, err := scanMatchingScore(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrMatchingScoreNotFound)
	}
	return sc, nil
}

// GetScoreByTask implements store.MatchingStore.GetScoreByTask
func (s *PostgresMatchingStore) GetScoreByTask(ctx context.Context, taskID uuid.UUID) (*domain.MatchingScore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchingScoreColumns+` FROM matching_scores WHERE task_id = $1`, taskID)
	sc, err := scanMatchingScore(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrMatchingScoreNotFound)
	}
	return sc, nil
}

// SaveCurrentScore implements store.MatchingStore.SaveCurrentScore
func (s *PostgresMatchingStore) SaveCurrentScore(ctx context.Context, score *domain.MatchingScore) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lists := make([][]byte, 0, 3)
	for _, l := range [][]string{score.Strengths, score.Gaps, score.Recommendations} {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		lists = append(lists, b)
	}

	// Concurrent saves for one application queue up on the application row,
	// so the demote below always sees the latest current score.
	var locked uuid.UUID
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM applications WHERE id = $1 FOR UPDATE`, score.ApplicationID,
	).Scan(&locked); err != nil {
		return mapNotFound(err, store.ErrApplicationNotFound)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE matching_scores SET is_current = FALSE
		WHERE application_id = $1 AND is_current
	`, score.ApplicationID); err != nil {
		return MapError(err)
	}

	score.IsCurrent = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matching_scores (`+matchingScoreColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		score.ID, score.ApplicationID, score.TaskID, score.OverallScore,
		lists[0], lists[1], lists[2], score.Story, score.IsCurrent, score.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save matching score",
			slog.String("task_id", score.TaskID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("matching score saved",
		slog.String("application_id", score.ApplicationID.String()),
		slog.Int("overall_score", score.OverallScore))
	return nil
}
