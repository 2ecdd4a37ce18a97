package postgres

import (
	"context"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

// PostgresApplicationStore implements store.ApplicationStore over the tables
// written by the application, upload and profile collaborators.
type PostgresApplicationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresApplicationStore creates an application store.
func NewPostgresApplicationStore(db store.DBTX, logger *slog.Logger) *PostgresApplicationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresApplicationStore{
		db:     db,
		logger: logger.With(slog.String("component", "application_store")),
	}
}

var _ store.ApplicationStore = (*PostgresApplicationStore)(nil)

// CheckOwnership implements store.ApplicationStore.CheckOwnership
func (s *PostgresApplicationStore) CheckOwnership(ctx context.Context, userID, applicationID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1 AND user_id = $2)`,
		applicationID, userID,
	).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrApplicationNotFound
	}
	return nil
}

// GetContext implements store.ApplicationStore.GetContext
func (s *PostgresApplicationStore) GetContext(
	ctx context.Context,
	userID, applicationID uuid.UUID,
) (*domain.ApplicationContext, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	app := domain.ApplicationContext{ApplicationID: applicationID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT a.job_title, a.company, a.posting_description, a.opportunity_context,
			a.is_spontaneous, a.application_type, a.documentation_language, a.company_profile_language,
			u.preferred_language, u.mother_tongue, u.documentation_language,
			u.employment_status, u.education_type, u.additional_profile_context
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1 AND a.user_id = $2
	`, applicationID, userID).Scan(
		&app.JobTitle,
		&app.Company,
		&app.PostingDescription,
		&app.OpportunityContext,
		&app.IsSpontaneous,
		&app.ApplicationType,
		&app.DocumentationLanguage,
		&app.CompanyProfileLanguage,
		&app.Languages.Preferred,
		&app.Languages.MotherTongue,
		&app.Languages.Documentation,
		&app.Profile.EmploymentStatus,
		&app.Profile.EducationType,
		&app.Profile.AdditionalContext,
	)
	if err != nil {
		mapped := mapNotFound(err, store.ErrApplicationNotFound)
		if mapped != store.ErrApplicationNotFound {
			log.Error("failed to load application context",
				slog.String("application_id", applicationID.String()),
				slog.String("error", err.Error()))
		}
		return nil, mapped
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, extracted_text
		FROM application_documents
		WHERE application_id = $1
		ORDER BY kind, position, created_at
	`, applicationID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, text string
		if err := rows.Scan(&kind, &text); err != nil {
			return nil, err
		}
		switch kind {
		case "cv":
			// Only the first CV by position feeds the prompts.
			if app.CVText == "" {
				app.CVText = text
			}
		case "reference_letter":
			app.ReferenceLetters = append(app.ReferenceLetters, text)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &app, nil
}
