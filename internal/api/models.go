package api

import (
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

// TaskAcceptedResponse is returned when a background task was accepted.
type TaskAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// DocumentStatusResponse is the progress of one requested document.
type DocumentStatusResponse struct {
	DocType string `json:"doc_type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// GenerationStatusResponse is the progress of a generation task.
type GenerationStatusResponse struct {
	TaskID        string                   `json:"task_id"`
	Status        string                   `json:"status"`
	CompletedDocs int                      `json:"completed_docs"`
	TotalDocs     int                      `json:"total_docs"`
	Error         string                   `json:"error,omitempty"`
	Documents     []DocumentStatusResponse `json:"documents"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// GeneratedDocumentResponse is one generated document.
type GeneratedDocumentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	DocType   string    `json:"doc_type"`
	Format    string    `json:"format"`
	Content   string    `json:"content"`
	Provider  string    `json:"llm_provider"`
	Model     string    `json:"llm_model"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchingScoreResponse is a stored matching analysis.
type MatchingScoreResponse struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	OverallScore    int       `json:"overall_score"`
	Strengths       []string  `json:"strengths"`
	Gaps            []string  `json:"gaps"`
	Recommendations []string  `json:"recommendations"`
	Story           string    `json:"story,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MatchingStartResponse is returned by the calculate endpoint.
type MatchingStartResponse struct {
	TaskID        string                 `json:"task_id,omitempty"`
	Status        string                 `json:"status"`
	MatchingScore *MatchingScoreResponse `json:"matching_score,omitempty"`
}

// MatchingStatusResponse is the state of a matching task.
type MatchingStatusResponse struct {
	TaskID        string                 `json:"task_id"`
	Status        string                 `json:"status"`
	Error         string                 `json:"error,omitempty"`
	MatchingScore *MatchingScoreResponse `json:"matching_score,omitempty"`
}

// CreditsResponse is the caller's balance.
type CreditsResponse struct {
	Credits int `json:"credits"`
}

// CreateTemplateRequest is the body of POST /admin/templates.
type CreateTemplateRequest struct {
	DocType          string   `json:"doc_type"          validate:"required,max=64"`
	DisplayName      string   `json:"display_name"      validate:"required"`
	CreditCost       *int     `json:"credit_cost"       validate:"omitempty,gte=0,lte=10"`
	LanguageSource   string   `json:"language_source"   validate:"omitempty,oneof=preferred_language mother_tongue documentation_language"`
	Provider         string   `json:"llm_provider"      validate:"omitempty,oneof=openai anthropic google"`
	Model            string   `json:"llm_model"`
	PromptTemplate   string   `json:"prompt_template"   validate:"required"`
	InstructionRules []string `json:"instruction_rules" validate:"omitempty,dive,required"`
	IsActive         *bool    `json:"is_active"`
}

// ToTemplate builds the template, applying the catalog defaults for omitted
// cost, language source, provider and model.
func (r CreateTemplateRequest) ToTemplate() *domain.Template {
	tpl := &domain.Template{
		DocType:          r.DocType,
		DisplayName:      r.DisplayName,
		CreditCost:       catalog.DefaultCreditCost,
		LanguageSource:   catalog.DefaultLanguageSource,
		Provider:         catalog.DefaultProvider,
		Model:            catalog.DefaultModel,
		PromptTemplate:   r.PromptTemplate,
		InstructionRules: r.InstructionRules,
		IsActive:         true,
	}
	if r.CreditCost != nil {
		tpl.CreditCost = *r.CreditCost
	}
	if r.LanguageSource != "" {
		tpl.LanguageSource = domain.LanguageSource(r.LanguageSource)
	}
	if r.Provider != "" {
		tpl.Provider = domain.Provider(r.Provider)
	}
	if r.Model != "" {
		tpl.Model = r.Model
	}
	if r.IsActive != nil {
		tpl.IsActive = *r.IsActive
	}
	return tpl
}

// UpdateTemplateRequest is the body of PUT /admin/templates/{doc_type}.
// Omitted fields stay unchanged.
type UpdateTemplateRequest struct {
	DisplayName      *string   `json:"display_name"      validate:"omitempty,min=1"`
	CreditCost       *int      `json:"credit_cost"       validate:"omitempty,gte=0,lte=10"`
	LanguageSource   *string   `json:"language_source"   validate:"omitempty,oneof=preferred_language mother_tongue documentation_language"`
	Provider         *string   `json:"llm_provider"      validate:"omitempty,oneof=openai anthropic google"`
	Model            *string   `json:"llm_model"         validate:"omitempty,min=1"`
	PromptTemplate   *string   `json:"prompt_template"   validate:"omitempty,min=1"`
	InstructionRules *[]string `json:"instruction_rules"`
	IsActive         *bool     `json:"is_active"`
}

// ToPatch converts the request into a catalog patch.
func (r UpdateTemplateRequest) ToPatch() catalog.Patch {
	p := catalog.Patch{
		DisplayName:      r.DisplayName,
		CreditCost:       r.CreditCost,
		Model:            r.Model,
		PromptTemplate:   r.PromptTemplate,
		InstructionRules: r.InstructionRules,
		IsActive:         r.IsActive,
	}
	if r.LanguageSource != nil {
		ls := domain.LanguageSource(*r.LanguageSource)
		p.LanguageSource = &ls
	}
	if r.Provider != nil {
		pr := domain.Provider(*r.Provider)
		p.Provider = &pr
	}
	return p
}

func generationStatusToResponse(gt *domain.GenerationTask) GenerationStatusResponse {
	docs := make([]DocumentStatusResponse, len(gt.Documents))
	for i, d := range gt.Documents {
		docs[i] = DocumentStatusResponse{
			DocType: d.DocType,
			Status:  string(d.Status),
			Error:   d.ErrorMessage,
		}
	}
	return GenerationStatusResponse{
		TaskID:        gt.ID.String(),
		Status:        string(gt.Status),
		CompletedDocs: gt.CompletedDocs,
		TotalDocs:     gt.TotalDocs,
		Error:         gt.ErrorMessage,
		Documents:     docs,
		CreatedAt:     gt.CreatedAt,
		UpdatedAt:     gt.UpdatedAt,
	}
}

func documentToResponse(d *domain.GeneratedDocument) GeneratedDocumentResponse {
	return GeneratedDocumentResponse{
		ID:        d.ID.String(),
		TaskID:    d.TaskID.String(),
		DocType:   d.DocType,
		Format:    d.Format,
		Content:   d.Content,
		Provider:  string(d.Provider),
		Model:     d.Model,
		CreatedAt: d.CreatedAt,
	}
}

func scoreToResponse(s *domain.MatchingScore) *MatchingScoreResponse {
	if s == nil {
		return nil
	}
	return &MatchingScoreResponse{
		ID:              s.ID.String(),
		TaskID:          s.TaskID.String(),
		OverallScore:    s.OverallScore,
		Strengths:       nonNil(s.Strengths),
		Gaps:            nonNil(s.Gaps),
		Recommendations: nonNil(s.Recommendations),
		Story:           s.Story,
		CreatedAt:       s.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
