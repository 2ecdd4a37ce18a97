package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Application types that change how the job description is framed.
const (
	ApplicationTypeFulltime       = "fulltime"
	ApplicationTypeInternship     = "internship"
	ApplicationTypeApprenticeship = "apprenticeship"
)

// UserLanguages holds the three language fields a template can draw on.
type UserLanguages struct {
	Preferred     string `json:"preferred_language"`
	MotherTongue  string `json:"mother_tongue"`
	Documentation string `json:"documentation_language"`
}

// Select returns the language code chosen by source, falling back to the
// documentation language and then to English when the field is empty.
func (l UserLanguages) Select(source LanguageSource) string {
	var code string
	switch source {
	case LanguageSourcePreferred:
		code = l.Preferred
	case LanguageSourceMotherTongue:
		code = l.MotherTongue
	case LanguageSourceDocumentation:
		code = l.Documentation
	}
	if code == "" {
		code = l.Documentation
	}
	if code == "" {
		code = "en"
	}
	return code
}

// CandidateProfile is optional free-form context about the candidate.
type CandidateProfile struct {
	EmploymentStatus  string `json:"employment_status,omitempty"`
	EducationType     string `json:"education_type,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// ApplicationContext is everything the pipeline reads about an application.
// It is assembled by collaborators that own CVs, postings and user profiles.
type ApplicationContext struct {
	ApplicationID uuid.UUID
	UserID        uuid.UUID

	JobTitle           string
	Company            string
	PostingDescription string
	OpportunityContext string
	IsSpontaneous      bool
	ApplicationType    string

	// DocumentationLanguage and CompanyProfileLanguage override the user's
	// settings for this application when set.
	DocumentationLanguage  string
	CompanyProfileLanguage string

	CVText           string
	ReferenceLetters []string
	Languages        UserLanguages
	Profile          CandidateProfile
}

// JobDescription assembles the job description block used by prompts.
func (a *ApplicationContext) JobDescription() string {
	var b strings.Builder
	b.WriteString("Title: " + a.JobTitle)
	b.WriteString("\nCompany: " + a.Company)
	if a.PostingDescription != "" {
		b.WriteString("\nDescription: " + a.PostingDescription)
	}
	if a.OpportunityContext != "" {
		b.WriteString("\nOpportunity Context: " + a.OpportunityContext)
	}
	if a.IsSpontaneous {
		b.WriteString("\nThis is a spontaneous application without a specific posting.")
	}

	switch a.ApplicationType {
	case ApplicationTypeInternship:
		b.WriteString("\n\n=== APPLICATION TYPE: INTERNSHIP ===")
	case ApplicationTypeApprenticeship:
		b.WriteString("\n\n=== APPLICATION TYPE: APPRENTICESHIP ===")
	}

	p := a.Profile
	if p.EmploymentStatus != "" || p.EducationType != "" || p.AdditionalContext != "" {
		b.WriteString("\n\n=== CANDIDATE PROFILE CONTEXT ===")
		if p.EmploymentStatus != "" {
			b.WriteString("\nEmployment Status: " + p.EmploymentStatus)
		}
		if p.EducationType != "" {
			b.WriteString("\nEducation Type: " + p.EducationType)
		}
		if p.AdditionalContext != "" {
			b.WriteString("\nAdditional Context: " + p.AdditionalContext)
		}
	}

	return b.String()
}
