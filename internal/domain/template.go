package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Provider identifies an LLM backend a template can be dispatched to.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

// LanguageSource selects which user language field feeds the {language}
// placeholder of a template.
type LanguageSource string

// Supported language sources.
const (
	LanguageSourcePreferred     LanguageSource = "preferred_language"
	LanguageSourceMotherTongue  LanguageSource = "mother_tongue"
	LanguageSourceDocumentation LanguageSource = "documentation_language"
)

// Valid reports whether s is a known language source.
func (s LanguageSource) Valid() bool {
	switch s {
	case LanguageSourcePreferred, LanguageSourceMotherTongue, LanguageSourceDocumentation:
		return true
	}
	return false
}

// MaxCreditCost is the highest price a single template may carry.
const MaxCreditCost = 10

// Template validation errors
var (
	ErrInvalidDocType        = errors.New("doc type must be lowercase letters, digits or underscores")
	ErrEmptyDisplayName      = errors.New("display name cannot be empty")
	ErrInvalidCreditCost     = fmt.Errorf("credit cost must be between 0 and %d", MaxCreditCost)
	ErrInvalidLanguageSource = errors.New("invalid language source")
	ErrInvalidProvider       = errors.New("invalid provider")
	ErrEmptyModel            = errors.New("model cannot be empty")
	ErrEmptyPromptTemplate   = errors.New("prompt template cannot be empty")
)

var docTypePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Template describes how one document type is produced: which provider and
// model run it, which prompt skeleton is rendered, and what it costs.
type Template struct {
	DocType          string         `json:"doc_type"`
	DisplayName      string         `json:"display_name"`
	CreditCost       int            `json:"credit_cost"`
	LanguageSource   LanguageSource `json:"language_source"`
	Provider         Provider       `json:"llm_provider"`
	Model            string         `json:"llm_model"`
	PromptTemplate   string         `json:"prompt_template"`
	InstructionRules []string       `json:"instruction_rules"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Validate checks the structural fields of the template. Model membership in
// the provider allow-list is checked by the generation package.
func (t *Template) Validate() error {
	if !docTypePattern.MatchString(t.DocType) {
		return ErrInvalidDocType
	}
	if t.DisplayName == "" {
		return ErrEmptyDisplayName
	}
	if t.CreditCost < 0 || t.CreditCost > MaxCreditCost {
		return ErrInvalidCreditCost
	}
	if !t.LanguageSource.Valid() {
		return ErrInvalidLanguageSource
	}
	if !t.Provider.Valid() {
		return ErrInvalidProvider
	}
	if t.Model == "" {
		return ErrEmptyModel
	}
	if t.PromptTemplate == "" {
		return ErrEmptyPromptTemplate
	}
	return nil
}

// Clone returns a deep copy so callers can hold a snapshot that later admin
// edits cannot reach.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	if t.InstructionRules != nil {
		c.InstructionRules = append([]string(nil), t.InstructionRules...)
	}
	return &c
}
