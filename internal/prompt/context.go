package prompt

import (
	"fmt"
	"strings"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

const (
	defaultRole = "professional career consultant and CV/resume expert"
	defaultTask = "Help this candidate create compelling, honest, and effective job application documents"

	noReferenceLetters = "No reference letters provided."

	cvSummaryLimit = 500
)

// DefaultInstructionRules apply to templates that carry no rules of their own.
var DefaultInstructionRules = []string{
	"Be completely honest - NEVER invent skills, experiences, or qualifications",
	"Only use information that exists in the candidate's CV",
	"Optimize for the specific job requirements while staying truthful",
	"Use professional, clear language appropriate for the target role",
	"Highlight genuine strengths and relevant experience",
	"Structure content for maximum impact and readability",
}

var languageInstructions = map[string]string{
	"de-CH": "Swiss German (Schweizerdeutsch) - CRITICAL: Use 'ss' instead of 'ß' " +
		"(e.g., 'Strasse' not 'Straße', 'Grüsse' not 'Grüße', 'dass' not 'daß'). " +
		"This is Swiss Standard German orthography.",
	"de":    "German (Standard German / Hochdeutsch) - Use standard German orthography including 'ß' where appropriate.",
	"de-DE": "German (Germany) - Use standard German orthography including 'ß' where appropriate.",
	"en":    "English",
	"fr":    "French (Français)",
	"it":    "Italian (Italiano)",
	"es":    "Spanish (Español)",
	"pt":    "Portuguese (Português)",
}

// LanguageInstruction expands a language code into the explicit wording given
// to the model. Unknown codes are passed through unchanged.
func LanguageInstruction(code string) string {
	if s, ok := languageInstructions[code]; ok {
		return s
	}
	return code
}

// Summarize returns at most the first 500 characters of cvText, followed by
// "..." when it was cut.
func Summarize(cvText string) string {
	runes := []rune(cvText)
	if len(runes) <= cvSummaryLimit {
		return cvText
	}
	return string(runes[:cvSummaryLimit]) + "..."
}

// FormatInstructions numbers rules starting at 1, one per line.
func FormatInstructions(rules []string) string {
	var b strings.Builder
	n := 0
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		n++
		if n > 1 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", n, r)
	}
	return b.String()
}

// FormatReferenceLetters joins reference letters under numbered headers.
func FormatReferenceLetters(letters []string) string {
	if len(letters) == 0 {
		return noReferenceLetters
	}
	parts := make([]string, len(letters))
	for i, text := range letters {
		if strings.TrimSpace(text) == "" {
			text = "No text content"
		}
		parts[i] = fmt.Sprintf("--- Reference Letter %d ---\n%s", i+1, text)
	}
	return strings.Join(parts, "\n\n")
}

// BuildValues assembles the full context bag for rendering tpl against app.
// The template's language source decides which user language feeds
// {language}.
func BuildValues(tpl *domain.Template, app *domain.ApplicationContext) Values {
	language := app.Languages.Select(tpl.LanguageSource)

	docLanguage := app.DocumentationLanguage
	if docLanguage == "" {
		docLanguage = app.Languages.Select(domain.LanguageSourceDocumentation)
	}
	companyLanguage := app.CompanyProfileLanguage
	if companyLanguage == "" {
		companyLanguage = language
	}

	rules := tpl.InstructionRules
	if len(rules) == 0 {
		rules = DefaultInstructionRules
	}

	return Values{
		Role:                   defaultRole,
		Task:                   defaultTask,
		JobDescription:         app.JobDescription(),
		CVText:                 app.CVText,
		CVSummary:              Summarize(app.CVText),
		Language:               LanguageInstruction(language),
		DocumentationLanguage:  LanguageInstruction(docLanguage),
		CompanyProfileLanguage: LanguageInstruction(companyLanguage),
		Instructions:           FormatInstructions(rules),
		ReferenceLetters:       FormatReferenceLetters(app.ReferenceLetters),
		DocType:                tpl.DocType,
		DocTypeDisplay:         tpl.DisplayName,
	}
}

// RenderTemplate renders tpl for app and reports placeholders left verbatim.
func RenderTemplate(tpl *domain.Template, app *domain.ApplicationContext) Report {
	return RenderWithReport(tpl.PromptTemplate, BuildValues(tpl, app))
}
