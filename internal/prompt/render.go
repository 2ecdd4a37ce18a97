// Package prompt renders prompt skeletons against an application context.
//
// The grammar is deliberately small: {name} tokens, no nesting, no
// conditionals. Only a fixed set of names is substituted; everything else is
// copied through unchanged so authors can iterate on skeletons without the
// renderer ever failing.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Recognized placeholder names.
const (
	Role                   = "role"
	Task                   = "task"
	JobDescription         = "job_description"
	CVText                 = "cv_text"
	CVSummary              = "cv_summary"
	Language               = "language"
	DocumentationLanguage  = "documentation_language"
	CompanyProfileLanguage = "company_profile_language"
	Instructions           = "instructions"
	ReferenceLetters       = "reference_letters"
	DocType                = "doc_type"
	DocTypeDisplay         = "doc_type_display"
)

var recognized = map[string]struct{}{
	Role: {}, Task: {}, JobDescription: {}, CVText: {}, CVSummary: {},
	Language: {}, DocumentationLanguage: {}, CompanyProfileLanguage: {},
	Instructions: {}, ReferenceLetters: {}, DocType: {}, DocTypeDisplay: {},
}

// IsRecognized reports whether name belongs to the fixed placeholder set.
func IsRecognized(name string) bool {
	_, ok := recognized[name]
	return ok
}

// Names returns the recognized placeholder names.
func Names() []string {
	return []string{
		Role, Task, JobDescription, CVText, CVSummary, Language,
		DocumentationLanguage, CompanyProfileLanguage, Instructions,
		ReferenceLetters, DocType, DocTypeDisplay,
	}
}

// ErrPlaceholderContextMissing marks a recognized placeholder that had no
// value. It is informational; rendering still succeeds.
var ErrPlaceholderContextMissing = errors.New("placeholder context missing")

// Values is the context bag substituted into a skeleton. Keys outside the
// recognized set are ignored.
type Values map[string]string

// Report describes one rendering pass.
type Report struct {
	Prompt string
	// Missing lists recognized placeholders that were left verbatim because
	// Values had no entry for them.
	Missing []string
	// Unknown lists tokens that are not part of the recognized set.
	Unknown []string
}

// Err returns ErrPlaceholderContextMissing naming the missing placeholders,
// or nil.
func (r Report) Err() error {
	if len(r.Missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPlaceholderContextMissing, strings.Join(r.Missing, ", "))
}

// Render substitutes recognized placeholders in skeleton with values.
func Render(skeleton string, values Values) string {
	return RenderWithReport(skeleton, values).Prompt
}

// RenderWithReport performs a single left-to-right pass over skeleton.
// Substituted text is written straight to the output and never rescanned,
// so a value containing "{role}" stays literal.
func RenderWithReport(skeleton string, values Values) Report {
	var (
		out     strings.Builder
		report  Report
		missing = map[string]bool{}
		unknown = map[string]bool{}
	)
	out.Grow(len(skeleton))

	rest := skeleton
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:open])
		rest = rest[open:]

		end := tokenEnd(rest)
		if end < 0 {
			// Lone brace: emit it and keep scanning after it.
			out.WriteByte('{')
			rest = rest[1:]
			continue
		}

		name := rest[1:end]
		token := rest[:end+1]
		rest = rest[end+1:]

		if !IsRecognized(name) {
			out.WriteString(token)
			if !unknown[name] {
				unknown[name] = true
				report.Unknown = append(report.Unknown, name)
			}
			continue
		}
		value, ok := values[name]
		if !ok {
			out.WriteString(token)
			if !missing[name] {
				missing[name] = true
				report.Missing = append(report.Missing, name)
			}
			continue
		}
		out.WriteString(value)
	}

	report.Prompt = out.String()
	return report
}

// tokenEnd returns the index of the closing brace of a token starting at
// s[0] == '{', or -1 when s does not start a well-formed token. Token names
// are ASCII letters, digits and underscores; matching is case-sensitive.
func tokenEnd(s string) int {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '}':
			if i == 1 {
				return -1
			}
			return i
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			continue
		default:
			return -1
		}
	}
	return -1
}
