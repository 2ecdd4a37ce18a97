package prompt

import (
	"errors"
	"strings"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/tidwall/gjson"
)

// ErrMalformedMatchingResult is returned when a model response is not the
// JSON object the matching prompt asks for.
var ErrMalformedMatchingResult = errors.New("malformed matching result")

const matchingSkeleton = `Analyze how well this CV matches the job requirements. Provide a detailed matching analysis.

Job Details:
{job_description}

Candidate CV (Full):
{cv_text}

Please provide a JSON response with:
1. overall_score: A number from 0-100 representing the overall match
2. strengths: Array of 3-5 key strengths/matches
3. gaps: Array of 2-4 areas where the candidate may not fully meet requirements
4. recommendations: Array of 2-3 recommendations for the application
5. story: A concise, 3-6 sentence narrative that addresses potential fit concerns.

IMPORTANT: Read the ENTIRE CV carefully before identifying gaps.

Format your response as valid JSON only, no additional text.`

// MatchingPrompt renders the scoring prompt for app.
func MatchingPrompt(app *domain.ApplicationContext) string {
	return Render(matchingSkeleton, Values{
		JobDescription: app.JobDescription(),
		CVText:         app.CVText,
	})
}

// MatchingResult is the parsed model answer. Score is already clamped.
type MatchingResult struct {
	OverallScore    int
	Strengths       []string
	Gaps            []string
	Recommendations []string
	Story           string
}

// ParseMatchingResult reads a model response, tolerating a surrounding
// markdown code fence. Missing lists become empty and a missing score is 0.
func ParseMatchingResult(raw string) (*MatchingResult, error) {
	body := StripCodeFence(raw)
	if body == "" || !gjson.Valid(body) {
		return nil, ErrMalformedMatchingResult
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, ErrMalformedMatchingResult
	}

	return &MatchingResult{
		OverallScore:    domain.ClampScore(int(doc.Get("overall_score").Int())),
		Strengths:       stringList(doc.Get("strengths")),
		Gaps:            stringList(doc.Get("gaps")),
		Recommendations: stringList(doc.Get("recommendations")),
		Story:           strings.TrimSpace(doc.Get("story").String()),
	}, nil
}

// StripCodeFence removes a leading ``` or ```json fence and its closing fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func stringList(r gjson.Result) []string {
	out := []string{}
	if !r.IsArray() {
		return out
	}
	for _, item := range r.Array() {
		if v := strings.TrimSpace(item.String()); v != "" {
			out = append(out, v)
		}
	}
	return out
}
