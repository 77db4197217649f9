package domain

import "strings"

type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindOpenEnded      QuestionKind = "open_ended"
	KindMultiPart      QuestionKind = "multi_part"
)

// Prompt is one displayable question part. Simple questions have exactly
// one, multi_part questions have 2 to 4.
type Prompt struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// Question is immutable round content. The answer key is either
// Choices+CorrectChoice (multiple_choice) or AcceptedAnswers, one set per
// prompt (open_ended, multi_part).
type Question struct {
	Kind            QuestionKind
	Prompts         []Prompt
	Choices         []string
	CorrectChoice   int
	AcceptedAnswers [][]string
	Hint            string
}

func (q *Question) Parts() int {
	return len(q.Prompts)
}

func (q *Question) HasHint() bool {
	return q.Hint != ""
}

// IsCorrect reports whether the submitted text answers the given part.
// Matching is case and surrounding-whitespace insensitive.
func (q *Question) IsCorrect(part int, text string) bool {
	submitted := NormalizeAnswer(text)
	if q.Kind == KindMultipleChoice {
		if q.CorrectChoice < 0 || q.CorrectChoice >= len(q.Choices) {
			return false
		}
		return submitted == NormalizeAnswer(q.Choices[q.CorrectChoice])
	}
	if part < 0 || part >= len(q.AcceptedAnswers) {
		return false
	}
	for _, accepted := range q.AcceptedAnswers[part] {
		if submitted == NormalizeAnswer(accepted) {
			return true
		}
	}
	return false
}

func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
