package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	maxQuestionText = 120
	maxChoiceText   = 40
)

// CleanQuestions keeps the well-formed entries of a host-supplied list and drops the rest.
// It fails only when the list is empty or nothing survives.
func CleanQuestions(in []QuestionInput) ([]Question, error) {
	if len(in) == 0 {
		return nil, ErrInvalidQuestions
	}
	clean := make([]Question, 0, len(in))
	for _, q := range in {
		if strings.TrimSpace(q.Text) == "" || len(q.Choices) != ChoiceCount || q.CorrectIndex == nil {
			continue
		}
		if !ValidChoice(*q.CorrectIndex) {
			continue
		}
		choices := make([]string, ChoiceCount)
		for i, c := range q.Choices {
			choices[i] = truncate(c, maxChoiceText)
		}
		clean = append(clean, Question{
			Text:         truncate(q.Text, maxQuestionText),
			Choices:      choices,
			CorrectIndex: *q.CorrectIndex,
		})
	}
	if len(clean) == 0 {
		return nil, ErrNoValidQuestions
	}
	return clean, nil
}

// ValidChoice reports whether idx addresses one of the four choices.
func ValidChoice(idx int) bool {
	return idx >= 0 && idx < ChoiceCount
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// DefaultSetID names the built-in question set.
const DefaultSetID = "default"

// DefaultQuestionSet wraps DefaultQuestions under DefaultSetID.
func DefaultQuestionSet() QuestionSet {
	return QuestionSet{ID: DefaultSetID, Questions: DefaultQuestions()}
}

// DefaultQuestions is the built-in set used when no other set is configured.
func DefaultQuestions() []Question {
	return []Question{
		{Text: "Who is harder to get out of bed?", Choices: []string{"The groom", "The bride", "Both", "Neither"}, CorrectIndex: 0},
		{Text: "Where was their first date?", Choices: []string{"A cafe", "A restaurant", "The cinema", "A park"}, CorrectIndex: 1},
		{Text: "Where did the proposal happen?", Choices: []string{"At home", "At a restaurant", "Outdoors", "At a hotel"}, CorrectIndex: 2},
		{Text: "What do they do together most?", Choices: []string{"Binge shows", "Work out", "Play games", "Go for walks"}, CorrectIndex: 0},
		{Text: "Who does the housework?", Choices: []string{"They take turns", "The groom", "The bride", "The robot vacuum"}, CorrectIndex: 0},
	}
}
