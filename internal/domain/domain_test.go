package domain

import (
	"errors"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestCleanQuestionsDropsMalformedEntries(t *testing.T) {
	in := []QuestionInput{
		{Text: "ok", Choices: []string{"a", "b", "c", "d"}, CorrectIndex: intPtr(1)},
		{Text: "three choices", Choices: []string{"a", "b", "c"}, CorrectIndex: intPtr(0)},
		{Text: "bad index", Choices: []string{"a", "b", "c", "d"}, CorrectIndex: intPtr(4)},
		{Text: "", Choices: []string{"a", "b", "c", "d"}, CorrectIndex: intPtr(0)},
		{Text: "no index", Choices: []string{"a", "b", "c", "d"}},
	}
	clean, err := CleanQuestions(in)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if len(clean) != 1 || clean[0].Text != "ok" || clean[0].CorrectIndex != 1 {
		t.Fatalf("expected only the valid question, got %+v", clean)
	}
}

func TestCleanQuestionsTruncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	clean, err := CleanQuestions([]QuestionInput{
		{Text: long, Choices: []string{long, "b", "c", "d"}, CorrectIndex: intPtr(0)},
	})
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if len(clean[0].Text) != 120 || len(clean[0].Choices[0]) != 40 {
		t.Fatalf("expected truncation to 120/40, got %d/%d", len(clean[0].Text), len(clean[0].Choices[0]))
	}
}

func TestCleanQuestionsErrors(t *testing.T) {
	if _, err := CleanQuestions(nil); !errors.Is(err, ErrInvalidQuestions) {
		t.Fatalf("expected ErrInvalidQuestions, got %v", err)
	}
	_, err := CleanQuestions([]QuestionInput{{Text: "x", Choices: []string{"a"}, CorrectIndex: intPtr(0)}})
	if !errors.Is(err, ErrNoValidQuestions) {
		t.Fatalf("expected ErrNoValidQuestions, got %v", err)
	}
	if !IsValidation(err) || IsStateConflict(err) {
		t.Fatalf("expected validation classification for %v", err)
	}
}

func TestNamePolicyDigits(t *testing.T) {
	policy, err := NewNamePolicy(DefaultNamePattern, DefaultNameRule)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	name, err := policy.Normalize("  0912  ")
	if err != nil || name != "0912" {
		t.Fatalf("expected 0912, got %q (%v)", name, err)
	}
	for _, bad := range []string{"123", "12345678901", "abcd", "12a4", ""} {
		if _, err := policy.Normalize(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
	_, err = policy.Normalize("abc")
	if !strings.Contains(err.Error(), DefaultNameRule) {
		t.Fatalf("expected descriptive error, got %v", err)
	}
}

func TestNamePolicyFreeForm(t *testing.T) {
	policy, err := NewNamePolicy("", "")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if name, _ := policy.Normalize("   "); name != DefaultName {
		t.Fatalf("expected fallback name, got %q", name)
	}
	if name, _ := policy.Normalize(strings.Repeat("n", 30)); len(name) != 20 {
		t.Fatalf("expected 20 chars, got %d", len(name))
	}
}
