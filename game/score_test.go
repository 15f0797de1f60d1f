package game

import (
	"context"
	"testing"

	"github.com/onnwee/trivia-tender/trivia"
)

func multipleChoiceQuestion() *trivia.Question {
	return &trivia.Question{
		TriviaID:       "q1",
		Source:         "test",
		Type:           trivia.TypeMultipleChoice,
		Prompt:         "Largest planet?",
		Responses:      []string{"Mars", "Jupiter", "Venus"},
		CorrectIndices: []int{1},
	}
}

func TestEvaluateMultipleChoice(t *testing.T) {
	q := multipleChoiceQuestion()
	cases := []struct {
		text string
		want bool
	}{
		{"b", true},
		{"B", true},
		{"a", false},
		{"jupiter", true},
		{"Jupiter", true},
		{"  Mars ", false},
		{"d", false},  // out of range letter
		{"bb", false}, // not a letter, not a response
		{"", false},
	}
	for _, c := range cases {
		if got := Evaluate(q, c.text); got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestEvaluateTrueFalse(t *testing.T) {
	q := &trivia.Question{Type: trivia.TypeTrueFalse, CorrectBool: true}
	for _, text := range []string{"true", "TRUE", "t", "yes", "y"} {
		if !Evaluate(q, text) {
			t.Errorf("Evaluate(%q) should accept", text)
		}
	}
	for _, text := range []string{"false", "no", "n", "maybe", ""} {
		if Evaluate(q, text) {
			t.Errorf("Evaluate(%q) should reject", text)
		}
	}
}

func TestEvaluateFreeAnswer(t *testing.T) {
	q := &trivia.Question{
		Type:           trivia.TypeFreeAnswer,
		CorrectAnswers: []string{"The Eiffel Tower"},
		CleanedAnswers: []string{trivia.CleanAnswer("The Eiffel Tower")},
	}
	cases := []struct {
		text string
		want bool
	}{
		{"eiffel tower", true},
		{"The Eiffel Tower", true},
		{"eifel tower", true},  // one edit inside the budget
		{"awful tower", false}, // too far off
		{"", false},
	}
	for _, c := range cases {
		if got := Evaluate(q, c.text); got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestEditBudgetScalesWithLength(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{3, 0}, {4, 0}, {5, 1}, {15, 1}, {16, 2}, {23, 2}, {24, 3}, {40, 3},
	}
	for _, c := range cases {
		if got := editBudget(c.n); got != c.want {
			t.Errorf("editBudget(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q,%q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

// scoreOnly exercises Score's point arithmetic without persistence by leaving
// the submission anonymous.
func scoreOnly(t *testing.T, q *trivia.Question, text string, timeout bool, req *Request, status SpecialStatus) Outcome {
	t.Helper()
	s := &Scorer{}
	out, err := s.Score(context.Background(), q, Submission{Text: text, Timeout: timeout}, req, status)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	return out
}

func TestScoreBasePoints(t *testing.T) {
	req := &Request{ChannelID: "1", BasePoints: 25, ShinyMultiplier: 8, ToxicMultiplier: 2}
	out := scoreOnly(t, multipleChoiceQuestion(), "b", false, req, StatusNone)
	if !out.Correct || out.PointsDelta != 25 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestScoreShinyMultiplier(t *testing.T) {
	req := &Request{ChannelID: "1", BasePoints: 25, ShinyMultiplier: 8}
	out := scoreOnly(t, multipleChoiceQuestion(), "b", false, req, StatusShiny)
	if out.PointsDelta != 200 {
		t.Fatalf("shiny delta = %d, want 200", out.PointsDelta)
	}
	// Shiny never affects a wrong answer.
	out = scoreOnly(t, multipleChoiceQuestion(), "a", false, req, StatusShiny)
	if out.PointsDelta != 0 {
		t.Fatalf("wrong answer under shiny = %d", out.PointsDelta)
	}
}

func TestScoreToxicPenalty(t *testing.T) {
	req := &Request{ChannelID: "1", BasePoints: 25, ToxicMultiplier: 2}
	out := scoreOnly(t, multipleChoiceQuestion(), "a", false, req, StatusToxic)
	if out.PointsDelta != -50 {
		t.Fatalf("toxic delta = %d, want -50", out.PointsDelta)
	}
	// A correct answer under toxic scores normally.
	out = scoreOnly(t, multipleChoiceQuestion(), "b", false, req, StatusToxic)
	if out.PointsDelta != 25 {
		t.Fatalf("correct under toxic = %d", out.PointsDelta)
	}
}

func TestScoreToxicPenaltyNeverZero(t *testing.T) {
	req := &Request{ChannelID: "1", BasePoints: 0, ToxicMultiplier: 0}
	out := scoreOnly(t, multipleChoiceQuestion(), "a", false, req, StatusToxic)
	if out.PointsDelta != -1 {
		t.Fatalf("degenerate toxic delta = %d, want -1", out.PointsDelta)
	}
}

func TestScoreTimeout(t *testing.T) {
	req := &Request{ChannelID: "1", BasePoints: 25, ToxicMultiplier: 2}
	out := scoreOnly(t, multipleChoiceQuestion(), "", true, req, StatusNone)
	if out.Correct || out.PointsDelta != 0 || !out.Timeout {
		t.Fatalf("timeout outcome = %+v", out)
	}
	out = scoreOnly(t, multipleChoiceQuestion(), "", true, req, StatusToxic)
	if out.PointsDelta != -50 {
		t.Fatalf("toxic timeout delta = %d", out.PointsDelta)
	}
}
