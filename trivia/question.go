// Package trivia contains the core question engine: the question model, text
// normalization, content-safety scanning, the weighted source pool, and the
// fetch orchestrator that ties them together. It deliberately knows nothing
// about chat transports or scheduling; callers hand it FetchOptions and get
// back a validated Question or a typed error.
package trivia

import "fmt"

// QuestionType discriminates the question variants a provider may return.
type QuestionType int

const (
	TypeMultipleChoice QuestionType = iota
	TypeTrueFalse
	TypeFreeAnswer
)

func (t QuestionType) String() string {
	switch t {
	case TypeMultipleChoice:
		return "multiple_choice"
	case TypeTrueFalse:
		return "true_false"
	case TypeFreeAnswer:
		return "free_answer"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Question is an immutable trivia question. Identity is (TriviaID, Source);
// two questions with the same id from different sources are distinct.
// Exactly one of the per-type payloads is populated, matching Type.
type Question struct {
	TriviaID string
	Source   string
	Type     QuestionType

	Prompt     string
	Category   string // optional
	Difficulty string // optional

	// TypeMultipleChoice
	Responses      []string
	CorrectIndices []int

	// TypeTrueFalse
	CorrectBool bool

	// TypeFreeAnswer
	CorrectAnswers []string // as provided (normalized text)
	CleanedAnswers []string // lowercased, punctuation-stripped match targets
}

// Validate performs the required-field checks applied to every provider draw
// before it may leave the orchestrator.
func (q *Question) Validate() error {
	if q.TriviaID == "" {
		return fmt.Errorf("question missing trivia id")
	}
	if q.Source == "" {
		return fmt.Errorf("question %q missing source", q.TriviaID)
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %s/%s missing prompt", q.Source, q.TriviaID)
	}
	switch q.Type {
	case TypeMultipleChoice:
		if len(q.Responses) < 2 {
			return fmt.Errorf("multiple choice question %s/%s has %d responses", q.Source, q.TriviaID, len(q.Responses))
		}
		if len(q.CorrectIndices) == 0 {
			return fmt.Errorf("multiple choice question %s/%s has no correct indices", q.Source, q.TriviaID)
		}
		for _, i := range q.CorrectIndices {
			if i < 0 || i >= len(q.Responses) {
				return fmt.Errorf("multiple choice question %s/%s correct index %d out of range", q.Source, q.TriviaID, i)
			}
		}
	case TypeTrueFalse:
		// CorrectBool carries its own zero value; nothing further to check.
	case TypeFreeAnswer:
		if len(q.CorrectAnswers) == 0 {
			return fmt.Errorf("free answer question %s/%s has no correct answers", q.Source, q.TriviaID)
		}
	default:
		return fmt.Errorf("question %s/%s has unknown type %d", q.Source, q.TriviaID, int(q.Type))
	}
	return nil
}

// FetchOptions constrain which providers are eligible for a single draw.
type FetchOptions struct {
	Channel   string
	ChannelID string

	// RequireFreeAnswer limits the draw to providers that can serve
	// free-answer questions; ForbidFreeAnswer excludes them. Setting both is
	// a caller bug and yields no eligible providers.
	RequireFreeAnswer bool
	ForbidFreeAnswer  bool

	// AllowJokeSources admits novelty providers that are excluded from
	// regular games by default.
	AllowJokeSources bool

	// MaxRetries overrides the orchestrator's attempt budget for this call
	// when positive, so per-channel settings can tighten or widen it.
	MaxRetries int
}

// wantsType reports whether a provider supporting exactly types is compatible
// with the options.
func (o FetchOptions) wantsType(types []QuestionType) bool {
	hasFree := false
	hasNonFree := false
	for _, t := range types {
		if t == TypeFreeAnswer {
			hasFree = true
		} else {
			hasNonFree = true
		}
	}
	if o.RequireFreeAnswer && !hasFree {
		return false
	}
	if o.ForbidFreeAnswer && !hasNonFree {
		return false
	}
	return true
}
