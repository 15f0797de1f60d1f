package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/onnwee/trivia-tender/trivia"
)

// bankQuestion is the on-disk shape of one local question.
type bankQuestion struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"` // multiple_choice | true_false | free_answer
	Question   string   `json:"question"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Responses  []string `json:"responses"`
	Correct    []int    `json:"correct"`
	Bool       bool     `json:"bool"`
	Answers    []string `json:"answers"`
}

// Bank serves questions from a local JSON dataset. It is the only regular
// source that can serve free-answer questions, and its availability follows
// the dataset file: no file, no source, no failures counted against it.
type Bank struct {
	// Path to the dataset; name lets joke banks reuse the same loader.
	Path string
	name string
	joke bool

	once      sync.Once
	questions []bankQuestion
	loadErr   error
}

// NewBank loads the regular local question bank.
func NewBank(path string) *Bank {
	return &Bank{Path: path, name: "question_bank"}
}

// NewJokeBank loads a bank that is only eligible when a draw explicitly
// allows joke sources.
func NewJokeBank(path string) *Bank {
	return &Bank{Path: path, name: "joke_bank", joke: true}
}

func (p *Bank) Name() string { return p.name }

func (p *Bank) IsJokeSource() bool { return p.joke }

func (p *Bank) SupportedTypes() []trivia.QuestionType {
	return []trivia.QuestionType{trivia.TypeMultipleChoice, trivia.TypeTrueFalse, trivia.TypeFreeAnswer}
}

func (p *Bank) load() {
	p.once.Do(func() {
		if p.Path == "" {
			p.loadErr = fmt.Errorf("no dataset path configured")
			return
		}
		data, err := os.ReadFile(p.Path)
		if err != nil {
			p.loadErr = err
			return
		}
		p.loadErr = json.Unmarshal(data, &p.questions)
	})
}

// IsAvailable reports whether the dataset loaded and has any questions.
func (p *Bank) IsAvailable() bool {
	p.load()
	return p.loadErr == nil && len(p.questions) > 0
}

// FetchOne draws a random question from the dataset, honoring the free-answer
// constraints in opts.
func (p *Bank) FetchOne(_ context.Context, opts trivia.FetchOptions) (*trivia.Question, error) {
	p.load()
	if p.loadErr != nil {
		return nil, fmt.Errorf("question bank unavailable: %w", p.loadErr)
	}
	var eligible []bankQuestion
	for _, bq := range p.questions {
		isFree := bq.Type == "free_answer"
		if opts.RequireFreeAnswer && !isFree {
			continue
		}
		if opts.ForbidFreeAnswer && isFree {
			continue
		}
		eligible = append(eligible, bq)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("question bank has no questions matching options")
	}
	bq := eligible[rand.Intn(len(eligible))]
	return p.toQuestion(bq)
}

func (p *Bank) toQuestion(bq bankQuestion) (*trivia.Question, error) {
	q := &trivia.Question{
		TriviaID:   bq.ID,
		Source:     p.name,
		Prompt:     bq.Question,
		Category:   bq.Category,
		Difficulty: bq.Difficulty,
	}
	if q.TriviaID == "" {
		q.TriviaID = textDigest(bq.Question)
	}
	switch bq.Type {
	case "multiple_choice":
		q.Type = trivia.TypeMultipleChoice
		q.Responses = bq.Responses
		q.CorrectIndices = bq.Correct
	case "true_false":
		q.Type = trivia.TypeTrueFalse
		q.CorrectBool = bq.Bool
	case "free_answer":
		q.Type = trivia.TypeFreeAnswer
		q.CorrectAnswers = bq.Answers
	default:
		return nil, fmt.Errorf("question bank entry %s has unknown type %q", q.TriviaID, bq.Type)
	}
	return q, nil
}
