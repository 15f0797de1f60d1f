package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/trivia-tender/trivia"
)

const triviaAPIURL = "https://the-trivia-api.com/v2/questions?limit=1"

// TriviaAPI serves multiple-choice questions from the-trivia-api.com. Unlike
// OpenTDB it provides stable question ids.
type TriviaAPI struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *TriviaAPI) Name() string { return "the_trivia_api" }

func (p *TriviaAPI) SupportedTypes() []trivia.QuestionType {
	return []trivia.QuestionType{trivia.TypeMultipleChoice}
}

func (p *TriviaAPI) IsAvailable() bool { return true }

func (p *TriviaAPI) IsJokeSource() bool { return false }

func (p *TriviaAPI) http() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

type triviaAPIQuestion struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Question struct {
		Text string `json:"text"`
	} `json:"question"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
	Difficulty       string   `json:"difficulty"`
}

// FetchOne draws a single question.
func (p *TriviaAPI) FetchOne(ctx context.Context, _ trivia.FetchOptions) (*trivia.Question, error) {
	url := p.BaseURL
	if url == "" {
		url = triviaAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trivia api status %s: %s", resp.Status, string(b))
	}
	var body []triviaAPIQuestion
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("trivia api decode: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("trivia api returned no questions")
	}
	r := body[0]

	responses, correct := shuffleChoices(r.CorrectAnswer, r.IncorrectAnswers)
	return &trivia.Question{
		TriviaID:       r.ID,
		Source:         p.Name(),
		Type:           trivia.TypeMultipleChoice,
		Prompt:         r.Question.Text,
		Category:       r.Category,
		Difficulty:     r.Difficulty,
		Responses:      responses,
		CorrectIndices: correct,
	}, nil
}
