// Package providers contains the concrete question sources registered in the
// trivia source pool. Each provider only implements the trivia.Provider
// contract; the engine never reaches past it.
package providers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"

	"github.com/onnwee/trivia-tender/trivia"
)

const opentdbURL = "https://opentdb.com/api.php?amount=1"

// OpenTDB serves questions from the Open Trivia Database. The API hands out
// multiple-choice and boolean questions but no stable question ids, so the id
// is a digest of the question text, which is stable enough for the ban and
// repeat ledgers.
type OpenTDB struct {
	// BaseURL overrides the API endpoint (tests).
	BaseURL    string
	HTTPClient *http.Client
}

func (p *OpenTDB) Name() string { return "open_trivia_database" }

func (p *OpenTDB) SupportedTypes() []trivia.QuestionType {
	return []trivia.QuestionType{trivia.TypeMultipleChoice, trivia.TypeTrueFalse}
}

func (p *OpenTDB) IsAvailable() bool { return true }

func (p *OpenTDB) IsJokeSource() bool { return false }

func (p *OpenTDB) http() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

type opentdbResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Type             string   `json:"type"`
		Difficulty       string   `json:"difficulty"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// FetchOne draws a single question.
func (p *OpenTDB) FetchOne(ctx context.Context, _ trivia.FetchOptions) (*trivia.Question, error) {
	url := p.BaseURL
	if url == "" {
		url = opentdbURL
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
		return nil, fmt.Errorf("opentdb status %s: %s", resp.Status, string(b))
	}
	var body opentdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("opentdb decode: %w", err)
	}
	if body.ResponseCode != 0 || len(body.Results) == 0 {
		return nil, fmt.Errorf("opentdb response code %d with %d results", body.ResponseCode, len(body.Results))
	}
	r := body.Results[0]

	q := &trivia.Question{
		TriviaID:   textDigest(r.Question),
		Source:     p.Name(),
		Prompt:     r.Question,
		Category:   r.Category,
		Difficulty: r.Difficulty,
	}
	switch r.Type {
	case "boolean":
		q.Type = trivia.TypeTrueFalse
		q.CorrectBool = r.CorrectAnswer == "True"
	case "multiple":
		q.Type = trivia.TypeMultipleChoice
		q.Responses, q.CorrectIndices = shuffleChoices(r.CorrectAnswer, r.IncorrectAnswers)
	default:
		return nil, fmt.Errorf("opentdb unknown question type %q", r.Type)
	}
	return q, nil
}

// textDigest derives a stable question id from its text.
func textDigest(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:20]
}

// shuffleChoices mixes the correct answer into the incorrect ones at a random
// position and reports where it landed.
func shuffleChoices(correct string, incorrect []string) ([]string, []int) {
	responses := append([]string{correct}, incorrect...)
	rand.Shuffle(len(responses), func(i, j int) {
		responses[i], responses[j] = responses[j], responses[i]
	})
	for i, r := range responses {
		if r == correct {
			return responses, []int{i}
		}
	}
	return responses, []int{0}
}
