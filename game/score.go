package game

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/onnwee/trivia-tender/trivia"
)

// Submission is one answer attempt. A Timeout submission carries no user and
// resolves the instance the same way an incorrect answer does.
type Submission struct {
	UserID   string
	UserName string
	Text     string
	Timeout  bool
}

// Outcome is the scored result of one resolution, written exactly once per
// resolved submission.
type Outcome struct {
	ChannelID   string
	UserID      string
	UserName    string
	Correct     bool
	Timeout     bool
	PointsDelta int
	NewTotal    int64
}

// Scorer evaluates submissions against a question and persists the resulting
// point changes.
type Scorer struct {
	DB *sql.DB
}

// Score evaluates sub against q under the request's point values and the
// instance's special status, persists the outcome, and returns it.
//
// Correct answers award base points, multiplied when the instance is shiny.
// Incorrect answers and timeouts cost nothing unless the instance is toxic,
// in which case they are penalized by the toxic punishment multiplier; a
// toxic penalty is never zero.
func (s *Scorer) Score(ctx context.Context, q *trivia.Question, sub Submission, req *Request, status SpecialStatus) (Outcome, error) {
	out := Outcome{
		ChannelID: req.ChannelID,
		UserID:    sub.UserID,
		UserName:  sub.UserName,
		Timeout:   sub.Timeout,
	}
	if !sub.Timeout {
		out.Correct = Evaluate(q, sub.Text)
	}

	switch {
	case out.Correct:
		out.PointsDelta = req.BasePoints
		if status == StatusShiny && req.ShinyMultiplier > 0 {
			out.PointsDelta = req.BasePoints * req.ShinyMultiplier
		}
	case status == StatusToxic:
		penalty := req.BasePoints * req.ToxicMultiplier
		if penalty <= 0 {
			penalty = 1
		}
		out.PointsDelta = -penalty
	}

	if sub.UserID == "" {
		// Timeout with no participant: nothing to persist.
		return out, nil
	}
	total, err := s.persist(ctx, &out)
	if err != nil {
		return out, err
	}
	out.NewTotal = total
	return out, nil
}

// persist upserts the user's channel score row and returns the new total.
// The upsert is the atomic read-modify-write; two channels resolving the same
// user concurrently cannot lose an update.
func (s *Scorer) persist(ctx context.Context, out *Outcome) (int64, error) {
	correctInc := 0
	wrongInc := 0
	if out.Correct {
		correctInc = 1
	} else {
		wrongInc = 1
	}
	var total int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO trivia_scores (channel_id, user_id, user_name, points, correct_count, wrong_count, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT(channel_id, user_id) DO UPDATE SET
			points=trivia_scores.points+EXCLUDED.points,
			correct_count=trivia_scores.correct_count+EXCLUDED.correct_count,
			wrong_count=trivia_scores.wrong_count+EXCLUDED.wrong_count,
			user_name=EXCLUDED.user_name,
			updated_at=NOW()
		RETURNING points`,
		out.ChannelID, out.UserID, out.UserName, out.PointsDelta, correctInc, wrongInc).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("persist score: %w", err)
	}
	return total, nil
}

// Evaluate reports whether text is a correct answer to q.
func Evaluate(q *trivia.Question, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	switch q.Type {
	case trivia.TypeMultipleChoice:
		idx := choiceIndex(q, text)
		if idx < 0 {
			return false
		}
		for _, c := range q.CorrectIndices {
			if c == idx {
				return true
			}
		}
		return false
	case trivia.TypeTrueFalse:
		b, ok := parseBool(text)
		return ok && b == q.CorrectBool
	case trivia.TypeFreeAnswer:
		return freeAnswerMatches(q.CleanedAnswers, text)
	}
	return false
}

// choiceIndex resolves a multiple-choice submission: a single letter picks by
// position ("a" is the first response), anything else must match a response
// exactly, case-insensitively.
func choiceIndex(q *trivia.Question, text string) int {
	if len(text) == 1 {
		c := strings.ToLower(text)[0]
		if c >= 'a' && int(c-'a') < len(q.Responses) {
			return int(c - 'a')
		}
		return -1
	}
	for i, r := range q.Responses {
		if strings.EqualFold(strings.TrimSpace(r), text) {
			return i
		}
	}
	return -1
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(text) {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

// freeAnswerMatches compares the cleaned submission against every cleaned
// correct answer, tolerating a few typos on longer answers. The edit budget
// scales with the answer length; short answers must match exactly.
func freeAnswerMatches(cleanedAnswers []string, text string) bool {
	guess := trivia.CleanAnswer(text)
	if guess == "" {
		return false
	}
	for _, ans := range cleanedAnswers {
		if guess == ans {
			return true
		}
		if budget := editBudget(len(ans)); budget > 0 && levenshtein(guess, ans) <= budget {
			return true
		}
	}
	return false
}

// editBudget returns the tolerated edit distance for an answer of length n.
func editBudget(n int) int {
	switch {
	case n < 5:
		return 0
	case n < 16:
		return 1
	case n < 24:
		return 2
	default:
		return 3
	}
}

// levenshtein computes edit distance with the standard two-row DP.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
