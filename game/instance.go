package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/trivia-tender/settings"
	"github.com/onnwee/trivia-tender/trivia"
)

// Instance is one running game: a validated question with an open answer
// window. The scheduler owns the channel->instance mapping; everything inside
// the instance is guarded by its own mutex because answer submissions arrive
// on chat goroutines while the tick checks deadlines.
type Instance struct {
	ID       string
	Entry    *Entry
	Question *trivia.Question
	Status   SpecialStatus
	Settings settings.Settings

	StartedAt time.Time
	Deadline  time.Time

	mu       sync.Mutex
	attempts map[string]int
	resolved bool
}

func newInstance(e *Entry, q *trivia.Question, status SpecialStatus, st settings.Settings) *Instance {
	now := time.Now().UTC()
	ttl := e.Request.AnswerTTL
	if ttl <= 0 {
		ttl = st.AnswerTTL
	}
	return &Instance{
		ID:        uuid.NewString(),
		Entry:     e,
		Question:  q,
		Status:    status,
		Settings:  st,
		StartedAt: now,
		Deadline:  now.Add(ttl),
		attempts:  make(map[string]int),
	}
}

// registerAttempt counts one submission for the user, enforcing the per-user
// attempt cap. Other users' budgets are unaffected.
func (i *Instance) registerAttempt(userID string, cap int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cap > 0 && i.attempts[userID] >= cap {
		return ErrAttemptsExhausted
	}
	i.attempts[userID]++
	return nil
}

// resolve transitions the instance to resolved exactly once. The loser of a
// race between a correct answer and the timeout check backs off.
func (i *Instance) resolve() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.resolved {
		return false
	}
	i.resolved = true
	return true
}

// Resolved reports whether the instance has already been settled.
func (i *Instance) Resolved() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.resolved
}

// Expired reports whether the answer window has closed.
func (i *Instance) Expired(now time.Time) bool {
	return now.After(i.Deadline)
}
