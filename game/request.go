// Package game runs queued trivia games per channel: the capped game queue,
// the shiny/toxic special-status calculator, the outcome scorer, and the
// scheduler tick that drives everything. One channel never has more than one
// running game instance, which is what lets the rest of the package stay
// lock-light.
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is one submitted game request, typically a chat command or a
// channel-point redemption. It expands into NumberOfGames queue entries at
// most once; the consumed transition is guarded by the queue.
type Request struct {
	ID          string
	Channel     string
	ChannelID   string
	RequestedBy string // user login that triggered the request

	NumberOfGames int
	AttemptCap    int
	BasePoints    int
	AnswerTTL     time.Duration

	ShinyEnabled    bool
	ShinyMultiplier int
	ToxicEnabled    bool
	ToxicMultiplier int

	CreatedAt time.Time

	mu       sync.Mutex
	consumed bool
}

// NewRequest allocates a request with a fresh id and creation timestamp.
func NewRequest(channel, channelID, requestedBy string, numberOfGames int) *Request {
	return &Request{
		ID:            uuid.NewString(),
		Channel:       channel,
		ChannelID:     channelID,
		RequestedBy:   requestedBy,
		NumberOfGames: numberOfGames,
		CreatedAt:     time.Now().UTC(),
	}
}

// consume transitions Pending -> Consumed exactly once. Only the queue calls
// this; a second call returns false and the queue adds nothing.
func (r *Request) consume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return false
	}
	r.consumed = true
	return true
}

// Consumed reports whether the request has already been expanded.
func (r *Request) Consumed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed
}

// Entry is one runnable unit expanded from a request. It is exclusively owned
// by its channel's queue until popped.
type Entry struct {
	ID      string
	Request *Request
}

func newEntry(r *Request) *Entry {
	return &Entry{ID: uuid.NewString(), Request: r}
}
