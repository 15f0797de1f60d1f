package trivia

import (
	"errors"
	"fmt"
)

// ErrNoSourceAvailable is returned by Pool.Select when no registered provider
// is enabled, available, type-compatible, and outside the exclusion set. The
// caller decides whether that is fatal.
var ErrNoSourceAvailable = errors.New("no trivia source available")

// RejectReason classifies why a draw was thrown away and retried.
type RejectReason string

const (
	RejectBannedWord    RejectReason = "banned_word"
	RejectMalformedText RejectReason = "malformed_text"
	RejectBannedID      RejectReason = "banned_id"
	RejectRecentRepeat  RejectReason = "recent_repeat"
)

// TransportError wraps a provider call failure (network, HTTP status, decode).
// It is always retried against a different provider and never surfaced raw.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("trivia source %s transport failure: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedDataError wraps a provider response that decoded but failed
// required-field checks. Retried like TransportError, logged distinctly so a
// misbehaving upstream can be diagnosed per source.
type MalformedDataError struct {
	Source string
	Err    error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("trivia source %s returned malformed data: %v", e.Source, e.Err)
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

// ContentRejected marks a structurally valid draw that failed content safety,
// the ban ledger, or the repeat window. The same source+id pair is never
// retried within a call.
type ContentRejected struct {
	Source   string
	TriviaID string
	Reason   RejectReason
}

func (e *ContentRejected) Error() string {
	return fmt.Sprintf("question %s/%s rejected: %s", e.Source, e.TriviaID, e.Reason)
}

// UnavailableError is the terminal failure after the retry budget is spent.
// It carries the channel, the requested options, and the attempt count.
type UnavailableError struct {
	Channel  string
	Options  FetchOptions
	Attempts int
	LastErr  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("no question available for channel %s after %d attempts (last: %v)", e.Channel, e.Attempts, e.LastErr)
}

func (e *UnavailableError) Unwrap() error { return e.LastErr }
