package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RepeatLedger remembers which questions each channel has been served
// recently. Entries are Redis keys whose TTL equals the channel's minimum
// repeat window, so expiry and eligibility are the same thing: if the key
// still exists, the question is too fresh to serve again.
type RepeatLedger struct {
	client *redis.Client

	// windowFor resolves the minimum repeat window for a channel. It is
	// consulted on every write so per-channel settings changes apply to new
	// entries without restarts.
	windowFor func(channel string) time.Duration
}

// NewRepeatLedger builds a ledger over an existing Redis client.
func NewRepeatLedger(client *redis.Client, windowFor func(channel string) time.Duration) (*RepeatLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if windowFor == nil {
		return nil, fmt.Errorf("window resolver cannot be nil")
	}
	return &RepeatLedger{client: client, windowFor: windowFor}, nil
}

func repeatKey(channel, source, triviaID string) string {
	return fmt.Sprintf("trivia:recent:%s:%s:%s", channel, source, triviaID)
}

// MarkServed records that the channel was just served (source, triviaID). The
// key carries the repeat window as its TTL.
func (l *RepeatLedger) MarkServed(ctx context.Context, channel, source, triviaID string) error {
	window := l.windowFor(channel)
	if window <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, repeatKey(channel, source, triviaID), time.Now().UTC().Format(time.RFC3339), window).Err(); err != nil {
		return fmt.Errorf("mark served: %w", err)
	}
	return nil
}

// ServedRecently reports whether (source, triviaID) is still inside the
// channel's repeat window.
func (l *RepeatLedger) ServedRecently(ctx context.Context, channel, source, triviaID string) (bool, error) {
	n, err := l.client.Exists(ctx, repeatKey(channel, source, triviaID)).Result()
	if err != nil {
		return false, fmt.Errorf("check served: %w", err)
	}
	return n > 0, nil
}

// LastServed returns when the channel last saw the question, or the zero time
// when it is outside the window.
func (l *RepeatLedger) LastServed(ctx context.Context, channel, source, triviaID string) (time.Time, error) {
	s, err := l.client.Get(ctx, repeatKey(channel, source, triviaID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get served: %w", err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse served timestamp: %w", err)
	}
	return t, nil
}
