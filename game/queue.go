package game

import (
	"log/slog"
	"sync"
)

// EnqueueResult reports what one Enqueue call did to a channel's queue.
type EnqueueResult struct {
	AmountAdded int
	OldSize     int
	NewSize     int
}

// Queue holds pending game entries per channel. Each channel's backlog is a
// FIFO capped at the channel's configured limit; hitting the cap silently
// truncates the expansion rather than erroring, so an over-eager request
// still queues what fits.
type Queue struct {
	mu        sync.Mutex
	byChannel map[string][]*Entry
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{byChannel: make(map[string][]*Entry)}
}

// Enqueue expands req into queue entries, at most once per request. When the
// channel is idle one entry is handed back immediately to run instead of
// being queued, so a request for N games queues N-1. capacity bounds the
// channel's backlog; a request against a full queue returns AmountAdded 0
// without error.
func (q *Queue) Enqueue(req *Request, channelActive bool, capacity int) (EnqueueResult, *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := len(q.byChannel[req.Channel])
	res := EnqueueResult{OldSize: old, NewSize: old}
	if req.NumberOfGames < 1 {
		return res, nil
	}
	if !req.consume() {
		// Re-submission of an already consumed request adds nothing.
		slog.Debug("ignoring consumed game request", slog.String("request_id", req.ID), slog.String("channel", req.Channel), slog.String("component", "game_queue"))
		return res, nil
	}

	toQueue := req.NumberOfGames
	var immediate *Entry
	if !channelActive {
		immediate = newEntry(req)
		toQueue--
	}
	for i := 0; i < toQueue; i++ {
		if capacity > 0 && len(q.byChannel[req.Channel]) >= capacity {
			break
		}
		q.byChannel[req.Channel] = append(q.byChannel[req.Channel], newEntry(req))
		res.AmountAdded++
	}
	res.NewSize = len(q.byChannel[req.Channel])
	return res, immediate
}

// Pop returns at most one ready entry per channel that is not currently
// active. Returned entries are removed from their queues.
func (q *Queue) Pop(activeChannels map[string]bool) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ready []*Entry
	for channel, entries := range q.byChannel {
		if len(entries) == 0 || activeChannels[channel] {
			continue
		}
		ready = append(ready, entries[0])
		rest := entries[1:]
		if len(rest) == 0 {
			delete(q.byChannel, channel)
		} else {
			q.byChannel[channel] = rest
		}
	}
	return ready
}

// requeue puts an entry back at the front of its channel's queue. Used when
// a popped entry loses the activation race.
func (q *Queue) requeue(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := e.Request.Channel
	q.byChannel[ch] = append([]*Entry{e}, q.byChannel[ch]...)
}

// Size returns a channel's pending entry count.
func (q *Queue) Size(channel string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byChannel[channel])
}

// TotalSize returns the pending entry count across all channels.
func (q *Queue) TotalSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, entries := range q.byChannel {
		total += len(entries)
	}
	return total
}

// Clear drops a channel's entire backlog and returns how many entries were
// removed. Operator cancellation path; the channel's running instance, if
// any, is unaffected.
func (q *Queue) Clear(channel string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.byChannel[channel])
	delete(q.byChannel, channel)
	if n > 0 {
		slog.Info("cleared game queue", slog.String("channel", channel), slog.Int("removed", n), slog.String("component", "game_queue"))
	}
	return n
}

// Channels lists channels that currently have pending entries.
func (q *Queue) Channels() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.byChannel))
	for ch := range q.byChannel {
		out = append(out, ch)
	}
	return out
}
