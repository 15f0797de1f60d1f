package game

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/trivia-tender/db"
	"github.com/onnwee/trivia-tender/settings"
	"github.com/onnwee/trivia-tender/telemetry"
	"github.com/onnwee/trivia-tender/trivia"
)

// OutputSink receives formatted prompts and results with their channel
// context. The engine stays delivery-agnostic; chat wiring lives elsewhere.
type OutputSink interface {
	Send(ctx context.Context, channel, message string) error
}

// OutcomeScorer settles one submission into an Outcome. *Scorer is the
// production implementation.
type OutcomeScorer interface {
	Score(ctx context.Context, q *trivia.Question, sub Submission, req *Request, status SpecialStatus) (Outcome, error)
}

// Scheduler drives the whole game loop from one recurring tick: it resolves
// expired answer windows, pops ready queue entries for idle channels, and
// starts game instances. The one-active-instance-per-channel invariant
// serializes all per-channel mutation; the scheduler's own mutex only guards
// the active map.
type Scheduler struct {
	Queue        *Queue
	Orchestrator *trivia.Orchestrator
	Special      *Calculator
	Scorer       OutcomeScorer
	Settings     *settings.Provider
	Sink         OutputSink
	Pool         *trivia.Pool

	// DB is optional; when set, a heartbeat timestamp is recorded in kv about
	// once a minute for the status endpoint.
	DB *sql.DB

	// Interval between ticks; TRIVIA_TICK_INTERVAL overrides, default 1s.
	Interval time.Duration

	mu        sync.Mutex
	runCtx    context.Context
	active    map[string]*Instance
	lastDecay time.Time
}

// Start runs the scheduler loop until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	interval := s.Interval
	if v := os.Getenv("TRIVIA_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	if interval <= 0 {
		interval = time.Second
	}
	slog.Info("game scheduler starting", slog.Duration("interval", interval), slog.String("component", "scheduler"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("game scheduler stopped", slog.String("component", "scheduler"))
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one scheduling pass. It never blocks on network or storage
// beyond the orchestrator's own timeouts because instance starts run on their
// own goroutines.
func (s *Scheduler) tick(ctx context.Context) {
	if telemetry.SchedulerTicks != nil {
		telemetry.SchedulerTicks.Inc()
	}
	s.resolveTimeouts(ctx)

	ready := s.Queue.Pop(s.ActiveChannels())
	for _, e := range ready {
		s.startEntry(e)
	}

	s.decay(ctx)
	telemetry.SetQueueDepth(s.Queue.TotalSize())
	s.mu.Lock()
	telemetry.SetActiveChannels(len(s.active))
	s.mu.Unlock()
	if s.Pool != nil {
		telemetry.SetTrippedSources(len(s.Pool.TrippedSources()))
	}
}

// decay runs the pool's instability decay hook about once a minute so a
// tripped provider eventually re-enters selection. The same cadence records
// the scheduler heartbeat.
func (s *Scheduler) decay(ctx context.Context) {
	s.mu.Lock()
	due := time.Since(s.lastDecay) >= time.Minute
	if due {
		s.lastDecay = time.Now()
	}
	s.mu.Unlock()
	if !due {
		return
	}
	if s.Pool != nil {
		s.Pool.DecayInstability()
	}
	if s.DB != nil {
		db.SetKV(ctx, s.DB, "job_scheduler_last", time.Now().UTC().Format(time.RFC3339))
	}
}

// Submit expands a request into the queue and, when the channel is idle,
// starts the first game immediately. Settings gaps on the request are filled
// from the channel's effective configuration.
func (s *Scheduler) Submit(ctx context.Context, req *Request) (EnqueueResult, error) {
	st := s.Settings.Get(ctx, req.Channel)
	if !st.TriviaEnabled {
		return EnqueueResult{}, fmt.Errorf("trivia is disabled for channel %s", req.Channel)
	}
	fillFromSettings(req, st)

	res, immediate := s.Queue.Enqueue(req, s.isActive(req.Channel), st.QueueCap)
	if immediate != nil {
		s.startEntry(immediate)
	}
	telemetry.SetQueueDepth(s.Queue.TotalSize())
	return res, nil
}

func fillFromSettings(req *Request, st settings.Settings) {
	if req.AttemptCap <= 0 {
		req.AttemptCap = st.AttemptCap
	}
	if req.BasePoints <= 0 {
		req.BasePoints = st.BasePoints
	}
	if req.AnswerTTL <= 0 {
		req.AnswerTTL = st.AnswerTTL
	}
	if req.ShinyMultiplier <= 0 {
		req.ShinyMultiplier = st.ShinyMultiplier
	}
	if req.ToxicMultiplier <= 0 {
		req.ToxicMultiplier = st.ToxicMultiplier
	}
	req.ShinyEnabled = req.ShinyEnabled || st.ShinyEnabled
	req.ToxicEnabled = req.ToxicEnabled || st.ToxicEnabled
}

// gameCtx is the context game instances run on. Chat handlers cancel their
// request context as soon as Submit returns, so an in-flight fetch must bind
// to the scheduler's lifetime instead of the caller's.
func (s *Scheduler) gameCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// startEntry claims the channel and launches the instance on its own
// goroutine. If the channel turned active between pop and claim, the entry
// goes back to the front of its queue.
func (s *Scheduler) startEntry(e *Entry) {
	channel := e.Request.Channel
	s.mu.Lock()
	if s.active == nil {
		s.active = make(map[string]*Instance)
	}
	if _, busy := s.active[channel]; busy {
		s.mu.Unlock()
		s.Queue.requeue(e)
		return
	}
	// Placeholder claim so no second entry starts while the fetch runs.
	s.active[channel] = nil
	s.mu.Unlock()

	go s.runEntry(s.gameCtx(), e)
}

func (s *Scheduler) runEntry(ctx context.Context, e *Entry) {
	req := e.Request
	logger := slog.Default().With(slog.String("channel", req.Channel), slog.String("component", "scheduler"))
	st := s.Settings.Get(ctx, req.Channel)

	opts := trivia.FetchOptions{
		Channel:          req.Channel,
		ChannelID:        req.ChannelID,
		AllowJokeSources: st.AllowJokeSources,
		MaxRetries:       st.MaxRetryCount,
	}
	q, err := s.Orchestrator.FetchQuestion(ctx, opts)
	if err != nil {
		// Terminal for this entry; the active claim is always released.
		s.clearActive(req.Channel)
		if telemetry.FetchExhausted != nil {
			telemetry.FetchExhausted.Inc()
		}
		logger.Error("question fetch failed, dropping game entry", slog.Any("err", err))
		s.say(ctx, req.Channel, "No trivia question could be fetched right now, sorry!")
		return
	}

	status := StatusNone
	if req.ShinyEnabled || req.ToxicEnabled {
		status = s.Special.Status(ctx, st, req.ChannelID, req.RequestedBy)
	}
	inst := newInstance(e, q, status, st)

	s.mu.Lock()
	s.active[req.Channel] = inst
	s.mu.Unlock()

	if telemetry.GamesStarted != nil {
		telemetry.GamesStarted.Inc()
	}
	logger.Info("game started",
		slog.String("instance_id", inst.ID),
		slog.String("source", q.Source),
		slog.String("trivia_id", q.TriviaID),
		slog.String("status", status.String()),
		slog.Time("deadline", inst.Deadline))
	s.say(ctx, req.Channel, formatPrompt(inst))
}

// SubmitAnswer routes one chat answer to the channel's open instance.
func (s *Scheduler) SubmitAnswer(ctx context.Context, channel, userID, userName, text string) error {
	if telemetry.AnswersSubmitted != nil {
		telemetry.AnswersSubmitted.Inc()
	}
	inst := s.Active(channel)
	if inst == nil || inst.Resolved() || inst.Expired(time.Now().UTC()) {
		return ErrNoActiveGame
	}
	req := inst.Entry.Request
	if err := inst.registerAttempt(userID, req.AttemptCap); err != nil {
		return err
	}

	sub := Submission{UserID: userID, UserName: userName, Text: text}
	correct := Evaluate(inst.Question, text)
	if correct {
		// Claim the resolution before the score write so the timeout pass
		// can never settle the same instance a second time; the loser of
		// the race persists nothing.
		if !inst.resolve() {
			return ErrNoActiveGame
		}
		s.clearActive(channel)
	}

	out, err := s.Scorer.Score(ctx, inst.Question, sub, req, inst.Status)
	if err != nil {
		return fmt.Errorf("score submission: %w", err)
	}

	if correct {
		telemetry.CountGameResolved("correct")
		telemetry.ObserveAnswerLatency(time.Since(inst.StartedAt))
		s.say(ctx, channel, formatWin(inst, out))
		return nil
	}
	if inst.Status == StatusToxic {
		s.say(ctx, channel, fmt.Sprintf("@%s wrong! The toxic question bites: %d points.", out.UserName, out.PointsDelta))
	}
	return nil
}

// resolveTimeouts settles every active instance whose answer window closed.
func (s *Scheduler) resolveTimeouts(ctx context.Context) {
	now := time.Now().UTC()
	var expired []*Instance
	s.mu.Lock()
	for _, inst := range s.active {
		if inst != nil && inst.Expired(now) {
			expired = append(expired, inst)
		}
	}
	s.mu.Unlock()

	for _, inst := range expired {
		if !inst.resolve() {
			continue
		}
		req := inst.Entry.Request
		s.clearActive(req.Channel)
		// Timeouts score like an incorrect answer; with no participant
		// there is nothing to persist, but toxic still announces.
		out, err := s.Scorer.Score(ctx, inst.Question, Submission{Timeout: true}, req, inst.Status)
		if err != nil {
			slog.Warn("timeout scoring failed", slog.Any("err", err), slog.String("component", "scheduler"))
		}
		telemetry.CountGameResolved("timeout")
		slog.Info("game timed out",
			slog.String("channel", req.Channel),
			slog.String("instance_id", inst.ID),
			slog.String("component", "scheduler"))
		s.say(ctx, req.Channel, formatTimeout(inst, out))
	}
}

// Active returns the channel's running instance, or nil.
func (s *Scheduler) Active(channel string) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[channel]
}

func (s *Scheduler) isActive(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[channel]
	return ok
}

// ActiveChannels snapshots which channels are mid-game.
func (s *Scheduler) ActiveChannels() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.active))
	for ch := range s.active {
		out[ch] = true
	}
	return out
}

func (s *Scheduler) clearActive(channel string) {
	s.mu.Lock()
	delete(s.active, channel)
	s.mu.Unlock()
}

// ClearChannel drops the channel's pending backlog (operator cancellation).
// The running instance, if any, finishes normally.
func (s *Scheduler) ClearChannel(channel string) int {
	n := s.Queue.Clear(channel)
	telemetry.SetQueueDepth(s.Queue.TotalSize())
	return n
}

func (s *Scheduler) say(ctx context.Context, channel, message string) {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.Send(ctx, channel, message); err != nil {
		slog.Warn("output sink send failed", slog.String("channel", channel), slog.Any("err", err), slog.String("component", "scheduler"))
	}
}

// formatPrompt renders the question announcement.
func formatPrompt(inst *Instance) string {
	q := inst.Question
	var b strings.Builder
	switch inst.Status {
	case StatusShiny:
		b.WriteString("✨ SHINY question! ")
	case StatusToxic:
		b.WriteString("☠️ TOXIC question, wrong answers cost points! ")
	}
	if q.Category != "" {
		fmt.Fprintf(&b, "[%s] ", q.Category)
	}
	b.WriteString(q.Prompt)
	switch q.Type {
	case trivia.TypeMultipleChoice:
		for i, r := range q.Responses {
			fmt.Fprintf(&b, " %c) %s", 'A'+i, r)
		}
	case trivia.TypeTrueFalse:
		b.WriteString(" (true/false)")
	}
	fmt.Fprintf(&b, " — %d seconds!", int(inst.Settings.AnswerTTL.Seconds()))
	return b.String()
}

func formatWin(inst *Instance, out Outcome) string {
	if inst.Status == StatusShiny {
		return fmt.Sprintf("✨ @%s got it for %d shiny points! (total %d)", out.UserName, out.PointsDelta, out.NewTotal)
	}
	return fmt.Sprintf("@%s got it! +%d points (total %d)", out.UserName, out.PointsDelta, out.NewTotal)
}

func formatTimeout(inst *Instance, _ Outcome) string {
	q := inst.Question
	switch q.Type {
	case trivia.TypeTrueFalse:
		return fmt.Sprintf("Time's up! The answer was %t.", q.CorrectBool)
	case trivia.TypeMultipleChoice:
		if len(q.CorrectIndices) > 0 {
			i := q.CorrectIndices[0]
			return fmt.Sprintf("Time's up! The answer was %c) %s.", 'A'+i, q.Responses[i])
		}
	case trivia.TypeFreeAnswer:
		if len(q.CorrectAnswers) > 0 {
			return fmt.Sprintf("Time's up! The answer was %q.", q.CorrectAnswers[0])
		}
	}
	return "Time's up!"
}
