package trivia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/trivia-tender/telemetry"
)

// BanChecker is the read side of the permanent ban ledger.
type BanChecker interface {
	IsBanned(ctx context.Context, triviaID, source string) (bool, error)
}

// RepeatRecorder tracks which questions a channel has seen recently so games
// do not repeat themselves inside the configured window.
type RepeatRecorder interface {
	ServedRecently(ctx context.Context, channel, source, triviaID string) (bool, error)
	MarkServed(ctx context.Context, channel, source, triviaID string) error
}

// Orchestrator composes the pool, normalizer, scanner, and ledgers into the
// one public fetch path. Every draw is fully validated before it is returned;
// a rejected draw burns one attempt and the next attempt may pick any
// provider that has not failed during this call.
type Orchestrator struct {
	Pool       *Pool
	Normalizer *Normalizer
	Scanner    *Scanner
	Bans       BanChecker
	Repeats    RepeatRecorder

	// MaxRetries bounds attempts per FetchQuestion call.
	MaxRetries int
	// FetchTimeout bounds a single provider call so a stalled upstream
	// fails closed instead of stalling the scheduler tick.
	FetchTimeout time.Duration
}

// FetchQuestion draws, cleans, and validates one question for the given
// options. It fails with *UnavailableError once MaxRetries attempts have been
// rejected; it never returns a partially validated question.
func (o *Orchestrator) FetchQuestion(ctx context.Context, opts FetchOptions) (*Question, error) {
	retries := o.MaxRetries
	if opts.MaxRetries > 0 {
		retries = opts.MaxRetries
	}
	if retries <= 0 {
		retries = 5
	}
	timeout := o.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := slog.Default().With(slog.String("channel", opts.Channel), slog.String("component", "trivia_fetch"))

	failedProviders := make(map[string]bool)
	rejectedDraws := make(map[string]bool) // source+"/"+id pairs never retried
	var lastErr error

	start := time.Now()
	for attempt := 1; attempt <= retries; attempt++ {
		provider, err := o.Pool.Select(opts, failedProviders)
		if err != nil {
			// Nothing eligible left; spending more attempts cannot help.
			lastErr = err
			logger.Warn("no eligible trivia source", slog.Int("attempt", attempt))
			return nil, &UnavailableError{Channel: opts.Channel, Options: opts, Attempts: attempt, LastErr: lastErr}
		}
		source := provider.Name()

		q, err := o.fetchOne(ctx, provider, opts, timeout)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				// The caller went away mid-fetch; the provider is not at
				// fault and must not accrue instability.
				logger.Warn("fetch abandoned, caller context done", slog.String("source", source), slog.Int("attempt", attempt), slog.Any("err", err))
				return nil, &UnavailableError{Channel: opts.Channel, Options: opts, Attempts: attempt, LastErr: lastErr}
			}
			failedProviders[source] = true
			o.Pool.RecordFailure(source)
			var malformed *MalformedDataError
			if errors.As(err, &malformed) {
				telemetry.CountFetchReject("malformed_data")
				logger.Warn("source returned malformed data", slog.String("source", source), slog.Int("attempt", attempt), slog.Any("err", err))
			} else {
				telemetry.CountFetchReject("transport")
				logger.Warn("source fetch failed", slog.String("source", source), slog.Int("attempt", attempt), slog.Any("err", err))
			}
			continue
		}

		if reason, rejected := o.vet(ctx, q, opts, rejectedDraws); rejected {
			lastErr = &ContentRejected{Source: q.Source, TriviaID: q.TriviaID, Reason: reason}
			rejectedDraws[q.Source+"/"+q.TriviaID] = true
			telemetry.CountFetchReject(string(reason))
			logger.Info("draw rejected", slog.String("source", q.Source), slog.String("trivia_id", q.TriviaID), slog.String("reason", string(reason)), slog.Int("attempt", attempt))
			continue
		}

		o.Pool.RecordSuccess(source)
		if err := o.Repeats.MarkServed(ctx, opts.Channel, q.Source, q.TriviaID); err != nil {
			logger.Warn("repeat ledger write failed", slog.Any("err", err))
		}
		telemetry.CountFetchSuccess(source)
		telemetry.ObserveFetchDuration(time.Since(start))
		logger.Debug("question approved", slog.String("source", q.Source), slog.String("trivia_id", q.TriviaID), slog.Int("attempt", attempt))
		return q, nil
	}
	return nil, &UnavailableError{Channel: opts.Channel, Options: opts, Attempts: retries, LastErr: lastErr}
}

// fetchOne performs the raw provider call plus normalization and the
// required-field checks. Errors from here count against the provider.
func (o *Orchestrator) fetchOne(ctx context.Context, provider Provider, opts FetchOptions, timeout time.Duration) (*Question, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	q, err := provider.FetchOne(fctx, opts)
	if err != nil {
		return nil, &TransportError{Source: provider.Name(), Err: err}
	}
	if q == nil {
		return nil, &MalformedDataError{Source: provider.Name(), Err: errors.New("provider returned no question")}
	}
	if q.Source == "" {
		q.Source = provider.Name()
	}

	q.Prompt = o.Normalizer.Clean(q.Prompt)
	q.Category = o.Normalizer.Clean(q.Category)
	for i, r := range q.Responses {
		c := o.Normalizer.Clean(r)
		if c == "" {
			// Dropping the entry would shift every later index out from
			// under CorrectIndices, so the whole draw is rejected.
			return nil, &MalformedDataError{Source: q.Source, Err: fmt.Errorf("response %d normalized to empty", i)}
		}
		q.Responses[i] = c
	}
	q.CorrectAnswers = o.Normalizer.CleanAll(q.CorrectAnswers)
	if q.Type == TypeFreeAnswer {
		q.CleanedAnswers = q.CleanedAnswers[:0]
		for _, a := range q.CorrectAnswers {
			if c := CleanAnswer(a); c != "" {
				q.CleanedAnswers = append(q.CleanedAnswers, c)
			}
		}
		if len(q.CleanedAnswers) == 0 {
			return nil, &MalformedDataError{Source: q.Source, Err: errors.New("free answer question has no usable answers")}
		}
	}
	if err := q.Validate(); err != nil {
		return nil, &MalformedDataError{Source: q.Source, Err: err}
	}
	return q, nil
}

// vet runs the content and ledger checks over an already well-formed draw.
func (o *Orchestrator) vet(ctx context.Context, q *Question, opts FetchOptions, rejectedDraws map[string]bool) (RejectReason, bool) {
	if rejectedDraws[q.Source+"/"+q.TriviaID] {
		// Same source+id came back inside this call; the prior verdict
		// stands without re-scanning.
		return RejectRecentRepeat, true
	}

	fields := make([]string, 0, 3+len(q.Responses)+len(q.CorrectAnswers))
	fields = append(fields, q.Prompt, q.Category)
	fields = append(fields, q.Responses...)
	fields = append(fields, q.CorrectAnswers...)
	switch o.Scanner.ScanAll(fields) {
	case VerdictBanned:
		return RejectBannedWord, true
	case VerdictMalformed:
		return RejectMalformedText, true
	}

	banned, err := o.Bans.IsBanned(ctx, q.TriviaID, q.Source)
	if err != nil {
		// Fail closed: an unreadable ban ledger must not approve a draw.
		slog.Warn("ban ledger read failed", slog.Any("err", err), slog.String("component", "trivia_fetch"))
		return RejectBannedID, true
	}
	if banned {
		return RejectBannedID, true
	}

	recent, err := o.Repeats.ServedRecently(ctx, opts.Channel, q.Source, q.TriviaID)
	if err != nil {
		slog.Warn("repeat ledger read failed", slog.Any("err", err), slog.String("component", "trivia_fetch"))
		return RejectRecentRepeat, true
	}
	if recent {
		return RejectRecentRepeat, true
	}
	return "", false
}
