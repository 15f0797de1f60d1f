package trivia

import (
	"context"
	"errors"
	"testing"
)

type fakeBans struct {
	banned map[string]bool
	err    error
}

func (f *fakeBans) IsBanned(_ context.Context, triviaID, source string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.banned[source+"/"+triviaID], nil
}

type fakeRepeats struct {
	served map[string]bool
	err    error
	marked []string
}

func (f *fakeRepeats) ServedRecently(_ context.Context, channel, source, triviaID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.served[channel+"/"+source+"/"+triviaID], nil
}

func (f *fakeRepeats) MarkServed(_ context.Context, channel, source, triviaID string) error {
	f.marked = append(f.marked, channel+"/"+source+"/"+triviaID)
	return nil
}

func goodQuestion(source, id string) *Question {
	return &Question{
		TriviaID:       id,
		Source:         source,
		Type:           TypeMultipleChoice,
		Prompt:         "What color is the sky?",
		Responses:      []string{"Blue", "Green"},
		CorrectIndices: []int{0},
	}
}

func newOrchestrator(pool *Pool, bans *fakeBans, repeats *fakeRepeats) *Orchestrator {
	if bans == nil {
		bans = &fakeBans{}
	}
	if repeats == nil {
		repeats = &fakeRepeats{}
	}
	return &Orchestrator{
		Pool:       pool,
		Normalizer: NewNormalizer(nil),
		Scanner:    NewScanner([]string{"cursed"}),
		Bans:       bans,
		Repeats:    repeats,
		MaxRetries: 3,
	}
}

func TestFetchQuestionHappyPath(t *testing.T) {
	pool := NewPool(3)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return goodQuestion("src", "q1"), nil
	}
	pool.Register(prov, 5)
	repeats := &fakeRepeats{}
	o := newOrchestrator(pool, nil, repeats)

	q, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if q.TriviaID != "q1" || q.Source != "src" {
		t.Fatalf("got %s/%s", q.Source, q.TriviaID)
	}
	if len(repeats.marked) != 1 || repeats.marked[0] != "chan/src/q1" {
		t.Fatalf("MarkServed calls = %v", repeats.marked)
	}
}

func TestFetchQuestionNormalizesFields(t *testing.T) {
	pool := NewPool(3)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		q := goodQuestion("src", "q1")
		q.Prompt = "Who wrote <i>Dune&quot;?</i>"
		return q, nil
	}
	pool.Register(prov, 5)
	o := newOrchestrator(pool, nil, nil)
	o.MaxRetries = 1

	// The prompt decodes to an odd number of straight quotes, so it must be
	// rejected as malformed rather than served raw.
	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var rejected *ContentRejected
	if !errors.As(unavailable.LastErr, &rejected) || rejected.Reason != RejectMalformedText {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
}

func TestFetchQuestionStopsAtMaxRetries(t *testing.T) {
	pool := NewPool(10) // high threshold so the breaker stays out of the way
	prov := newFake("flaky")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return goodQuestion("flaky", "bad"), nil
	}
	pool.Register(prov, 5)
	bans := &fakeBans{banned: map[string]bool{"flaky/bad": true}}
	o := newOrchestrator(pool, bans, nil)

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", unavailable.Attempts)
	}
	if prov.fetches != 3 {
		t.Fatalf("provider called %d times, want 3", prov.fetches)
	}
}

func TestFetchQuestionSkipsFailedProviderWithinCall(t *testing.T) {
	pool := NewPool(10)
	broken := newFake("broken")
	broken.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return nil, errors.New("connection refused")
	}
	healthy := newFake("healthy")
	healthy.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return goodQuestion("healthy", "q2"), nil
	}
	pool.Register(broken, 100)
	pool.Register(healthy, 1)
	o := newOrchestrator(pool, nil, nil)

	// Keep drawing until the broken provider is hit first, then verify the
	// second attempt lands on the healthy one.
	for i := 0; i < 50; i++ {
		q, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if q.Source != "healthy" {
			t.Fatalf("approved question from %q", q.Source)
		}
	}
	if broken.fetches == 0 {
		t.Fatal("broken provider never drawn despite dominant weight")
	}
}

func TestFetchQuestionClassifiesTransportFailure(t *testing.T) {
	pool := NewPool(2)
	prov := newFake("down")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return nil, errors.New("dial tcp: timeout")
	}
	pool.Register(prov, 5)
	o := newOrchestrator(pool, nil, nil)

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var transport *TransportError
	if !errors.As(unavailable.LastErr, &transport) || transport.Source != "down" {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
	// One failure excluded the provider for this call; the second attempt
	// found the pool empty before the retry budget was spent.
	if unavailable.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", unavailable.Attempts)
	}
	if got := pool.Instability("down"); got != 1 {
		t.Fatalf("instability = %d", got)
	}
}

func TestFetchQuestionCallerCancelNotProviderFailure(t *testing.T) {
	pool := NewPool(2)
	prov := newFake("slow")
	prov.fetch = func(ctx context.Context, _ FetchOptions) (*Question, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	pool.Register(prov, 5)
	o := newOrchestrator(pool, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.FetchQuestion(ctx, FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retries once the caller is gone)", unavailable.Attempts)
	}
	// Abandonment is the caller's doing, never the provider's.
	if got := pool.Instability("slow"); got != 0 {
		t.Fatalf("instability = %d", got)
	}
}

func TestFetchQuestionRejectsEmptyResponse(t *testing.T) {
	pool := NewPool(10)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return &Question{
			TriviaID:       "q5",
			Source:         "src",
			Type:           TypeMultipleChoice,
			Prompt:         "Which city hosted the 2012 Olympics?",
			Responses:      []string{"London", "<b></b>", "Paris", "Berlin"},
			CorrectIndices: []int{2},
		}, nil
	}
	pool.Register(prov, 5)
	o := newOrchestrator(pool, nil, nil)
	o.MaxRetries = 1

	// Compacting the markup-only response would silently re-point the answer
	// key at the wrong entry, so the whole draw must be rejected.
	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var malformed *MalformedDataError
	if !errors.As(unavailable.LastErr, &malformed) {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
}

func TestFetchQuestionPerCallRetryOverride(t *testing.T) {
	pool := NewPool(10)
	for _, name := range []string{"a", "b", "c", "d"} {
		prov := newFake(name)
		prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
			return nil, errors.New("offline")
		}
		pool.Register(prov, 5)
	}
	o := newOrchestrator(pool, nil, nil)
	o.MaxRetries = 4

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan", MaxRetries: 2})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", unavailable.Attempts)
	}
}

func TestFetchQuestionRejectsBannedWord(t *testing.T) {
	pool := NewPool(10)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		q := goodQuestion("src", "q3")
		q.Prompt = "Is this cursed content?"
		return q, nil
	}
	pool.Register(prov, 5)
	o := newOrchestrator(pool, nil, nil)
	o.MaxRetries = 1

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var rejected *ContentRejected
	if !errors.As(unavailable.LastErr, &rejected) || rejected.Reason != RejectBannedWord {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
	// Content rejection is not a provider failure.
	if got := pool.Instability("src"); got != 0 {
		t.Fatalf("instability = %d", got)
	}
}

func TestFetchQuestionRejectsRecentRepeat(t *testing.T) {
	pool := NewPool(10)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return goodQuestion("src", "seen"), nil
	}
	pool.Register(prov, 5)
	repeats := &fakeRepeats{served: map[string]bool{"chan/src/seen": true}}
	o := newOrchestrator(pool, nil, repeats)

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var rejected *ContentRejected
	if !errors.As(unavailable.LastErr, &rejected) || rejected.Reason != RejectRecentRepeat {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
	if len(repeats.marked) != 0 {
		t.Fatalf("rejected draw marked as served: %v", repeats.marked)
	}
}

func TestFetchQuestionFailsClosedOnLedgerError(t *testing.T) {
	pool := NewPool(10)
	prov := newFake("src")
	prov.fetch = func(context.Context, FetchOptions) (*Question, error) {
		return goodQuestion("src", "q4"), nil
	}
	pool.Register(prov, 5)
	bans := &fakeBans{err: errors.New("db down")}
	o := newOrchestrator(pool, bans, nil)
	o.MaxRetries = 1

	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var rejected *ContentRejected
	if !errors.As(unavailable.LastErr, &rejected) || rejected.Reason != RejectBannedID {
		t.Fatalf("LastErr = %v", unavailable.LastErr)
	}
}

func TestFetchQuestionEmptyPoolIsTerminal(t *testing.T) {
	o := newOrchestrator(NewPool(3), nil, nil)
	_, err := o.FetchQuestion(context.Background(), FetchOptions{Channel: "chan"})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retries against an empty pool)", unavailable.Attempts)
	}
}
