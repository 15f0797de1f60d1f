package settings

import (
	"context"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	p := NewProvider(nil)
	s := p.Get(context.Background(), "somechannel")

	if !s.TriviaEnabled {
		t.Fatal("trivia should default to enabled")
	}
	if s.BasePoints != 25 {
		t.Fatalf("base points = %d, want 25", s.BasePoints)
	}
	if s.AttemptCap != 2 {
		t.Fatalf("attempt cap = %d, want 2", s.AttemptCap)
	}
	if s.AnswerTTL != 60*time.Second {
		t.Fatalf("answer ttl = %v, want 60s", s.AnswerTTL)
	}
	if s.QueueCap != 50 {
		t.Fatalf("queue cap = %d, want 50", s.QueueCap)
	}
	if s.MinRepeatWindow != 72*time.Hour {
		t.Fatalf("min repeat = %v, want 72h", s.MinRepeatWindow)
	}
	if s.ShinyMultiplier != 8 || s.ShinyBaseProbability != 0.045 || s.ShinyCooldown != 3*time.Hour {
		t.Fatalf("shiny defaults off: %+v", s)
	}
	if s.ToxicMultiplier != 2 || s.ToxicBaseProbability != 0.025 {
		t.Fatalf("toxic defaults off: %+v", s)
	}
	if s.AllowJokeSources {
		t.Fatal("joke sources should default to disallowed")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("TRIVIA_BASE_POINTS", "100")
	t.Setenv("TRIVIA_ANSWER_TTL", "90s")
	t.Setenv("TRIVIA_ENABLED", "false")
	t.Setenv("TRIVIA_SHINY_BASE_PROB", "0.1")

	p := NewProvider(nil)
	s := p.Get(context.Background(), "chan")
	if s.BasePoints != 100 {
		t.Fatalf("base points = %d, want 100", s.BasePoints)
	}
	if s.AnswerTTL != 90*time.Second {
		t.Fatalf("answer ttl = %v, want 90s", s.AnswerTTL)
	}
	if s.TriviaEnabled {
		t.Fatal("expected trivia disabled via env")
	}
	if s.ShinyBaseProbability != 0.1 {
		t.Fatalf("shiny prob = %v, want 0.1", s.ShinyBaseProbability)
	}
}

func TestEnvIgnoresBadValues(t *testing.T) {
	t.Setenv("TRIVIA_BASE_POINTS", "lots")
	t.Setenv("TRIVIA_ANSWER_TTL", "-5s")

	p := NewProvider(nil)
	s := p.Get(context.Background(), "chan")
	if s.BasePoints != 25 {
		t.Fatalf("base points = %d, want default 25", s.BasePoints)
	}
	if s.AnswerTTL != 60*time.Second {
		t.Fatalf("answer ttl = %v, want default 60s", s.AnswerTTL)
	}
}

func TestApplyOverride(t *testing.T) {
	p := NewProvider(nil)
	s := p.Get(context.Background(), "chan")

	applyOverride(&s, "base_points", "50")
	applyOverride(&s, "attempt_cap", "3")
	applyOverride(&s, "answer_ttl", "2m")
	applyOverride(&s, "trivia_enabled", "false")
	applyOverride(&s, "shiny_multiplier", "10")
	applyOverride(&s, "toxic_base_prob", "0.5")
	applyOverride(&s, "allow_jokes", "true")

	if s.BasePoints != 50 || s.AttemptCap != 3 || s.AnswerTTL != 2*time.Minute {
		t.Fatalf("numeric overrides not applied: %+v", s)
	}
	if s.TriviaEnabled {
		t.Fatal("trivia_enabled override not applied")
	}
	if s.ShinyMultiplier != 10 || s.ToxicBaseProbability != 0.5 {
		t.Fatalf("special overrides not applied: %+v", s)
	}
	if !s.AllowJokeSources {
		t.Fatal("allow_jokes override not applied")
	}
}

func TestApplyOverrideIgnoresGarbage(t *testing.T) {
	p := NewProvider(nil)
	s := p.Get(context.Background(), "chan")

	applyOverride(&s, "base_points", "a lot")
	applyOverride(&s, "answer_ttl", "soon")
	applyOverride(&s, "no_such_setting", "1")

	if s.BasePoints != 25 || s.AnswerTTL != 60*time.Second {
		t.Fatalf("garbage values should leave settings alone: %+v", s)
	}
}

func TestGetCachesPerChannel(t *testing.T) {
	p := NewProvider(nil)
	first := p.Get(context.Background(), "chan")

	// Mutating the base after the first read must not change the cached copy.
	p.mu.Lock()
	p.base.BasePoints = 999
	p.mu.Unlock()

	again := p.Get(context.Background(), "chan")
	if again.BasePoints != first.BasePoints {
		t.Fatalf("cached settings changed: %d vs %d", again.BasePoints, first.BasePoints)
	}

	fresh := p.Get(context.Background(), "otherchan")
	if fresh.BasePoints != 999 {
		t.Fatalf("uncached channel should see current base, got %d", fresh.BasePoints)
	}
}

func TestInvalidate(t *testing.T) {
	p := NewProvider(nil)
	p.Get(context.Background(), "one")
	p.Get(context.Background(), "two")

	p.Invalidate("one")
	p.mu.RLock()
	_, oneCached := p.byChan["one"]
	_, twoCached := p.byChan["two"]
	p.mu.RUnlock()
	if oneCached {
		t.Fatal("invalidated channel still cached")
	}
	if !twoCached {
		t.Fatal("other channel dropped by targeted invalidate")
	}

	p.Invalidate("")
	p.mu.RLock()
	n := len(p.byChan)
	p.mu.RUnlock()
	if n != 0 {
		t.Fatalf("empty invalidate should drop all, %d left", n)
	}
}
