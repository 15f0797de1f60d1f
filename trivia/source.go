package trivia

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Provider is the contract every question source implements. The engine never
// special-cases a concrete provider beyond this interface.
type Provider interface {
	// Name identifies the source; it becomes Question.Source and keys the
	// ban and repeat ledgers.
	Name() string
	// FetchOne returns a single raw question. Transport and decode failures
	// should be returned as-is; the orchestrator classifies them.
	FetchOne(ctx context.Context, opts FetchOptions) (*Question, error)
	// SupportedTypes lists the question variants this source can serve.
	SupportedTypes() []QuestionType
	// IsAvailable reports whether the source can currently serve at all
	// (e.g. a local dataset file is present). Unavailable sources are
	// skipped by selection without counting as failures.
	IsAvailable() bool
	// IsJokeSource marks novelty sources that require an explicit opt-in.
	IsJokeSource() bool
}

// sourceEntry is one registered provider plus its pool-owned state.
type sourceEntry struct {
	provider Provider
	weight   int
	enabled  bool

	// instability is the rolling failure counter backing the circuit
	// breaker. It is owned by the pool, reset at process start, and decayed
	// through DecayInstability.
	instability int
}

// Pool is the registry of question providers and the weighted selector over
// them. Reads vastly outnumber writes; a RWMutex keeps concurrent selections
// cheap while registration and failure bookkeeping serialize.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*sourceEntry
	order   []string // registration order, for deterministic iteration

	// instabilityThreshold is the failure count at which a provider is
	// excluded from selection until its counter decays back under it.
	instabilityThreshold int

	rng  *rand.Rand
	rngM sync.Mutex
}

// NewPool creates an empty pool. A threshold <= 0 disables the breaker.
func NewPool(instabilityThreshold int) *Pool {
	return &Pool{
		entries:              make(map[string]*sourceEntry),
		instabilityThreshold: instabilityThreshold,
		rng:                  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Register adds a provider with a selection weight. Zero or negative weight
// registers the provider disabled; it will never be selected.
func (p *Pool) Register(provider Provider, weight int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := provider.Name()
	if _, exists := p.entries[name]; !exists {
		p.order = append(p.order, name)
	}
	p.entries[name] = &sourceEntry{provider: provider, weight: weight, enabled: weight > 0}
	slog.Info("trivia source registered", slog.String("source", name), slog.Int("weight", weight), slog.String("component", "source_pool"))
}

// SetEnabled toggles a provider without unregistering it.
func (p *Pool) SetEnabled(name string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[name]; ok {
		e.enabled = enabled
	}
}

// Select performs a weighted random draw over providers that are enabled,
// available, type-compatible with opts, not in excluded, and not currently
// tripped by the breaker. An empty eligible set returns ErrNoSourceAvailable.
func (p *Pool) Select(opts FetchOptions, excluded map[string]bool) (Provider, error) {
	p.mu.RLock()
	type candidate struct {
		provider Provider
		weight   int
	}
	var candidates []candidate
	total := 0
	for _, name := range p.order {
		e := p.entries[name]
		if !e.enabled || e.weight <= 0 || excluded[name] {
			continue
		}
		if p.instabilityThreshold > 0 && e.instability >= p.instabilityThreshold {
			continue
		}
		if e.provider.IsJokeSource() && !opts.AllowJokeSources {
			continue
		}
		if !opts.wantsType(e.provider.SupportedTypes()) {
			continue
		}
		if !e.provider.IsAvailable() {
			continue
		}
		candidates = append(candidates, candidate{e.provider, e.weight})
		total += e.weight
	}
	p.mu.RUnlock()

	if total == 0 {
		return nil, ErrNoSourceAvailable
	}
	p.rngM.Lock()
	pick := p.rng.Intn(total)
	p.rngM.Unlock()
	for _, c := range candidates {
		pick -= c.weight
		if pick < 0 {
			return c.provider, nil
		}
	}
	// unreachable while weights sum to total
	return candidates[len(candidates)-1].provider, nil
}

// RecordFailure bumps a provider's instability counter after a transport or
// malformed-data failure. Returns true when the bump tripped the breaker.
func (p *Pool) RecordFailure(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[name]
	if !ok {
		return false
	}
	e.instability++
	tripped := p.instabilityThreshold > 0 && e.instability == p.instabilityThreshold
	if tripped {
		slog.Warn("trivia source excluded after repeated failures",
			slog.String("source", name),
			slog.Int("failures", e.instability),
			slog.String("component", "source_pool"))
	}
	return tripped
}

// RecordSuccess clears a provider's instability counter after a good draw.
func (p *Pool) RecordSuccess(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[name]; ok {
		e.instability = 0
	}
}

// DecayInstability is the explicit decay hook: it decrements every positive
// counter by one. The scheduler calls it periodically so a tripped provider
// re-enters selection instead of staying dead for the process lifetime.
func (p *Pool) DecayInstability() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.instability > 0 {
			e.instability--
		}
	}
}

// Instability reports a provider's current failure counter (for /status).
func (p *Pool) Instability(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.entries[name]; ok {
		return e.instability
	}
	return 0
}

// TrippedSources lists providers currently excluded by the breaker.
func (p *Pool) TrippedSources() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	if p.instabilityThreshold <= 0 {
		return out
	}
	for _, name := range p.order {
		if p.entries[name].instability >= p.instabilityThreshold {
			out = append(out, name)
		}
	}
	return out
}

// Sources lists registered provider names in registration order.
func (p *Pool) Sources() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}
