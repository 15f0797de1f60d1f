// Package settings serves per-channel game configuration. Global defaults
// come from environment variables; operators override individual values per
// channel through rows in channel_settings. Reads go through an in-process
// cache with explicit invalidation, so the hot paths (every tick, every draw)
// never touch Postgres.
package settings

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"
)

// Settings is the effective game configuration for one channel.
type Settings struct {
	TriviaEnabled bool

	BasePoints int
	AttemptCap int
	AnswerTTL  time.Duration
	QueueCap   int

	MaxRetryCount   int
	MinRepeatWindow time.Duration

	ShinyEnabled         bool
	ShinyMultiplier      int
	ShinyBaseProbability float64
	ShinyCooldown        time.Duration

	ToxicEnabled         bool
	ToxicMultiplier      int
	ToxicBaseProbability float64

	AllowJokeSources bool
}

// defaults reads the global defaults once from the environment.
func defaults() Settings {
	return Settings{
		TriviaEnabled:        envBool("TRIVIA_ENABLED", true),
		BasePoints:           envInt("TRIVIA_BASE_POINTS", 25),
		AttemptCap:           envInt("TRIVIA_ATTEMPT_CAP", 2),
		AnswerTTL:            envDuration("TRIVIA_ANSWER_TTL", 60*time.Second),
		QueueCap:             envInt("TRIVIA_QUEUE_CAP", 50),
		MaxRetryCount:        envInt("TRIVIA_MAX_RETRIES", 5),
		MinRepeatWindow:      envDuration("TRIVIA_MIN_REPEAT", 72*time.Hour),
		ShinyEnabled:         envBool("TRIVIA_SHINY_ENABLED", true),
		ShinyMultiplier:      envInt("TRIVIA_SHINY_MULTIPLIER", 8),
		ShinyBaseProbability: envFloat("TRIVIA_SHINY_BASE_PROB", 0.045),
		ShinyCooldown:        envDuration("TRIVIA_SHINY_COOLDOWN", 3*time.Hour),
		ToxicEnabled:         envBool("TRIVIA_TOXIC_ENABLED", true),
		ToxicMultiplier:      envInt("TRIVIA_TOXIC_MULTIPLIER", 2),
		ToxicBaseProbability: envFloat("TRIVIA_TOXIC_BASE_PROB", 0.025),
		AllowJokeSources:     envBool("TRIVIA_ALLOW_JOKES", false),
	}
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// Provider is the read-through settings cache.
type Provider struct {
	DB *sql.DB

	mu     sync.RWMutex
	base   Settings
	byChan map[string]Settings
}

// NewProvider builds a Provider with env defaults snapshotted at startup.
func NewProvider(db *sql.DB) *Provider {
	return &Provider{DB: db, base: defaults(), byChan: make(map[string]Settings)}
}

// Get returns the effective settings for a channel, loading and caching the
// channel's overrides on first use. A read failure falls back to defaults so
// a flaky database never blocks games from running.
func (p *Provider) Get(ctx context.Context, channel string) Settings {
	p.mu.RLock()
	if s, ok := p.byChan[channel]; ok {
		p.mu.RUnlock()
		return s
	}
	p.mu.RUnlock()

	s := p.base
	if p.DB != nil {
		if err := p.applyOverrides(ctx, channel, &s); err != nil {
			slog.Warn("channel settings load failed, using defaults", slog.String("channel", channel), slog.Any("err", err), slog.String("component", "settings"))
			return s
		}
	}
	p.mu.Lock()
	p.byChan[channel] = s
	p.mu.Unlock()
	return s
}

// Invalidate drops a channel's cached settings; an empty channel drops all.
func (p *Provider) Invalidate(channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if channel == "" {
		p.byChan = make(map[string]Settings)
		return
	}
	delete(p.byChan, channel)
}

func (p *Provider) applyOverrides(ctx context.Context, channel string, s *Settings) error {
	rows, err := p.DB.QueryContext(ctx, `SELECT name, value FROM channel_settings WHERE channel=$1`, channel)
	if err != nil {
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		applyOverride(s, name, value)
	}
	return rows.Err()
}

// applyOverride sets one named setting from its stored text value. Unknown
// names and unparseable values are ignored rather than failing the channel.
func applyOverride(s *Settings, name, value string) {
	setInt := func(dst *int) {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
	setBool := func(dst *bool) {
		if b, err := strconv.ParseBool(value); err == nil {
			*dst = b
		}
	}
	setFloat := func(dst *float64) {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
	setDuration := func(dst *time.Duration) {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			*dst = d
		}
	}
	switch name {
	case "trivia_enabled":
		setBool(&s.TriviaEnabled)
	case "base_points":
		setInt(&s.BasePoints)
	case "attempt_cap":
		setInt(&s.AttemptCap)
	case "answer_ttl":
		setDuration(&s.AnswerTTL)
	case "queue_cap":
		setInt(&s.QueueCap)
	case "max_retries":
		setInt(&s.MaxRetryCount)
	case "min_repeat":
		setDuration(&s.MinRepeatWindow)
	case "shiny_enabled":
		setBool(&s.ShinyEnabled)
	case "shiny_multiplier":
		setInt(&s.ShinyMultiplier)
	case "shiny_base_prob":
		setFloat(&s.ShinyBaseProbability)
	case "shiny_cooldown":
		setDuration(&s.ShinyCooldown)
	case "toxic_enabled":
		setBool(&s.ToxicEnabled)
	case "toxic_multiplier":
		setInt(&s.ToxicMultiplier)
	case "toxic_base_prob":
		setFloat(&s.ToxicBaseProbability)
	case "allow_jokes":
		setBool(&s.AllowJokeSources)
	default:
		slog.Debug("ignoring unknown channel setting", slog.String("name", name), slog.String("component", "settings"))
	}
}

// SetOverride writes one per-channel override and invalidates the cache entry.
func (p *Provider) SetOverride(ctx context.Context, channel, name, value string) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO channel_settings (channel, name, value, updated_at) VALUES ($1,$2,$3,NOW())
		ON CONFLICT(channel, name) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, channel, name, value)
	if err != nil {
		return err
	}
	p.Invalidate(channel)
	return nil
}
