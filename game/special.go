package game

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/onnwee/trivia-tender/settings"
	"github.com/onnwee/trivia-tender/telemetry"
)

// SpecialStatus is the modifier attached to a game instance at draw time. It
// never changes afterward.
type SpecialStatus int

const (
	StatusNone SpecialStatus = iota
	StatusShiny
	StatusToxic
)

func (s SpecialStatus) String() string {
	switch s {
	case StatusShiny:
		return "shiny"
	case StatusToxic:
		return "toxic"
	}
	return "none"
}

// LeaderboardProvider resolves a user's rank on a channel's points
// leaderboard. Rank 1 is the top; 0 means unranked.
type LeaderboardProvider interface {
	Rank(ctx context.Context, channelID, userID string) (int, error)
}

// shinyRankFactors dampen the shiny probability for leaderboard ranks 1-10.
// The factor rises toward 1.0 as rank worsens, so the users already on top
// are the least likely to also draw the bonus.
var shinyRankFactors = [10]float64{0.50, 0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95}

// Calculator decides shiny and toxic statuses. Occurrence counts and
// most-recent timestamps are persisted through an atomic upsert before a
// grant is returned, so a concurrent duplicate check for the same user
// observes the grant instead of a stale row.
type Calculator struct {
	DB          *sql.DB
	Leaderboard LeaderboardProvider

	// Rand is the uniform [0,1) draw, overridable in tests.
	Rand func() float64
}

func (c *Calculator) draw() float64 {
	if c.Rand != nil {
		return c.Rand()
	}
	return rand.Float64()
}

// IsShiny decides whether this instance is shiny for the given user.
func (c *Calculator) IsShiny(ctx context.Context, st settings.Settings, channelID, userID string) (bool, error) {
	if !st.ShinyEnabled || userID == "" || st.ShinyBaseProbability <= 0 {
		return false, nil
	}

	prob := st.ShinyBaseProbability
	rank := 0
	if c.Leaderboard != nil {
		var err error
		rank, err = c.Leaderboard.Rank(ctx, channelID, userID)
		if err != nil {
			slog.Warn("leaderboard rank lookup failed", slog.Any("err", err), slog.String("component", "special_calc"))
			rank = 0
		}
	}
	if rank >= 1 && rank <= len(shinyRankFactors) {
		prob *= shinyRankFactors[rank-1]
	}

	if c.draw() > prob {
		return false, nil
	}

	// The upsert both persists the occurrence and enforces the cooldown:
	// it refuses to touch a row whose last grant is still inside the
	// window, so a cooldown violation (or a concurrent duplicate) shows up
	// as zero affected rows.
	res, err := c.DB.ExecContext(ctx, `INSERT INTO special_occurrences (channel_id, user_id, kind, count, last_granted)
		VALUES ($1,$2,'shiny',1,NOW())
		ON CONFLICT(channel_id, user_id, kind) DO UPDATE SET count=special_occurrences.count+1, last_granted=NOW()
		WHERE special_occurrences.last_granted <= NOW() - make_interval(secs => $3)`,
		channelID, userID, st.ShinyCooldown.Seconds())
	if err != nil {
		return false, fmt.Errorf("persist shiny occurrence: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		slog.Debug("shiny draw passed but user is in cooldown", slog.String("user_id", userID), slog.String("component", "special_calc"))
		return false, nil
	}
	if telemetry.ShinyGranted != nil {
		telemetry.ShinyGranted.Inc()
	}
	return true, nil
}

// IsToxic decides whether this instance is toxic. Toxic is channel-scoped:
// the draw does not depend on any user.
func (c *Calculator) IsToxic(ctx context.Context, st settings.Settings, channelID string) (bool, error) {
	if !st.ToxicEnabled || st.ToxicBaseProbability <= 0 {
		return false, nil
	}
	if c.draw() > st.ToxicBaseProbability {
		return false, nil
	}
	_, err := c.DB.ExecContext(ctx, `INSERT INTO special_occurrences (channel_id, user_id, kind, count, last_granted)
		VALUES ($1,'','toxic',1,NOW())
		ON CONFLICT(channel_id, user_id, kind) DO UPDATE SET count=special_occurrences.count+1, last_granted=NOW()`,
		channelID)
	if err != nil {
		return false, fmt.Errorf("persist toxic occurrence: %w", err)
	}
	if telemetry.ToxicGranted != nil {
		telemetry.ToxicGranted.Inc()
	}
	return true, nil
}

// Status runs both checks in precedence order: toxic wins over shiny, and an
// instance carries at most one modifier.
func (c *Calculator) Status(ctx context.Context, st settings.Settings, channelID, userID string) SpecialStatus {
	if toxic, err := c.IsToxic(ctx, st, channelID); err == nil && toxic {
		return StatusToxic
	} else if err != nil {
		slog.Warn("toxic check failed", slog.Any("err", err), slog.String("component", "special_calc"))
	}
	if shiny, err := c.IsShiny(ctx, st, channelID, userID); err == nil && shiny {
		return StatusShiny
	} else if err != nil {
		slog.Warn("shiny check failed", slog.Any("err", err), slog.String("component", "special_calc"))
	}
	return StatusNone
}
