package game

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PGLeaderboard ranks users by their accumulated points in trivia_scores.
type PGLeaderboard struct {
	DB *sql.DB
}

// Rank returns the user's 1-based rank on the channel leaderboard, or 0 when
// the user has no score row.
func (l *PGLeaderboard) Rank(ctx context.Context, channelID, userID string) (int, error) {
	var rank int
	err := l.DB.QueryRowContext(ctx, `SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY points DESC) AS rank
			FROM trivia_scores WHERE channel_id=$1
		) ranked WHERE user_id=$2`, channelID, userID).Scan(&rank)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rank lookup: %w", err)
	}
	return rank, nil
}

// LeaderboardRow is one entry of a channel's top list.
type LeaderboardRow struct {
	UserID   string
	UserName string
	Points   int64
}

// Top returns the channel's top n users by points.
func (l *PGLeaderboard) Top(ctx context.Context, channelID string, n int) ([]LeaderboardRow, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.DB.QueryContext(ctx, `SELECT user_id, COALESCE(user_name,''), points FROM trivia_scores
		WHERE channel_id=$1 ORDER BY points DESC LIMIT $2`, channelID, n)
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.UserName, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
