// Package ledger holds the durable rejection records consulted on every
// question draw: the permanent ban ledger (Postgres, append-only) and the
// per-channel repeat ledger (Redis, keys that expire with the repeat window).
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// BanRecord is one permanently banned question id.
type BanRecord struct {
	TriviaID string
	Source   string
	BannedBy string
	BannedAt time.Time
}

// BanLedger stores permanent question bans in Postgres. Writes are upserts so
// re-banning an already banned question is harmless.
type BanLedger struct {
	DB *sql.DB
}

// Ban records a permanent ban for (triviaID, source).
func (l *BanLedger) Ban(ctx context.Context, triviaID, source, bannedBy string) error {
	if triviaID == "" || source == "" {
		return fmt.Errorf("ban requires trivia id and source")
	}
	_, err := l.DB.ExecContext(ctx, `INSERT INTO trivia_bans (trivia_id, source, banned_by, created_at) VALUES ($1,$2,$3,NOW())
		ON CONFLICT(trivia_id, source) DO UPDATE SET banned_by=EXCLUDED.banned_by`, triviaID, source, bannedBy)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	slog.Info("question banned", slog.String("trivia_id", triviaID), slog.String("source", source), slog.String("banned_by", bannedBy), slog.String("component", "ban_ledger"))
	return nil
}

// Unban removes a ban. Returns true when a record was deleted.
func (l *BanLedger) Unban(ctx context.Context, triviaID, source string) (bool, error) {
	res, err := l.DB.ExecContext(ctx, `DELETE FROM trivia_bans WHERE trivia_id=$1 AND source=$2`, triviaID, source)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IsBanned reports whether (triviaID, source) is permanently banned.
func (l *BanLedger) IsBanned(ctx context.Context, triviaID, source string) (bool, error) {
	var one int
	err := l.DB.QueryRowContext(ctx, `SELECT 1 FROM trivia_bans WHERE trivia_id=$1 AND source=$2`, triviaID, source).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ban: %w", err)
	}
	return true, nil
}

// List returns all ban records, newest first (admin/status use).
func (l *BanLedger) List(ctx context.Context, limit int) ([]BanRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.DB.QueryContext(ctx, `SELECT trivia_id, source, COALESCE(banned_by,''), created_at FROM trivia_bans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	var out []BanRecord
	for rows.Next() {
		var r BanRecord
		if err := rows.Scan(&r.TriviaID, &r.Source, &r.BannedBy, &r.BannedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
