// Command migrate-tokens encrypts stored OAuth tokens that predate
// ENCRYPTION_KEY being configured, moving rows from encryption_version=0
// (plaintext) to version=1 (AES-256-GCM).
//
// Usage:
//
//	migrate-tokens [--dry-run] [--provider PROVIDER]
//
// Requires DB_DSN and ENCRYPTION_KEY in the environment.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/trivia-tender/crypto"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	provider := flag.String("provider", "", "Migrate only this provider's token (default: all)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		slog.Error("DB_DSN environment variable is required")
		os.Exit(1)
	}
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		slog.Error("ENCRYPTION_KEY environment variable is required for migration")
		os.Exit(1)
	}
	encryptor, err := crypto.NewAESEncryptor(key)
	if err != nil {
		slog.Error("failed to initialize encryptor", slog.Any("error", err))
		os.Exit(1)
	}

	database, err := sql.Open("pgx", dsn)
	if err != nil {
		slog.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.PingContext(ctx); err != nil {
		slog.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	if err := migrateTokens(ctx, database, encryptor, *dryRun, *provider); err != nil {
		slog.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migration completed successfully")
}

type tokenRow struct {
	Provider     string
	AccessToken  string
	RefreshToken string
}

func migrateTokens(ctx context.Context, database *sql.DB, encryptor crypto.Encryptor, dryRun bool, providerFilter string) error {
	query := `SELECT provider, access_token, refresh_token
		FROM oauth_tokens
		WHERE COALESCE(encryption_version, 0) = 0`
	args := []any{}
	if providerFilter != "" {
		query += " AND provider = $1"
		args = append(args, providerFilter)
	}
	query += " ORDER BY provider"

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query plaintext tokens: %w", err)
	}
	defer rows.Close()

	var tokens []tokenRow
	for rows.Next() {
		var t tokenRow
		if err := rows.Scan(&t.Provider, &t.AccessToken, &t.RefreshToken); err != nil {
			return fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token rows: %w", err)
	}

	if len(tokens) == 0 {
		slog.Info("no plaintext tokens found to migrate")
		return nil
	}
	slog.Info("found plaintext tokens to migrate", slog.Int("count", len(tokens)), slog.Bool("dry_run", dryRun))

	migrated, failed := 0, 0
	for _, t := range tokens {
		logger := slog.With(slog.String("provider", t.Provider))
		if dryRun {
			logger.Info("would migrate token (dry-run)")
			migrated++
			continue
		}
		if err := migrateToken(ctx, database, encryptor, t); err != nil {
			logger.Error("failed to migrate token", slog.Any("error", err))
			failed++
			continue
		}
		logger.Info("migrated token")
		migrated++
	}

	slog.Info("migration summary",
		slog.Int("total", len(tokens)),
		slog.Int("migrated", migrated),
		slog.Int("errors", failed),
		slog.Bool("dry_run", dryRun))

	if failed > 0 {
		return fmt.Errorf("migration completed with %d errors", failed)
	}
	return nil
}

func migrateToken(ctx context.Context, database *sql.DB, encryptor crypto.Encryptor, t tokenRow) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is best effort

	var encAccess, encRefresh string
	if t.AccessToken != "" {
		if encAccess, err = crypto.EncryptString(encryptor, t.AccessToken); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
	}
	if t.RefreshToken != "" {
		if encRefresh, err = crypto.EncryptString(encryptor, t.RefreshToken); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE oauth_tokens
		SET access_token = $1,
		    refresh_token = $2,
		    encryption_version = 1,
		    encryption_key_id = 'default',
		    updated_at = NOW()
		WHERE provider = $3 AND COALESCE(encryption_version, 0) = 0`,
		encAccess, encRefresh, t.Provider)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("expected 1 row updated, got %d (token may have been modified concurrently)", n)
	}
	return tx.Commit()
}
