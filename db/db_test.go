package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/trivia-tender/db"
	"github.com/onnwee/trivia-tender/testutil"
)

func TestMigrateIdempotent(t *testing.T) {
	database := testutil.SetupTestDB(t)

	// Setup already ran Migrate once; a second pass must be a no-op.
	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestKVRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	if v := db.GetKV(ctx, database, "test_missing_key"); v != "" {
		t.Fatalf("missing key = %q, want empty", v)
	}

	db.SetKV(ctx, database, "test_heartbeat", "2026-01-02T03:04:05Z")
	if v := db.GetKV(ctx, database, "test_heartbeat"); v != "2026-01-02T03:04:05Z" {
		t.Fatalf("read back = %q", v)
	}

	// Upsert overwrites.
	db.SetKV(ctx, database, "test_heartbeat", "2026-01-02T03:05:05Z")
	if v := db.GetKV(ctx, database, "test_heartbeat"); v != "2026-01-02T03:05:05Z" {
		t.Fatalf("after upsert = %q", v)
	}

	_, _ = database.ExecContext(ctx, `DELETE FROM kv WHERE key LIKE 'test_%'`)
}

func TestOAuthTokenRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	t.Cleanup(func() {
		_, _ = database.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE provider LIKE 'test-%'`)
	})

	access, refresh, expiry, scope, err := db.GetOAuthToken(ctx, database, "test-none")
	if err != nil {
		t.Fatalf("GetOAuthToken missing: %v", err)
	}
	if access != "" || refresh != "" || !expiry.IsZero() || scope != "" {
		t.Fatal("missing provider should return zero values")
	}

	wantExpiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := db.UpsertOAuthToken(ctx, database, "test-twitch", "access-1", "refresh-1", wantExpiry, "chat:read chat:edit"); err != nil {
		t.Fatalf("UpsertOAuthToken: %v", err)
	}

	access, refresh, expiry, scope, err = db.GetOAuthToken(ctx, database, "test-twitch")
	if err != nil {
		t.Fatalf("GetOAuthToken: %v", err)
	}
	if access != "access-1" || refresh != "refresh-1" {
		t.Fatalf("tokens = %q / %q", access, refresh)
	}
	if scope != "chat:read chat:edit" {
		t.Fatalf("scope = %q", scope)
	}
	if expiry.UTC().Truncate(time.Second) != wantExpiry {
		t.Fatalf("expiry = %v, want %v", expiry, wantExpiry)
	}

	// Upsert replaces the row.
	if err := db.UpsertOAuthToken(ctx, database, "test-twitch", "access-2", "refresh-2", wantExpiry, "chat:read"); err != nil {
		t.Fatalf("second UpsertOAuthToken: %v", err)
	}
	access, refresh, _, scope, err = db.GetOAuthToken(ctx, database, "test-twitch")
	if err != nil {
		t.Fatalf("GetOAuthToken after upsert: %v", err)
	}
	if access != "access-2" || refresh != "refresh-2" || scope != "chat:read" {
		t.Fatalf("after upsert: %q / %q / %q", access, refresh, scope)
	}
}
