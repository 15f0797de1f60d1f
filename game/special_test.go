package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/trivia-tender/settings"
	"github.com/onnwee/trivia-tender/testutil"
)

// fixedRank is a LeaderboardProvider returning a canned rank.
type fixedRank struct {
	rank int
	err  error
}

func (f fixedRank) Rank(ctx context.Context, channelID, userID string) (int, error) {
	return f.rank, f.err
}

func shinySettings() settings.Settings {
	return settings.Settings{
		ShinyEnabled:         true,
		ShinyBaseProbability: 0.1,
		ShinyCooldown:        time.Hour,
		ToxicEnabled:         true,
		ToxicBaseProbability: 0.1,
	}
}

func TestSpecialStatusString(t *testing.T) {
	cases := []struct {
		status SpecialStatus
		want   string
	}{
		{StatusNone, "none"},
		{StatusShiny, "shiny"},
		{StatusToxic, "toxic"},
		{SpecialStatus(42), "none"},
	}
	for _, tc := range cases {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

// A nil DB proves the gate short-circuits before the draw or the upsert: any
// fall-through would panic.
func TestShinyGatesSkipDrawAndPersistence(t *testing.T) {
	calc := &Calculator{Rand: func() float64 { return 0 }}

	disabled := shinySettings()
	disabled.ShinyEnabled = false
	if shiny, err := calc.IsShiny(context.Background(), disabled, "chan", "123"); err != nil || shiny {
		t.Fatalf("disabled: shiny=%v err=%v", shiny, err)
	}

	if shiny, err := calc.IsShiny(context.Background(), shinySettings(), "chan", ""); err != nil || shiny {
		t.Fatalf("empty user: shiny=%v err=%v", shiny, err)
	}

	zeroProb := shinySettings()
	zeroProb.ShinyBaseProbability = 0
	if shiny, err := calc.IsShiny(context.Background(), zeroProb, "chan", "123"); err != nil || shiny {
		t.Fatalf("zero probability: shiny=%v err=%v", shiny, err)
	}
}

func TestShinyFailedDrawSkipsPersistence(t *testing.T) {
	calc := &Calculator{Rand: func() float64 { return 0.5 }}
	if shiny, err := calc.IsShiny(context.Background(), shinySettings(), "chan", "123"); err != nil || shiny {
		t.Fatalf("shiny=%v err=%v", shiny, err)
	}
}

func TestShinyRankDampensProbability(t *testing.T) {
	// Base probability 0.1, rank 1 factor 0.50: effective 0.05. A draw of
	// 0.07 would grant an unranked user but must reject the rank-1 user,
	// without ever reaching the nil DB.
	calc := &Calculator{
		Leaderboard: fixedRank{rank: 1},
		Rand:        func() float64 { return 0.07 },
	}
	if shiny, err := calc.IsShiny(context.Background(), shinySettings(), "chan", "123"); err != nil || shiny {
		t.Fatalf("rank 1 with draw above dampened probability: shiny=%v err=%v", shiny, err)
	}
}

func TestShinyLeaderboardErrorTreatedAsUnranked(t *testing.T) {
	calc := &Calculator{
		Leaderboard: fixedRank{err: errors.New("leaderboard down")},
		Rand:        func() float64 { return 0.5 },
	}
	if shiny, err := calc.IsShiny(context.Background(), shinySettings(), "chan", "123"); err != nil || shiny {
		t.Fatalf("lookup failure must not surface: shiny=%v err=%v", shiny, err)
	}
}

func TestToxicGatesSkipDrawAndPersistence(t *testing.T) {
	calc := &Calculator{Rand: func() float64 { return 0 }}

	disabled := shinySettings()
	disabled.ToxicEnabled = false
	if toxic, err := calc.IsToxic(context.Background(), disabled, "chan"); err != nil || toxic {
		t.Fatalf("disabled: toxic=%v err=%v", toxic, err)
	}

	zeroProb := shinySettings()
	zeroProb.ToxicBaseProbability = 0
	if toxic, err := calc.IsToxic(context.Background(), zeroProb, "chan"); err != nil || toxic {
		t.Fatalf("zero probability: toxic=%v err=%v", toxic, err)
	}

	calc.Rand = func() float64 { return 0.5 }
	if toxic, err := calc.IsToxic(context.Background(), shinySettings(), "chan"); err != nil || toxic {
		t.Fatalf("failed draw: toxic=%v err=%v", toxic, err)
	}
}

func TestStatusNoneWhenBothDrawsFail(t *testing.T) {
	calc := &Calculator{Rand: func() float64 { return 1 }}
	if got := calc.Status(context.Background(), shinySettings(), "chan", "123"); got != StatusNone {
		t.Fatalf("Status = %v, want none", got)
	}
}

func TestShinyGrantAndCooldown(t *testing.T) {
	database := testutil.SetupTestDB(t)
	calc := &Calculator{DB: database, Rand: func() float64 { return 0 }}
	st := shinySettings()
	ctx := context.Background()

	shiny, err := calc.IsShiny(ctx, st, "test-chan", "456")
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if !shiny {
		t.Fatal("guaranteed draw should grant")
	}

	// The second guaranteed draw lands inside the hour cooldown.
	shiny, err = calc.IsShiny(ctx, st, "test-chan", "456")
	if err != nil {
		t.Fatalf("cooldown check: %v", err)
	}
	if shiny {
		t.Fatal("grant inside the cooldown window")
	}

	var count int
	if err := database.QueryRow(`SELECT count FROM special_occurrences WHERE channel_id='test-chan' AND user_id='456' AND kind='shiny'`).Scan(&count); err != nil {
		t.Fatalf("read occurrence: %v", err)
	}
	if count != 1 {
		t.Fatalf("occurrence count = %d, want 1", count)
	}

	// A different user on the same channel is unaffected.
	shiny, err = calc.IsShiny(ctx, st, "test-chan", "789")
	if err != nil || !shiny {
		t.Fatalf("other user: shiny=%v err=%v", shiny, err)
	}
}

func TestToxicGrantPersistsChannelRow(t *testing.T) {
	database := testutil.SetupTestDB(t)
	calc := &Calculator{DB: database, Rand: func() float64 { return 0 }}
	st := shinySettings()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		toxic, err := calc.IsToxic(ctx, st, "test-chan")
		if err != nil || !toxic {
			t.Fatalf("grant %d: toxic=%v err=%v", i, toxic, err)
		}
	}

	var count int
	if err := database.QueryRow(`SELECT count FROM special_occurrences WHERE channel_id='test-chan' AND user_id='' AND kind='toxic'`).Scan(&count); err != nil {
		t.Fatalf("read occurrence: %v", err)
	}
	if count != 2 {
		t.Fatalf("occurrence count = %d, want 2", count)
	}
}

func TestStatusToxicWinsOverShiny(t *testing.T) {
	database := testutil.SetupTestDB(t)
	calc := &Calculator{DB: database, Rand: func() float64 { return 0 }}

	if got := calc.Status(context.Background(), shinySettings(), "test-chan", "456"); got != StatusToxic {
		t.Fatalf("Status = %v, want toxic", got)
	}

	// With toxic off, the same guaranteed draw falls through to shiny.
	st := shinySettings()
	st.ToxicEnabled = false
	if got := calc.Status(context.Background(), st, "test-chan", "456"); got != StatusShiny {
		t.Fatalf("Status = %v, want shiny", got)
	}
}
