// Command trivia-tender is the main entrypoint for the trivia engine and its
// background workers. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and Redis and runs idempotent migrations.
//   - Builds the question pipeline: source pool, normalizer, content scanner,
//     and the ban/repeat ledgers.
//   - Starts the game scheduler, the Twitch chat bot, and the OAuth token
//     refresher for the bot account.
//   - Exposes a minimal HTTP server with /healthz, /status, /leaderboard,
//     /metrics, and admin controls.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/trivia-tender/chat"
	"github.com/onnwee/trivia-tender/config"
	"github.com/onnwee/trivia-tender/db"
	"github.com/onnwee/trivia-tender/game"
	"github.com/onnwee/trivia-tender/ledger"
	"github.com/onnwee/trivia-tender/oauth"
	"github.com/onnwee/trivia-tender/providers"
	"github.com/onnwee/trivia-tender/server"
	"github.com/onnwee/trivia-tender/settings"
	"github.com/onnwee/trivia-tender/telemetry"
	"github.com/onnwee/trivia-tender/trivia"
	"github.com/onnwee/trivia-tender/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("trivia-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations: versioned migrations (golang-migrate) first,
	// embedded SQL as fallback for deployments without a schema_migrations
	// table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Redis backs the served-question repeat ledger.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed; repeat suppression degraded until reachable", slog.Any("err", err))
	}

	// Per-channel settings with DB-backed overrides.
	settingsProvider := settings.NewProvider(database)

	// Question pipeline: pool, normalizer, scanner, ledgers, orchestrator.
	pool := trivia.NewPool(envInt("TRIVIA_INSTABILITY_THRESHOLD", 3))
	registerSources(pool, cfg)

	normalizer := trivia.NewNormalizer(nil)
	scanner := trivia.NewScanner(loadBannedWords(cfg.BannedWordsPath))

	banLedger := &ledger.BanLedger{DB: database}
	repeatLedger, err := ledger.NewRepeatLedger(redisClient, func(channel string) time.Duration {
		return settingsProvider.Get(context.Background(), channel).MinRepeatWindow
	})
	if err != nil {
		slog.Error("repeat ledger init failed", slog.Any("err", err))
		os.Exit(1)
	}

	orchestrator := &trivia.Orchestrator{
		Pool:         pool,
		Normalizer:   normalizer,
		Scanner:      scanner,
		Bans:         banLedger,
		Repeats:      repeatLedger,
		MaxRetries:   envInt("TRIVIA_MAX_RETRIES", 5),
		FetchTimeout: 10 * time.Second,
	}

	// Scoring and special statuses.
	leaderboard := &game.PGLeaderboard{DB: database}
	calculator := &game.Calculator{DB: database, Leaderboard: leaderboard, Rand: rand.Float64}
	scorer := &game.Scorer{DB: database}

	scheduler := &game.Scheduler{
		Queue:        game.NewQueue(),
		Orchestrator: orchestrator,
		Special:      calculator,
		Scorer:       scorer,
		Settings:     settingsProvider,
		Pool:         pool,
		DB:           database,
	}

	// Chat bot. The scheduler announces through it, so wire it before Start.
	var helix *twitchapi.HelixClient
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
	}
	if err := cfg.ValidateChatReady(); err != nil {
		// Fall back to a stored bot token before giving up on chat.
		if access, _, _, _, tokErr := db.GetOAuthToken(ctx, database, "twitch"); tokErr == nil && access != "" {
			cfg.TwitchOAuthToken = "oauth:" + access
		}
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat bot disabled", slog.Any("err", err))
	} else {
		bot := chat.NewBot(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.TwitchChannels, scheduler, helix)
		scheduler.Sink = bot
		go func() {
			if err := bot.Start(ctx); err != nil {
				slog.Error("chat bot exited", slog.Any("err", err))
			}
		}()
	}

	go scheduler.Start(ctx)

	// OAuth token refresher keeps the bot account's chat token alive.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			res, err := twitchapi.RefreshToken(rctx, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
		})
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/leaderboard/metrics/admin)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	deps := server.Deps{
		DB:          database,
		Scheduler:   scheduler,
		Pool:        pool,
		Bans:        banLedger,
		Settings:    settingsProvider,
		Leaderboard: leaderboard,
	}
	go func() {
		if err := server.Start(ctx, deps, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// registerSources wires the question providers into the pool with their
// selection weights. Local banks are only registered when a file is
// configured.
func registerSources(pool *trivia.Pool, cfg *config.Config) {
	pool.Register(&providers.OpenTDB{}, envInt("TRIVIA_WEIGHT_OPENTDB", 8))
	pool.Register(&providers.TriviaAPI{}, envInt("TRIVIA_WEIGHT_TRIVIA_API", 8))
	if cfg.QuestionBankPath != "" {
		pool.Register(providers.NewBank(cfg.QuestionBankPath), envInt("TRIVIA_WEIGHT_BANK", 3))
	}
	if cfg.JokeBankPath != "" {
		pool.Register(providers.NewJokeBank(cfg.JokeBankPath), envInt("TRIVIA_WEIGHT_JOKES", 1))
	}
}

// loadBannedWords reads the banned word list, one entry per line. Quoted
// lines are treated as phrases by the scanner. Missing file means an empty
// list, plus anything in BANNED_WORDS (comma separated).
func loadBannedWords(path string) []string {
	var entries []string
	if path != "" {
		f, err := os.Open(path) //nolint:gosec // G304: operator-supplied config path
		if err != nil {
			slog.Warn("banned words file unreadable", slog.String("path", path), slog.Any("err", err))
		} else {
			defer func() { _ = f.Close() }()
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				entries = append(entries, line)
			}
		}
	}
	for _, w := range strings.Split(os.Getenv("BANNED_WORDS"), ",") {
		if w = strings.TrimSpace(w); w != "" {
			entries = append(entries, w)
		}
	}
	return entries
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}
