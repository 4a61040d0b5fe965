package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizpool-service/internal/app"
	"quizpool-service/internal/config"
	"quizpool-service/internal/domain"
	"quizpool-service/internal/infra/memory"
	infrapg "quizpool-service/internal/infra/postgres"
	infraredis "quizpool-service/internal/infra/redis"
	transport "quizpool-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz pool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// services bundles the wired core so the start and settle commands share
// one construction path.
type services struct {
	sessions   *app.SessionService
	engine     *app.SettlementEngine
	aggregator *app.Aggregator
	quizzes    app.QuizRepository
	cleanup    func()
}

func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	}

	var ledger app.Ledger = memory.NewLedger(sampleQuizzes())
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			cleanup()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, err
		}
		cleanups = append(cleanups, pool.Close)
		ledger = infrapg.NewLedger(pool)
	}

	ledgerTimeout := config.TTLDuration(cfg.Ledger.Timeout, 10*time.Second)
	loader := app.NewSetLoader(ledger, ledgerTimeout)

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if redisClient != nil {
		quizzes = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	var sessionStore app.SessionRepository
	var settlementStore app.SettlementStore
	if redisClient != nil {
		sessionStore = infraredis.NewSessionStore(redisClient, redisTTL)
		settlementStore = infraredis.NewSettlementStore(redisClient)
	} else {
		sessionStore = memory.NewSessionStore()
		settlementStore = memory.NewSettlementStore()
	}

	dispatcher := app.NewDispatcher(ledger, ledgerTimeout)
	aggregator := app.NewAggregator(ledger, ledgerTimeout)
	engine := app.NewSettlementEngine(aggregator, settlementStore, ledger, ledgerTimeout)
	sessions := app.NewSessionService(sessionStore, quizzes, dispatcher)

	return &services{
		sessions:   sessions,
		engine:     engine,
		aggregator: aggregator,
		quizzes:    quizzes,
		cleanup:    cleanup,
	}, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svcs, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.cleanup()

	wsHandler := transport.NewWSHandler(svcs.sessions)
	settlementHandler := transport.NewSettlementHandler(svcs.engine, svcs.aggregator, svcs.quizzes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/participants", settlementHandler.ServeParticipants)
	mux.HandleFunc("/settlement", settlementHandler.ServeState)
	mux.HandleFunc("/settle", settlementHandler.ServeSettle)
	mux.HandleFunc("/settle/retry", settlementHandler.ServeRetryDistribution)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz pool service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory ledger when no Postgres URL is
// configured; amounts are in the smallest ledger unit.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "General Knowledge",
			Description:     "Four questions against the pool",
			EntranceFee:     5,
			TotalPool:       100,
			DurationSeconds: 120,
			Tiers: []domain.RewardTier{
				{Label: "60%-69%", Low: 60, High: 70, Amount: 10},
				{Label: "70%-79%", Low: 70, High: 80, Amount: 20},
				{Label: "80%-100%", Low: 80, High: 100, Amount: 50},
			},
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
				{Text: "Largest planet in the solar system?", Options: []string{"Earth", "Saturn", "Jupiter"}, CorrectOption: 2},
				{Text: "H2O is commonly known as?", Options: []string{"Salt", "Water", "Hydrogen"}, CorrectOption: 1},
				{Text: "How many continents are there?", Options: []string{"five", "six", "seven"}, CorrectOption: 2},
			},
		},
	}
}
