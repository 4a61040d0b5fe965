package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizpool-service/internal/app"
	"quizpool-service/internal/domain"
	infrapg "quizpool-service/internal/infra/postgres"
	pgmigrations "quizpool-service/internal/infra/postgres/migrations"
	infraredis "quizpool-service/internal/infra/redis"
)

func TestQuizToSettlementEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	ledger := infrapg.NewLedger(pool)
	loader := app.NewSetLoader(ledger, 10*time.Second)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	settlementStore := infraredis.NewSettlementStore(redisClient)

	dispatcher := app.NewDispatcher(ledger, 10*time.Second)
	service := app.NewSessionServiceWithClock(sessionStore, quizRepo, dispatcher,
		identityPerm, silentTicker)

	// p1 and p3 answer three of four correctly, p2 answers all four.
	runAttempt(t, ctx, service, "p1", 3)
	runAttempt(t, ctx, service, "p2", 4)
	runAttempt(t, ctx, service, "p3", 3)

	aggregator := app.NewAggregator(ledger, 10*time.Second)
	snapshot, err := aggregator.Snapshot(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 3 || snapshot[0].ParticipantID != "p1" || snapshot[1].Grade != 100.0 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	engine := app.NewSettlementEngine(aggregator, settlementStore, ledger, 10*time.Second)
	quiz, err := quizRepo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	// 20 + 50 + 20 leaves 10, which no longer covers a top-tier win.
	state, err := engine.Settle(ctx, quiz)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if state.Remaining != 10 || state.Distribution != domain.DistributionDone {
		t.Fatalf("unexpected settlement state %+v", state)
	}

	// The latch holds across passes: a second settle never pays again.
	if _, err := engine.Settle(ctx, quiz); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	var payouts int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM distributions WHERE quiz_id=$1`, "quiz-1").Scan(&payouts); err != nil {
		t.Fatalf("count distributions: %v", err)
	}
	if payouts != 1 {
		t.Fatalf("expected exactly one recorded payout, got %d", payouts)
	}
}

func runAttempt(t *testing.T, ctx context.Context, service *app.SessionService, participantID string, correct int) {
	t.Helper()
	if _, err := service.Enter(ctx, "quiz-1", participantID); err != nil {
		t.Fatalf("%s enter: %v", participantID, err)
	}
	for i := 0; i < correct; i++ {
		if _, err := service.Answer("quiz-1", participantID, fmt.Sprintf("right %d", i)); err != nil {
			t.Fatalf("%s answer %d: %v", participantID, i, err)
		}
		if _, err := service.Move("quiz-1", participantID, 1); err != nil {
			t.Fatalf("%s move %d: %v", participantID, i, err)
		}
	}
	res, err := service.Submit(ctx, "quiz-1", participantID)
	if err != nil {
		t.Fatalf("%s submit: %v", participantID, err)
	}
	if res.Passed != correct {
		t.Fatalf("%s expected %d passed, got %+v", participantID, correct, res)
	}
}

func identityPerm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func silentTicker() (<-chan time.Time, func()) {
	return make(chan time.Time), func() {}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	questions := make([]domain.Question, 4)
	for i := range questions {
		questions[i] = domain.Question{
			Text:          fmt.Sprintf("question %d", i),
			Options:       []string{fmt.Sprintf("wrong %d", i), fmt.Sprintf("right %d", i)},
			CorrectOption: 1,
		}
	}
	return domain.Quiz{
		ID:              "quiz-1",
		Title:           "Pool Quiz",
		TotalPool:       100,
		DurationSeconds: 60,
		Tiers: []domain.RewardTier{
			{Label: "60%-69%", Low: 60, High: 70, Amount: 10},
			{Label: "70%-79%", Low: 70, High: 80, Amount: 20},
			{Label: "80%-100%", Low: 80, High: 100, Amount: 50},
		},
		Questions: questions,
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
