package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"mocktest-service/internal/app"
	"mocktest-service/internal/domain"
	"mocktest-service/internal/infra/postgres"
	pgmigrations "mocktest-service/internal/infra/postgres/migrations"
	infraredis "mocktest-service/internal/infra/redis"
	"mocktest-service/internal/scoring"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := postgres.NewTestWriter(db).Upsert(ctx, sampleTest()); err != nil {
		t.Fatalf("seed test: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	snapshots := infraredis.NewSnapshotStore(redisClient, time.Hour)
	service := app.NewAttemptService(app.Dependencies{
		Tests:     infraredis.NewTestRepository(redisClient, postgres.NewTestLoader(pool), 5*time.Minute),
		Snapshots: snapshots,
		Attempts:  postgres.NewAttemptStore(db),
		Sessions:  infraredis.NewSessionRegistry(redisClient, 5*time.Minute),
	}, app.Config{Scoring: scoring.Policy{NegativeMarking: true}})

	// Alice answers the first question, leaves and comes back.
	alice, err := service.Open(ctx, "u1", "Alice", "mock-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := alice.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	service.Leave(ctx, alice)

	alice, err = service.Open(ctx, "u1", "Alice", "mock-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	view := alice.View()
	if !view.Resumed || view.Selected == nil || *view.Selected != 1 {
		t.Fatalf("expected resumed session with answer 1, got %+v", view)
	}
	if _, err := alice.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := alice.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	aliceRecord, err := service.Submit(ctx, alice, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if aliceRecord.TotalScore != 3 || aliceRecord.CorrectCount != 2 {
		t.Fatalf("unexpected alice record: %+v", aliceRecord)
	}
	if _, ok, _ := snapshots.Load(ctx, domain.SnapshotKey("u1", "mock-1")); ok {
		t.Fatalf("expected snapshot cleared after submit")
	}

	// Bob gets one wrong and pays the negative mark.
	bob, err := service.Open(ctx, "u2", "Bob", "mock-1")
	if err != nil {
		t.Fatalf("open bob: %v", err)
	}
	if _, err := bob.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	bobRecord, err := service.Submit(ctx, bob, false)
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if bobRecord.TotalScore != 0 || bobRecord.WrongCount != 1 {
		t.Fatalf("unexpected bob record: %+v", bobRecord)
	}

	lb, err := service.Leaderboard(ctx, "mock-1", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u1" || lb.Entries[1].UserID != "u2" {
		t.Fatalf("expected alice leading, got %+v", lb.Entries)
	}

	history, err := service.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != aliceRecord.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	review, err := service.Review(ctx, aliceRecord.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !review.Consistent || len(review.Questions) != 2 {
		t.Fatalf("unexpected review: %+v", review)
	}
	if sel, ok := review.Attempt.Answers.Selected(domain.Position{QuestionIndex: 1}); !ok || sel != 2 {
		t.Fatalf("stored answers lost: %+v", review.Attempt.Answers)
	}
}

// startContainer runs image and returns the host:port mapped to exposed.
func startContainer(t *testing.T, ctx context.Context, image, exposed string, env map[string]string) (string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        image,
			Env:          env,
			ExposedPorts: []string{exposed},
			WaitingFor:   wait.ForListeningPort(nat.Port(exposed)).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", image, err)
	}
	port, err := container.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		t.Fatalf("%s port: %v", image, err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, "postgres:15-alpine", "5432/tcp", map[string]string{
		"POSTGRES_USER":     "mock",
		"POSTGRES_PASSWORD": "mockpass",
		"POSTGRES_DB":       "mockdb",
	})
	return fmt.Sprintf("postgres://mock:mockpass@%s/mockdb?sslmode=disable", addr), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, "redis:7-alpine", "6379/tcp", nil)
	return "redis://" + addr, cleanup
}

func sampleTest() domain.TestDefinition {
	return domain.TestDefinition{
		ID:              "mock-1",
		Title:           "Mock 1",
		DurationSeconds: 1200,
		NegativeMark:    0.5,
		Questions: []domain.Question{
			{Text: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectOptionIndex: 1, Marks: 1},
			{Text: "3 x 3?", Options: []string{"6", "8", "9", "12"}, CorrectOptionIndex: 2, Marks: 2},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
