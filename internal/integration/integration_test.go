package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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
	"wedding-quiz/internal/app"
	"wedding-quiz/internal/domain"
	"wedding-quiz/internal/infra/memory"
	pgloader "wedding-quiz/internal/infra/postgres"
	pgmigrations "wedding-quiz/internal/infra/postgres/migrations"
	infraredis "wedding-quiz/internal/infra/redis"
)

func TestQuestionSetFromPostgresEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestionSet(t, ctx, pgURL, "wedding", []map[string]any{
		{"text": "Which year did they meet?", "choices": []string{"2015", "2016", "2017", "2018"}, "correctIndex": 2},
		{"text": "broken", "choices": []string{"a"}, "correctIndex": 0},
	})

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := memory.FallbackLoader{
		Primary:   pgloader.NewQuestionLoader(pool),
		Secondary: memory.NewStaticQuestionLoader(domain.DefaultQuestionSet()),
	}
	if _, err := pgloader.NewQuestionLoader(pool).LoadQuestionSet(ctx, "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected set not found, got %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	bank := infraredis.NewQuestionBank(redisClient, loader, "wedding", 5*time.Minute)
	rooms := infraredis.NewRoomStore(redisClient, time.Hour)
	service := app.NewQuizService(rooms, bank)

	room, err := service.CreateRoom(ctx, "", "host")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.Total != 1 || room.Question == nil || room.Question.Text != "Which year did they meet?" {
		t.Fatalf("expected the cleaned postgres set, got %+v", room)
	}
	if n, err := redisClient.Exists(ctx, "quiz:room:"+room.Code, "quiz:set:wedding").Result(); err != nil || n != 2 {
		t.Fatalf("expected room reservation and cached set in redis, got %d %v", n, err)
	}

	fallback, err := service.CreateRoom(ctx, domain.DefaultSetID, "host-2")
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if fallback.Total != len(domain.DefaultQuestions()) {
		t.Fatalf("expected built-in set, got %d questions", fallback.Total)
	}

	if _, err := service.JoinPlayer(room.Code, "u1", "1234", "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Start(room.Code, 5000); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(room.Code, "u1", 2); err != nil {
		t.Fatalf("answer: %v", err)
	}
	snap, err := service.Reveal(room.Code)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if snap.Players[0].Score < 200 || snap.Players[0].Score > 1000 {
		t.Fatalf("unexpected score %d", snap.Players[0].Score)
	}
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

func seedQuestionSet(t *testing.T, ctx context.Context, dsn, id string, questions []map[string]any) {
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

	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, id, string(data)); err != nil {
		t.Fatalf("insert question set: %v", err)
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
