package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"wedding-quiz/internal/app"
	"wedding-quiz/internal/config"
	"wedding-quiz/internal/domain"
	"wedding-quiz/internal/infra/memory"
	natsmirror "wedding-quiz/internal/infra/nats"
	pgloader "wedding-quiz/internal/infra/postgres"
	redisinfra "wedding-quiz/internal/infra/redis"
	"wedding-quiz/internal/metrics"
	transport "wedding-quiz/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.Admin.Key == config.DefaultAdminKey {
		log.Warn().Msg("admin key is the default; set ADMIN_KEY")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	// Question sets: Postgres when configured, always falling back to the built-in set.
	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(domain.DefaultQuestionSet())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = memory.FallbackLoader{Primary: pgloader.NewQuestionLoader(pool), Secondary: loader}
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.QuestionCacheTTL, 10*time.Minute)
	var bank app.QuestionBank
	var rooms app.RoomRepository
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, cfg.Quiz.DefaultSet, cacheTTL)
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		bank = memory.NewQuestionBank(loader, cfg.Quiz.DefaultSet, cacheTTL)
		rooms = memory.NewRoomStore()
	}

	m := metrics.NewMetrics("quiz")
	opts := []app.Option{app.WithRecorder(m)}
	if cfg.NATS.URL != "" {
		natsCfg := natsmirror.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		mirror, err := natsmirror.Connect(natsCfg)
		if err != nil {
			return err
		}
		defer mirror.Close()
		opts = append(opts, app.WithPublisher(mirror))
	}

	names, err := cfg.NamePolicy()
	if err != nil {
		return err
	}
	auth := app.KeyAuthorizer(cfg.Admin.Key)
	service := app.NewQuizService(rooms, bank, opts...)
	gateway := app.NewGateway(service, auth, names)
	router := transport.NewRouter(service, transport.NewWSHandler(gateway), auth, transport.RouterConfig{
		BaseURL:        cfg.Server.BaseURL,
		LiffIDPlayer:   cfg.Clients.LiffIDPlayer,
		LiffIDHost:     cfg.Clients.LiffIDHost,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m.Handler(),
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
