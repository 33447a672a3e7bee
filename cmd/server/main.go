package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/cardclash/internal/api"
	"github.com/dom/cardclash/internal/config"
	"github.com/dom/cardclash/internal/logging"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/repository/memory"
	"github.com/dom/cardclash/internal/repository/postgres"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/dom/cardclash/internal/scheduler"
	"github.com/dom/cardclash/internal/service"
	"github.com/dom/cardclash/internal/telemetry"
	"github.com/dom/cardclash/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "cardclash", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(flushCtx)
	}()

	repos, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	broker := realtime.NewBroker(logger.Named("realtime"))
	if cfg.RealtimePGNotify {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		bridge := realtime.NewPGBridge(pool, broker, logger.Named("pgbridge"))
		broker.SetRelay(bridge)
		g.Go(func() error {
			bridge.Run(gctx)
			return nil
		})
	}
	notifier := realtime.NewNotifier(broker, logger.Named("notifier"))

	policy, err := resolution.ByName(cfg.ResolutionPolicy)
	if err != nil {
		return err
	}
	logger.Info("resolution policy selected", zap.String("policy", policy.Name()))

	services := service.NewServices(repos, cfg, notifier, policy, logger)

	sched, err := scheduler.New(repos.Battle, services.Orchestrator, services.Battle, services.Selection, scheduler.Options{
		RevealCountdown:      cfg.RevealCountdown,
		ChallengeTTL:         cfg.ChallengeTTL,
		SweepInterval:        cfg.SweepInterval,
		StuckResolutionAfter: cfg.StuckResolutionAfter,
	}, logger.Named("scheduler"))
	if err != nil {
		return err
	}
	services.Selection.SetRevealScheduler(sched)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Shutdown()

	hub := websocket.NewHub(broker, websocket.Services{
		Battles:    services.Battle,
		Selection:  services.Selection,
		Resolution: services.Orchestrator,
	}, logger.Named("websocket"))
	go hub.Run()
	defer hub.Stop()

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      api.NewRouter(services, hub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageDriver),
			zap.Duration("reveal_countdown", cfg.RevealCountdown))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func openRepositories(cfg *config.Config, logger *zap.Logger) (*repository.Repositories, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("using in-memory storage; state is lost on restart")
		return memory.NewStore().Repositories(), nil
	}

	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}
	db, err := postgres.NewConnection(cfg.DatabaseURL, level)
	if err != nil {
		return nil, err
	}
	return postgres.NewRepositories(db), nil
}
