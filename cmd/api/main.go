package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/interfix/helpdesk/internal/api/http"
	"github.com/interfix/helpdesk/internal/api/http/handlers"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/classification"
	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/directory"
	"github.com/interfix/helpdesk/internal/draft"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/observability"
	"github.com/interfix/helpdesk/internal/persistence"
	"github.com/interfix/helpdesk/internal/repository"
	"github.com/interfix/helpdesk/internal/service"
	"github.com/interfix/helpdesk/internal/wizard"
	"github.com/interfix/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	observability.ConfigureTracing(cfg.Telemetry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	probes := map[string]handlers.Pinger{"postgres": pg}

	var store draft.Store
	switch cfg.Wizard.DraftBackend {
	case config.DraftBackendRedis:
		redis := persistence.OpenDraftRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		probes["redis"] = redis
		store = redis.Store(draft.RedisOptions{
			KeyPrefix: cfg.Wizard.DraftKeyPrefix,
			TTL:       cfg.Wizard.DraftTTL(),
		})
	default:
		store = draft.NewMemoryStore()
	}

	pool := pg.Pool()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	contestationRepo := repository.NewContestationRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	resolver := directory.NewHTTPResolver(cfg.Directory.URL, cfg.Directory.Timeout(), logger)
	classifier := classification.NewClient(cfg.Classification, resolver, logger, metrics)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:     userRepo,
		TokenManager: tokens,
		Logger:       logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       ticketRepo,
		UserRepo:         userRepo,
		ContestationRepo: contestationRepo,
		Resolver:         resolver,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	contestationService := service.NewContestationService(service.ContestationDependencies{
		ContestationRepo: contestationRepo,
		TicketRepo:       ticketRepo,
		UserRepo:         userRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	var committer wizard.Committer = classifier
	if cfg.Wizard.CommitTarget == config.CommitTargetStore {
		committer = ticketService
	}
	finalizer := wizard.NewFinalizer(wizard.FinalizerDependencies{
		Store:      store,
		Committer:  committer,
		Target:     cfg.Wizard.CommitTarget,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	controller := wizard.NewController(wizard.Dependencies{
		Store:     store,
		Analyzer:  classifier,
		Finalizer: finalizer,
		Logger:    logger,
		Metrics:   metrics,
	})

	var sink service.WebhookSink
	if cfg.Notification.WebhookURL != "" {
		webhook := worker.NewWebhookWorker(cfg.Notification.WebhookURL, worker.WebhookOptions{
			QueueSize:  cfg.Notification.WebhookQueueSize,
			MaxElapsed: cfg.Notification.WebhookMaxElapsed(),
		}, logger, metrics)
		webhook.Start(ctx)
		defer webhook.Wait()
		sink = webhook
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification, sink))
	historyService := service.NewHistoryService(dispatcher, historyRepo, logger)
	worker.StartHistoryWorker(historyService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, historyService),
		Contestations:  handlers.NewContestationsHandler(contestationService),
		Wizard:         handlers.NewWizardHandler(controller, cfg.Wizard.ExposeDegraded),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
