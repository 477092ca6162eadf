package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/violation-service/internal/api/http"
	"github.com/spec-kit/violation-service/internal/api/http/handlers"
	"github.com/spec-kit/violation-service/internal/auth"
	"github.com/spec-kit/violation-service/internal/config"
	"github.com/spec-kit/violation-service/internal/events"
	"github.com/spec-kit/violation-service/internal/integration"
	"github.com/spec-kit/violation-service/internal/observability"
	"github.com/spec-kit/violation-service/internal/persistence"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/internal/service"
	"github.com/spec-kit/violation-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	transitionRepo := repository.NewTransitionRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	appealRepo := repository.NewAppealRepository(pool)
	txManager := repository.NewTxManager(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	auditService := service.NewAuditService(auditRepo)

	authorityClient := integration.NewAuthorityClient(cfg.Authority)
	integrationDispatcher := worker.NewIntegrationDispatcher(cfg.Authority, worker.DispatcherDependencies{
		Client:      authorityClient,
		TicketRepo:  ticketRepo,
		AttemptRepo: attemptRepo,
		Audit:       auditService,
		Dispatcher:  dispatcher,
		Redis:       redis.Client,
		Logger:      logger,
		Metrics:     metrics,
	})
	integrationDispatcher.Start(ctx)
	defer integrationDispatcher.Stop()

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:     ticketRepo,
		TransitionRepo: transitionRepo,
		Audit:          auditService,
		TxManager:      txManager,
		Integration:    integrationDispatcher,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Audit:      auditService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	appealService := service.NewAppealService(service.AppealDependencies{
		AppealRepo: appealRepo,
		TicketRepo: ticketRepo,
		Workflow:   workflowService,
		Audit:      auditService,
		Dispatcher: dispatcher,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo, auditService)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, workflowService, attemptRepo),
		Appeals:        handlers.NewAppealsHandler(appealService),
		Audit:          handlers.NewAuditHandler(auditService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
