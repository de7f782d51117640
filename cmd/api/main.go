package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/ai"
	httptransport "github.com/supportdesk-io/supportdesk/internal/api/http"
	"github.com/supportdesk-io/supportdesk/internal/api/http/handlers"
	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/cache"
	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/events"
	"github.com/supportdesk-io/supportdesk/internal/observability"
	"github.com/supportdesk-io/supportdesk/internal/persistence"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/internal/service"
	"github.com/supportdesk-io/supportdesk/internal/worker"
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

	metrics := observability.NewMetrics()
	store := repository.NewStore(pg.PoolHandle())
	presence := cache.NewPresenceCache(redis.Client, cfg.Chat.PresenceTTL())
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	generator := ai.NewClient(cfg.AI)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:  store.Users(),
		Tokens: tokens,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	sessionService := service.NewSessionService(service.SessionDependencies{
		Store:    store,
		Presence: presence,
		Logger:   logger,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		Store:      store,
		Generator:  generator,
		Tickets:    ticketService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Chat,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationWorker := worker.StartNotificationWorker(notificationService, logger,
		cfg.Notification.QueueSize, cfg.Notification.Workers)
	defer notificationWorker.Stop()

	authMiddleware := auth.NewAuthMiddleware(tokens, store.Users())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, store.Users()),
		Comments:       handlers.NewCommentsHandler(ticketService, store.Users()),
		Sessions:       handlers.NewSessionsHandler(sessionService),
		Chat:           handlers.NewChatHandler(chatService),
		Activities:     handlers.NewActivitiesHandler(ticketService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
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
