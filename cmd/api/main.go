package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-chat/internal/api/http"
	"github.com/spec-kit/marketplace-chat/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-chat/internal/auth"
	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/directory"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/observability"
	"github.com/spec-kit/marketplace-chat/internal/persistence"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	"github.com/spec-kit/marketplace-chat/internal/repository/memstore"
	"github.com/spec-kit/marketplace-chat/internal/sanitize"
	"github.com/spec-kit/marketplace-chat/internal/service"
	"github.com/spec-kit/marketplace-chat/internal/worker"
)

type repositories struct {
	rooms    repository.ChatRoomRepository
	messages repository.ChatMessageRepository
	parties  repository.PartyRepository
	contexts repository.ContextRepository
}

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

	repos, err := buildRepositories(pg, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to prepare chat store", zap.Error(err))
	}
	healthDeps := map[string]handlers.Pinger{"redis": redis}
	if pg.Enabled() {
		healthDeps["postgres"] = pg
	}

	var locker service.RoomLocker
	if cfg.Redis.LockEnabled {
		locker = persistence.NewRoomLocker(redis, cfg.Redis.LockTTL(), logger)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	dir := directory.New(tokens, repos.parties, logger)
	sanitizer := sanitize.New()
	guard := service.NewChatGuard()

	roomService := service.NewRoomService(service.RoomDependencies{
		RoomRepo:    repos.rooms,
		ContextRepo: repos.contexts,
		Parties:     dir,
		Assigner:    directory.NewRoundRobinAssigner(repos.parties),
		Locker:      locker,
		Guard:       guard,
		Sanitizer:   sanitizer,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Config:      cfg.Chat,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		RoomRepo:    repos.rooms,
		MessageRepo: repos.messages,
		Guard:       guard,
		Sanitizer:   sanitizer,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Config:      cfg.Chat,
	})
	unreadService := service.NewUnreadService(service.UnreadDependencies{
		Rooms:       roomService,
		RoomRepo:    repos.rooms,
		MessageRepo: repos.messages,
		Guard:       guard,
		Logger:      logger,
		Config:      cfg.Chat,
	})
	notifier := worker.NewNotificationWorker(worker.Config{}, logger)
	worker.StartNotificationWorker(ctx, dispatcher, service.NewNotificationService(dispatcher, logger, cfg.Notification), notifier)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Rooms:          handlers.NewChatRoomsHandler(roomService, messageService, unreadService),
		Messages:       handlers.NewChatMessagesHandler(messageService),
		AuthMiddleware: auth.NewAuthMiddleware(dir),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	notifier.Stop()
}

// buildRepositories picks Postgres when a DSN is configured. The in-memory
// store has no directory of its own, so it refuses to start without a seed.
func buildRepositories(pg *persistence.Postgres, cfg config.PostgresConfig, logger *zap.Logger) (repositories, error) {
	if !pg.Enabled() {
		if cfg.DevSeedFile == "" {
			return repositories{}, errors.New("POSTGRES_DSN is empty and CHAT_DEV_SEED_FILE is not set; the in-memory store would reject every party")
		}
		store := memstore.New()
		if err := store.LoadSeedFile(cfg.DevSeedFile); err != nil {
			return repositories{}, fmt.Errorf("seed in-memory store: %w", err)
		}
		logger.Info("chat store ready", zap.String("backend", "memory"), zap.String("seed", cfg.DevSeedFile))
		return repositories{
			rooms:    store.Rooms(),
			messages: store.Messages(),
			parties:  store.Parties(),
			contexts: store.Contexts(),
		}, nil
	}
	logger.Info("chat store ready", zap.String("backend", "postgres"))
	pool := pg.PoolHandle()
	return repositories{
		rooms:    repository.NewChatRoomRepository(pool),
		messages: repository.NewChatMessageRepository(pool),
		parties:  repository.NewPartyRepository(pool),
		contexts: repository.NewContextRepository(pool),
	}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
