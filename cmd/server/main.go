package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/tilebid/backend/api/handler"
	"github.com/tilebid/backend/internal/config"
	"github.com/tilebid/backend/internal/infrastructure/monitor"
	"github.com/tilebid/backend/internal/infrastructure/outbox"
	pgInfra "github.com/tilebid/backend/internal/infrastructure/postgres"
	redisInfra "github.com/tilebid/backend/internal/infrastructure/redis"
	"github.com/tilebid/backend/internal/middleware"
	"github.com/tilebid/backend/internal/router"
	"github.com/tilebid/backend/internal/services"
	"github.com/tilebid/backend/internal/services/lifecycle"
	"github.com/tilebid/backend/pkg/httpcontext"
	"github.com/tilebid/backend/pkg/logger"
	"github.com/tilebid/backend/repository/postgres"
	redisRepo "github.com/tilebid/backend/repository/redis"
	authUC "github.com/tilebid/backend/usecase/auth"
	awardUC "github.com/tilebid/backend/usecase/award"
	bidUC "github.com/tilebid/backend/usecase/bid"
	chatUC "github.com/tilebid/backend/usecase/chat"
	profileUC "github.com/tilebid/backend/usecase/profile"
	taskUC "github.com/tilebid/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		AppName:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "outbox")
	if err != nil {
		zapLogger.Fatal("failed to open feed outbox", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(pool, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	bidRepo := postgres.NewBidRepository(pool)
	conversationRepo := postgres.NewConversationRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, 24*time.Hour)

	feedPublisher := services.NewFeedPublisher(redisClient, outboxStore, zapLogger)

	dispatcher := services.NewOutboxDispatcher(
		outboxStore,
		mon,
		feedPublisher,
		zapLogger,
		services.DispatcherConfig{
			Interval:   cfg.Outbox.DrainInterval,
			BatchSize:  cfg.Outbox.BatchSize,
			MaxRetries: cfg.Outbox.MaxRetry,
		},
	)
	dispatcher.Start()
	manager.Register("outbox_dispatcher", func(ctx context.Context) error {
		dispatcher.Stop(ctx)
		return nil
	})

	authUseCase := authUC.New(userRepo, sessionRepo, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, userRepo, zapLogger)
	bidUseCase := bidUC.New(bidRepo, taskRepo, userRepo, zapLogger)
	awardUseCase := awardUC.New(bidRepo, taskRepo, conversationRepo, zapLogger)
	chatUseCase := chatUC.New(conversationRepo, userRepo, feedPublisher, feedPublisher, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, time.Hour),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Bid:     apiHandler.NewBidHandler(bidUseCase, awardUseCase, ctxAdapter, zapLogger),
		Message: apiHandler.NewMessageHandler(chatUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
