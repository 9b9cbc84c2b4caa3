package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/chat"
	"github.com/ahmedtaha100/RotateStay/backend/internal/config"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/ahmedtaha100/RotateStay/backend/internal/notifications"
	"github.com/ahmedtaha100/RotateStay/backend/internal/ratelimit"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/server"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exits")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	cfg := config.MustLoad()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.DB().Close()

	if err := conn.Migrate(ctx); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	if *migrate {
		logger.Info("migration completed")
		return
	}

	store := repository.NewStore(conn.DB())

	limiter := newLimiter(ctx, cfg, logger)
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	var mailer notifications.Mailer
	if cfg.SendGridAPIKey != "" && cfg.SendGridFrom != "" {
		mailer = notifications.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.SendGridFromName)
	} else {
		logger.Info("offline email disabled")
	}
	notifier := notifications.NewService(store, mailer, logger)

	registry := chat.NewRegistry()
	router := chat.NewRouter(logger)
	msgs := &messaging.Service{
		Store:       store,
		Limiter:     limiter,
		Attachments: attachments.NewProcessor(blobs, logger),
		Rooms:       router,
		Presence:    registry,
		Notifier:    notifier,
		Log:         logger,
	}
	tracker := &messaging.Tracker{Store: store, Rooms: router, Log: logger}
	hub := chat.NewHub(registry, router, store, msgs, tracker, cfg.WSSendBuffer, logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(server.Deps{
			Config:   cfg,
			Log:      logger,
			Store:    store,
			Hub:      hub,
			Messages: msgs,
			Tracker:  tracker,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Wait()
}

func newLogger(level string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if level == "debug" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	return l
}

func newLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) ratelimit.Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			logger.Info("using redis rate limiter", zap.String("addr", cfg.RedisAddr))
			return ratelimit.NewRedis(client, cfg.RateLimitPoints, cfg.RateLimitWindow, logger)
		}
	}
	mem := ratelimit.NewMemory(cfg.RateLimitPoints, cfg.RateLimitWindow)
	go mem.Run(ctx, cfg.RateLimitWindow)
	return mem
}

func newBlobStore(ctx context.Context, cfg config.Config) (attachments.BlobStore, error) {
	if cfg.BlobBackend == config.BlobS3 {
		return attachments.NewS3Store(ctx, attachments.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	}
	return attachments.NewDiskStore(cfg.UploadDir, cfg.UploadURLPrefix)
}
