package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"donateabook/internal/app"
	"donateabook/internal/config"
	"donateabook/internal/notify"
	"donateabook/internal/server"
	"donateabook/internal/storage"
	"donateabook/internal/store"
	"donateabook/internal/util"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	sessions, err := buildSessions(cfg, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("failed to init notifier: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:          dataStore,
		Blobs:          blobs,
		Notifier:       notifier,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:              appCore,
		Sessions:         sessions,
		CookieName:       cfg.CookieName,
		CookieSecure:     cfg.CookieSecure,
		SessionTTL:       sessionTTL,
		ClientOrigin:     cfg.ClientOrigin,
		RedisAddr:        cfg.RedisAddr,
		RedisPassword:    cfg.RedisPassword,
		SignupRatePerMin: cfg.SignupRatePerMin,
		LoginRatePerMin:  cfg.LoginRatePerMin,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func buildSessions(cfg config.FileConfig, ttl time.Duration) (store.SessionStore, error) {
	switch cfg.SessionStrategy {
	case "jwt":
		return store.NewJWTSessionStore(cfg.SessionSecret, ttl), nil
	case "redis", "":
		return store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, ttl), nil
	default:
		return nil, errors.New("unknown session strategy: " + cfg.SessionStrategy)
	}
}

func buildBlobStore(cfg config.FileConfig) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case "disk", "":
		return storage.NewFileStore(cfg.UploadDir)
	default:
		return nil, errors.New("unknown storage backend: " + cfg.StorageBackend)
	}
}

func buildNotifier(cfg config.FileConfig) (notify.Notifier, error) {
	switch cfg.NotifyTransport {
	case "amqp":
		queue := cfg.AMQPQueue
		if queue == "" {
			queue = notify.DefaultQueue
		}
		return notify.NewAMQPPublisher(cfg.AMQPAddr, queue)
	case "smtp", "":
		return notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	default:
		return nil, errors.New("unknown notify transport: " + cfg.NotifyTransport)
	}
}
