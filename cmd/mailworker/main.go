// Command mailworker drains queued donation notices and delivers them over
// SMTP. It pairs with the server's amqp notify transport: the server enqueues,
// this worker emails, so a slow mail provider never blocks a request.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"donateabook/internal/config"
	"donateabook/internal/notify"
	"donateabook/internal/util"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	if cfg.AMQPAddr == "" {
		log.Fatal("amqpAddr is required for the mail worker")
	}
	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}

	queue := cfg.AMQPQueue
	if queue == "" {
		queue = notify.DefaultQueue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("mail worker consuming", "queue", queue)
		return notify.Consume(gctx, cfg.AMQPAddr, queue, func(ctx context.Context, notice notify.DonationNotice) error {
			if err := mailer.SendDonationRequest(ctx, notice); err != nil {
				logger.Error("send donation mail", "book", notice.BookTitle, "err", err)
				return err
			}
			slog.Info("donation mail sent", "to", notice.DonorEmail, "book", notice.BookTitle)
			return nil
		})
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mail worker error", "err", err)
		os.Exit(1)
	}
	slog.Info("mail worker stopped")
}
