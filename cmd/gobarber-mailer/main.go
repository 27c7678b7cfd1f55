package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gobarber/backend/internal/config"
	"gobarber/backend/internal/mail"
	"gobarber/backend/internal/obs"
)

const serviceName = "gobarber-mailer"

var version = "dev"

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

func main() {
	log := obs.NewLogger(os.Stdout, serviceName, "info")
	slog.SetDefault(log)

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = obs.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.OTelEndpoint)
	if err != nil {
		log.Error("tracer init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	renderer, err := mail.NewRenderer()
	if err != nil {
		log.Error("mail templates invalid", slog.Any("err", err))
		os.Exit(1)
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		TLS:      cfg.SMTPTLS,
	})
	if err != nil {
		log.Error("smtp client setup failed", slog.Any("err", err), slog.String("smtp_host", cfg.SMTPHost))
		os.Exit(1)
	}

	worker := mail.NewWorker(mail.WorkerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.RabbitExchange,
		Queue:    cfg.RabbitQueue,
		DLX:      cfg.RabbitDLX,
		Prefetch: cfg.RabbitPrefetch,
		Consumer: serviceName,
	}, renderer, sender, log)

	log.Info("starting", slog.String("queue", cfg.RabbitQueue), slog.String("exchange", cfg.RabbitExchange))

	backoff := minBackoff
	for ctx.Err() == nil {
		if err := worker.Connect(); err != nil {
			log.Warn("rabbitmq connect failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff
		log.Info("consuming", slog.String("queue", cfg.RabbitQueue))

		err := worker.Run(ctx)
		worker.Close()
		if err != nil {
			log.Warn("consumer stopped", slog.Any("err", err))
			sleep(ctx, backoff)
		}
	}

	log.Info("mailer stopped")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
