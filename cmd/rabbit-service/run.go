package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	rabbit "github.com/GwynCerbin/go_rabbit_service"
	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/logger"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // best-effort flush

	log.Info("config",
		zap.String("amqpURL", adapter.RedactURL(cfg.Broker.URL)),
		zap.String("exchange", cfg.Broker.Exchange),
		zap.String("httpHost", cfg.HTTP.Host),
		zap.Int("httpPort", cfg.HTTP.Port),
		zap.Int("prefetch", cfg.Broker.Prefetch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := rabbit.New(cfg, rabbit.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	svc.Queue("queue1", jsonHandler(log), adapter.QueueParams{})
	svc.Queue("queue2", textHandler(log), adapter.QueueParams{})
	svc.Route(demoRoutes(svc.Publisher))

	err = svc.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("exiting due to context cancellation")
		return nil
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	log.Info("shutting down")

	return nil
}
