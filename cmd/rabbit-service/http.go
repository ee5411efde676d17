package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/httpx"
	"github.com/GwynCerbin/go_rabbit_service/pkg/logger"

	"github.com/urfave/cli/v2"
)

const httpShutdownTimeout = 5 * time.Second

// serveHTTP runs the HTTP endpoint on its own, with GET / only.
func serveHTTP(c *cli.Context) error {
	logCfg := logger.DefaultConfig()
	if c.Bool("verbose") {
		logCfg.Level = "debug"
		logCfg.Development = true
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpx.NewServer(httpx.DefaultConfig(), log, httpx.AccessLog(log))
	srv.Router().Get("/", hello)

	serveErr, err := srv.Listen(c.String("http-host"), c.Int("http-port"))
	if err != nil {
		return err
	}

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	return srv.Shutdown(sctx)
}
