package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

var errNoRoutingKey = errors.New("routing key is required")

// publish sends one message through the default exchange of the config.
func publish(c *cli.Context) (err error) {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	key := c.String("routing-key")
	if key == "" {
		return errNoRoutingKey
	}

	headers, err := parseHeaders(c.StringSlice("header"))
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // best-effort flush

	con, err := adapter.Dial(&cfg.Broker, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, con.Close())
	}()

	ch, err := con.OpenChannel()
	if err != nil {
		return err
	}

	pub := adapter.NewPublisher(ch, adapter.NewTopology(ch, log), cfg.Broker.PublisherConfig(), nil, log)

	var payload any = c.String("body")
	if c.Bool("raw") {
		if headers == nil {
			headers = amqp091.Table{}
		}

		headers[adapter.HeaderEncoding] = adapter.EncodingRaw
		payload = []byte(c.String("body"))
	}

	ctx, cancel := context.WithTimeout(c.Context, publishTimeout)
	defer cancel()

	if err = pub.Publish(ctx, cfg.Broker.Exchange, key, payload, headers); err != nil {
		return err
	}

	log.Info("message published", zap.String("exchange", cfg.Broker.Exchange), zap.String("routing_key", key))

	return nil
}
