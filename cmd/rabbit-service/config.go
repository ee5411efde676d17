package main

import (
	"fmt"
	"strings"

	"github.com/GwynCerbin/go_rabbit_service/pkg/config"

	"github.com/rabbitmq/amqp091-go"
	"github.com/urfave/cli/v2"
)

// buildConfig loads the config file, if any, and applies flags and env vars over it.
func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()

	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}

		cfg = loaded
	}

	if c.IsSet("amqp-url") {
		cfg.Broker.URL = c.String("amqp-url")
	}
	if c.IsSet("exchange") {
		cfg.Broker.Exchange = c.String("exchange")
	}
	if c.IsSet("http-host") {
		cfg.HTTP.Host = c.String("http-host")
	}
	if c.IsSet("http-port") {
		cfg.HTTP.Port = c.Int("http-port")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// parseHeaders turns key=value pairs into a header table.
func parseHeaders(pairs []string) (amqp091.Table, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	headers := make(amqp091.Table, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("header %q: want key=value", p)
		}

		headers[k] = v
	}

	return headers, nil
}
