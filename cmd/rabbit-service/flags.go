package main

import (
	"github.com/GwynCerbin/go_rabbit_service/pkg/httpx"

	"github.com/urfave/cli/v2"
)

// brokerFlags are shared by every command that talks to the broker.
func brokerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML or YAML config file",
			EnvVars: []string{"CONFIG"},
		},
		&cli.StringFlag{
			Name:    "amqp-url",
			Aliases: []string{"u"},
			Usage:   "The AMQP broker URL",
			EnvVars: []string{"AMQP_URL"},
		},
		&cli.StringFlag{
			Name:    "exchange",
			Aliases: []string{"x"},
			Usage:   "The default exchange; queues are bound to it by name",
			EnvVars: []string{"AMQP_EXCHANGE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Log level (debug, info, warn, error)",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

func runFlags() []cli.Flag {
	return append(brokerFlags(),
		&cli.StringFlag{
			Name:    "http-host",
			Usage:   "The address the HTTP server binds to",
			EnvVars: []string{"HTTP_HOST"},
		},
		&cli.IntFlag{
			Name:    "http-port",
			Aliases: []string{"p"},
			Usage:   "The port the HTTP server binds to",
			EnvVars: []string{"HTTP_PORT"},
		},
	)
}

func httpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "http-host",
			Usage:   "The address the HTTP server binds to",
			EnvVars: []string{"HTTP_HOST"},
			Value:   httpx.DefaultHost,
		},
		&cli.IntFlag{
			Name:    "http-port",
			Aliases: []string{"p"},
			Usage:   "The port the HTTP server binds to",
			EnvVars: []string{"HTTP_PORT"},
			Value:   httpx.DefaultPort,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
	}
}

func publishFlags() []cli.Flag {
	return append(brokerFlags(),
		&cli.StringFlag{
			Name:    "routing-key",
			Aliases: []string{"k"},
			Usage:   "The routing key; with the default exchange this is the queue name",
			EnvVars: []string{"ROUTING_KEY"},
		},
		&cli.StringFlag{
			Name:     "body",
			Aliases:  []string{"b"},
			Usage:    "The message body",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "header",
			Usage: "A message header as key=value, repeatable",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Send the body bytes as they are instead of encoding them",
		},
	)
}
