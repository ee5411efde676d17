package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "rabbit-service",
		Usage: "HTTP ingress and AMQP consumers in one process",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to the broker, consume the demo queues and serve HTTP",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "http",
				Usage:  "Serve the standalone HTTP endpoint without a broker",
				Flags:  httpFlags(),
				Action: serveHTTP,
			},
			{
				Name:   "publish",
				Usage:  "Publish one message and exit",
				Flags:  publishFlags(),
				Action: publish,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
