// Package main provides the polytrans API server: workflow administration,
// manual runs, execution polling and translation event ingestion.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/jmarianski/polytrans/pkg/log"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "polytrans-api",
		Usage:                 "Create and manage content workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL for workflow and assistant definitions",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "openai-api-key",
				Usage:    "API key for the AI provider",
				Required: true,
				Sources:  cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Default chat model",
				Value:   "gpt-4o-mini",
				Sources: cli.EnvVars("POLYTRANS_MODEL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the distributed job lock (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing polytrans API")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			api, err := NewAPI(ctx, logger, command)
			if err != nil {
				return err
			}
			defer api.Close(ctx)

			return api.Start(ctx, int(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
