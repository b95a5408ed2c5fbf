// Package main provides the polytrans worker: it consumes translation
// events, matches workflows and executes them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmarianski/polytrans/pkg/aiclient"
	"github.com/jmarianski/polytrans/pkg/cmd"
	"github.com/jmarianski/polytrans/pkg/contentstore"
	"github.com/jmarianski/polytrans/pkg/jobs"
	"github.com/jmarianski/polytrans/pkg/log"
	"github.com/jmarianski/polytrans/pkg/otelhelper"
	"github.com/jmarianski/polytrans/pkg/outputs"
	"github.com/jmarianski/polytrans/pkg/variables"
	"github.com/jmarianski/polytrans/pkg/workflow"
)

func main() {
	logger := log.WithModule("worker")

	command := &cli.Command{
		Name:                  "polytrans-worker",
		Usage:                 "Execute content workflows triggered by translation events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("POLYTRANS_TRACING"),
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

			logger.InfoContext(ctx, "Initializing polytrans worker")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var tracer trace.Tracer
			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "polytrans-worker")
				if err != nil {
					return err
				}
			}

			store := contentstore.NewMemoryStore()
			resolver := variables.NewResolver(logger)
			client := aiclient.NewOpenAIClient(command.String("openai-api-key"), command.String("model"))
			registry := cmd.NewStepRegistry(client, persistence, resolver, logger)
			processor := outputs.NewProcessor(store, resolver, logger)
			executor := workflow.NewExecutor(registry, processor, resolver, logger, tracer)

			bus := cmd.NewEventBus(logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			lock := cmd.NewLock(command.String("redis-url"), logger)
			runner := jobs.NewRunner(executor, lock, bus, logger)
			runner.Start(ctx)

			builder := variables.NewContextBuilder(logger,
				variables.NewPostProvider(store),
				variables.NewMetaProvider(store),
			)

			repository := workflow.NewRepository(persistence, registry)
			manager := workflow.NewManager(repository, builder, runner, bus, logger)

			if err := manager.Start(ctx); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Worker started")

			<-ctx.Done()

			logger.Info("Shutting down")
			runner.Wait()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
