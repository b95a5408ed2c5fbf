package main

import (
	"context"
	"log/slog"
	"strconv"

	cli "github.com/urfave/cli/v3"

	"github.com/jmarianski/polytrans/pkg/aiclient"
	"github.com/jmarianski/polytrans/pkg/cmd"
	"github.com/jmarianski/polytrans/pkg/contentstore"
	"github.com/jmarianski/polytrans/pkg/eventbus"
	"github.com/jmarianski/polytrans/pkg/jobs"
	"github.com/jmarianski/polytrans/pkg/outputs"
	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/variables"
	"github.com/jmarianski/polytrans/pkg/web"
	"github.com/jmarianski/polytrans/pkg/workflow"
)

// API bundles the HTTP surface with the embedded workflow engine. The event
// bus is in-process, so the manager and the job runner live in this binary.
type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	bus         eventbus.EventBus
	runner      *jobs.Runner
	manager     *workflow.Manager
	handlers    *web.APIHandlers
}

func NewAPI(ctx context.Context, logger *slog.Logger, command *cli.Command) (*API, error) {
	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	store := contentstore.NewMemoryStore()
	resolver := variables.NewResolver(logger)
	client := aiclient.NewOpenAIClient(command.String("openai-api-key"), command.String("model"))
	registry := cmd.NewStepRegistry(client, persistence, resolver, logger)
	processor := outputs.NewProcessor(store, resolver, logger)
	executor := workflow.NewExecutor(registry, processor, resolver, logger, nil)

	bus := cmd.NewEventBus(logger)
	lock := cmd.NewLock(command.String("redis-url"), logger)
	runner := jobs.NewRunner(executor, lock, bus, logger)

	builder := variables.NewContextBuilder(logger,
		variables.NewPostProvider(store),
		variables.NewMetaProvider(store),
	)

	repository := workflow.NewRepository(persistence, registry)
	manager := workflow.NewManager(repository, builder, runner, bus, logger)

	handlers := web.NewAPIHandlers(repository, manager, runner, persistence, bus, logger)

	return &API{
		logger:      logger,
		persistence: persistence,
		bus:         bus,
		runner:      runner,
		manager:     manager,
		handlers:    handlers,
	}, nil
}

func (a *API) Start(ctx context.Context, port int) error {
	a.runner.Start(ctx)

	if err := a.manager.Start(ctx); err != nil {
		return err
	}

	app := web.NewApp(a.handlers)

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	if err := app.Listen(":" + strconv.Itoa(port)); err != nil {
		return err
	}

	a.runner.Wait()

	return nil
}

func (a *API) Close(ctx context.Context) {
	if err := a.bus.Close(); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := a.persistence.Close(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
