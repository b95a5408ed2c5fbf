package variables

import (
	"context"
	"log/slog"

	"github.com/jmarianski/polytrans/pkg/models"
)

// Provider contributes variables to an execution context. Providers are
// pluggable; the engine ships a few built-ins and callers may register more.
type Provider interface {
	ID() string
	CanProvide(ctx context.Context, base models.ExecutionContext) bool
	Variables(ctx context.Context, base models.ExecutionContext) (map[string]any, error)
}

// ContextBuilder aggregates provider output into one execution context.
type ContextBuilder struct {
	providers []Provider
	logger    *slog.Logger
}

func NewContextBuilder(logger *slog.Logger, providers ...Provider) *ContextBuilder {
	return &ContextBuilder{
		providers: providers,
		logger:    logger.With("module", "context_builder"),
	}
}

// Register appends a provider. Providers run in registration order, so later
// providers may overwrite keys set by earlier ones.
func (b *ContextBuilder) Register(provider Provider) {
	b.providers = append(b.providers, provider)
}

// Build shallow-merges every provider's variables into a copy of base. A
// failing provider is logged and skipped; it never aborts context building.
func (b *ContextBuilder) Build(ctx context.Context, base map[string]any) models.ExecutionContext {
	execCtx := models.NewExecutionContext(base)

	for _, provider := range b.providers {
		if !provider.CanProvide(ctx, execCtx) {
			continue
		}

		vars, err := provider.Variables(ctx, execCtx)
		if err != nil {
			b.logger.Warn("variable provider failed, skipping",
				"provider", provider.ID(),
				"error", err)

			continue
		}

		for k, v := range vars {
			execCtx[k] = v
		}
	}

	return execCtx
}
