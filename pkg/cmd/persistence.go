// Package cmd holds shared bootstrap helpers for the polytrans binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/persistence/file"
	"github.com/jmarianski/polytrans/pkg/persistence/postgres"
)

// NewPersistence builds a persistence backend from a database URL. The
// postgres scheme selects PostgreSQL; anything else is treated as a file
// path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, _, _ := strings.Cut(databaseURL, "://")

	switch provider {
	case "postgres", "postgresql":
		return postgres.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
