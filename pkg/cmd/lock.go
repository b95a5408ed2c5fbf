package cmd

import (
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/jmarianski/polytrans/pkg/jobs"
)

// NewLock builds the job lock. With no redis URL configured, runs are
// serialized with a process-local lock, which is enough for a single node.
func NewLock(redisURL string, logger *slog.Logger) jobs.Lock {
	if redisURL == "" {
		return jobs.NewMemoryLock()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, falling back to in-memory lock", "error", err)

		return jobs.NewMemoryLock()
	}

	return jobs.NewRedisLock(redis.NewClient(opts), "")
}
