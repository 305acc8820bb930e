package repository

import (
	"context"
	"strings"

	"coreconvo/config"
	"coreconvo/domain"
)

// New builds the configured Repository backend: the in-memory store when
// DB_URL is "memory" (the default) or a "redis://" URL -- Redis in that case
// only backs NotificationHub's multi-process fan-out, per §6.4, never
// Repository persistence -- or the SQLite store opened against DB_URL as a
// file path otherwise. A future srv/redis-style second durable backend would
// plug in here the same way the teacher's db.NewStorage switches between its
// redis and sqlite backings.
func New(ctx context.Context, cfg *config.Config) (domain.Repository, error) {
	if cfg.DBURL == "" || cfg.DBURL == "memory" || strings.HasPrefix(cfg.DBURL, "redis://") {
		return NewMemoryRepository(), nil
	}
	return Open(ctx, cfg.DBURL)
}
