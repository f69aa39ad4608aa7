package sessionstore

import (
	"context"
	"fmt"
)

// ProviderKind mirrors config.SessionProviderKind's string values (kept
// separate to avoid an import cycle between config and sessionstore).
type ProviderKind string

const (
	KindMemory ProviderKind = "memory"
	KindRedis  ProviderKind = "redis"
)

// Config is the subset of config.StoreConfig the session-provider factory
// needs.
type Config struct {
	Kind     ProviderKind
	RedisURL string
}

// New is the registry-of-factories-keyed-by-name for SessionProvider
// construction, the same pattern objectstore.New uses on the storage
// side (spec.md §9).
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("sessionstore: redis provider requires SESSION_REDIS_URL")
		}
		return NewRedis(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("sessionstore: unknown session provider kind %q", cfg.Kind)
	}
}
