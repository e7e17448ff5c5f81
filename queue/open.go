// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/config"
)

// Open builds the provider selected by cfg, wrapped in a
// CachedProvider. The returned close function releases the backend's
// resources.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, c clock.Clock) (Provider, func() error, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	compression, err := ParseCompression(cfg.Compression.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	compressor := Compressor{Algorithm: compression, Threshold: cfg.Compression.Threshold}

	var provider Provider
	closeFunc := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		provider = NewMemory(MemoryConfig{
			Namespace:   cfg.Namespace,
			Clock:       c,
			Retention:   cfg.Retention,
			Visibility:  cfg.Visibility,
			MaxPollWait: cfg.Timeouts.MaxPoll,
		})

	case config.BackendSQLite:
		sqliteProvider, err := OpenSQLite(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Namespace:   cfg.Namespace,
			Clock:       c,
			Logger:      logger,
			Retention:   cfg.Retention,
			Visibility:  cfg.Visibility,
			MaxPollWait: cfg.Timeouts.MaxPoll,
			Compressor:  compressor,
		})
		if err != nil {
			return nil, nil, err
		}
		provider, closeFunc = sqliteProvider, sqliteProvider.Close

	case config.BackendRedis:
		redisProvider, err := OpenRedis(ctx, RedisConfig{
			URL:         cfg.Redis.URL,
			Namespace:   cfg.Namespace,
			Clock:       c,
			Logger:      logger,
			Retention:   cfg.Retention,
			MaxPollWait: cfg.Timeouts.MaxPoll,
			Compressor:  compressor,
		})
		if err != nil {
			return nil, nil, err
		}
		provider, closeFunc = redisProvider, redisProvider.Close

	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}

	logger.Debug("queue backend opened",
		"backend", string(cfg.Backend),
		"namespace", cfg.Namespace,
		"compression", compression.String(),
	)
	return NewCached(provider, cfg.EndpointTTL, c), closeFunc, nil
}
