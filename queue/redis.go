// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bureau-foundation/sera/lib/clock"
)

const redisScheme = "redis"

// RedisConfig configures a RedisProvider.
type RedisConfig struct {
	// URL is passed to redis.ParseURL.
	URL string

	Namespace   string
	Clock       clock.Clock
	Logger      *slog.Logger
	Retention   time.Duration
	MaxPollWait time.Duration
	Compressor  Compressor
}

// RedisProvider is a Provider on a Redis server. Each endpoint is a
// list; the set of endpoints lives in a registry set. Messages are
// pushed on the left and popped from the right, and the pop is the
// acknowledgement: there is no visibility timeout, so DeleteMessage is
// a no-op and a message is delivered at most once unless the sender
// retries.
type RedisProvider struct {
	client      *redis.Client
	prefix      string
	namespace   string
	clock       clock.Clock
	logger      *slog.Logger
	retention   time.Duration
	maxPollWait time.Duration
	compressor  Compressor
}

// redisRecord is the msgpack value stored in an endpoint list.
type redisRecord struct {
	ID             string      `msgpack:"id"`
	Body           string      `msgpack:"body"`
	Attributes     []byte      `msgpack:"attributes"`
	AttributesSize int         `msgpack:"attributes_size"`
	Compression    Compression `msgpack:"compression"`
	SentAt         int64       `msgpack:"sent_at"`
}

// OpenRedis connects to the server and verifies it answers PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, transient("connect", err)
	}

	provider := &RedisProvider{
		client:      client,
		prefix:      cfg.Namespace,
		namespace:   cfg.Namespace,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		retention:   cfg.Retention,
		maxPollWait: cfg.MaxPollWait,
		compressor:  cfg.Compressor,
	}
	if provider.prefix == "" {
		provider.prefix = "sera"
	}
	if provider.clock == nil {
		provider.clock = clock.Real()
	}
	if provider.logger == nil {
		provider.logger = slog.New(slog.DiscardHandler)
	}
	if provider.retention <= 0 {
		provider.retention = DefaultRetention
	}
	if provider.maxPollWait <= 0 {
		provider.maxPollWait = DefaultMaxPollWait
	}
	return provider, nil
}

// Close closes the client connection pool.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

func (p *RedisProvider) registryKey() string {
	return p.prefix + ":endpoints"
}

func (p *RedisProvider) listKey(name string) string {
	return p.prefix + ":q:" + name
}

func (p *RedisProvider) CreateEndpoint(ctx context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	if err := p.client.SAdd(ctx, p.registryKey(), sanitized).Err(); err != nil {
		return "", transient("create endpoint", err)
	}
	return endpointURL(redisScheme, sanitized), nil
}

func (p *RedisProvider) GetEndpoint(ctx context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	if err := p.requireEndpoint(ctx, sanitized); err != nil {
		return "", err
	}
	return endpointURL(redisScheme, sanitized), nil
}

func (p *RedisProvider) DeleteEndpoint(ctx context.Context, url string) error {
	name, err := p.resolve(ctx, url)
	if err != nil {
		return err
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, p.registryKey(), name)
		pipe.Del(ctx, p.listKey(name))
		return nil
	})
	return transient("delete endpoint", err)
}

func (p *RedisProvider) SendMessage(ctx context.Context, targetURL, body string, attributes Attributes) (string, error) {
	name, err := p.resolve(ctx, targetURL)
	if err != nil {
		return "", err
	}

	encoded, err := msgpack.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	tag, stored, err := p.compressor.Compress(encoded)
	if err != nil {
		return "", fmt.Errorf("compressing attributes: %w", err)
	}

	now := p.clock.Now()
	record := redisRecord{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Body:           body,
		Attributes:     stored,
		AttributesSize: len(encoded),
		Compression:    tag,
		SentAt:         now.UnixNano(),
	}
	data, err := msgpack.Marshal(&record)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	if err := p.client.LPush(ctx, p.listKey(name), data).Err(); err != nil {
		return "", transient("send message", err)
	}
	return record.ID, nil
}

func (p *RedisProvider) ReceiveMessage(ctx context.Context, url string, wait time.Duration) (*Message, error) {
	name, err := p.resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	wait = clampWait(wait, p.maxPollWait)
	deadline := p.clock.Now().Add(wait)
	key := p.listKey(name)

	for {
		remaining := deadline.Sub(p.clock.Now())
		data, err := p.pop(ctx, key, remaining)
		if err != nil || data == nil {
			return nil, err
		}

		var record redisRecord
		if err := msgpack.Unmarshal(data, &record); err != nil {
			p.logger.Warn("discarding undecodable message", "endpoint", name, "error", err)
			continue
		}
		sentAt := time.Unix(0, record.SentAt)
		if p.clock.Now().Sub(sentAt) >= p.retention {
			p.logger.Debug("discarding expired message", "endpoint", name, "message_id", record.ID)
			continue
		}
		return p.decode(record, sentAt)
	}
}

// pop removes the oldest entry of key, blocking up to wait. BRPOP
// counts in seconds (fractions are accepted by Redis 6+ but a zero
// timeout blocks forever), so a positive wait is rounded up to at
// least a second and a non-positive wait uses a non-blocking RPOP.
func (p *RedisProvider) pop(ctx context.Context, key string, wait time.Duration) ([]byte, error) {
	if wait <= 0 {
		data, err := p.client.RPop(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, transient("receive message", err)
		}
		return data, nil
	}

	blockFor := wait.Round(time.Second)
	if blockFor < wait {
		blockFor += time.Second
	}
	result, err := p.client.BRPop(ctx, blockFor, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transient("receive message", err)
	}
	// BRPOP replies with [key, value].
	return []byte(result[1]), nil
}

func (p *RedisProvider) decode(record redisRecord, sentAt time.Time) (*Message, error) {
	message := &Message{
		ID:      record.ID,
		Receipt: record.ID,
		SentAt:  sentAt,
		Body:    record.Body,
	}
	encoded, err := Decompress(record.Compression, record.Attributes, record.AttributesSize)
	if err != nil {
		return nil, &CorruptMessageError{ID: record.ID, Receipt: record.ID, Err: err}
	}
	if len(encoded) > 0 {
		if err := msgpack.Unmarshal(encoded, &message.Attributes); err != nil {
			return nil, &CorruptMessageError{ID: record.ID, Receipt: record.ID, Err: fmt.Errorf("decoding attributes: %w", err)}
		}
	}
	return message, nil
}

// DeleteMessage is a no-op: popping a message removed it.
func (p *RedisProvider) DeleteMessage(context.Context, string, string) error {
	return nil
}

func (p *RedisProvider) MaxPollWait() time.Duration { return p.maxPollWait }

func (p *RedisProvider) Retention() time.Duration { return p.retention }

func (p *RedisProvider) resolve(ctx context.Context, url string) (string, error) {
	name, ok := nameFromURL(redisScheme, url)
	if !ok {
		return "", fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, url)
	}
	if err := p.requireEndpoint(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

func (p *RedisProvider) requireEndpoint(ctx context.Context, name string) error {
	exists, err := p.client.SIsMember(ctx, p.registryKey(), name).Result()
	if err != nil {
		return transient("lookup endpoint", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrEndpointNotFound, name)
	}
	return nil
}
