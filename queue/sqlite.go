// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/codec"
	"github.com/bureau-foundation/sera/lib/sqlitepool"
)

const sqliteScheme = "sqlite"

// DefaultPollInterval is how often a blocked SQLite receive re-checks
// the table. Other processes write to the same file, so there is no
// in-process notification to wait on.
const DefaultPollInterval = 250 * time.Millisecond

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS endpoints (
	name       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	endpoint        TEXT NOT NULL,
	body            TEXT NOT NULL,
	attributes      BLOB,
	attributes_size INTEGER NOT NULL DEFAULT 0,
	compression     INTEGER NOT NULL DEFAULT 0,
	sent_at         INTEGER NOT NULL,
	visible_at      INTEGER NOT NULL,
	receipt         TEXT,
	receive_count   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS messages_by_endpoint ON messages (endpoint, visible_at, sent_at);
`

// SQLiteConfig configures a SQLiteProvider.
type SQLiteConfig struct {
	// Path is the database file, shared by every process using this
	// queue on the host.
	Path string

	Namespace    string
	Clock        clock.Clock
	Logger       *slog.Logger
	Retention    time.Duration
	Visibility   time.Duration
	MaxPollWait  time.Duration
	PollInterval time.Duration
	Compressor   Compressor
}

// SQLiteProvider is a Provider backed by a SQLite database file.
// Timestamps are stored as Unix nanoseconds from the configured clock.
type SQLiteProvider struct {
	pool         *sqlitepool.Pool
	namespace    string
	clock        clock.Clock
	logger       *slog.Logger
	retention    time.Duration
	visibility   time.Duration
	maxPollWait  time.Duration
	pollInterval time.Duration
	compressor   Compressor
}

// OpenSQLite opens (creating if needed) the queue database. The caller
// must Close the provider.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, err
	}

	provider := &SQLiteProvider{
		pool:         pool,
		namespace:    cfg.Namespace,
		clock:        cfg.Clock,
		logger:       logger,
		retention:    cfg.Retention,
		visibility:   cfg.Visibility,
		maxPollWait:  cfg.MaxPollWait,
		pollInterval: cfg.PollInterval,
		compressor:   cfg.Compressor,
	}
	if provider.clock == nil {
		provider.clock = clock.Real()
	}
	if provider.retention <= 0 {
		provider.retention = DefaultRetention
	}
	if provider.visibility <= 0 {
		provider.visibility = DefaultVisibility
	}
	if provider.maxPollWait <= 0 {
		provider.maxPollWait = DefaultMaxPollWait
	}
	if provider.pollInterval <= 0 {
		provider.pollInterval = DefaultPollInterval
	}
	return provider, nil
}

// Close closes the database.
func (p *SQLiteProvider) Close() error {
	return p.pool.Close()
}

func (p *SQLiteProvider) CreateEndpoint(ctx context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	url := endpointURL(sqliteScheme, sanitized)
	err := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO endpoints (name, url, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{sanitized, url, p.clock.Now().UnixNano()}})
	})
	if err != nil {
		return "", classify("create endpoint", err)
	}
	return url, nil
}

func (p *SQLiteProvider) GetEndpoint(ctx context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return "", transient("get endpoint", err)
	}
	defer p.pool.Put(conn)

	var url string
	err = sqlitex.Execute(conn, `SELECT url FROM endpoints WHERE name = ?`, &sqlitex.ExecOptions{
		Args: []any{sanitized},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			url = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return "", classify("get endpoint", err)
	}
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrEndpointNotFound, sanitized)
	}
	return url, nil
}

func (p *SQLiteProvider) DeleteEndpoint(ctx context.Context, url string) error {
	name, ok := nameFromURL(sqliteScheme, url)
	if !ok {
		return fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, url)
	}
	err := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		if err := requireEndpoint(conn, name); err != nil {
			return err
		}
		if err := sqlitex.Execute(conn, `DELETE FROM messages WHERE endpoint = ?`,
			&sqlitex.ExecOptions{Args: []any{name}}); err != nil {
			return err
		}
		return sqlitex.Execute(conn, `DELETE FROM endpoints WHERE name = ?`,
			&sqlitex.ExecOptions{Args: []any{name}})
	})
	return classify("delete endpoint", err)
}

func (p *SQLiteProvider) SendMessage(ctx context.Context, targetURL, body string, attributes Attributes) (string, error) {
	name, ok := nameFromURL(sqliteScheme, targetURL)
	if !ok {
		return "", fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, targetURL)
	}

	encoded, err := codec.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	tag, stored, err := p.compressor.Compress(encoded)
	if err != nil {
		return "", fmt.Errorf("compressing attributes: %w", err)
	}

	id := uuid.NewString()
	now := p.clock.Now().UnixNano()
	err = p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		if err := requireEndpoint(conn, name); err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			`INSERT INTO messages (id, endpoint, body, attributes, attributes_size, compression, sent_at, visible_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{id, name, body, stored, len(encoded), int(tag), now, now}})
	})
	if err != nil {
		return "", classify("send message", err)
	}
	return id, nil
}

func (p *SQLiteProvider) ReceiveMessage(ctx context.Context, url string, wait time.Duration) (*Message, error) {
	name, ok := nameFromURL(sqliteScheme, url)
	if !ok {
		return nil, fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, url)
	}
	wait = clampWait(wait, p.maxPollWait)
	deadline := p.clock.Now().Add(wait)

	for {
		message, err := p.claim(ctx, name)
		if err != nil || message != nil {
			return message, err
		}
		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			return nil, nil
		}
		timer := p.clock.NewTimer(min(remaining, p.pollInterval))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// claim prunes expired messages on the endpoint and claims the oldest
// visible one, hiding it for the visibility timeout under a fresh
// receipt.
func (p *SQLiteProvider) claim(ctx context.Context, name string) (*Message, error) {
	var message *Message
	var stored []byte
	var storedSize int
	var tag Compression
	var receiveCount int

	now := p.clock.Now()
	err := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		if err := requireEndpoint(conn, name); err != nil {
			return err
		}
		cutoff := now.Add(-p.retention).UnixNano()
		if err := sqlitex.Execute(conn,
			`DELETE FROM messages WHERE endpoint = ? AND sent_at <= ?`,
			&sqlitex.ExecOptions{Args: []any{name, cutoff}}); err != nil {
			return err
		}
		if pruned := conn.Changes(); pruned > 0 {
			p.logger.Debug("pruned expired messages", "endpoint", name, "count", pruned)
		}

		err := sqlitex.Execute(conn,
			`SELECT id, body, attributes, attributes_size, compression, sent_at, receive_count
			 FROM messages WHERE endpoint = ? AND visible_at <= ?
			 ORDER BY sent_at LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{name, now.UnixNano()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					message = &Message{
						ID:     stmt.ColumnText(0),
						Body:   stmt.ColumnText(1),
						SentAt: time.Unix(0, stmt.ColumnInt64(5)),
					}
					stored = make([]byte, stmt.ColumnLen(2))
					stmt.ColumnBytes(2, stored)
					storedSize = stmt.ColumnInt(3)
					tag = Compression(stmt.ColumnInt(4))
					receiveCount = stmt.ColumnInt(6)
					return nil
				},
			})
		if err != nil || message == nil {
			return err
		}

		message.Receipt = uuid.NewString()
		return sqlitex.Execute(conn,
			`UPDATE messages SET receipt = ?, visible_at = ?, receive_count = receive_count + 1 WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{message.Receipt, now.Add(p.visibility).UnixNano(), message.ID}})
	})
	if err != nil {
		return nil, classify("receive message", err)
	}
	if message == nil {
		return nil, nil
	}

	if receiveCount > 0 {
		p.logger.Debug("redelivering message",
			"endpoint", name,
			"message_id", message.ID,
			"previous_receives", receiveCount,
		)
	}
	encoded, err := Decompress(tag, stored, storedSize)
	if err != nil {
		return nil, &CorruptMessageError{ID: message.ID, Receipt: message.Receipt, Err: err}
	}
	if len(encoded) > 0 {
		if err := codec.Unmarshal(encoded, &message.Attributes); err != nil {
			return nil, &CorruptMessageError{ID: message.ID, Receipt: message.Receipt, Err: fmt.Errorf("decoding attributes: %w", err)}
		}
	}
	return message, nil
}

func (p *SQLiteProvider) DeleteMessage(ctx context.Context, url, receipt string) error {
	name, ok := nameFromURL(sqliteScheme, url)
	if !ok {
		return fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, url)
	}
	err := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`DELETE FROM messages WHERE endpoint = ? AND receipt = ?`,
			&sqlitex.ExecOptions{Args: []any{name, receipt}})
	})
	return classify("delete message", err)
}

func (p *SQLiteProvider) MaxPollWait() time.Duration { return p.maxPollWait }

func (p *SQLiteProvider) Retention() time.Duration { return p.retention }

// errNoEndpoint carries ErrEndpointNotFound out of a transaction
// without being classified as a database failure.
type errNoEndpoint struct{ name string }

func (e errNoEndpoint) Error() string { return ErrEndpointNotFound.Error() + ": " + e.name }

func (e errNoEndpoint) Unwrap() error { return ErrEndpointNotFound }

func requireEndpoint(conn *sqlite.Conn, name string) error {
	found := false
	err := sqlitex.Execute(conn, `SELECT 1 FROM endpoints WHERE name = ?`, &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return err
	}
	if !found {
		return errNoEndpoint{name: name}
	}
	return nil
}

// classify wraps database errors: lock contention with another process
// is transient, missing endpoints pass through, anything else is
// returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEndpointNotFound) {
		return err
	}
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return transient(op, err)
	}
	return fmt.Errorf("queue: %s: %w", op, err)
}
