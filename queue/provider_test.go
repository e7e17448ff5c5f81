// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testRetention  = 60 * time.Second
	testVisibility = 30 * time.Second
)

// backend describes a Provider under test. Providers without a
// visibility timeout skip the redelivery checks.
type backend struct {
	name          string
	hasVisibility bool
	open          func(t *testing.T, c clock.Clock) Provider
}

func localBackends() []backend {
	return []backend{
		{
			name:          "memory",
			hasVisibility: true,
			open: func(t *testing.T, c clock.Clock) Provider {
				return NewMemory(MemoryConfig{
					Namespace:  "Test",
					Clock:      c,
					Retention:  testRetention,
					Visibility: testVisibility,
				})
			},
		},
		{
			name:          "sqlite",
			hasVisibility: true,
			open: func(t *testing.T, c clock.Clock) Provider {
				provider, err := OpenSQLite(SQLiteConfig{
					Path:       filepath.Join(t.TempDir(), "queue.db"),
					Namespace:  "Test",
					Clock:      c,
					Logger:     testutil.Logger(t),
					Retention:  testRetention,
					Visibility: testVisibility,
					Compressor: Compressor{Algorithm: CompressionZstd, Threshold: 128},
				})
				if err != nil {
					t.Fatalf("OpenSQLite: %v", err)
				}
				t.Cleanup(func() { provider.Close() })
				return provider
			},
		},
	}
}

// redisBackend returns the Redis backend when SERA_TEST_REDIS_URL names
// a server to test against.
func redisBackend() (backend, bool) {
	url := os.Getenv("SERA_TEST_REDIS_URL")
	if url == "" {
		return backend{}, false
	}
	return backend{
		name: "redis",
		open: func(t *testing.T, c clock.Clock) Provider {
			provider, err := OpenRedis(context.Background(), RedisConfig{
				URL:       url,
				Namespace: testutil.UniqueID("sera-test"),
				Clock:     c,
				Logger:    testutil.Logger(t),
				Retention: testRetention,
			})
			if err != nil {
				t.Fatalf("OpenRedis: %v", err)
			}
			t.Cleanup(func() { provider.Close() })
			return provider
		},
	}, true
}

func TestProviders(t *testing.T) {
	backends := localBackends()
	if redis, ok := redisBackend(); ok {
		backends = append(backends, redis)
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			runProviderSuite(t, b)
		})
	}
}

func runProviderSuite(t *testing.T, b backend) {
	t.Run("EndpointLifecycle", func(t *testing.T) {
		ctx := context.Background()
		provider := b.open(t, clock.Fake(epoch))

		if _, err := provider.GetEndpoint(ctx, "host1"); !errors.Is(err, ErrEndpointNotFound) {
			t.Fatalf("GetEndpoint before create: err = %v, want ErrEndpointNotFound", err)
		}
		created, err := provider.CreateEndpoint(ctx, "host1")
		if err != nil {
			t.Fatalf("CreateEndpoint: %v", err)
		}
		again, err := provider.CreateEndpoint(ctx, "host1")
		if err != nil || again != created {
			t.Fatalf("second CreateEndpoint = %q, %v; want %q", again, err, created)
		}
		resolved, err := provider.GetEndpoint(ctx, "host1")
		if err != nil || resolved != created {
			t.Fatalf("GetEndpoint = %q, %v; want %q", resolved, err, created)
		}

		if err := provider.DeleteEndpoint(ctx, created); err != nil {
			t.Fatalf("DeleteEndpoint: %v", err)
		}
		if _, err := provider.GetEndpoint(ctx, "host1"); !errors.Is(err, ErrEndpointNotFound) {
			t.Errorf("GetEndpoint after delete: err = %v", err)
		}
		if _, err := provider.SendMessage(ctx, created, "x", nil); !errors.Is(err, ErrEndpointNotFound) {
			t.Errorf("SendMessage to deleted endpoint: err = %v", err)
		}
	})

	t.Run("SanitizedNamesShareEndpoint", func(t *testing.T) {
		ctx := context.Background()
		provider := b.open(t, clock.Fake(epoch))

		created, err := provider.CreateEndpoint(ctx, "web.example.com")
		if err != nil {
			t.Fatalf("CreateEndpoint: %v", err)
		}
		resolved, err := provider.GetEndpoint(ctx, "web example com")
		if err != nil || resolved != created {
			t.Errorf("GetEndpoint of equivalent name = %q, %v; want %q", resolved, err, created)
		}
	})

	t.Run("SendReceiveDelete", func(t *testing.T) {
		ctx := context.Background()
		fake := clock.Fake(epoch)
		provider := b.open(t, fake)
		url := mustCreate(t, provider, "host1")

		ciphertext := bytes.Repeat([]byte{0x00, 0xff, 0x10}, 200)
		attributes := Attributes{
			AttributeSender:    StringAttribute("master"),
			AttributeEncrypted: BinaryAttribute(ciphertext),
		}
		id, err := provider.SendMessage(ctx, url, "decrypt abc", attributes)
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}

		message, err := provider.ReceiveMessage(ctx, url, 0)
		if err != nil {
			t.Fatalf("ReceiveMessage: %v", err)
		}
		if message == nil {
			t.Fatal("ReceiveMessage returned no message")
		}
		if message.ID != id || message.Body != "decrypt abc" {
			t.Errorf("message = %+v, want id %s body 'decrypt abc'", message, id)
		}
		if !message.SentAt.Equal(epoch) {
			t.Errorf("SentAt = %v, want %v", message.SentAt, epoch)
		}
		if sender, _ := message.Attributes.String(AttributeSender); sender != "master" {
			t.Errorf("Sender = %q, want master", sender)
		}
		if encrypted, _ := message.Attributes.Binary(AttributeEncrypted); !bytes.Equal(encrypted, ciphertext) {
			t.Error("Encrypted attribute changed in transit")
		}

		if err := provider.DeleteMessage(ctx, url, message.Receipt); err != nil {
			t.Fatalf("DeleteMessage: %v", err)
		}
		fake.Advance(testVisibility)
		if again, err := provider.ReceiveMessage(ctx, url, 0); err != nil || again != nil {
			t.Errorf("ReceiveMessage after delete = %+v, %v; want nothing", again, err)
		}
	})

	t.Run("EmptyPollReturnsNil", func(t *testing.T) {
		provider := b.open(t, clock.Fake(epoch))
		url := mustCreate(t, provider, "idle")
		message, err := provider.ReceiveMessage(context.Background(), url, 0)
		if err != nil || message != nil {
			t.Fatalf("ReceiveMessage = %+v, %v; want nil, nil", message, err)
		}
	})

	t.Run("FIFOWithinEndpoint", func(t *testing.T) {
		ctx := context.Background()
		fake := clock.Fake(epoch)
		provider := b.open(t, fake)
		url := mustCreate(t, provider, "ordered")

		for _, body := range []string{"first", "second", "third"} {
			if _, err := provider.SendMessage(ctx, url, body, nil); err != nil {
				t.Fatalf("SendMessage: %v", err)
			}
			fake.Advance(time.Millisecond)
		}
		for _, want := range []string{"first", "second", "third"} {
			message, err := provider.ReceiveMessage(ctx, url, 0)
			if err != nil || message == nil {
				t.Fatalf("ReceiveMessage = %+v, %v", message, err)
			}
			if message.Body != want {
				t.Errorf("Body = %q, want %q", message.Body, want)
			}
			if err := provider.DeleteMessage(ctx, url, message.Receipt); err != nil {
				t.Fatalf("DeleteMessage: %v", err)
			}
		}
	})

	t.Run("RetentionDiscardsOldMessages", func(t *testing.T) {
		ctx := context.Background()
		fake := clock.Fake(epoch)
		provider := b.open(t, fake)
		url := mustCreate(t, provider, "stale")

		if _, err := provider.SendMessage(ctx, url, "old", nil); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		fake.Advance(testRetention)
		if message, err := provider.ReceiveMessage(ctx, url, 0); err != nil || message != nil {
			t.Errorf("ReceiveMessage after retention = %+v, %v; want nothing", message, err)
		}
	})

	if !b.hasVisibility {
		return
	}

	t.Run("UndeletedMessageIsRedelivered", func(t *testing.T) {
		ctx := context.Background()
		fake := clock.Fake(epoch)
		provider := b.open(t, fake)
		url := mustCreate(t, provider, "redeliver")

		id, err := provider.SendMessage(ctx, url, "once", nil)
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		first, err := provider.ReceiveMessage(ctx, url, 0)
		if err != nil || first == nil {
			t.Fatalf("first ReceiveMessage = %+v, %v", first, err)
		}
		if hidden, _ := provider.ReceiveMessage(ctx, url, 0); hidden != nil {
			t.Fatal("message visible again before the visibility timeout")
		}

		fake.Advance(testVisibility)
		second, err := provider.ReceiveMessage(ctx, url, 0)
		if err != nil || second == nil {
			t.Fatalf("ReceiveMessage after visibility timeout = %+v, %v", second, err)
		}
		if second.ID != id {
			t.Errorf("redelivered ID = %s, want %s", second.ID, id)
		}
		if second.Receipt == first.Receipt {
			t.Error("redelivery reused the old receipt")
		}

		// The stale receipt no longer removes the message.
		if err := provider.DeleteMessage(ctx, url, first.Receipt); err != nil {
			t.Fatalf("DeleteMessage with stale receipt: %v", err)
		}
		if err := provider.DeleteMessage(ctx, url, second.Receipt); err != nil {
			t.Fatalf("DeleteMessage: %v", err)
		}
		fake.Advance(testVisibility)
		if again, _ := provider.ReceiveMessage(ctx, url, 0); again != nil {
			t.Error("message delivered after delete with current receipt")
		}
	})
}

func TestMemoryReceiveWakesOnSend(t *testing.T) {
	fake := clock.Fake(epoch)
	provider := NewMemory(MemoryConfig{Clock: fake})
	url := mustCreate(t, provider, "waiting")

	received := make(chan *Message, 1)
	go func() {
		message, err := provider.ReceiveMessage(context.Background(), url, 10*time.Second)
		if err != nil {
			t.Errorf("ReceiveMessage: %v", err)
		}
		received <- message
	}()

	fake.WaitForTimers(1)
	if _, err := provider.SendMessage(context.Background(), url, "wake", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	message := testutil.RequireReceive(t, received, 5*time.Second, "receiver woken by send")
	if message == nil || message.Body != "wake" {
		t.Fatalf("received %+v, want body wake", message)
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after the wait ended", fake.PendingCount())
	}
}

func TestMemoryReceiveTimesOut(t *testing.T) {
	fake := clock.Fake(epoch)
	provider := NewMemory(MemoryConfig{Clock: fake, MaxPollWait: 5 * time.Second})
	url := mustCreate(t, provider, "quiet")

	received := make(chan *Message, 1)
	go func() {
		// Longer than MaxPollWait: clamped to 5s.
		message, _ := provider.ReceiveMessage(context.Background(), url, time.Minute)
		received <- message
	}()

	fake.WaitForTimers(1)
	fake.Advance(5 * time.Second)
	if message := testutil.RequireReceive(t, received, 5*time.Second, "receive timeout"); message != nil {
		t.Fatalf("received %+v, want nil", message)
	}
}

func TestMemoryReceiveHonorsContext(t *testing.T) {
	provider := NewMemory(MemoryConfig{Clock: clock.Fake(epoch)})
	url := mustCreate(t, provider, "cancelled")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context only matters once the receive has to wait.
	if _, err := provider.ReceiveMessage(ctx, url, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSQLiteReceivePollsUntilDeadline(t *testing.T) {
	fake := clock.Fake(epoch)
	provider, err := OpenSQLite(SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "queue.db"),
		Clock:        fake,
		PollInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer provider.Close()
	url := mustCreate(t, provider, "polled")

	received := make(chan *Message, 1)
	go func() {
		message, err := provider.ReceiveMessage(context.Background(), url, 3*time.Second)
		if err != nil {
			t.Errorf("ReceiveMessage: %v", err)
		}
		received <- message
	}()

	fake.WaitForTimers(1)
	if _, err := provider.SendMessage(context.Background(), url, "late", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	fake.Advance(time.Second)

	message := testutil.RequireReceive(t, received, 5*time.Second, "polled receive")
	if message == nil || message.Body != "late" {
		t.Fatalf("received %+v, want body late", message)
	}
}

func TestSQLiteSharedBetweenProviders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	open := func() *SQLiteProvider {
		provider, err := OpenSQLite(SQLiteConfig{Path: path, Namespace: "Sera"})
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { provider.Close() })
		return provider
	}
	master, watcher := open(), open()

	url, err := master.CreateEndpoint(ctx, "host1")
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if _, err := master.SendMessage(ctx, url, "echo", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	resolved, err := watcher.GetEndpoint(ctx, "host1")
	if err != nil {
		t.Fatalf("GetEndpoint from second process: %v", err)
	}
	message, err := watcher.ReceiveMessage(ctx, resolved, 0)
	if err != nil || message == nil || message.Body != "echo" {
		t.Fatalf("ReceiveMessage = %+v, %v", message, err)
	}
}

func TestTransientErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := transient("send message", cause)
	if !IsTransient(err) {
		t.Fatal("IsTransient(TransientError) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("TransientError does not unwrap to its cause")
	}
	if IsTransient(ErrEndpointNotFound) {
		t.Error("IsTransient(ErrEndpointNotFound) = true")
	}
	if transient("op", nil) != nil {
		t.Error("transient(nil) should be nil")
	}
}

func mustCreate(t *testing.T, provider Provider, name string) string {
	t.Helper()
	url, err := provider.CreateEndpoint(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateEndpoint(%q): %v", name, err)
	}
	return url
}
