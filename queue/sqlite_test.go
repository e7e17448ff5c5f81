// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/testutil"
)

func TestSQLiteCorruptMessageIsReportedAndDeletable(t *testing.T) {
	ctx := context.Background()
	fake := clock.Fake(epoch)
	provider, err := OpenSQLite(SQLiteConfig{
		Path:       filepath.Join(t.TempDir(), "queue.db"),
		Namespace:  "Test",
		Clock:      fake,
		Logger:     testutil.Logger(t),
		Retention:  testRetention,
		Visibility: testVisibility,
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { provider.Close() })
	url := mustCreate(t, provider, "host1")

	id, err := provider.SendMessage(ctx, url, "decrypt abc", Attributes{
		AttributeSender: StringAttribute("master"),
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	err = provider.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `UPDATE messages SET compression = 99`, nil)
	})
	if err != nil {
		t.Fatalf("corrupting row: %v", err)
	}

	message, err := provider.ReceiveMessage(ctx, url, 0)
	if message != nil {
		t.Fatalf("ReceiveMessage returned %+v for a corrupt row", message)
	}
	var corrupt *CorruptMessageError
	if !errors.As(err, &corrupt) {
		t.Fatalf("ReceiveMessage error = %v, want *CorruptMessageError", err)
	}
	if !errors.Is(err, ErrCorruptMessage) || IsTransient(err) {
		t.Errorf("error %v: Is(ErrCorruptMessage) = %v, IsTransient = %v", err, errors.Is(err, ErrCorruptMessage), IsTransient(err))
	}
	if corrupt.ID != id || corrupt.Receipt == "" {
		t.Errorf("corrupt = {ID %q, Receipt %q}, want ID %q with a receipt", corrupt.ID, corrupt.Receipt, id)
	}

	if err := provider.DeleteMessage(ctx, url, corrupt.Receipt); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	fake.Advance(testVisibility)
	if again, err := provider.ReceiveMessage(ctx, url, 0); err != nil || again != nil {
		t.Errorf("ReceiveMessage after deleting the corrupt row = %+v, %v; want nothing", again, err)
	}
}
