// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases with the pragmas sera's
// local queue backend relies on.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, do their work and [Pool.Put] it back, or use
// [Pool.Immediate] to run a function inside a BEGIN IMMEDIATE
// transaction. Connections are not safe for concurrent use.
//
// The queue database is shared between processes on one host: a master
// and a watcher each open the same file. Every connection is
// initialized with:
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a process crash.
//   - busy_timeout (default 5000ms): wait for the write lock held by
//     another process instead of failing with SQLITE_BUSY.
//   - foreign_keys=OFF
//   - temp_store=MEMORY
//
// Schema creation belongs in Config.OnConnect:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDirectory, "queue.db"),
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
package sqlitepool
