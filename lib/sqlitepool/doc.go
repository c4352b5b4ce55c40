// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the store's SQLite connection pool.
//
// It wraps zombiezen.com/go/sqlite with the defaults the version store
// needs: WAL journal mode, FULL synchronous (the database is the source
// of truth for every version record, so commits must survive power
// loss), busy timeout to absorb write contention, and foreign keys on.
//
// Callers [Pool.Take] a connection, perform work, and [Pool.Put] it
// back, or use [Pool.With]. Connections are NOT safe for concurrent
// use.
//
// # Pragmas
//
//   - journal_mode=WAL: reads never block writes; writes never block
//     reads.
//   - synchronous=FULL: fsync on every commit.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock
//     instead of returning SQLITE_BUSY immediately.
//   - foreign_keys=ON: versions, grants, and reference edges are
//     checked against their parent rows.
//   - cache_size=-8192, mmap_size=268435456, temp_store=MEMORY.
//
// # Schema
//
// [Config.Migrations] is an append-only list of SQL scripts. The
// database's PRAGMA user_version records how many have run; Open
// applies the rest in a single IMMEDIATE transaction before handing
// out connections.
//
//	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
//	    Path:       "/var/lib/wsstore/store.db",
//	    Logger:     logger,
//	    Migrations: migrations,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// The package stays thin: services write SQL, use sqlitex.Execute
// for cached statements, and manage transactions with
// sqlitex.ImmediateTransaction.
package sqlitepool
