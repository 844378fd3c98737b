// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build integration_test

package sqltest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register the sqlite driver.
	_ "modernc.org/sqlite"
)

// SQLite opens a database file in a temporary directory the way the wallet
// opens its own: created on demand behind a single connection.
func SQLite(t testing.TB) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), dbName(t)+".sqlite")
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=rwc")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "sqlite %s", dbPath)

	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}
