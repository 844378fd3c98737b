// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build integration_test

package sqltest

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// Statements in the placeholder and upsert dialect shared by both engines.
const (
	createSQL = `
		CREATE TABLE IF NOT EXISTS caches (
			variant TEXT PRIMARY KEY,
			xpub TEXT
		);`
	upsertSQL = `
		INSERT INTO caches (variant, xpub) VALUES ($1, $2)
		ON CONFLICT (variant) DO UPDATE SET xpub = excluded.xpub`
	selectSQL = `SELECT xpub FROM caches WHERE variant = $1`
	countSQL  = `SELECT COUNT(*) FROM caches`
)

// TestFreshDatabases ensures every test gets its own empty database.
func TestFreshDatabases(t *testing.T) {
	ForEachBackend(t, func(t *testing.T, b Backend) {
		for i := range 3 {
			t.Run(fmt.Sprintf("db%d", i), func(t *testing.T) {
				t.Parallel()

				db := b.Open(t)
				_, err := db.Exec(createSQL)
				require.NoError(t, err)

				var count int
				require.NoError(t, db.QueryRow(countSQL).Scan(&count))
				require.Zero(t, count)

				for _, v := range []string{"trezor", "ledger"} {
					_, err := db.Exec(upsertSQL, v, "xpub")
					require.NoError(t, err)
				}
				require.NoError(t, db.QueryRow(countSQL).Scan(&count))
				require.Equal(t, 2, count)
			})
		}
	})
}

// TestUpsert ensures upserts replace rows and keep NULL.
func TestUpsert(t *testing.T) {
	ForEachBackend(t, func(t *testing.T, b Backend) {
		db := b.Open(t)
		_, err := db.Exec(createSQL)
		require.NoError(t, err)

		_, err = db.Exec(upsertSQL, "trezor", "first")
		require.NoError(t, err)
		_, err = db.Exec(upsertSQL, "trezor", "second")
		require.NoError(t, err)

		var xpub sql.NullString
		require.NoError(t, db.QueryRow(selectSQL, "trezor").Scan(&xpub))
		require.Equal(t, "second", xpub.String)

		_, err = db.Exec(upsertSQL, "trezor", sql.NullString{})
		require.NoError(t, err)
		require.NoError(t, db.QueryRow(selectSQL, "trezor").Scan(&xpub))
		require.False(t, xpub.Valid)

		err = db.QueryRow(selectSQL, "ledger").Scan(&xpub)
		require.ErrorIs(t, err, sql.ErrNoRows)
	})
}
