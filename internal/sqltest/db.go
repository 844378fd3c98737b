// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build integration_test

// Package sqltest opens empty account databases for the SQL backend tests.
package sqltest

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/require"
)

// Backend is a database engine the account store runs on.
type Backend struct {
	// Name is the driver name the store registers for the engine.
	Name string

	// Open returns a connection to a new empty database owned by t.
	Open func(t testing.TB) *sql.DB
}

// Backends lists every engine an account store can be kept in.
func Backends() []Backend {
	return []Backend{
		{Name: "pgx", Open: Postgres},
		{Name: "sqlite", Open: SQLite},
	}
}

// ForEachBackend runs fn as a parallel subtest per backend.
func ForEachBackend(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Helper()

	for _, b := range Backends() {
		t.Run(b.Name, func(t *testing.T) {
			t.Parallel()
			fn(t, b)
		})
	}
}

// dbName derives the database name of t from the test name so cached test
// results stay valid.  The name is hashed to stay under identifier limits.
func dbName(t testing.TB) string {
	t.Helper()

	h := fnv.New32a()
	_, err := h.Write([]byte(t.Name()))
	require.NoError(t, err)

	return fmt.Sprintf("ethwallet_%08x", h.Sum32())
}
