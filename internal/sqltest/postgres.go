// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build integration_test

package sqltest

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	// Register the pgx driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// pgServer is the container shared by every test of the process.
var pgServer struct {
	once sync.Once
	dsn  string
	err  error
}

// serverDSN starts the container on first use and returns the DSN of its
// maintenance database.
func serverDSN(t testing.TB) string {
	t.Helper()

	pgServer.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			2*time.Minute)
		defer cancel()

		c, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("ethwallet"),
			postgres.WithUsername("ethwallet"),
			postgres.WithPassword("ethwallet"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			pgServer.err = err
			return
		}
		pgServer.dsn, pgServer.err = c.ConnectionString(ctx,
			"sslmode=disable")
	})
	require.NoError(t, pgServer.err, "postgres container")

	return pgServer.dsn
}

// exec runs stmt on the maintenance database.
func exec(ctx context.Context, dsn, stmt string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, stmt)
	return err
}

// Postgres creates a database in the shared container and drops it when t
// ends.
func Postgres(t testing.TB) *sql.DB {
	t.Helper()

	admin := serverDSN(t)
	name := dbName(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, exec(ctx, admin, "CREATE DATABASE "+name))

	u, err := url.Parse(admin)
	require.NoError(t, err)
	u.Path = "/" + name

	db, err := sql.Open("pgx", u.String())
	require.NoError(t, err)
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(30 * time.Second)

	t.Cleanup(func() {
		db.Close()

		ctx, cancel := context.WithTimeout(context.Background(),
			30*time.Second)
		defer cancel()

		stmt := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)",
			name)
		if err := exec(ctx, admin, stmt); err != nil {
			t.Logf("Unable to drop %s: %v", name, err)
		}
	})
	return db
}
