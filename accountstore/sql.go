// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accountstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register the SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

// The statements below are understood by both PostgreSQL and SQLite.
const (
	createAccountsSQL = `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			kind INTEGER NOT NULL,
			variant INTEGER NOT NULL,
			idx BIGINT NOT NULL,
			keystore TEXT
		);`

	upsertAccountSQL = `
		INSERT INTO accounts (id, kind, variant, idx, keystore)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			variant = excluded.variant,
			idx = excluded.idx,
			keystore = excluded.keystore`

	updateKeystoreSQL = `UPDATE accounts SET keystore = $1 WHERE id = $2`

	selectAccountsSQL = `
		SELECT id, kind, variant, idx, keystore FROM accounts
		WHERE id <> $1 ORDER BY id`

	selectKeystoreSQL = `SELECT keystore FROM accounts WHERE id = $1`

	deleteAccountSQL = `DELETE FROM accounts WHERE id = $1`
)

// SQLStore keeps accounts in a SQL database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the accounts table in db if needed and returns a store
// using it.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, createAccountsSQL); err != nil {
		return nil, persistErr("failed to create accounts table", err)
	}
	return &SQLStore{db: db}, nil
}

// OpenSQLite opens or creates the SQLite database file at dbPath.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=rwc")
	if err != nil {
		return nil, persistErr("failed to open "+dbPath, err)
	}

	// SQLite serializes writers; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)

	return openSQL(ctx, db)
}

// OpenPostgres connects to the PostgreSQL database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, persistErr("failed to open postgres", err)
	}
	return openSQL(ctx, db)
}

func openSQL(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, persistErr("failed to reach database", err)
	}
	s, err := NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func marshalKeystore(r *keycrypt.KeystoreRecord) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := r.Marshal()
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalKeystore(s sql.NullString) (*keycrypt.KeystoreRecord, error) {
	if !s.Valid {
		return nil, nil
	}
	return keycrypt.ParseRecord([]byte(s.String))
}

// SetAccount inserts or replaces the account.
func (s *SQLStore) SetAccount(ctx context.Context, a *Account) error {
	if err := a.validate(); err != nil {
		return err
	}
	keystore, err := marshalKeystore(a.Keystore)
	if err != nil {
		return persistErr("failed to encode keystore", err)
	}

	_, err = s.db.ExecContext(ctx, upsertAccountSQL, a.ID, int64(a.Kind),
		int64(a.Variant), int64(a.Index), keystore)
	if err != nil {
		return persistErr("failed to store account "+a.ID, err)
	}
	return nil
}

// UpdateAccounts replaces the keystores of the named accounts in a single
// transaction.  It returns false without writing anything when an ID is not
// stored.
func (s *SQLStore) UpdateAccounts(ctx context.Context,
	records map[string]*keycrypt.KeystoreRecord) (bool, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, persistErr("failed to begin transaction", err)
	}
	defer func() {
		// Rollback after Commit returns sql.ErrTxDone.
		_ = tx.Rollback()
	}()

	for id, record := range records {
		keystore, err := marshalKeystore(record)
		if err != nil {
			return false, persistErr("failed to encode keystore", err)
		}
		res, err := tx.ExecContext(ctx, updateKeystoreSQL, keystore, id)
		if err != nil {
			return false, persistErr("failed to update account "+id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, persistErr("failed to update account "+id, err)
		}
		if n == 0 {
			log.Warnf("Update names unknown account %s", id)
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, persistErr("failed to commit accounts", err)
	}
	return true, nil
}

// V3Accounts returns every account except the HD root, ordered by ID.
func (s *SQLStore) V3Accounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, selectAccountsSQL, HDKeyID)
	if err != nil {
		return nil, persistErr("failed to read accounts", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var (
			id                 string
			kind, variant, idx int64
			keystore           sql.NullString
		)
		err := rows.Scan(&id, &kind, &variant, &idx, &keystore)
		if err != nil {
			return nil, persistErr("failed to read accounts", err)
		}
		record, err := unmarshalKeystore(keystore)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, &Account{
			ID:       id,
			Kind:     wallet.Kind(kind),
			Variant:  hwproxy.Variant(variant),
			Index:    uint32(idx),
			Keystore: record,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("failed to read accounts", err)
	}
	return accounts, nil
}

// HDKey returns the HD root keystore, or nil when none is stored.
func (s *SQLStore) HDKey(ctx context.Context) (*keycrypt.KeystoreRecord,
	error) {

	var keystore sql.NullString
	err := s.db.QueryRowContext(ctx, selectKeystoreSQL, HDKeyID).
		Scan(&keystore)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, persistErr("failed to read HD key", err)
	}
	return unmarshalKeystore(keystore)
}

// RemoveAccount deletes the account.  Removing an unknown ID fails with
// ErrNotFound.
func (s *SQLStore) RemoveAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteAccountSQL, id)
	if err != nil {
		return persistErr("failed to remove account "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("failed to remove account "+id, err)
	}
	if n == 0 {
		return walleterr.New(walleterr.ErrNotFound, "no account "+id, nil)
	}
	return nil
}
