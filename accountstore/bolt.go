// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/walleterr"
	bolt "go.etcd.io/bbolt"
)

var (
	// accountsBucketName is the top level bucket holding every account
	// keyed by ID.
	accountsBucketName = []byte("accounts")

	// errUnknownAccount aborts an update transaction that names an ID
	// which is not stored.
	errUnknownAccount = errors.New("unknown account")
)

// BoltStore keeps accounts in a bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at dbPath.
func OpenBolt(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, persistErr("failed to open "+dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, persistErr("failed to create accounts bucket", err)
	}

	log.Debugf("Opened account database %s", dbPath)

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SetAccount inserts or replaces the account.
func (s *BoltStore) SetAccount(_ context.Context, a *Account) error {
	if err := a.validate(); err != nil {
		return err
	}
	v, err := encodeAccount(a)
	if err != nil {
		return persistErr("failed to encode account", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucketName).Put([]byte(a.ID), v)
	})
	if err != nil {
		return persistErr("failed to store account "+a.ID, err)
	}
	return nil
}

// UpdateAccounts replaces the keystores of the named accounts in a single
// transaction.  It returns false without writing anything when an ID is not
// stored.
func (s *BoltStore) UpdateAccounts(_ context.Context,
	records map[string]*keycrypt.KeystoreRecord) (bool, error) {

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucketName)
		for id, record := range records {
			v := b.Get([]byte(id))
			if v == nil {
				log.Warnf("Update names unknown account %s", id)
				return errUnknownAccount
			}
			a, err := decodeAccount(id, v)
			if err != nil {
				return err
			}
			a.Keystore = record

			v, err = encodeAccount(a)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), v); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, errUnknownAccount):
		return false, nil
	case err != nil:
		return false, persistErr("failed to update accounts", err)
	}
	return true, nil
}

// V3Accounts returns every account except the HD root, ordered by ID.
func (s *BoltStore) V3Accounts(_ context.Context) ([]*Account, error) {
	var accounts []*Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucketName).ForEach(func(k, v []byte) error {
			id := string(k)
			if id == HDKeyID {
				return nil
			}
			a, err := decodeAccount(id, v)
			if err != nil {
				return err
			}
			accounts = append(accounts, a)
			return nil
		})
	})
	if err != nil {
		return nil, persistErr("failed to read accounts", err)
	}

	return accounts, nil
}

// HDKey returns the HD root keystore, or nil when none is stored.
func (s *BoltStore) HDKey(_ context.Context) (*keycrypt.KeystoreRecord,
	error) {

	var record *keycrypt.KeystoreRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucketName).Get([]byte(HDKeyID))
		if v == nil {
			return nil
		}
		a, err := decodeAccount(HDKeyID, v)
		if err != nil {
			return err
		}
		record = a.Keystore
		return nil
	})
	if err != nil {
		return nil, persistErr("failed to read HD key", err)
	}
	return record, nil
}

// RemoveAccount deletes the account.  Removing an unknown ID fails with
// ErrNotFound.
func (s *BoltStore) RemoveAccount(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucketName)
		if b.Get([]byte(id)) == nil {
			return errUnknownAccount
		}
		return b.Delete([]byte(id))
	})
	switch {
	case errors.Is(err, errUnknownAccount):
		return walleterr.New(walleterr.ErrNotFound,
			"no account "+id, nil)
	case err != nil:
		return persistErr("failed to remove account "+id, err)
	}
	return nil
}
