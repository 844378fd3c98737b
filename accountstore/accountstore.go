// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package accountstore persists encrypted accounts.
//
// Every persisted row is an Account identified by an ID: the checksum
// address for wallets, HDKeyID for the HD root and CacheID(variant) for the
// extended public key cache.  Two backends are provided, a bbolt file and a
// SQL database (SQLite or PostgreSQL).  Both apply UpdateAccounts batches in
// a single transaction so a batch is either fully written or not at all.
package accountstore

import (
	"strings"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// HDKeyID is the ID of the HD root keystore.
	HDKeyID = "hdkey"

	cachePrefix = "xpub/"
)

// WalletID returns the ID of the wallet at addr.
func WalletID(addr common.Address) string {
	return addr.Hex()
}

// CacheID returns the ID of the cached extended public key of v.
func CacheID(v hwproxy.Variant) string {
	return cachePrefix + v.String()
}

// Account is a persisted row.
type Account struct {
	// ID identifies the row.
	ID string

	// Kind is the wallet kind.  It is zero for extended public key cache
	// entries.
	Kind wallet.Kind

	// Variant is the signer variant of hardware wallets and cache
	// entries.
	Variant hwproxy.Variant

	// Index is the derivation index of HD children and hardware wallets.
	Index uint32

	// Keystore is the account's record, if any.  Cache entries hold a
	// public record when the xpub is stored in the clear.
	Keystore *keycrypt.KeystoreRecord
}

// IsCache reports whether the account is an extended public key cache entry.
func (a *Account) IsCache() bool {
	return strings.HasPrefix(a.ID, cachePrefix)
}

// validate checks the fields the backends rely on.
func (a *Account) validate() error {
	if a == nil || a.ID == "" {
		return walleterr.New(walleterr.ErrInvalidParams,
			"account has no id", nil)
	}
	return nil
}

func persistErr(op string, err error) error {
	return walleterr.New(walleterr.ErrPersistence, op, err)
}
