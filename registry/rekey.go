// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"context"

	"github.com/btcsuite/ethwallet/accountstore"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
)

// KeyedState is a snapshot of every encrypted keystore held by the
// registry.
type KeyedState struct {
	// HDRoot is nil when no HD root exists.
	HDRoot *wallet.HDRoot

	// Wallets holds the key backed wallets by address.
	Wallets map[common.Address]wallet.Keyed

	// XPubs holds the encrypted extended key cache entries.  Entries that
	// only carry an extended public key are not part of the snapshot.
	XPubs map[hwproxy.Variant]*keycrypt.KeystoreRecord
}

// Records returns the number of keystores in the snapshot.
func (s *KeyedState) Records() int {
	n := len(s.Wallets) + len(s.XPubs)
	if s.HDRoot != nil {
		n++
	}
	return n
}

// Rekeyed holds the replacement keystores of a KeyedState.  Every keystore
// of the snapshot must have a replacement.
type Rekeyed struct {
	HDRoot  *keycrypt.KeystoreRecord
	Wallets map[common.Address]*keycrypt.KeystoreRecord
	XPubs   map[hwproxy.Variant]*keycrypt.KeystoreRecord
}

// KeyedState returns a snapshot of the encrypted keystores.
func (r *Registry) KeyedState() *KeyedState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.keyedStateLocked()
}

func (r *Registry) keyedStateLocked() *KeyedState {
	s := &KeyedState{
		HDRoot:  r.hdRoot,
		Wallets: make(map[common.Address]wallet.Keyed),
		XPubs:   make(map[hwproxy.Variant]*keycrypt.KeystoreRecord),
	}
	for addr, w := range r.wallets {
		if k, ok := w.(wallet.Keyed); ok {
			s.Wallets[addr] = k
		}
	}
	for v, record := range r.xpubs {
		if record.IsEncrypted() {
			s.XPubs[v] = record
		}
	}
	return s
}

// unchangedLocked reports whether snap still describes the registry.
func (r *Registry) unchangedLocked(snap *KeyedState) bool {
	cur := r.keyedStateLocked()
	if cur.HDRoot != snap.HDRoot || len(cur.Wallets) != len(snap.Wallets) ||
		len(cur.XPubs) != len(snap.XPubs) {

		return false
	}
	for addr, w := range cur.Wallets {
		if snap.Wallets[addr] != w {
			return false
		}
	}
	for v, record := range cur.XPubs {
		if snap.XPubs[v] != record {
			return false
		}
	}
	return true
}

// CommitRekey atomically replaces every keystore of snap with its
// counterpart in next.  The store is updated in one batch before anything
// changes in memory; when the batch fails or is refused the registry and the
// store are left untouched and ErrPersistence is returned.  The registry
// must not have changed since snap was taken.
func (r *Registry) CommitRekey(ctx context.Context, snap *KeyedState,
	next *Rekeyed) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.unchangedLocked(snap) {
		return r.report(walleterr.New(walleterr.ErrInvalidParams,
			"wallets changed while re-keying", nil))
	}

	records, err := rekeyRecords(snap, next)
	if err != nil {
		return r.report(err)
	}

	// A record that does not fit its wallet fails here, before the write.
	var root *wallet.HDRoot
	if snap.HDRoot != nil {
		k, err := snap.HDRoot.WithKeystore(next.HDRoot)
		if err != nil {
			return r.report(err)
		}
		root = k.(*wallet.HDRoot)
	}
	wallets := make(map[common.Address]wallet.Wallet, len(snap.Wallets))
	for addr, w := range snap.Wallets {
		k, err := w.WithKeystore(next.Wallets[addr])
		if err != nil {
			return r.report(err)
		}
		wallets[addr] = k
	}

	ok, err := r.cfg.Store.UpdateAccounts(ctx, records)
	switch {
	case err != nil:
		return r.report(walleterr.New(walleterr.ErrPersistence,
			"re-keyed accounts not saved", err))

	case !ok:
		return r.report(walleterr.New(walleterr.ErrPersistence,
			"store refused the re-keyed accounts", nil))
	}

	if root != nil {
		r.hdRoot = root
	}
	for addr, w := range wallets {
		r.wallets[addr] = w
	}
	for v, record := range next.XPubs {
		r.xpubs[v] = record.Clone()
	}

	log.Infof("Re-keyed %d %s", len(records),
		pickNoun(len(records), "keystore", "keystores"))
	return nil
}

// rekeyRecords maps next onto account IDs, checking it covers snap.
func rekeyRecords(snap *KeyedState,
	next *Rekeyed) (map[string]*keycrypt.KeystoreRecord, error) {

	missing := func(what string) error {
		return walleterr.New(walleterr.ErrInvalidParams,
			"no replacement keystore for "+what, nil)
	}

	records := make(map[string]*keycrypt.KeystoreRecord, snap.Records())
	if snap.HDRoot != nil {
		if next.HDRoot == nil {
			return nil, missing("the HD root")
		}
		records[accountstore.HDKeyID] = next.HDRoot
	}
	for addr := range snap.Wallets {
		record, ok := next.Wallets[addr]
		if !ok || record == nil {
			return nil, missing(addr.Hex())
		}
		records[accountstore.WalletID(addr)] = record
	}
	for v, old := range snap.XPubs {
		record, ok := next.XPubs[v]
		if !ok || record == nil {
			return nil, missing(v.String() + " cache")
		}
		if !record.IsEncrypted() || record.Address != old.Address {
			return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
				"keystore does not hold the "+v.String()+" key", nil)
		}
		records[accountstore.CacheID(v)] = record
	}
	if len(records) != len(next.Wallets)+len(next.XPubs)+
		boolToInt(next.HDRoot != nil) {

		return nil, walleterr.New(walleterr.ErrInvalidParams,
			"replacement keystores do not match the snapshot", nil)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
