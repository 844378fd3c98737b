// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/ethwallet/accountstore"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// CreateHDRoot derives the account node of mnemonic along the configured
// path, stores it encrypted under password as the HD root and derives its
// first child wallet.
func (r *Registry) CreateHDRoot(ctx context.Context, mnemonic string,
	password []byte) (*wallet.HDChild, error) {

	if r.HDRoot().IsSome() {
		return nil, r.report(walleterr.New(walleterr.ErrInvalidParams,
			"an HD root already exists", nil))
	}
	if err := r.provePassword(password); err != nil {
		return nil, r.report(err)
	}

	node, err := hdkeys.NodeFromMnemonic(mnemonic, r.cfg.Path)
	if err != nil {
		return nil, r.report(err)
	}
	root, err := wallet.NewHDRoot(node, password, r.cfg.Params)
	node.Zero()
	if err != nil {
		return nil, r.report(err)
	}
	if err := r.AddWallet(ctx, root); err != nil {
		return nil, err
	}

	return r.DeriveNextHDWallet(ctx, password)
}

// DeriveNextHDWallet decrypts the HD root with password and registers and
// selects the child at the next free index.  The index starts at the number
// of wallets that are not watch-only and skips indexes already held by HD
// children as well as children whose address is already registered.
//
// Concurrent calls are collapsed: callers arriving while a derivation is in
// flight receive its wallet, provided their password unlocks it.
func (r *Registry) DeriveNextHDWallet(ctx context.Context,
	password []byte) (*wallet.HDChild, error) {

	v, err, shared := r.deriveGroup.Do("derive", func() (interface{}, error) {
		return r.deriveNext(ctx, password)
	})
	if err != nil {
		return nil, r.report(err)
	}

	child := v.(*wallet.HDChild)
	if shared && !child.ValidatePassword(password) {
		return nil, r.report(walleterr.New(walleterr.ErrInvalidPassword,
			"password does not unlock the HD root", nil))
	}
	return child, nil
}

func (r *Registry) deriveNext(ctx context.Context,
	password []byte) (*wallet.HDChild, error) {

	root := r.HDRoot().UnwrapOr(nil)
	if root == nil {
		return nil, walleterr.New(walleterr.ErrNoHDKey,
			"no HD root", nil)
	}
	node, err := root.Node(password)
	if err != nil {
		return nil, err
	}
	defer node.Zero()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hdRoot != root {
		return nil, walleterr.New(walleterr.ErrInvalidParams,
			"HD root changed during derivation", nil)
	}

	index, err := r.nextIndexLocked(node)
	if err != nil {
		return nil, err
	}
	child, err := wallet.NewHDChild(node, index, password, r.cfg.Params)
	if err != nil {
		return nil, err
	}
	if err := r.addLocked(ctx, child); err != nil {
		return nil, err
	}
	r.selected = fn.Some(child.Address())

	return child, nil
}

// nextIndexLocked returns the first free child index of node.
func (r *Registry) nextIndexLocked(node *hdkeys.Node) (uint32, error) {
	var count uint32
	used := make(map[uint32]struct{})
	for _, w := range r.wallets {
		if w.IsPublic() {
			continue
		}
		count++
		if c, ok := w.(*wallet.HDChild); ok {
			used[c.Index()] = struct{}{}
		}
	}

	for index := count; index < hdkeychain.HardenedKeyStart; index++ {
		if _, ok := used[index]; ok {
			continue
		}
		child, err := hdkeys.DeriveChild(node, index)
		if err != nil {
			return 0, err
		}
		addr, err := hdkeys.AddressOf(child)
		child.Zero()
		if err != nil {
			return 0, err
		}
		if _, ok := r.wallets[addr]; ok {
			log.Debugf("Child %d (%v) already registered", index, addr)
			continue
		}
		return index, nil
	}

	return 0, walleterr.New(walleterr.ErrDerivation,
		"no free child index", nil)
}

// AddHDPublic stores the account node of mnemonic, encrypted under
// password, as the extended public key cache of VariantHDPublic.  Its
// addresses are then listed with NextWallets and adopted with
// RegisterHardwareChild.
func (r *Registry) AddHDPublic(ctx context.Context, mnemonic string,
	password []byte) (string, error) {

	if err := r.provePassword(password); err != nil {
		return "", r.report(err)
	}

	node, err := hdkeys.NodeFromMnemonic(mnemonic, r.cfg.Path)
	if err != nil {
		return "", r.report(err)
	}
	defer node.Zero()

	record, err := node.Keystore(password, r.cfg.Params)
	if err != nil {
		return "", r.report(err)
	}
	if err := r.saveCache(ctx, hwproxy.VariantHDPublic, record); err != nil {
		return "", r.report(err)
	}
	return record.Address, nil
}

// saveCache persists and caches record for v.
func (r *Registry) saveCache(ctx context.Context, v hwproxy.Variant,
	record *keycrypt.KeystoreRecord) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.cfg.Store.SetAccount(ctx, &accountstore.Account{
		ID:       accountstore.CacheID(v),
		Variant:  v,
		Keystore: record,
	})
	if err != nil {
		return err
	}
	r.xpubs[v] = record

	log.Infof("Cached %v extended public key %s", v, record.Address)
	return nil
}

// CachedExtendedPublicKey returns the cached extended public key record of
// v without decrypting anything.
func (r *Registry) CachedExtendedPublicKey(
	v hwproxy.Variant) fn.Option[*keycrypt.KeystoreRecord] {

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.xpubs[v]
	if !ok {
		return fn.None[*keycrypt.KeystoreRecord]()
	}
	return fn.Some(record.Clone())
}

func (r *Registry) proxy(v hwproxy.Variant) (hwproxy.Proxy, error) {
	p, ok := r.cfg.Proxies[v]
	if !ok || p == nil {
		return nil, walleterr.New(walleterr.ErrDeviceUnavailable,
			fmt.Sprintf("no %v signer configured", v), nil)
	}
	return p, nil
}

// NextWallets lists limit addresses of variant v starting at offset.  The
// device is only contacted when no extended public key is cached for v; a
// newly learned key is cached.
func (r *Registry) NextWallets(ctx context.Context, v hwproxy.Variant,
	offset, limit uint32) ([]common.Address, error) {

	p, err := r.proxy(v)
	if err != nil {
		return nil, r.report(err)
	}

	var cached string
	r.CachedExtendedPublicKey(v).WhenSome(func(rec *keycrypt.KeystoreRecord) {
		cached = rec.Address
	})

	res, err := p.NextWallets(ctx, &hwproxy.NextWalletsParams{
		XPub:   cached,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, r.report(err)
	}

	if res.XPub != cached {
		record := keycrypt.PublicRecord(res.XPub)
		if err := r.saveCache(ctx, v, record); err != nil {
			return nil, r.report(err)
		}
	}
	return res.Addresses, nil
}

// RegisterHardwareChild adopts the child at index of the cached key tree of
// v after checking that address is the child's address.  A mismatch fails
// with ErrIntegrityMismatch and registers nothing.
//
// Without a password, a hardware wallet signing through the device is
// registered.  With a password, which requires an encrypted cache entry,
// the child key is decrypted and stored as a private key wallet encrypted
// under password.  The password must also unlock the existing encrypted
// material so every keystore shares one password.
func (r *Registry) RegisterHardwareChild(ctx context.Context,
	v hwproxy.Variant, password []byte, address common.Address,
	index uint32) (wallet.Wallet, error) {

	w, err := r.hardwareChild(v, password, address, index)
	if err != nil {
		return nil, r.report(err)
	}
	if err := r.AddWalletAndSelect(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Registry) hardwareChild(v hwproxy.Variant, password []byte,
	address common.Address, index uint32) (wallet.Wallet, error) {

	record := r.CachedExtendedPublicKey(v).UnwrapOr(nil)
	if record == nil {
		return nil, walleterr.New(walleterr.ErrNoHDKey,
			fmt.Sprintf("no %v extended public key cached", v), nil)
	}

	expected, err := hwproxy.AddressAt(record.Address, index)
	if err != nil {
		return nil, err
	}
	if expected != address {
		log.Errorf("%v child %d is %v, signer asserted %v", v, index,
			expected, address)
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			fmt.Sprintf("address %v is not %v child %d", address, v,
				index), nil)
	}

	if len(password) == 0 {
		if !v.IsDevice() {
			return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
				fmt.Sprintf("%v child needs a password", v), nil)
		}
		return wallet.NewHardware(address, v, index, r.cfg.Proxies[v]), nil
	}

	if !record.IsEncrypted() {
		return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
			fmt.Sprintf("%v keys are not held locally", v), nil)
	}
	if err := r.provePassword(password); err != nil {
		return nil, err
	}

	parent, err := hdkeys.NodeFromKeystore(password, record)
	if err != nil {
		return nil, err
	}
	defer parent.Zero()

	child, err := hdkeys.DeriveChild(parent, index)
	if err != nil {
		return nil, err
	}
	defer child.Zero()

	key, err := child.PrivateKey()
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(key)

	w, err := wallet.NewPrivateKey(key, password, r.cfg.Params)
	if err != nil {
		return nil, err
	}
	if w.Address() != address {
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			"decrypted child does not match its extended public key",
			nil)
	}
	return w, nil
}
