// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package registry holds the wallets of the signed-in user, the HD root, the
// extended public key cache of the hardware variants and the active
// selection.
//
// Every mutation is written through: the change is persisted with the Store
// first and applied in memory only once the Store succeeded.  A persistence
// failure therefore leaves the registry exactly as it was, and in
// particular never leaves a gap in the HD child indexes.
package registry

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/btcsuite/ethwallet/accountstore"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/singleflight"
)

// Store persists accounts.  UpdateAccounts must be all-or-nothing.
type Store interface {
	// SetAccount inserts or replaces an account.
	SetAccount(ctx context.Context, a *accountstore.Account) error

	// UpdateAccounts replaces the keystores of existing accounts keyed by
	// account ID.  It reports false when nothing was written.
	UpdateAccounts(ctx context.Context,
		records map[string]*keycrypt.KeystoreRecord) (bool, error)

	// V3Accounts returns every account except the HD root.
	V3Accounts(ctx context.Context) ([]*accountstore.Account, error)

	// HDKey returns the HD root keystore or nil.
	HDKey(ctx context.Context) (*keycrypt.KeystoreRecord, error)

	// RemoveAccount deletes an account.
	RemoveAccount(ctx context.Context, id string) error
}

// Config holds the collaborators of a Registry.
type Config struct {
	// Store persists every change.
	Store Store

	// Params are the key derivation parameters of new keystores.
	Params keycrypt.Params

	// Path is the derivation path of the HD root.  It defaults to
	// hdkeys.DefaultPath.
	Path hdkeys.Path

	// Proxies maps each signer variant to its proxy.  VariantHDPublic
	// defaults to an extended public key proxy.
	Proxies map[hwproxy.Variant]hwproxy.Proxy

	// ErrorSink receives every error returned by the registry.
	ErrorSink walleterr.Sink
}

// Registry is the in-memory collection of the user's wallets.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	wallets  map[common.Address]wallet.Wallet
	hdRoot   *wallet.HDRoot
	xpubs    map[hwproxy.Variant]*keycrypt.KeystoreRecord
	selected fn.Option[common.Address]

	deriveGroup singleflight.Group
}

// New returns an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, walleterr.New(walleterr.ErrInvalidParams,
			"registry needs a store", nil)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == nil {
		cfg.Path = hdkeys.MustParsePath(hdkeys.DefaultPath)
	}
	if cfg.ErrorSink == nil {
		cfg.ErrorSink = walleterr.Discard
	}

	proxies := make(map[hwproxy.Variant]hwproxy.Proxy, len(cfg.Proxies)+1)
	for v, p := range cfg.Proxies {
		proxies[v] = p
	}
	if _, ok := proxies[hwproxy.VariantHDPublic]; !ok {
		proxies[hwproxy.VariantHDPublic] = hwproxy.NewXPubProxy()
	}
	cfg.Proxies = proxies

	r := &Registry{cfg: cfg}
	r.resetLocked()
	return r, nil
}

func (r *Registry) resetLocked() {
	r.wallets = make(map[common.Address]wallet.Wallet)
	r.hdRoot = nil
	r.xpubs = make(map[hwproxy.Variant]*keycrypt.KeystoreRecord)
	r.selected = fn.None[common.Address]()
}

// report hands a non-nil err to the error sink and returns it.
func (r *Registry) report(err error) error {
	if err != nil {
		r.cfg.ErrorSink.EmitError(err)
	}
	return err
}

// Params returns the key derivation parameters of new keystores.
func (r *Registry) Params() keycrypt.Params {
	return r.cfg.Params
}

// Reset drops all state.  It is called on sign-out.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()

	log.Infof("Registry cleared")
}

// Load replaces the registry state with the accounts of the store.  The
// selection is kept when the previously selected address is still known and
// otherwise falls back to the first account.
func (r *Registry) Load(ctx context.Context) error {
	hdRecord, err := r.cfg.Store.HDKey(ctx)
	if err != nil {
		return r.report(err)
	}
	accounts, err := r.cfg.Store.V3Accounts(ctx)
	if err != nil {
		return r.report(err)
	}

	var root *wallet.HDRoot
	if hdRecord != nil {
		root, err = wallet.HDRootFromRecord(hdRecord)
		if err != nil {
			return r.report(err)
		}
	}

	wallets := make(map[common.Address]wallet.Wallet, len(accounts))
	xpubs := make(map[hwproxy.Variant]*keycrypt.KeystoreRecord)
	for _, a := range accounts {
		if a.IsCache() {
			if a.Keystore == nil {
				log.Warnf("Skipping empty cache entry %s", a.ID)
				continue
			}
			xpubs[a.Variant] = a.Keystore
			continue
		}
		w, err := r.walletFromAccount(a)
		if err != nil {
			return r.report(err)
		}
		wallets[w.Address()] = w
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.selected
	r.wallets = wallets
	r.hdRoot = root
	r.xpubs = xpubs
	r.selected = fn.None[common.Address]()

	prev.WhenSome(func(addr common.Address) {
		if _, ok := wallets[addr]; ok {
			r.selected = fn.Some(addr)
		}
	})
	if !r.selected.IsSome() {
		r.selectFirstLocked()
	}

	log.Infof("Loaded %d %s (HD root: %v, %d cached %s)", len(wallets),
		pickNoun(len(wallets), "wallet", "wallets"), root != nil,
		len(xpubs), pickNoun(len(xpubs), "xpub", "xpubs"))

	return nil
}

func (r *Registry) walletFromAccount(a *accountstore.Account) (wallet.Wallet,
	error) {

	switch a.Kind {
	case wallet.KindPrivateKey:
		return wallet.PrivateKeyFromRecord(a.Keystore)

	case wallet.KindHDChild:
		return wallet.HDChildFromRecord(a.Keystore, a.Index)
	}

	addr, err := wallet.ParseAddress(a.ID)
	if err != nil {
		return nil, err
	}
	switch a.Kind {
	case wallet.KindHardware:
		return wallet.NewHardware(addr, a.Variant, a.Index,
			r.cfg.Proxies[a.Variant]), nil

	case wallet.KindWatchOnly:
		return wallet.NewWatchOnly(addr), nil
	}

	return nil, walleterr.New(walleterr.ErrInvalidKeystore,
		"account "+a.ID+" has unknown kind "+a.Kind.String(), nil)
}

// accountFor returns the persisted form of w.
func accountFor(w wallet.Wallet) *accountstore.Account {
	a := &accountstore.Account{
		ID:   accountstore.WalletID(w.Address()),
		Kind: w.Kind(),
	}
	switch w := w.(type) {
	case *wallet.HDRoot:
		a.ID = accountstore.HDKeyID
		a.Keystore = w.Keystore()

	case *wallet.HDChild:
		a.Index = w.Index()
		a.Keystore = w.Keystore()

	case *wallet.PrivateKey:
		a.Keystore = w.Keystore()

	case *wallet.Hardware:
		a.Variant = w.Variant()
		a.Index = w.Index()
	}
	return a
}

// addLocked persists w and then registers it.  An HD root replaces the
// registry's HD root.
func (r *Registry) addLocked(ctx context.Context, w wallet.Wallet) error {
	if err := r.cfg.Store.SetAccount(ctx, accountFor(w)); err != nil {
		return err
	}

	if root, ok := w.(*wallet.HDRoot); ok {
		r.hdRoot = root
		log.Infof("Stored HD root %v", root.Address())
		return nil
	}

	if old, ok := r.wallets[w.Address()]; ok {
		log.Debugf("Replacing %v wallet %v", old.Kind(), w.Address())
	}
	r.wallets[w.Address()] = w

	log.Infof("Added %v wallet %v", w.Kind(), w.Address())
	return nil
}

// AddWallet inserts w, replacing any wallet with the same address.  The
// replaced wallet is dropped.
func (r *Registry) AddWallet(ctx context.Context, w wallet.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.report(r.addLocked(ctx, w))
}

// AddWalletAndSelect inserts w and makes it the active wallet.
func (r *Registry) AddWalletAndSelect(ctx context.Context,
	w wallet.Wallet) error {

	if _, ok := w.(*wallet.HDRoot); ok {
		return r.report(walleterr.New(walleterr.ErrUnsupportedOperation,
			"the HD root cannot be selected", nil))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.addLocked(ctx, w); err != nil {
		return r.report(err)
	}
	r.selected = fn.Some(w.Address())
	return nil
}

// ImportPrivateKey encrypts key under password and adds it.  When the
// registry already holds encrypted material, password must be the one
// protecting it.
func (r *Registry) ImportPrivateKey(ctx context.Context, key,
	password []byte) (wallet.Wallet, error) {

	if err := r.provePassword(password); err != nil {
		return nil, r.report(err)
	}
	w, err := wallet.NewPrivateKey(key, password, r.cfg.Params)
	if err != nil {
		return nil, r.report(err)
	}
	if err := r.AddWalletAndSelect(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportKeystore decrypts a foreign version 3 keystore with its own
// password and adds the key re-encrypted under password.
func (r *Registry) ImportKeystore(ctx context.Context, keystoreJSON,
	keystorePassword, password []byte) (wallet.Wallet, error) {

	record, err := keycrypt.ParseRecord(keystoreJSON)
	if err != nil {
		return nil, r.report(err)
	}
	key, err := keycrypt.Decrypt(keystorePassword, record)
	if err != nil {
		return nil, r.report(err)
	}
	defer zero.Bytes(key)

	addr, err := wallet.KeyAddress(key)
	if err != nil {
		return nil, r.report(err)
	}
	if record.Address != "" {
		claimed, err := wallet.ParseAddress(record.Address)
		if err != nil {
			return nil, r.report(err)
		}
		if claimed != addr {
			return nil, r.report(walleterr.New(
				walleterr.ErrIntegrityMismatch,
				"keystore address does not match its key", nil,
			))
		}
	}

	return r.ImportPrivateKey(ctx, key, password)
}

// AddWatchOnly adds a watch-only wallet for address.
func (r *Registry) AddWatchOnly(ctx context.Context,
	address string) (wallet.Wallet, error) {

	addr, err := wallet.ParseAddress(address)
	if err != nil {
		return nil, r.report(err)
	}
	w := wallet.NewWatchOnly(addr)
	if err := r.AddWalletAndSelect(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// RemoveWallet deletes the wallet at address.  When it was selected, the
// selection moves to the first remaining wallet.
func (r *Registry) RemoveWallet(ctx context.Context,
	address common.Address) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[address]; !ok {
		return r.report(notFound(address))
	}
	err := r.cfg.Store.RemoveAccount(ctx, accountstore.WalletID(address))
	if err != nil {
		return r.report(err)
	}
	delete(r.wallets, address)

	if r.selected.UnwrapOr(common.Address{}) == address {
		r.selected = fn.None[common.Address]()
		r.selectFirstLocked()
	}

	log.Infof("Removed wallet %v", address)
	return nil
}

func notFound(address common.Address) error {
	return walleterr.New(walleterr.ErrNotFound,
		"no wallet "+address.Hex(), nil)
}

// SelectWallet makes the wallet at address the active wallet.
func (r *Registry) SelectWallet(address common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[address]; !ok {
		return r.report(notFound(address))
	}
	r.selected = fn.Some(address)

	log.Debugf("Selected wallet %v", address)
	return nil
}

func (r *Registry) selectFirstLocked() {
	addrs := r.sortedAddressesLocked()
	if len(addrs) > 0 {
		r.selected = fn.Some(addrs[0])
	}
}

func (r *Registry) sortedAddressesLocked() []common.Address {
	addrs := make([]common.Address, 0, len(r.wallets))
	for addr := range r.wallets {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}

// Selected returns the active address, if any.
func (r *Registry) Selected() fn.Option[common.Address] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.selected
}

// Wallet returns the wallet at address.
func (r *Registry) Wallet(address common.Address) (wallet.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[address]
	if !ok {
		return nil, r.report(notFound(address))
	}
	return w, nil
}

// ActiveWallet returns the selected wallet.
func (r *Registry) ActiveWallet() (wallet.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.activeLocked()
}

func (r *Registry) activeLocked() (wallet.Wallet, error) {
	var w wallet.Wallet
	r.selected.WhenSome(func(addr common.Address) {
		w = r.wallets[addr]
	})
	if w == nil {
		return nil, walleterr.New(walleterr.ErrNotFound,
			"no wallet selected", nil)
	}
	return w, nil
}

// Wallets returns every wallet ordered by address.
func (r *Registry) Wallets() []wallet.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := r.sortedAddressesLocked()
	wallets := make([]wallet.Wallet, 0, len(addrs))
	for _, addr := range addrs {
		wallets = append(wallets, r.wallets[addr])
	}
	return wallets
}

// HDRoot returns the HD root wallet, if any.
func (r *Registry) HDRoot() fn.Option[*wallet.HDRoot] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.hdRoot == nil {
		return fn.None[*wallet.HDRoot]()
	}
	return fn.Some(r.hdRoot)
}

// ValidatePassword reports whether password unlocks the active wallet.  When
// the active wallet holds no keystore, or nothing is selected, the HD root
// is checked instead.
func (r *Registry) ValidatePassword(password []byte) bool {
	r.mu.RLock()
	w, err := r.activeLocked()
	root := r.hdRoot
	r.mu.RUnlock()

	if err == nil && !w.IsPublic() && !w.IsHardware() {
		return w.ValidatePassword(password)
	}
	if root == nil {
		return false
	}
	return root.ValidatePassword(password)
}

// provePassword fails with ErrInvalidPassword unless password unlocks the
// encrypted material already held: the HD root when present, otherwise any
// key backed wallet, otherwise an encrypted extended key cache.  An empty
// registry accepts any password.
func (r *Registry) provePassword(password []byte) error {
	r.mu.RLock()
	var proof func([]byte) bool
	if r.hdRoot != nil {
		proof = r.hdRoot.ValidatePassword
	}
	for _, addr := range r.sortedAddressesLocked() {
		if proof != nil {
			break
		}
		if w, ok := r.wallets[addr].(wallet.Keyed); ok {
			proof = w.ValidatePassword
		}
	}
	for _, record := range r.xpubs {
		if proof != nil {
			break
		}
		if record.IsEncrypted() {
			proof = func(pw []byte) bool {
				return keycrypt.Verify(pw, record)
			}
		}
	}
	r.mu.RUnlock()

	if proof != nil && !proof(password) {
		return walleterr.New(walleterr.ErrInvalidPassword,
			"password does not unlock existing wallets", nil)
	}
	return nil
}
