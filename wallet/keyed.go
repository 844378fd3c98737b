// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Compile time checks to ensure the key backed wallets satisfy Keyed.
var (
	_ Keyed = (*PrivateKey)(nil)
	_ Keyed = (*HDChild)(nil)
	_ Keyed = (*HDRoot)(nil)
)

// keyed holds the state shared by the wallets that own a keystore record.
type keyed struct {
	address common.Address
	record  *keycrypt.KeystoreRecord
}

// Address returns the account address.
func (k *keyed) Address() common.Address { return k.address }

// IsPublic returns false.
func (k *keyed) IsPublic() bool { return false }

// IsHardware returns false.
func (k *keyed) IsHardware() bool { return false }

// ValidatePassword reports whether password decrypts the keystore.
func (k *keyed) ValidatePassword(password []byte) bool {
	return keycrypt.Verify(password, k.record)
}

// ExportKeystore returns the JSON encoding of the keystore record.
func (k *keyed) ExportKeystore() ([]byte, error) {
	return k.record.Marshal()
}

// Keystore returns a copy of the keystore record.
func (k *keyed) Keystore() *keycrypt.KeystoreRecord {
	return k.record.Clone()
}

// KeyAddress returns the address of a raw secp256k1 private key.
func KeyAddress(key []byte) (common.Address, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return common.Address{}, walleterr.New(walleterr.ErrInvalidParams,
			"invalid private key", nil)
	}
	defer zero.ECDSA(priv)

	return crypto.PubkeyToAddress(priv.PublicKey), nil
}

// decryptKey decrypts a plain private key record and checks that the key
// belongs to want.  The caller must clear the returned key.
func decryptKey(password []byte, record *keycrypt.KeystoreRecord,
	want common.Address) ([]byte, error) {

	key, err := keycrypt.Decrypt(password, record)
	if err != nil {
		return nil, err
	}
	got, err := KeyAddress(key)
	if err != nil {
		zero.Bytes(key)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"keystore holds an invalid private key", nil)
	}
	if got != want {
		zero.Bytes(key)
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			"decrypted key belongs to "+got.Hex(), nil)
	}
	return key, nil
}

// keyRecordAddress returns the account address a plain private key record
// advertises.
func keyRecordAddress(record *keycrypt.KeystoreRecord) (common.Address,
	error) {

	if !record.IsEncrypted() {
		return common.Address{}, walleterr.New(walleterr.ErrInvalidKeystore,
			"keystore holds no encrypted key", nil)
	}
	return ParseAddress(record.Address)
}

// PrivateKey is a wallet backed by a plain private key.
type PrivateKey struct {
	keyed
}

// NewPrivateKey encrypts key under password and returns its wallet.
func NewPrivateKey(key, password []byte,
	params keycrypt.Params) (*PrivateKey, error) {

	addr, err := KeyAddress(key)
	if err != nil {
		return nil, err
	}
	record, err := keycrypt.Encrypt(password, key, recordAddress(addr), params)
	if err != nil {
		return nil, err
	}

	log.Debugf("Created private key wallet %v", addr)

	return &PrivateKey{keyed{address: addr, record: record}}, nil
}

// PrivateKeyFromRecord restores a private key wallet from its keystore.
func PrivateKeyFromRecord(record *keycrypt.KeystoreRecord) (*PrivateKey,
	error) {

	addr, err := keyRecordAddress(record)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{keyed{address: addr, record: record.Clone()}}, nil
}

// Kind returns KindPrivateKey.
func (w *PrivateKey) Kind() Kind { return KindPrivateKey }

// Sign signs payload with the decrypted key.
func (w *PrivateKey) Sign(_ context.Context, payload,
	password []byte) (*Signature, error) {

	key, err := decryptKey(password, w.record, w.address)
	if err != nil {
		return nil, err
	}
	return withKey(key, func(key []byte) (*Signature, error) {
		return signMessage(key, payload), nil
	})
}

// SignTransaction signs the transaction with the decrypted key.
func (w *PrivateKey) SignTransaction(_ context.Context, fields *TxFields,
	password []byte) (string, error) {

	key, err := decryptKey(password, w.record, w.address)
	if err != nil {
		return "", err
	}
	return withKey(key, func(key []byte) (string, error) {
		return signTxWithKey(key, fields)
	})
}

// WithKeystore returns the wallet backed by record instead.
func (w *PrivateKey) WithKeystore(record *keycrypt.KeystoreRecord) (Keyed,
	error) {

	if err := sameAccount(w.address, record); err != nil {
		return nil, err
	}
	return &PrivateKey{keyed{address: w.address, record: record.Clone()}},
		nil
}

func (w *PrivateKey) sealed() {}

// sameAccount fails unless record advertises addr.
func sameAccount(addr common.Address, record *keycrypt.KeystoreRecord) error {
	got, err := keyRecordAddress(record)
	if err != nil {
		return err
	}
	if got != addr {
		str := fmt.Sprintf("keystore for %v cannot replace %v", got, addr)
		return walleterr.New(walleterr.ErrIntegrityMismatch, str, nil)
	}
	return nil
}

// HDChild is a wallet derived from the HD root.  Its keystore holds the
// plain child private key.
type HDChild struct {
	keyed
	index uint32
}

// NewHDChild derives the child at index of parent, encrypts its key under
// password and returns its wallet.
func NewHDChild(parent *hdkeys.Node, index uint32, password []byte,
	params keycrypt.Params) (*HDChild, error) {

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

	addr, err := hdkeys.AddressOf(child)
	if err != nil {
		return nil, err
	}
	record, err := keycrypt.Encrypt(password, key, recordAddress(addr), params)
	if err != nil {
		return nil, err
	}

	log.Debugf("Derived HD child %d (%v)", index, addr)

	return &HDChild{keyed: keyed{address: addr, record: record}, index: index},
		nil
}

// HDChildFromRecord restores the HD child at index from its keystore.
func HDChildFromRecord(record *keycrypt.KeystoreRecord,
	index uint32) (*HDChild, error) {

	addr, err := keyRecordAddress(record)
	if err != nil {
		return nil, err
	}
	return &HDChild{
		keyed: keyed{address: addr, record: record.Clone()},
		index: index,
	}, nil
}

// Kind returns KindHDChild.
func (w *HDChild) Kind() Kind { return KindHDChild }

// Index returns the derivation index of the child.
func (w *HDChild) Index() uint32 { return w.index }

// Sign signs payload with the decrypted child key.
func (w *HDChild) Sign(_ context.Context, payload,
	password []byte) (*Signature, error) {

	key, err := decryptKey(password, w.record, w.address)
	if err != nil {
		return nil, err
	}
	return withKey(key, func(key []byte) (*Signature, error) {
		return signMessage(key, payload), nil
	})
}

// SignTransaction signs the transaction with the decrypted child key.
func (w *HDChild) SignTransaction(_ context.Context, fields *TxFields,
	password []byte) (string, error) {

	key, err := decryptKey(password, w.record, w.address)
	if err != nil {
		return "", err
	}
	return withKey(key, func(key []byte) (string, error) {
		return signTxWithKey(key, fields)
	})
}

// WithKeystore returns the child backed by record instead.
func (w *HDChild) WithKeystore(record *keycrypt.KeystoreRecord) (Keyed,
	error) {

	if err := sameAccount(w.address, record); err != nil {
		return nil, err
	}
	return &HDChild{
		keyed: keyed{address: w.address, record: record.Clone()},
		index: w.index,
	}, nil
}

func (w *HDChild) sealed() {}

// HDRoot is the wallet of the HD account node.  Its keystore holds the
// serialized extended private key and advertises the xpub; the wallet
// address is that of the node's own key.
type HDRoot struct {
	keyed
}

// NewHDRoot encrypts node under password and returns its wallet.
func NewHDRoot(node *hdkeys.Node, password []byte,
	params keycrypt.Params) (*HDRoot, error) {

	addr, err := hdkeys.AddressOf(node)
	if err != nil {
		return nil, err
	}
	record, err := node.Keystore(password, params)
	if err != nil {
		return nil, err
	}
	return &HDRoot{keyed{address: addr, record: record}}, nil
}

// HDRootFromRecord restores the HD root from its keystore.
func HDRootFromRecord(record *keycrypt.KeystoreRecord) (*HDRoot, error) {
	if !record.IsEncrypted() {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"HD keystore holds no encrypted key", nil)
	}
	pub, err := hdkeys.NodeFromExtendedKey(record.Address)
	if err != nil {
		return nil, err
	}
	if pub.IsPrivate() {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"HD keystore discloses its private key", nil)
	}
	addr, err := hdkeys.AddressOf(pub)
	if err != nil {
		return nil, err
	}
	return &HDRoot{keyed{address: addr, record: record.Clone()}}, nil
}

// Kind returns KindHDRoot.
func (w *HDRoot) Kind() Kind { return KindHDRoot }

// XPub returns the extended public key of the root.
func (w *HDRoot) XPub() string { return w.record.Address }

// Node decrypts the extended private key.  The caller must Zero the node.
func (w *HDRoot) Node(password []byte) (*hdkeys.Node, error) {
	return hdkeys.NodeFromKeystore(password, w.record)
}

func (w *HDRoot) key(password []byte) ([]byte, error) {
	node, err := w.Node(password)
	if err != nil {
		return nil, err
	}
	defer node.Zero()

	return node.PrivateKey()
}

// Sign signs payload with the root node's key.
func (w *HDRoot) Sign(_ context.Context, payload,
	password []byte) (*Signature, error) {

	key, err := w.key(password)
	if err != nil {
		return nil, err
	}
	return withKey(key, func(key []byte) (*Signature, error) {
		return signMessage(key, payload), nil
	})
}

// SignTransaction signs the transaction with the root node's key.
func (w *HDRoot) SignTransaction(_ context.Context, fields *TxFields,
	password []byte) (string, error) {

	key, err := w.key(password)
	if err != nil {
		return "", err
	}
	return withKey(key, func(key []byte) (string, error) {
		return signTxWithKey(key, fields)
	})
}

// WithKeystore returns the root backed by record instead.  The record must
// advertise the same xpub.
func (w *HDRoot) WithKeystore(record *keycrypt.KeystoreRecord) (Keyed,
	error) {

	if !record.IsEncrypted() || record.Address != w.record.Address {
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			"keystore does not hold this HD root", nil)
	}
	return &HDRoot{keyed{address: w.address, record: record.Clone()}}, nil
}

func (w *HDRoot) sealed() {}
