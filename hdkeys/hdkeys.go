// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hdkeys derives Ethereum account keys from BIP0039 mnemonics along
// BIP0032 hierarchical deterministic paths.
//
// Every derivation is a pure function of its inputs: deriving the same child
// index from the same parent twice yields identical keys.
package hdkeys

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"
)

// netParams selects the xprv/xpub version bytes used when serializing
// extended keys.  Ethereum tooling uses the bitcoin mainnet prefixes.
var netParams = &chaincfg.MainNetParams

// Node is a node of the key tree.  It holds either an extended private key
// or, when neutered, only an extended public key.
type Node struct {
	key *hdkeychain.ExtendedKey
}

// NormalizeMnemonic lowercases the mnemonic and collapses whitespace to
// single spaces.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// NewMnemonic returns a fresh mnemonic encoding bits of entropy.  bits must
// be a multiple of 32 between 128 and 256.
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", walleterr.New(walleterr.ErrInvalidMnemonic,
			"failed to generate entropy", err)
	}
	defer zero.Bytes(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", walleterr.New(walleterr.ErrInvalidMnemonic,
			"failed to encode mnemonic", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic stretches a space separated BIP0039 word list into a 64
// byte seed.  Unknown words and checksum failures return
// ErrInvalidMnemonic.  The caller should clear the seed after use.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, walleterr.New(walleterr.ErrInvalidMnemonic,
			"invalid mnemonic", nil)
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, walleterr.New(walleterr.ErrInvalidMnemonic,
			"invalid mnemonic", err)
	}
	return seed, nil
}

// MasterFromSeed returns the master node for seed.
func MasterFromSeed(seed []byte) (*Node, error) {
	key, err := hdkeychain.NewMaster(seed, netParams)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"failed to create master key", err)
	}
	return &Node{key: key}, nil
}

// NodeFromMnemonic derives the node at path from a mnemonic.  The seed and
// intermediate nodes are cleared before returning.
func NodeFromMnemonic(mnemonic string, path Path) (*Node, error) {
	seed, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(seed)

	master, err := MasterFromSeed(seed)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	return DerivePath(master, path)
}

// DerivePath applies every step of path starting at node.  Intermediate
// nodes are cleared; node itself is left untouched.
func DerivePath(node *Node, path Path) (*Node, error) {
	key := node.key
	for i, idx := range path {
		child, err := key.Derive(idx)
		if i > 0 {
			key.Zero()
		}
		if err != nil {
			return nil, walleterr.New(walleterr.ErrDerivation,
				"failed to derive "+path[:i+1].String(), err)
		}
		key = child
	}

	if len(path) == 0 {
		return node.clone()
	}
	return &Node{key: key}, nil
}

// DeriveChild derives the non-hardened child at index.
func DeriveChild(node *Node, index uint32) (*Node, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"child index out of non-hardened range", nil)
	}
	child, err := node.key.Derive(index)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"failed to derive child", err)
	}
	return &Node{key: child}, nil
}

// AddressOf returns the checksum address of the node's key.  It works on
// both private and public nodes.
func AddressOf(node *Node) (common.Address, error) {
	pub, err := node.key.ECPubKey()
	if err != nil {
		return common.Address{}, walleterr.New(walleterr.ErrDerivation,
			"invalid public key", err)
	}
	return PubKeyToAddress(pub), nil
}

// PubKeyToAddress returns the last 20 bytes of the Keccak-256 hash of the
// uncompressed public key without its 0x04 prefix.
func PubKeyToAddress(pub *btcec.PublicKey) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// IsExtendedKey reports whether s parses as a serialized extended key.
func IsExtendedKey(s string) bool {
	_, err := hdkeychain.NewKeyFromString(s)
	return err == nil
}

// NodeFromExtendedKey parses a serialized xprv or xpub.
func NodeFromExtendedKey(s string) (*Node, error) {
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrInvalidAddress,
			"invalid extended key", err)
	}
	return &Node{key: key}, nil
}

// IsPrivate reports whether the node holds a private key.
func (n *Node) IsPrivate() bool {
	return n.key.IsPrivate()
}

// Neuter returns the public-only counterpart of the node.
func (n *Node) Neuter() (*Node, error) {
	pub, err := n.key.Neuter()
	if err != nil {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"failed to neuter key", err)
	}
	return &Node{key: pub}, nil
}

// ExtendedPublicKey returns the serialized xpub of the node.
func (n *Node) ExtendedPublicKey() (string, error) {
	pub, err := n.Neuter()
	if err != nil {
		return "", err
	}
	return pub.key.String(), nil
}

// PrivateKey returns the 32 byte secp256k1 private key of the node.  The
// caller should clear it after use.
func (n *Node) PrivateKey() ([]byte, error) {
	if !n.key.IsPrivate() {
		return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
			"node holds no private key", nil)
	}
	priv, err := n.key.ECPrivKey()
	if err != nil {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"invalid private key", err)
	}
	defer priv.Zero()

	return priv.Serialize(), nil
}

// Zero clears the key material of the node.  The node is unusable
// afterwards.
func (n *Node) Zero() {
	n.key.Zero()
}

func (n *Node) clone() (*Node, error) {
	key, err := hdkeychain.NewKeyFromString(n.key.String())
	if err != nil {
		return nil, walleterr.New(walleterr.ErrDerivation,
			"failed to copy key", err)
	}
	return &Node{key: key}, nil
}

// Keystore encrypts the node's serialized extended private key under
// password.  The record address is the node's xpub so the key can be
// identified and used for public derivation without decryption.
func (n *Node) Keystore(password []byte,
	params keycrypt.Params) (*keycrypt.KeystoreRecord, error) {

	if !n.key.IsPrivate() {
		return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
			"node holds no private key", nil)
	}
	xpub, err := n.ExtendedPublicKey()
	if err != nil {
		return nil, err
	}

	secret := []byte(n.key.String())
	defer zero.Bytes(secret)

	log.Debugf("Encrypting extended key %s", xpub)

	return keycrypt.Encrypt(password, secret, xpub, params)
}

// NodeFromKeystore decrypts an extended key record produced by
// Node.Keystore.  The decrypted key must match the xpub the record
// advertises, otherwise ErrIntegrityMismatch is returned.
func NodeFromKeystore(password []byte,
	record *keycrypt.KeystoreRecord) (*Node, error) {

	secret, err := keycrypt.Decrypt(password, record)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(secret)

	key, err := hdkeychain.NewKeyFromString(string(secret))
	if err != nil {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"keystore does not hold an extended key", nil)
	}
	node := &Node{key: key}

	xpub, err := node.ExtendedPublicKey()
	if err != nil {
		node.Zero()
		return nil, err
	}
	if xpub != record.Address {
		node.Zero()
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			"decrypted key does not match keystore xpub", nil)
	}

	return node, nil
}
