// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keycrypt implements password based encryption of private key
// material into version 3 keystore records (Web3 Secret Storage).
//
// A record is produced by stretching a password with scrypt or PBKDF2 into a
// derived key dk, encrypting the secret with AES-128-CTR under dk[:16] and
// authenticating the ciphertext with Keccak-256(dk[16:32] || ciphertext).
// Decryption is the only way to verify a password: a password is correct
// exactly when the recomputed MAC matches.
package keycrypt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/ethwallet/walleterr"
)

const (
	// Version is the keystore format version written and accepted by this
	// package.
	Version = 3

	// CipherAES128CTR is the only cipher written and accepted.
	CipherAES128CTR = "aes-128-ctr"
)

// KeystoreRecord is the JSON serializable, password encrypted form of a
// single private key or extended private key.
//
// Address is visible without decryption.  For plain keys it is the account
// address; for hierarchical deterministic keys it is the serialized extended
// public key.  Producers are responsible for keeping it consistent with the
// encrypted secret.
//
// A record without a Crypto section is a public record: it identifies an
// address or extended public key but holds no secret.
type KeystoreRecord struct {
	Version int         `json:"version"`
	ID      string      `json:"id,omitempty"`
	Address string      `json:"address"`
	Crypto  *CryptoJSON `json:"crypto,omitempty"`
}

// CryptoJSON is the crypto section of a KeystoreRecord.
type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams holds the hex encoded initialization vector.
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams holds the key derivation parameters and the hex encoded salt.
// Only the fields relevant to the record's kdf are populated.
type KDFParams struct {
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
	N     int    `json:"n,omitempty"`
	R     int    `json:"r,omitempty"`
	P     int    `json:"p,omitempty"`
	C     int    `json:"c,omitempty"`
	PRF   string `json:"prf,omitempty"`
}

// params converts the stored parameters back into Params.
func (k *KDFParams) params(kdf string) *Params {
	return &Params{
		KDF:   kdf,
		N:     k.N,
		R:     k.R,
		P:     k.P,
		C:     k.C,
		DKLen: k.DKLen,
	}
}

// PublicRecord returns a record that carries only an address or extended
// public key.
func PublicRecord(address string) *KeystoreRecord {
	return &KeystoreRecord{Version: Version, Address: address}
}

// IsEncrypted reports whether the record holds an encrypted secret.
func (r *KeystoreRecord) IsEncrypted() bool {
	return r != nil && r.Crypto != nil
}

// Clone returns a deep copy of the record.
func (r *KeystoreRecord) Clone() *KeystoreRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Crypto != nil {
		crypto := *r.Crypto
		c.Crypto = &crypto
	}
	return &c
}

// Equal reports whether both records serialize identically.
func (r *KeystoreRecord) Equal(o *KeystoreRecord) bool {
	a, errA := json.Marshal(r)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Marshal returns the JSON encoding of the record.
func (r *KeystoreRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ParseRecord decodes a JSON keystore record.  A leading UTF-8 byte order
// mark, as written by some editors, is ignored.
func ParseRecord(data []byte) (*KeystoreRecord, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var r KeystoreRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"failed to unmarshal keystore", err)
	}
	if r.Version != Version {
		str := fmt.Sprintf("unsupported keystore version %d", r.Version)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, nil)
	}
	return &r, nil
}
