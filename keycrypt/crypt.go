// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keycrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

const (
	saltLen = 32
	ivLen   = aes.BlockSize
)

// randReader is the source of salts, IVs and record ids.  Tests replace it
// to exercise randomness failures.
var randReader io.Reader = rand.Reader

// Encrypt encrypts secret under password and returns a new record labelled
// with address.  A fresh salt and IV are drawn for every call, so encrypting
// the same secret twice yields unrelated records.
//
// The only failures are invalid parameters and an unusable randomness
// source, the latter reported as ErrEncryption.
func Encrypt(password, secret []byte, address string,
	params Params) (*KeystoreRecord, error) {

	p := params.withDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return nil, walleterr.New(walleterr.ErrEncryption,
			"failed to generate salt", err)
	}
	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, walleterr.New(walleterr.ErrEncryption,
			"failed to generate iv", err)
	}
	id, err := uuid.NewRandomFromReader(randReader)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrEncryption,
			"failed to generate keystore id", err)
	}

	dk, err := deriveKey(password, salt, &p)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(dk)

	cipherText, err := aesCTR(dk[:16], iv, secret)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrEncryption,
			"failed to encrypt", err)
	}

	kdfParams := KDFParams{
		DKLen: p.DKLen,
		Salt:  hex.EncodeToString(salt),
	}
	switch p.KDF {
	case KDFScrypt:
		kdfParams.N, kdfParams.R, kdfParams.P = p.N, p.R, p.P
	case KDFPBKDF2:
		kdfParams.C, kdfParams.PRF = p.C, prfHMACSHA256
	}

	log.Tracef("Encrypted keystore for %s using %s", address, p.KDF)

	return &KeystoreRecord{
		Version: Version,
		ID:      id.String(),
		Address: address,
		Crypto: &CryptoJSON{
			Cipher:       CipherAES128CTR,
			CipherText:   hex.EncodeToString(cipherText),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          p.KDF,
			KDFParams:    kdfParams,
			MAC:          hex.EncodeToString(mac(dk, cipherText)),
		},
	}, nil
}

// Decrypt recovers the secret held by record.  A MAC mismatch, which is what
// a wrong password produces, returns ErrInvalidPassword and no output.  The
// caller owns the returned slice and should clear it with zero.Bytes once
// done.
func Decrypt(password []byte, record *KeystoreRecord) ([]byte, error) {
	if record == nil || record.Crypto == nil {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"keystore holds no encrypted secret", nil)
	}
	if record.Version != Version {
		str := fmt.Sprintf("unsupported keystore version %d",
			record.Version)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, nil)
	}

	c := record.Crypto
	if c.Cipher != CipherAES128CTR {
		str := fmt.Sprintf("unsupported cipher %q", c.Cipher)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, nil)
	}
	if c.KDF == KDFPBKDF2 && c.KDFParams.PRF != prfHMACSHA256 {
		str := fmt.Sprintf("unsupported pbkdf2 prf %q", c.KDFParams.PRF)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, nil)
	}

	cipherText, err := decodeHex("ciphertext", c.CipherText)
	if err != nil {
		return nil, err
	}
	iv, err := decodeHex("iv", c.CipherParams.IV)
	if err != nil {
		return nil, err
	}
	if len(iv) != ivLen {
		str := fmt.Sprintf("iv is %d bytes, want %d", len(iv), ivLen)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, nil)
	}
	salt, err := decodeHex("salt", c.KDFParams.Salt)
	if err != nil {
		return nil, err
	}
	wantMAC, err := decodeHex("mac", c.MAC)
	if err != nil {
		return nil, err
	}

	dk, err := deriveKey(password, salt, c.KDFParams.params(c.KDF))
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(dk)

	if subtle.ConstantTimeCompare(mac(dk, cipherText), wantMAC) != 1 {
		return nil, walleterr.New(walleterr.ErrInvalidPassword,
			"invalid password", nil)
	}

	secret, err := aesCTR(dk[:16], iv, cipherText)
	if err != nil {
		return nil, walleterr.New(walleterr.ErrInvalidKeystore,
			"failed to decrypt", err)
	}
	return secret, nil
}

// Verify reports whether password decrypts record.  It is a convenience
// over Decrypt that discards the secret immediately.
func Verify(password []byte, record *KeystoreRecord) bool {
	secret, err := Decrypt(password, record)
	if err != nil {
		return false
	}
	zero.Bytes(secret)
	return true
}

// Reencrypt decrypts record under oldPassword and encrypts the same secret
// under newPassword with fresh randomness.  The address is carried over.
func Reencrypt(oldPassword, newPassword []byte, record *KeystoreRecord,
	params Params) (*KeystoreRecord, error) {

	secret, err := Decrypt(oldPassword, record)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(secret)

	return Encrypt(newPassword, secret, record.Address, params)
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

// mac returns Keccak-256(dk[16:32] || cipherText).
func mac(dk, cipherText []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(dk[16:32])
	h.Write(cipherText)
	return h.Sum(nil)
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		str := fmt.Sprintf("malformed %s", field)
		return nil, walleterr.New(walleterr.ErrInvalidKeystore, str, err)
	}
	return b, nil
}
