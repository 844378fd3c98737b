// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signature is a signed Ethereum message.
type Signature struct {
	// Message is the signed payload.
	Message []byte

	// MessageHash is the hash of the prefixed message that was signed.
	MessageHash common.Hash

	R common.Hash
	S common.Hash

	// V is the recovery id offset by 27.
	V byte

	// Bytes is the 65 byte [R || S || V] encoding.
	Bytes []byte
}

// String returns the 0x prefixed hex encoding of the signature.
func (s *Signature) String() string {
	return hexutil.Encode(s.Bytes)
}

// newSignature builds a Signature from a [R || S || V] encoding where V is
// either in {0, 1} or {27, 28}.
func newSignature(message []byte, hash []byte, rsv []byte) *Signature {
	v := rsv[64]
	if v < 27 {
		v += 27
	}
	sig := &Signature{
		Message:     message,
		MessageHash: common.BytesToHash(hash),
		R:           common.BytesToHash(rsv[:32]),
		S:           common.BytesToHash(rsv[32:64]),
		V:           v,
		Bytes:       make([]byte, 65),
	}
	copy(sig.Bytes, rsv[:64])
	sig.Bytes[64] = v
	return sig
}

// signHash signs hash with the raw private key and returns [R || S || V]
// with V in {0, 1}.
func signHash(key, hash []byte) []byte {
	priv := secp256k1.PrivKeyFromBytes(key)
	defer priv.Zero()

	compact := ecdsa.SignCompact(priv, hash, false)
	rsv := make([]byte, 65)
	copy(rsv, compact[1:])
	rsv[64] = compact[0] - 27
	return rsv
}

// signMessage signs the prefixed message with key.
func signMessage(key, message []byte) *Signature {
	hash := accounts.TextHash(message)
	return newSignature(message, hash, signHash(key, hash))
}

// recoverHash returns the address that produced the [R || S || V]
// signature over hash.
func recoverHash(hash, rsv []byte) (common.Address, error) {
	if len(rsv) != 65 {
		str := fmt.Sprintf("signature is %d bytes, want 65", len(rsv))
		return common.Address{}, walleterr.New(walleterr.ErrInvalidParams,
			str, nil)
	}

	v := rsv[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		str := fmt.Sprintf("invalid recovery id %d", rsv[64])
		return common.Address{}, walleterr.New(walleterr.ErrInvalidParams,
			str, nil)
	}

	compact := make([]byte, 65)
	compact[0] = v + 27
	copy(compact[1:], rsv[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return common.Address{}, walleterr.New(walleterr.ErrInvalidParams,
			"unable to recover public key", err)
	}
	return hdkeys.PubKeyToAddress(pub), nil
}

// Recover returns the address that signed message, given its 65 byte
// [R || S || V] signature.
func Recover(message, sig []byte) (common.Address, error) {
	return recoverHash(accounts.TextHash(message), sig)
}

// withKey runs fn with a decrypted private key and clears the key
// afterwards.
func withKey[T any](key []byte, fn func([]byte) (T, error)) (T, error) {
	defer zero.Bytes(key)
	return fn(key)
}
