// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero clears secret material such as decrypted private keys,
// derived seeds and passwords from memory once it is no longer needed.
package zero

import (
	"crypto/ecdsa"
	"math/big"
)

// Bytes sets all bytes in the passed slice to zero.
func Bytes(b []byte) {
	clear(b)
}

// Bytea32 clears the 32-byte array.  Private keys and key derivation
// function outputs are this size.
func Bytea32(b *[32]byte) {
	*b = [32]byte{}
}

// BigInt clears the words backing x and then sets the value to 0.  Setting
// the value alone leaves the old words in the backing array.
func BigInt(x *big.Int) {
	if x == nil {
		return
	}
	clear(x.Bits())
	x.SetInt64(0)
}

// ECDSA clears the secret scalar of an ecdsa private key.  The public part
// is left untouched.
func ECDSA(key *ecdsa.PrivateKey) {
	if key == nil {
		return
	}
	BigInt(key.D)
}

// All clears every passed slice.
func All(bs ...[]byte) {
	for _, b := range bs {
		clear(b)
	}
}
