// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zero_test

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/stretchr/testify/require"
)

func makeOneBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 1
	}
	return b
}

func requireZero(t *testing.T, b []byte) {
	t.Helper()

	for i, v := range b {
		require.Zerof(t, v, "b[%d] = %d", i, v)
	}
}

func TestBytes(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 31, 32, 33, 64, 111, 257} {
		b := makeOneBytes(n)
		zero.Bytes(b)
		requireZero(t, b)
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	a, b := makeOneBytes(32), makeOneBytes(64)
	zero.All(a, nil, b)
	requireZero(t, a)
	requireZero(t, b)
}

func TestBytea32(t *testing.T) {
	t.Parallel()

	var b [32]byte
	copy(b[:], makeOneBytes(32))
	zero.Bytea32(&b)
	requireZero(t, b[:])
}

func TestBigInt(t *testing.T) {
	t.Parallel()

	v, ok := new(big.Int).SetString(strings.Repeat("FF", 40), 16)
	require.True(t, ok)

	words := v.Bits()
	zero.BigInt(v)
	for _, w := range words {
		require.Zero(t, w)
	}
	require.Zero(t, v.Sign())

	// Nil values are ignored.
	zero.BigInt(nil)
}

func TestECDSA(t *testing.T) {
	t.Parallel()

	key := &ecdsa.PrivateKey{D: big.NewInt(0x1234567)}
	zero.ECDSA(key)
	require.Zero(t, key.D.Sign())

	zero.ECDSA(nil)
}
