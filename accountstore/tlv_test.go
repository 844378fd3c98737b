// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accountstore

import (
	"testing"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/stretchr/testify/require"
)

// TestAccountTLV ensures accounts with and without a keystore survive the
// TLV encoding and that an absent keystore stays absent.
func TestAccountTLV(t *testing.T) {
	t.Parallel()

	tests := []*Account{
		{
			ID:      "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
			Kind:    wallet.KindHardware,
			Variant: hwproxy.VariantTrezor,
			Index:   1<<31 - 1,
		},
		{
			ID:       CacheID(hwproxy.VariantHDPublic),
			Variant:  hwproxy.VariantHDPublic,
			Keystore: keycrypt.PublicRecord("xpub6test"),
		},
	}
	for _, want := range tests {
		b, err := encodeAccount(want)
		require.NoError(t, err)

		got, err := decodeAccount(want.ID, b)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := decodeAccount("x", []byte{0x04, 0x05, 0x01})
	require.Error(t, err)
}
