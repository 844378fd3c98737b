// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeys_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/stretchr/testify/require"
)

const (
	// testMnemonic is the all-zero entropy BIP0039 vector.
	testMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	// testAddress0 is the well known first account of testMnemonic on
	// m/44'/60'/0'/0/0.
	testAddress0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

var fastParams = keycrypt.Params{KDF: keycrypt.KDFScrypt, N: 2, DKLen: 32}

func accountNode(t *testing.T) *hdkeys.Node {
	t.Helper()

	node, err := hdkeys.NodeFromMnemonic(
		testMnemonic, hdkeys.MustParsePath(hdkeys.DefaultPath),
	)
	require.NoError(t, err)
	return node
}

// TestReferenceVector ensures the standard mnemonic derives the well known
// first address.
func TestReferenceVector(t *testing.T) {
	t.Parallel()

	child, err := hdkeys.DeriveChild(accountNode(t), 0)
	require.NoError(t, err)

	addr, err := hdkeys.AddressOf(child)
	require.NoError(t, err)
	require.Equal(t, testAddress0, addr.Hex())
}

// TestDeterminism ensures derivations are pure functions of their inputs.
func TestDeterminism(t *testing.T) {
	t.Parallel()

	parent := accountNode(t)
	for i := uint32(0); i < 3; i++ {
		a, err := hdkeys.DeriveChild(parent, i)
		require.NoError(t, err)
		b, err := hdkeys.DeriveChild(parent, i)
		require.NoError(t, err)

		keyA, err := a.PrivateKey()
		require.NoError(t, err)
		keyB, err := b.PrivateKey()
		require.NoError(t, err)
		require.Equal(t, keyA, keyB)
	}

	// DerivePath from the same seed twice yields the same node.
	other := accountNode(t)
	xa, err := parent.ExtendedPublicKey()
	require.NoError(t, err)
	xb, err := other.ExtendedPublicKey()
	require.NoError(t, err)
	require.Equal(t, xa, xb)

	// DerivePath must not consume its input.
	_, err = parent.PrivateKey()
	require.NoError(t, err)
}

// TestPublicDerivation ensures children derived from the xpub have the same
// addresses as those derived from the private key.
func TestPublicDerivation(t *testing.T) {
	t.Parallel()

	parent := accountNode(t)
	xpub, err := parent.ExtendedPublicKey()
	require.NoError(t, err)

	pub, err := hdkeys.NodeFromExtendedKey(xpub)
	require.NoError(t, err)
	require.False(t, pub.IsPrivate())

	for i := uint32(0); i < 5; i++ {
		privChild, err := hdkeys.DeriveChild(parent, i)
		require.NoError(t, err)
		pubChild, err := hdkeys.DeriveChild(pub, i)
		require.NoError(t, err)

		a, err := hdkeys.AddressOf(privChild)
		require.NoError(t, err)
		b, err := hdkeys.AddressOf(pubChild)
		require.NoError(t, err)
		require.Equal(t, a, b)
	}

	_, err = pub.PrivateKey()
	require.True(t, walleterr.IsError(err, walleterr.ErrUnsupportedOperation))
	_, err = pub.Keystore([]byte("pw"), fastParams)
	require.True(t, walleterr.IsError(err, walleterr.ErrUnsupportedOperation))
}

// TestHardenedChildRejected ensures DeriveChild only walks non-hardened
// indexes.
func TestHardenedChildRejected(t *testing.T) {
	t.Parallel()

	_, err := hdkeys.DeriveChild(accountNode(t), hdkeychain.HardenedKeyStart)
	require.True(t, walleterr.IsError(err, walleterr.ErrDerivation))
}

// TestInvalidMnemonic ensures malformed word lists are rejected.
func TestInvalidMnemonic(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"abandon",
		"abandon abandon abandon abandon abandon abandon abandon " +
			"abandon abandon abandon abandon abandon",
		"notaword abandon abandon abandon abandon abandon abandon " +
			"abandon abandon abandon abandon about",
	}
	for _, m := range tests {
		_, err := hdkeys.SeedFromMnemonic(m)
		require.Truef(t, walleterr.IsError(err,
			walleterr.ErrInvalidMnemonic), "%q: got %v", m, err)
	}

	// Extra whitespace and case are normalized away.
	seed, err := hdkeys.SeedFromMnemonic("  ABANDON abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon " +
		"abandon   about ")
	require.NoError(t, err)
	require.Len(t, seed, 64)
}

// TestNewMnemonic ensures generated mnemonics round trip.
func TestNewMnemonic(t *testing.T) {
	t.Parallel()

	m, err := hdkeys.NewMnemonic(128)
	require.NoError(t, err)
	_, err = hdkeys.SeedFromMnemonic(m)
	require.NoError(t, err)

	_, err = hdkeys.NewMnemonic(100)
	require.Error(t, err)
}

// TestKeystoreRoundTrip ensures an extended key survives encryption and the
// record advertises the xpub.
func TestKeystoreRoundTrip(t *testing.T) {
	t.Parallel()

	node := accountNode(t)
	record, err := node.Keystore([]byte("pw"), fastParams)
	require.NoError(t, err)

	xpub, err := node.ExtendedPublicKey()
	require.NoError(t, err)
	require.Equal(t, xpub, record.Address)
	require.True(t, hdkeys.IsExtendedKey(record.Address))

	back, err := hdkeys.NodeFromKeystore([]byte("pw"), record)
	require.NoError(t, err)
	require.True(t, back.IsPrivate())

	child, err := hdkeys.DeriveChild(back, 0)
	require.NoError(t, err)
	addr, err := hdkeys.AddressOf(child)
	require.NoError(t, err)
	require.Equal(t, testAddress0, addr.Hex())

	_, err = hdkeys.NodeFromKeystore([]byte("nope"), record)
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidPassword))

	// A record whose advertised xpub does not match its secret is
	// rejected.
	other, err := hdkeys.DeriveChild(node, 7)
	require.NoError(t, err)
	otherXpub, err := other.ExtendedPublicKey()
	require.NoError(t, err)

	forged := record.Clone()
	forged.Address = otherXpub
	_, err = hdkeys.NodeFromKeystore([]byte("pw"), forged)
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))
}

// TestParsePath tests derivation path parsing and formatting.
func TestParsePath(t *testing.T) {
	t.Parallel()

	h := uint32(hdkeychain.HardenedKeyStart)
	tests := []struct {
		in    string
		want  hdkeys.Path
		valid bool
	}{
		{"m", hdkeys.Path{}, true},
		{"m/44'/60'/0'/0", hdkeys.Path{h + 44, h + 60, h, 0}, true},
		{"m/44h/60h/0h", hdkeys.Path{h + 44, h + 60, h}, true},
		{"m/1/2/3", hdkeys.Path{1, 2, 3}, true},
		{"44'/60'", nil, false},
		{"m/x", nil, false},
		{"m/2147483648", nil, false},
		{"m//1", nil, false},
	}
	for _, test := range tests {
		got, err := hdkeys.ParsePath(test.in)
		if !test.valid {
			require.Truef(t, walleterr.IsError(err,
				walleterr.ErrDerivation), "%q: got %v", test.in, err)
			continue
		}
		require.NoError(t, err, test.in)
		require.Equal(t, test.want, got)
	}

	p := hdkeys.MustParsePath(hdkeys.DefaultPath)
	require.Equal(t, hdkeys.DefaultPath, p.String())
	require.Equal(t, "m/44'/60'/0'/0/5", p.Child(5).String())
	require.Equal(t, hdkeys.DefaultPath, p.String())
}
