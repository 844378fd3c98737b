// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hwproxy_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/hwproxy/hwtest"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	testAddress0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

func testHash() []byte {
	return crypto.Keccak256([]byte("hwproxy test payload"))
}

// TestTrezorNextWallets ensures the Trezor proxy lists the standard
// account addresses and reuses a cached xpub without contacting the device.
func TestTrezorNextWallets(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	proxy := hwproxy.NewTrezor(dev, 0)
	ctx := context.Background()

	res, err := proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Addresses, 3)
	require.Equal(t, testAddress0, res.Addresses[0].Hex())
	require.Equal(t, 1, dev.Calls())

	again, err := proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{
		XPub:   res.XPub,
		Offset: 1,
		Limit:  2,
	})
	require.NoError(t, err)
	require.Equal(t, res.Addresses[1:], again.Addresses)
	require.Equal(t, 1, dev.Calls())
}

// TestNextWalletsRange ensures oversized and hardened ranges are refused
// before the device is contacted.
func TestNextWalletsRange(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	proxy := hwproxy.NewTrezor(dev, 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		params hwproxy.NextWalletsParams
	}{
		{"huge limit", hwproxy.NextWalletsParams{Limit: 1<<32 - 1}},
		{"over page", hwproxy.NextWalletsParams{
			Limit: hwproxy.MaxNextWallets + 1,
		}},
		{"hardened", hwproxy.NextWalletsParams{
			Offset: hdkeychain.HardenedKeyStart - 1,
			Limit:  2,
		}},
		{"wraps", hwproxy.NextWalletsParams{
			Offset: 1<<32 - 1,
			Limit:  2,
		}},
	}
	for _, test := range tests {
		params := test.params
		_, err := proxy.NextWallets(ctx, &params)
		require.Truef(t, walleterr.IsError(err, walleterr.ErrDerivation),
			"%s: got %v", test.name, err)

		_, err = hwproxy.NewXPubProxy().NextWallets(ctx, &params)
		require.Truef(t, walleterr.IsError(err, walleterr.ErrDerivation),
			"%s: got %v", test.name, err)
	}
	require.Zero(t, dev.Calls())

	res, err := proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{
		Offset: hdkeychain.HardenedKeyStart - 1,
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, res.Addresses, 1)

	res, err = proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{
		Limit: hwproxy.MaxNextWallets,
	})
	require.NoError(t, err)
	require.Len(t, res.Addresses, hwproxy.MaxNextWallets)
}

// TestLedgerBasePath ensures the Ledger proxy derives from the legacy
// account path.
func TestLedgerBasePath(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	proxy := hwproxy.NewLedger(dev, 0)
	require.Equal(t, "m/44'/60'/0'", proxy.BasePath().String())
	require.Equal(t, hwproxy.VariantLedger, proxy.Variant())

	res, err := proxy.NextWallets(
		context.Background(), &hwproxy.NextWalletsParams{Limit: 1},
	)
	require.NoError(t, err)

	node, err := hdkeys.NodeFromMnemonic(
		testMnemonic, hdkeys.MustParsePath("m/44'/60'/0'/0"),
	)
	require.NoError(t, err)
	want, err := hdkeys.AddressOf(node)
	require.NoError(t, err)
	require.Equal(t, want, res.Addresses[0])
}

// TestSignHash ensures device signatures are normalized and recover to the
// child address.
func TestSignHash(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	proxy := hwproxy.NewTrezor(dev, 0)
	ctx := context.Background()

	res, err := proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{Limit: 3})
	require.NoError(t, err)

	hash := testHash()
	for i := uint32(0); i < 3; i++ {
		sig, err := proxy.SignHash(ctx, i, hash)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		require.LessOrEqual(t, sig[64], byte(1))

		pub, err := crypto.SigToPub(hash, sig)
		require.NoError(t, err)
		require.Equal(t, res.Addresses[i], crypto.PubkeyToAddress(*pub))
	}

	_, err = proxy.SignHash(ctx, 0, hash[:31])
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
}

// TestDeviceRejected ensures a declined request maps to ErrDeviceRejected.
func TestDeviceRejected(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	dev.Reject(true)
	proxy := hwproxy.NewTrezor(dev, 0)
	ctx := context.Background()

	_, err := proxy.SignHash(ctx, 0, testHash())
	require.True(t, walleterr.IsError(err, walleterr.ErrDeviceRejected))

	_, err = proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{Limit: 1})
	require.True(t, walleterr.IsError(err, walleterr.ErrDeviceRejected))

	code, ok := walleterr.Code(err)
	require.True(t, ok)
	require.False(t, code.Retryable())
}

// TestDeviceTimeout ensures an unresponsive device maps to the retryable
// ErrDeviceUnavailable once the timeout passes.
func TestDeviceTimeout(t *testing.T) {
	t.Parallel()

	dev := hwtest.NewDevice(testMnemonic)
	dev.Hang()
	defer dev.Release()

	proxy := hwproxy.NewLedger(dev, 50*time.Millisecond)

	start := time.Now()
	_, err := proxy.SignHash(context.Background(), 0, testHash())
	require.True(t, walleterr.IsError(err, walleterr.ErrDeviceUnavailable))
	require.Less(t, time.Since(start), 5*time.Second)

	code, ok := walleterr.Code(err)
	require.True(t, ok)
	require.True(t, code.Retryable())

	// Cancelling the caller's context abandons the request as well.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = hwproxy.NewTrezor(dev, 0).NextWallets(
		ctx, &hwproxy.NextWalletsParams{Limit: 1},
	)
	require.True(t, walleterr.IsError(err, walleterr.ErrDeviceUnavailable))
}

// TestPrivateXPubRejected ensures a device leaking an xprv is treated as an
// integrity failure.
func TestPrivateXPubRejected(t *testing.T) {
	t.Parallel()

	seed, err := hdkeys.SeedFromMnemonic(testMnemonic)
	require.NoError(t, err)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	dev := hwtest.NewDevice(testMnemonic)
	dev.ForgeXPub(master.String())
	_, err = hwproxy.NewTrezor(dev, 0).NextWallets(
		context.Background(), &hwproxy.NextWalletsParams{Limit: 1},
	)
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))
}

// TestXPubProxy tests the extended public key only proxy.
func TestXPubProxy(t *testing.T) {
	t.Parallel()

	node, err := hdkeys.NodeFromMnemonic(
		testMnemonic, hdkeys.MustParsePath(hdkeys.DefaultPath),
	)
	require.NoError(t, err)
	xpub, err := node.ExtendedPublicKey()
	require.NoError(t, err)

	proxy := hwproxy.NewXPubProxy()
	ctx := context.Background()
	require.Equal(t, hwproxy.VariantHDPublic, proxy.Variant())

	_, err = proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{Limit: 1})
	require.True(t, walleterr.IsError(err, walleterr.ErrNoHDKey))

	res, err := proxy.NextWallets(ctx, &hwproxy.NextWalletsParams{
		XPub:  xpub,
		Limit: 2,
	})
	require.NoError(t, err)
	require.Equal(t, testAddress0, res.Addresses[0].Hex())

	addr, err := hwproxy.AddressAt(xpub, 1)
	require.NoError(t, err)
	require.Equal(t, res.Addresses[1], addr)

	_, err = proxy.SignHash(ctx, 0, testHash())
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
}

// TestParseVariant tests variant names.
func TestParseVariant(t *testing.T) {
	t.Parallel()

	for _, v := range []hwproxy.Variant{
		hwproxy.VariantTrezor, hwproxy.VariantLedger,
		hwproxy.VariantHDPublic,
	} {
		got, err := hwproxy.ParseVariant(v.String())
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	require.True(t, hwproxy.VariantTrezor.IsDevice())
	require.False(t, hwproxy.VariantHDPublic.IsDevice())
	require.Equal(t, "variant(9)", hwproxy.Variant(9).String())

	_, err := hwproxy.ParseVariant("keepkey")
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
}
