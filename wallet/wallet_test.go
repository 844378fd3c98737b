// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/hwproxy/hwtest"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	testAddress0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	testKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testKeyAddr = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

var (
	fastParams = keycrypt.Params{KDF: keycrypt.KDFScrypt, N: 2, DKLen: 32}

	password = []byte("correct horse")
)

func testKey(t *testing.T) []byte {
	t.Helper()

	key, err := hexutil.Decode("0x" + testKeyHex)
	require.NoError(t, err)
	return key
}

func accountNode(t *testing.T) *hdkeys.Node {
	t.Helper()

	node, err := hdkeys.NodeFromMnemonic(
		testMnemonic, hdkeys.MustParsePath(hdkeys.DefaultPath),
	)
	require.NoError(t, err)
	return node
}

func testTx(chainID int64, dynamic bool) *wallet.TxFields {
	to := common.HexToAddress("0x3535353535353535353535353535353535353535")
	fields := &wallet.TxFields{
		Nonce: 9,
		To:    &to,
		Value: big.NewInt(1e18),
		Gas:   21000,
		Data:  []byte{0xde, 0xad},
	}
	if chainID != 0 {
		fields.ChainID = big.NewInt(chainID)
	}
	if dynamic {
		fields.GasFeeCap = big.NewInt(30e9)
		fields.GasTipCap = big.NewInt(2e9)
	} else {
		fields.GasPrice = big.NewInt(20e9)
	}
	return fields
}

// decodeTx parses a serialized transaction and returns its sender.
func decodeTx(t *testing.T, raw string) (*types.Transaction, common.Address) {
	t.Helper()

	require.True(t, strings.HasPrefix(raw, "0x"))
	require.Equal(t, strings.ToLower(raw), raw)

	b, err := hexutil.Decode(raw)
	require.NoError(t, err)

	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(b))

	var signer types.Signer = types.HomesteadSigner{}
	if tx.Protected() {
		signer = types.LatestSignerForChainID(tx.ChainId())
	}
	from, err := types.Sender(signer, &tx)
	require.NoError(t, err, spew.Sdump(&tx))
	return &tx, from
}

// TestPrivateKeyVector ensures the well known key maps to its address and
// its keystore uses the version 3 address form.
func TestPrivateKeyVector(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewPrivateKey(testKey(t), password, fastParams)
	require.NoError(t, err)
	require.Equal(t, testKeyAddr, w.Address().Hex())
	require.Equal(t, wallet.KindPrivateKey, w.Kind())
	require.False(t, w.IsPublic())
	require.False(t, w.IsHardware())

	record := w.Keystore()
	require.Equal(t, strings.ToLower(testKeyAddr[2:]), record.Address)

	require.True(t, w.ValidatePassword(password))
	require.False(t, w.ValidatePassword([]byte("wrong")))

	exported, err := w.ExportKeystore()
	require.NoError(t, err)
	parsed, err := keycrypt.ParseRecord(exported)
	require.NoError(t, err)
	require.True(t, parsed.Equal(record))

	restored, err := wallet.PrivateKeyFromRecord(parsed)
	require.NoError(t, err)
	require.Equal(t, w.Address(), restored.Address())

	_, err = wallet.NewPrivateKey(make([]byte, 32), password, fastParams)
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidParams))
}

// TestSignMessage ensures message signatures recover to the signer.
func TestSignMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, err := wallet.NewPrivateKey(testKey(t), password, fastParams)
	require.NoError(t, err)

	msg := []byte("Some data")
	sig, err := w.Sign(ctx, msg, password)
	require.NoError(t, err)
	require.Len(t, sig.Bytes, 65)
	require.Contains(t, []byte{27, 28}, sig.V)
	require.Equal(t, sig.V, sig.Bytes[64])
	require.Equal(t, sig.R.Bytes(), sig.Bytes[:32])
	require.Equal(t, sig.S.Bytes(), sig.Bytes[32:64])
	require.Equal(t, msg, sig.Message)
	require.Len(t, sig.String(), 132)

	addr, err := wallet.Recover(msg, sig.Bytes)
	require.NoError(t, err)
	require.Equal(t, w.Address(), addr)

	// A signature over another message recovers to someone else.
	other, err := wallet.Recover([]byte("Other data"), sig.Bytes)
	require.NoError(t, err)
	require.NotEqual(t, w.Address(), other)

	_, err = w.Sign(ctx, msg, []byte("wrong"))
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidPassword))

	_, err = wallet.Recover(msg, sig.Bytes[:64])
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidParams))
}

// TestSignTransaction ensures signed transactions of both kinds decode and
// recover to the signer.
func TestSignTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, err := wallet.NewPrivateKey(testKey(t), password, fastParams)
	require.NoError(t, err)

	tests := []struct {
		name    string
		chainID int64
		dynamic bool
		txType  uint8
	}{
		{"legacy unprotected", 0, false, types.LegacyTxType},
		{"legacy eip155", 1, false, types.LegacyTxType},
		{"dynamic fee", 5, true, types.DynamicFeeTxType},
	}
	for _, test := range tests {
		fields := testTx(test.chainID, test.dynamic)
		raw, err := w.SignTransaction(ctx, fields, password)
		require.NoError(t, err, test.name)

		tx, from := decodeTx(t, raw)
		require.Equal(t, w.Address(), from, test.name)
		require.Equal(t, test.txType, tx.Type(), test.name)
		require.Equal(t, fields.Nonce, tx.Nonce(), test.name)
		require.Equal(t, *fields.To, *tx.To(), test.name)
		require.Equal(t, fields.Data, tx.Data(), test.name)
		if test.chainID != 0 {
			require.Equal(t, test.chainID, tx.ChainId().Int64(),
				test.name)
		}
		require.Equal(t, test.chainID != 0, tx.Protected(), test.name)
	}

	// Dynamic fee transactions need a chain id.
	_, err = w.SignTransaction(ctx, testTx(0, true), password)
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidParams))

	_, err = w.SignTransaction(ctx, testTx(1, false), []byte("wrong"))
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidPassword))
}

// TestHDWallets ensures the HD root and its children sign with the keys of
// their derivation path.
func TestHDWallets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	node := accountNode(t)

	root, err := wallet.NewHDRoot(node, password, fastParams)
	require.NoError(t, err)
	require.Equal(t, wallet.KindHDRoot, root.Kind())
	require.True(t, hdkeys.IsExtendedKey(root.XPub()))
	require.True(t, root.ValidatePassword(password))

	restored, err := wallet.HDRootFromRecord(root.Keystore())
	require.NoError(t, err)
	require.Equal(t, root.Address(), restored.Address())

	decrypted, err := restored.Node(password)
	require.NoError(t, err)
	child, err := wallet.NewHDChild(decrypted, 0, password, fastParams)
	decrypted.Zero()
	require.NoError(t, err)
	require.Equal(t, testAddress0, child.Address().Hex())
	require.Equal(t, uint32(0), child.Index())
	require.Equal(t, wallet.KindHDChild, child.Kind())

	for _, w := range []wallet.Wallet{root, child} {
		sig, err := w.Sign(ctx, []byte("hd"), password)
		require.NoError(t, err)
		addr, err := wallet.Recover([]byte("hd"), sig.Bytes)
		require.NoError(t, err)
		require.Equal(t, w.Address(), addr)

		raw, err := w.SignTransaction(ctx, testTx(1, true), password)
		require.NoError(t, err)
		_, from := decodeTx(t, raw)
		require.Equal(t, w.Address(), from)
	}

	// A public record cannot stand in for the root.
	_, err = wallet.HDRootFromRecord(keycrypt.PublicRecord(root.XPub()))
	require.True(t, walleterr.IsError(err, walleterr.ErrInvalidKeystore))
}

// TestWithKeystore ensures replacement keystores must belong to the same
// account and leave the original wallet untouched.
func TestWithKeystore(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewPrivateKey(testKey(t), password, fastParams)
	require.NoError(t, err)
	before := w.Keystore()

	newPass := []byte("new password")
	record, err := keycrypt.Reencrypt(password, newPass, w.Keystore(),
		fastParams)
	require.NoError(t, err)

	replaced, err := w.WithKeystore(record)
	require.NoError(t, err)
	require.True(t, replaced.ValidatePassword(newPass))
	require.False(t, replaced.ValidatePassword(password))
	require.True(t, w.ValidatePassword(password))
	require.True(t, before.Equal(w.Keystore()))

	child, err := wallet.NewHDChild(accountNode(t), 1, password, fastParams)
	require.NoError(t, err)
	_, err = w.WithKeystore(child.Keystore())
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))

	root, err := wallet.NewHDRoot(accountNode(t), password, fastParams)
	require.NoError(t, err)
	_, err = root.WithKeystore(w.Keystore())
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))

	// A record that lies about its address is caught on use.
	forged := child.Keystore()
	forged.Address = before.Address
	liar, err := wallet.PrivateKeyFromRecord(forged)
	require.NoError(t, err)
	_, err = liar.Sign(context.Background(), []byte("x"), password)
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))
}

// TestHardware ensures device wallets delegate signing and verify the
// device's answer.
func TestHardware(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dev := hwtest.NewDevice(testMnemonic)
	proxy := hwproxy.NewTrezor(dev, 0)

	addr := common.HexToAddress(testAddress0)
	w := wallet.NewHardware(addr, hwproxy.VariantTrezor, 0, proxy)
	require.True(t, w.IsHardware())
	require.False(t, w.IsPublic())
	require.False(t, w.ValidatePassword(password))
	require.Equal(t, hwproxy.VariantTrezor, w.Variant())

	sig, err := w.Sign(ctx, []byte("device"), nil)
	require.NoError(t, err)
	require.Contains(t, []byte{27, 28}, sig.V)
	got, err := wallet.Recover([]byte("device"), sig.Bytes)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	raw, err := w.SignTransaction(ctx, testTx(1, false), nil)
	require.NoError(t, err)
	_, from := decodeTx(t, raw)
	require.Equal(t, addr, from)

	_, err = w.ExportKeystore()
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))

	// The device signing with a key other than the wallet's is caught.
	wrong := wallet.NewHardware(addr, hwproxy.VariantTrezor, 1, proxy)
	_, err = wrong.Sign(ctx, []byte("device"), nil)
	require.True(t, walleterr.IsError(err, walleterr.ErrIntegrityMismatch))

	dev.Reject(true)
	_, err = w.SignTransaction(ctx, testTx(1, false), nil)
	require.True(t, walleterr.IsError(err, walleterr.ErrDeviceRejected))

	// A wallet restored without a device cannot sign, and the failure
	// names the wallet's own device.
	for _, v := range []hwproxy.Variant{
		hwproxy.VariantTrezor, hwproxy.VariantLedger,
	} {
		offline := wallet.NewHardware(addr, v, 0, nil)
		_, err = offline.Sign(ctx, []byte("device"), nil)
		require.True(t, walleterr.IsError(err,
			walleterr.ErrDeviceUnavailable), "%v: got %v", v, err)
		require.Contains(t, err.Error(), v.String()+" sign failed")
	}
}

// TestWatchOnly ensures watch-only wallets refuse every credential
// operation.
func TestWatchOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w := wallet.NewWatchOnly(common.HexToAddress(testKeyAddr))
	require.True(t, w.IsPublic())
	require.Equal(t, wallet.KindWatchOnly, w.Kind())
	require.False(t, w.ValidatePassword(password))

	_, err := w.Sign(ctx, []byte("x"), password)
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
	_, err = w.SignTransaction(ctx, testTx(1, false), password)
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
	_, err = w.ExportKeystore()
	require.True(t, walleterr.IsError(err,
		walleterr.ErrUnsupportedOperation))
}

// TestParseAddress tests address parsing in its accepted forms.
func TestParseAddress(t *testing.T) {
	t.Parallel()

	want := common.HexToAddress(testKeyAddr)
	tests := []struct {
		in    string
		valid bool
	}{
		{testKeyAddr, true},
		{strings.ToLower(testKeyAddr), true},
		{strings.ToLower(testKeyAddr[2:]), true},
		{"0x" + strings.ToUpper(testKeyAddr[2:]), true},
		{strings.Replace(testKeyAddr, "E", "e", 1), false},
		{"0x1234", false},
		{"xpub", false},
	}
	for _, test := range tests {
		got, err := wallet.ParseAddress(test.in)
		if !test.valid {
			require.Truef(t, walleterr.IsError(err,
				walleterr.ErrInvalidAddress), "%q: got %v",
				test.in, err)
			continue
		}
		require.NoError(t, err, test.in)
		require.Equal(t, want, got)
	}
}

// TestKindStrings tests kind names.
func TestKindStrings(t *testing.T) {
	t.Parallel()

	for _, k := range []wallet.Kind{
		wallet.KindPrivateKey, wallet.KindHDRoot, wallet.KindHDChild,
		wallet.KindHardware, wallet.KindWatchOnly,
	} {
		got, err := wallet.ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := wallet.ParseKind("paper")
	require.Error(t, err)
}
