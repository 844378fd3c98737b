// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"math/big"

	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxFields describes a transaction to sign.  Setting GasFeeCap selects a
// dynamic fee (EIP-1559) transaction; otherwise a legacy transaction priced
// at GasPrice is built, replay protected when ChainID is set.
type TxFields struct {
	Nonce    uint64
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int

	GasFeeCap *big.Int
	GasTipCap *big.Int

	Data    []byte
	ChainID *big.Int
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// build assembles the unsigned transaction and the signer for it.
func (f *TxFields) build() (*types.Transaction, types.Signer, error) {
	if f == nil {
		return nil, nil, walleterr.New(walleterr.ErrInvalidParams,
			"missing transaction fields", nil)
	}

	var to *common.Address
	if f.To != nil {
		addr := *f.To
		to = &addr
	}
	data := common.CopyBytes(f.Data)

	if f.GasFeeCap != nil {
		if f.ChainID == nil || f.ChainID.Sign() <= 0 {
			return nil, nil, walleterr.New(walleterr.ErrInvalidParams,
				"dynamic fee transaction needs a chain id", nil)
		}
		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   bigOrZero(f.ChainID),
			Nonce:     f.Nonce,
			GasTipCap: bigOrZero(f.GasTipCap),
			GasFeeCap: bigOrZero(f.GasFeeCap),
			Gas:       f.Gas,
			To:        to,
			Value:     bigOrZero(f.Value),
			Data:      data,
		})
		return tx, types.LatestSignerForChainID(f.ChainID), nil
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    f.Nonce,
		GasPrice: bigOrZero(f.GasPrice),
		Gas:      f.Gas,
		To:       to,
		Value:    bigOrZero(f.Value),
		Data:     data,
	})

	var signer types.Signer = types.HomesteadSigner{}
	if f.ChainID != nil && f.ChainID.Sign() > 0 {
		signer = types.LatestSignerForChainID(f.ChainID)
	}
	return tx, signer, nil
}

// encodeTx returns the 0x prefixed lowercase hex of the signed transaction.
func encodeTx(tx *types.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", walleterr.New(walleterr.ErrInvalidParams,
			"failed to encode transaction", err)
	}
	return hexutil.Encode(raw), nil
}

// signTxWithKey signs the transaction described by fields with the raw
// private key.
func signTxWithKey(key []byte, fields *TxFields) (string, error) {
	tx, signer, err := fields.build()
	if err != nil {
		return "", err
	}

	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return "", walleterr.New(walleterr.ErrInvalidKeystore,
			"keystore holds an invalid private key", nil)
	}
	defer zero.ECDSA(priv)

	signed, err := types.SignTx(tx, signer, priv)
	if err != nil {
		return "", walleterr.New(walleterr.ErrInvalidParams,
			"failed to sign transaction", err)
	}
	return encodeTx(signed)
}

// signTxWithDevice signs the transaction described by fields through a hash
// signer and checks the signature recovers to want.
func signTxWithDevice(ctx context.Context, s HashSigner, index uint32,
	want common.Address, fields *TxFields) (string, error) {

	tx, signer, err := fields.build()
	if err != nil {
		return "", err
	}

	hash := signer.Hash(tx)
	sig, err := s.SignHash(ctx, index, hash[:])
	if err != nil {
		return "", err
	}
	if err := checkSigner(hash[:], sig, want); err != nil {
		return "", err
	}

	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return "", walleterr.New(walleterr.ErrDeviceUnavailable,
			"device returned a malformed signature", err)
	}
	return encodeTx(signed)
}

// checkSigner fails with ErrIntegrityMismatch unless sig over hash was made
// by want.
func checkSigner(hash, sig []byte, want common.Address) error {
	got, err := recoverHash(hash, sig)
	if err != nil {
		return walleterr.New(walleterr.ErrIntegrityMismatch,
			"device signature does not recover", err)
	}
	if got != want {
		return walleterr.New(walleterr.ErrIntegrityMismatch,
			"device signed with "+got.Hex()+", want "+want.Hex(), nil)
	}
	return nil
}
