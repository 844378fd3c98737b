// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// Hardware is a wallet whose key lives on an external device.  It holds no
// secret; signing is delegated to the device and may block until the user
// approves.
type Hardware struct {
	address common.Address
	variant hwproxy.Variant
	index   uint32
	signer  HashSigner
}

// NewHardware returns the wallet for the device key at index.  signer may be
// nil for wallets restored without a connected device; signing then fails
// with ErrDeviceUnavailable for the wallet's device variant.
func NewHardware(address common.Address, variant hwproxy.Variant,
	index uint32, signer HashSigner) *Hardware {

	return &Hardware{
		address: address,
		variant: variant,
		index:   index,
		signer:  signer,
	}
}

// Address returns the account address.
func (w *Hardware) Address() common.Address { return w.address }

// Kind returns KindHardware.
func (w *Hardware) Kind() Kind { return KindHardware }

// IsPublic returns false.
func (w *Hardware) IsPublic() bool { return false }

// IsHardware returns true.
func (w *Hardware) IsHardware() bool { return true }

// Variant returns the device variant.
func (w *Hardware) Variant() hwproxy.Variant { return w.variant }

// Index returns the child index of the key on the device.
func (w *Hardware) Index() uint32 { return w.index }

// hashSigner returns the configured signer, or a disconnected proxy of the
// wallet's variant when none was configured.
func (w *Hardware) hashSigner() HashSigner {
	if w.signer != nil {
		return w.signer
	}
	switch w.variant {
	case hwproxy.VariantLedger:
		return hwproxy.NewLedger(hwproxy.Disconnected{}, 0)
	case hwproxy.VariantTrezor:
		return hwproxy.NewTrezor(hwproxy.Disconnected{}, 0)
	default:
		return hwproxy.NewXPubProxy()
	}
}

// Sign asks the device to sign payload.  The password is ignored.  A
// signature that does not recover to the wallet address fails with
// ErrIntegrityMismatch.
func (w *Hardware) Sign(ctx context.Context, payload,
	_ []byte) (*Signature, error) {

	hash := accounts.TextHash(payload)

	log.Infof("Requesting %v signature for %v", w.variant, w.address)

	rsv, err := w.hashSigner().SignHash(ctx, w.index, hash)
	if err != nil {
		return nil, err
	}
	if err := checkSigner(hash, rsv, w.address); err != nil {
		return nil, err
	}
	return newSignature(payload, hash, rsv), nil
}

// SignTransaction asks the device to sign the transaction.  The password is
// ignored.
func (w *Hardware) SignTransaction(ctx context.Context, fields *TxFields,
	_ []byte) (string, error) {

	return signTxWithDevice(ctx, w.hashSigner(), w.index, w.address, fields)
}

// ValidatePassword returns false: the wallet has no keystore.
func (w *Hardware) ValidatePassword([]byte) bool { return false }

// ExportKeystore always fails with ErrUnsupportedOperation.
func (w *Hardware) ExportKeystore() ([]byte, error) {
	return nil, unsupported(KindHardware, "export a keystore")
}

func (w *Hardware) sealed() {}
