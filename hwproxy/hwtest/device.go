// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hwtest provides a software hardware-wallet transport for tests.
// It holds its keys in memory, so it must never be used outside of tests.
package hwtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Device is an in-memory hwproxy.Transport derived from a mnemonic.
type Device struct {
	mnemonic string

	mu sync.Mutex

	// reject makes every request fail with hwproxy.ErrRejected.
	reject bool

	// hang makes requests block, ignoring their context, until Release
	// is called.
	hang    bool
	release chan struct{}

	// forgedXPub, when set, is returned instead of the real xpub.
	forgedXPub string

	calls atomic.Int32
}

// A compile time check to ensure Device satisfies hwproxy.Transport.
var _ hwproxy.Transport = (*Device)(nil)

// NewDevice returns a device holding the key tree of mnemonic.
func NewDevice(mnemonic string) *Device {
	return &Device{mnemonic: mnemonic, release: make(chan struct{})}
}

// Reject makes the device decline every request.
func (d *Device) Reject(reject bool) {
	d.mu.Lock()
	d.reject = reject
	d.mu.Unlock()
}

// Hang makes the device stop answering until Release is called.
func (d *Device) Hang() {
	d.mu.Lock()
	d.hang = true
	d.mu.Unlock()
}

// Release unblocks requests stuck in Hang.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hang {
		d.hang = false
		close(d.release)
		d.release = make(chan struct{})
	}
}

// ForgeXPub makes the device advertise xpub instead of its real key.
func (d *Device) ForgeXPub(xpub string) {
	d.mu.Lock()
	d.forgedXPub = xpub
	d.mu.Unlock()
}

// Calls returns the number of requests the device received.
func (d *Device) Calls() int {
	return int(d.calls.Load())
}

func (d *Device) begin() (string, error) {
	d.calls.Add(1)

	d.mu.Lock()
	hang, release := d.hang, d.release
	reject, forged := d.reject, d.forgedXPub
	d.mu.Unlock()

	if hang {
		<-release
	}
	if reject {
		return "", hwproxy.ErrRejected
	}
	return forged, nil
}

// ExtendedPublicKey returns the xpub at path.
func (d *Device) ExtendedPublicKey(_ context.Context,
	path hdkeys.Path) (string, error) {

	forged, err := d.begin()
	if err != nil {
		return "", err
	}
	if forged != "" {
		return forged, nil
	}

	node, err := hdkeys.NodeFromMnemonic(d.mnemonic, path)
	if err != nil {
		return "", err
	}
	defer node.Zero()

	return node.ExtendedPublicKey()
}

// SignHash signs hash with the key at path.  Like Ledger devices it returns
// the recovery id as 27 or 28.
func (d *Device) SignHash(_ context.Context, path hdkeys.Path,
	hash []byte) ([]byte, error) {

	if _, err := d.begin(); err != nil {
		return nil, err
	}

	node, err := hdkeys.NodeFromMnemonic(d.mnemonic, path)
	if err != nil {
		return nil, err
	}
	defer node.Zero()

	keyBytes, err := node.PrivateKey()
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(keyBytes)

	priv := secp256k1.PrivKeyFromBytes(keyBytes)
	defer priv.Zero()

	compact := ecdsa.SignCompact(priv, hash, false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}
