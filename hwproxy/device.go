// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hwproxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/walleterr"
)

// DefaultTimeout bounds every device round trip, including the time spent
// waiting for the user to confirm on the device.
const DefaultTimeout = 2 * time.Minute

var (
	// trezorBasePath is the parent of Trezor account addresses.
	trezorBasePath = hdkeys.MustParsePath("m/44'/60'/0'/0")

	// ledgerBasePath is the parent of Ledger legacy account addresses.
	ledgerBasePath = hdkeys.MustParsePath("m/44'/60'/0'")
)

// Transport carries requests to a physical device.  Implementations return
// ErrRejected when the user declines; every other error is treated as the
// device being unavailable.
type Transport interface {
	// ExtendedPublicKey returns the serialized xpub at path.
	ExtendedPublicKey(ctx context.Context, path hdkeys.Path) (string, error)

	// SignHash signs hash with the key at path and returns a 65 byte
	// [R || S || V] signature.  V may be in {0, 1} or {27, 28}.
	SignHash(ctx context.Context, path hdkeys.Path,
		hash []byte) ([]byte, error)
}

// DeviceProxy is a Proxy backed by a Transport.
type DeviceProxy struct {
	variant   Variant
	basePath  hdkeys.Path
	transport Transport
	timeout   time.Duration
}

// A compile time check to ensure DeviceProxy satisfies the Proxy interface.
var _ Proxy = (*DeviceProxy)(nil)

// NewTrezor returns a proxy for a Trezor reached through t.  A zero timeout
// selects DefaultTimeout.
func NewTrezor(t Transport, timeout time.Duration) *DeviceProxy {
	return newDeviceProxy(VariantTrezor, trezorBasePath, t, timeout)
}

// NewLedger returns a proxy for a Ledger reached through t.  A zero timeout
// selects DefaultTimeout.
func NewLedger(t Transport, timeout time.Duration) *DeviceProxy {
	return newDeviceProxy(VariantLedger, ledgerBasePath, t, timeout)
}

func newDeviceProxy(v Variant, base hdkeys.Path, t Transport,
	timeout time.Duration) *DeviceProxy {

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DeviceProxy{
		variant:   v,
		basePath:  base,
		transport: t,
		timeout:   timeout,
	}
}

// Variant returns the device kind.
func (p *DeviceProxy) Variant() Variant {
	return p.variant
}

// BasePath returns the parent path of the device's account addresses.
func (p *DeviceProxy) BasePath() hdkeys.Path {
	return p.basePath
}

// NextWallets returns addresses derived from the device's account xpub.
// The device is only contacted when params.XPub is empty.
func (p *DeviceProxy) NextWallets(ctx context.Context,
	params *NextWalletsParams) (*NextWallets, error) {

	if err := checkRange(params.Offset, params.Limit); err != nil {
		return nil, err
	}

	xpub := params.XPub
	if xpub == "" {
		var err error
		xpub, err = callDevice(ctx, p, "get public key",
			func(ctx context.Context) (string, error) {
				return p.transport.ExtendedPublicKey(ctx, p.basePath)
			},
		)
		if err != nil {
			return nil, err
		}
		log.Debugf("Fetched %v xpub for %v", p.variant, p.basePath)
	}

	addrs, err := deriveAddresses(xpub, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	return &NextWallets{XPub: xpub, Addresses: addrs}, nil
}

// SignHash asks the device to sign hash with the child key at index.
func (p *DeviceProxy) SignHash(ctx context.Context, index uint32,
	hash []byte) ([]byte, error) {

	if len(hash) != 32 {
		str := fmt.Sprintf("hash is %d bytes, want 32", len(hash))
		return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
			str, nil)
	}

	path := p.basePath.Child(index)
	log.Infof("Waiting for %v approval to sign with %v", p.variant, path)

	sig, err := callDevice(ctx, p, "sign",
		func(ctx context.Context) ([]byte, error) {
			return p.transport.SignHash(ctx, path, hash)
		},
	)
	if err != nil {
		return nil, err
	}
	return normalizeSignature(sig)
}

type deviceResult[T any] struct {
	val T
	err error
}

// callDevice runs fn under the proxy timeout.  The call is abandoned when
// the context ends even if the transport ignores cancellation.
func callDevice[T any](ctx context.Context, p *DeviceProxy, op string,
	fn func(context.Context) (T, error)) (T, error) {

	var zeroVal T

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resc := make(chan deviceResult[T], 1)
	go func() {
		val, err := fn(ctx)
		resc <- deviceResult[T]{val: val, err: err}
	}()

	select {
	case res := <-resc:
		if res.err != nil {
			return zeroVal, classify(p.variant, op, res.err)
		}
		return res.val, nil

	case <-ctx.Done():
		return zeroVal, classify(p.variant, op, ctx.Err())
	}
}

// classify maps transport failures onto the device error codes.
func classify(v Variant, op string, err error) error {
	str := fmt.Sprintf("%v %s", v, op)
	if errors.Is(err, ErrRejected) {
		return walleterr.New(walleterr.ErrDeviceRejected,
			str+" rejected by user", err)
	}
	return walleterr.New(walleterr.ErrDeviceUnavailable, str+" failed", err)
}

// normalizeSignature returns sig with its recovery id in {0, 1}.
func normalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		str := fmt.Sprintf("device returned %d byte signature", len(sig))
		return nil, walleterr.New(walleterr.ErrDeviceUnavailable, str, nil)
	}

	out := make([]byte, 65)
	copy(out, sig)
	switch {
	case out[64] == 0 || out[64] == 1:
	case out[64] == 27 || out[64] == 28:
		out[64] -= 27
	default:
		str := fmt.Sprintf("device returned recovery id %d", out[64])
		return nil, walleterr.New(walleterr.ErrDeviceUnavailable, str, nil)
	}
	return out, nil
}

// Disconnected is a Transport for builds without device support.  Every
// request fails, which proxies report as ErrDeviceUnavailable.
type Disconnected struct{}

// ExtendedPublicKey always fails.
func (Disconnected) ExtendedPublicKey(context.Context,
	hdkeys.Path) (string, error) {

	return "", errors.New("no device transport configured")
}

// SignHash always fails.
func (Disconnected) SignHash(context.Context, hdkeys.Path,
	[]byte) ([]byte, error) {

	return nil, errors.New("no device transport configured")
}
