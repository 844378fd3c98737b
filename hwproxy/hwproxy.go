// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hwproxy fronts external signers.  A Proxy can list the next
// addresses of a device's account and sign 32 byte hashes; the private keys
// never leave the device.  The extended-public-key-only proxy lists
// addresses from a known xpub and cannot sign.
package hwproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
)

// Variant identifies a kind of external signer.  It doubles as the key of
// the extended public key cache.
type Variant uint8

const (
	// VariantTrezor is a Trezor device.
	VariantTrezor Variant = iota + 1

	// VariantLedger is a Ledger device.
	VariantLedger

	// VariantHDPublic is a key tree known only by its extended public
	// key.
	VariantHDPublic
)

var variantStrings = map[Variant]string{
	VariantTrezor:   "trezor",
	VariantLedger:   "ledger",
	VariantHDPublic: "hdpublic",
}

// String returns the lowercase name of the variant.
func (v Variant) String() string {
	if s, ok := variantStrings[v]; ok {
		return s
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// IsDevice reports whether the variant is backed by a physical device.
func (v Variant) IsDevice() bool {
	return v == VariantTrezor || v == VariantLedger
}

// ParseVariant parses the name returned by String.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantStrings {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return 0, walleterr.New(walleterr.ErrUnsupportedOperation,
		fmt.Sprintf("unknown signer variant %q", s), nil)
}

// ErrRejected is returned by transports when the user declines a request on
// the device.
var ErrRejected = errors.New("request rejected on device")

// MaxNextWallets is the largest number of addresses one NextWallets call
// returns.
const MaxNextWallets = 100

// NextWalletsParams selects a range of child addresses.
type NextWalletsParams struct {
	// XPub is the cached extended public key, if any.  When set, devices
	// are not contacted.
	XPub string

	// Offset is the first child index returned.
	Offset uint32

	// Limit is the number of addresses returned, at most
	// MaxNextWallets.
	Limit uint32
}

// NextWallets is the result of Proxy.NextWallets.
type NextWallets struct {
	// XPub identifies the key tree the addresses belong to.
	XPub string

	// Addresses holds the child addresses for indexes Offset through
	// Offset+Limit-1.
	Addresses []common.Address
}

// Proxy is the capability set of an external signer.
type Proxy interface {
	// Variant returns the kind of signer.
	Variant() Variant

	// NextWallets returns the extended public key and a range of child
	// addresses.  It is idempotent for a given device state and range.
	NextWallets(ctx context.Context,
		params *NextWalletsParams) (*NextWallets, error)

	// SignHash signs a 32 byte hash with the child key at index and
	// returns a 65 byte [R || S || V] signature with V in {0, 1}.  It may
	// block until the user approves on the device.
	SignHash(ctx context.Context, index uint32, hash []byte) ([]byte, error)
}

// checkRange rejects ranges longer than MaxNextWallets and ranges reaching
// into the hardened indexes, which cannot be derived from a public key.
func checkRange(offset, limit uint32) error {
	if limit > MaxNextWallets {
		str := fmt.Sprintf("limit %d exceeds %d addresses", limit,
			MaxNextWallets)
		return walleterr.New(walleterr.ErrDerivation, str, nil)
	}
	if uint64(offset)+uint64(limit) > hdkeychain.HardenedKeyStart {
		str := fmt.Sprintf("indexes %d through %d are not all "+
			"non-hardened", offset, uint64(offset)+uint64(limit)-1)
		return walleterr.New(walleterr.ErrDerivation, str, nil)
	}
	return nil
}

// deriveAddresses derives limit child addresses of xpub starting at
// offset.
func deriveAddresses(xpub string, offset,
	limit uint32) ([]common.Address, error) {

	if err := checkRange(offset, limit); err != nil {
		return nil, err
	}

	parent, err := hdkeys.NodeFromExtendedKey(xpub)
	if err != nil {
		return nil, err
	}
	if parent.IsPrivate() {
		return nil, walleterr.New(walleterr.ErrIntegrityMismatch,
			"signer disclosed a private extended key", nil)
	}

	addrs := make([]common.Address, 0, limit)
	for i := uint32(0); i < limit; i++ {
		child, err := hdkeys.DeriveChild(parent, offset+i)
		if err != nil {
			return nil, err
		}
		addr, err := hdkeys.AddressOf(child)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// AddressAt derives the child address at index of xpub.
func AddressAt(xpub string, index uint32) (common.Address, error) {
	addrs, err := deriveAddresses(xpub, index, 1)
	if err != nil {
		return common.Address{}, err
	}
	return addrs[0], nil
}

// XPubProxy lists addresses of a key tree known by its extended public key.
type XPubProxy struct{}

// NewXPubProxy returns a proxy for VariantHDPublic.
func NewXPubProxy() *XPubProxy {
	return &XPubProxy{}
}

// Variant returns VariantHDPublic.
func (p *XPubProxy) Variant() Variant {
	return VariantHDPublic
}

// NextWallets derives the requested addresses from params.XPub.
func (p *XPubProxy) NextWallets(_ context.Context,
	params *NextWalletsParams) (*NextWallets, error) {

	if err := checkRange(params.Offset, params.Limit); err != nil {
		return nil, err
	}
	if params.XPub == "" {
		return nil, walleterr.New(walleterr.ErrNoHDKey,
			"no extended public key cached", nil)
	}
	addrs, err := deriveAddresses(params.XPub, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	return &NextWallets{XPub: params.XPub, Addresses: addrs}, nil
}

// SignHash always fails: an extended public key cannot sign.
func (p *XPubProxy) SignHash(context.Context, uint32, []byte) ([]byte, error) {
	return nil, walleterr.New(walleterr.ErrUnsupportedOperation,
		"extended public key cannot sign", nil)
}
