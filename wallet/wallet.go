// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet provides the single-account abstraction shared by every kind
// of account the registry manages.
//
// The set of account kinds is closed.  Each kind carries only the data it
// owns:
//
//   - PrivateKey: an encrypted plain private key
//   - HDRoot: the encrypted extended private key of the account node
//   - HDChild: an encrypted private key derived from the HD root at an index
//   - Hardware: a device variant and index, with signing delegated to the
//     device
//   - WatchOnly: an address only
//
// Wallets are immutable.  Re-encryption produces a new wallet through
// WithKeystore rather than editing the existing one.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies the variant of a wallet.
type Kind uint8

const (
	// KindPrivateKey is a wallet backed by an imported or generated
	// private key.
	KindPrivateKey Kind = iota + 1

	// KindHDRoot is the wallet of the HD account node itself.
	KindHDRoot

	// KindHDChild is a wallet derived from the HD root.
	KindHDChild

	// KindHardware is a wallet whose key lives on an external device.
	KindHardware

	// KindWatchOnly is an address tracked without any key.
	KindWatchOnly
)

var kindStrings = map[Kind]string{
	KindPrivateKey: "privatekey",
	KindHDRoot:     "hdroot",
	KindHDChild:    "hdchild",
	KindHardware:   "hardware",
	KindWatchOnly:  "watchonly",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses the name returned by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindStrings {
		if s == name {
			return k, nil
		}
	}
	return 0, walleterr.New(walleterr.ErrInvalidParams,
		fmt.Sprintf("unknown wallet kind %q", s), nil)
}

// Wallet is implemented by every account variant.  The interface is sealed;
// the variants of this package are the only implementations.
type Wallet interface {
	// Address returns the account address.  It never needs a secret.
	Address() common.Address

	// Kind returns the variant of the wallet.
	Kind() Kind

	// IsPublic reports whether the wallet is watch-only.
	IsPublic() bool

	// IsHardware reports whether the wallet's key lives on a device.
	IsHardware() bool

	// Sign signs payload as an Ethereum signed message.  Key backed
	// wallets need password; hardware wallets ignore it and wait for the
	// device.
	Sign(ctx context.Context, payload, password []byte) (*Signature, error)

	// SignTransaction signs the transaction described by fields and
	// returns its 0x prefixed serialized form.
	SignTransaction(ctx context.Context, fields *TxFields,
		password []byte) (string, error)

	// ValidatePassword reports whether password decrypts the wallet's
	// keystore.  A wrong password is not an error.
	ValidatePassword(password []byte) bool

	// ExportKeystore returns the JSON encoding of the stored keystore
	// record.  It never returns decrypted material.
	ExportKeystore() ([]byte, error)

	sealed()
}

// Keyed is implemented by the wallets that own a keystore record.
type Keyed interface {
	Wallet

	// Keystore returns a copy of the wallet's keystore record.
	Keystore() *keycrypt.KeystoreRecord

	// WithKeystore returns a wallet identical to the receiver but backed
	// by record.  The record must belong to the same account.
	WithKeystore(record *keycrypt.KeystoreRecord) (Keyed, error)
}

// HashSigner signs 32 byte hashes with the key at a child index.  It is
// implemented by hardware proxies.
type HashSigner interface {
	SignHash(ctx context.Context, index uint32, hash []byte) ([]byte, error)
}

// ParseAddress parses a hex address with or without its 0x prefix, in
// lowercase or checksum form.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, walleterr.New(walleterr.ErrInvalidAddress,
			fmt.Sprintf("invalid address %q", s), nil)
	}
	addr := common.HexToAddress(s)

	// A mixed case address must carry a valid checksum.
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) &&
		addr.Hex() != "0x"+body {

		return common.Address{}, walleterr.New(walleterr.ErrInvalidAddress,
			fmt.Sprintf("bad address checksum %q", s), nil)
	}
	return addr, nil
}

// recordAddress formats addr the way version 3 keystores store it.
func recordAddress(addr common.Address) string {
	return strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
}

func unsupported(k Kind, op string) error {
	return walleterr.New(walleterr.ErrUnsupportedOperation,
		fmt.Sprintf("%v wallet cannot %s", k, op), nil)
}

// WatchOnly tracks an address without holding any key.
type WatchOnly struct {
	address common.Address
}

// NewWatchOnly returns a watch-only wallet for address.
func NewWatchOnly(address common.Address) *WatchOnly {
	return &WatchOnly{address: address}
}

// Address returns the watched address.
func (w *WatchOnly) Address() common.Address { return w.address }

// Kind returns KindWatchOnly.
func (w *WatchOnly) Kind() Kind { return KindWatchOnly }

// IsPublic returns true.
func (w *WatchOnly) IsPublic() bool { return true }

// IsHardware returns false.
func (w *WatchOnly) IsHardware() bool { return false }

// Sign always fails with ErrUnsupportedOperation.
func (w *WatchOnly) Sign(context.Context, []byte, []byte) (*Signature, error) {
	return nil, unsupported(KindWatchOnly, "sign")
}

// SignTransaction always fails with ErrUnsupportedOperation.
func (w *WatchOnly) SignTransaction(context.Context, *TxFields,
	[]byte) (string, error) {

	return "", unsupported(KindWatchOnly, "sign transactions")
}

// ValidatePassword returns false.
func (w *WatchOnly) ValidatePassword([]byte) bool { return false }

// ExportKeystore always fails with ErrUnsupportedOperation.
func (w *WatchOnly) ExportKeystore() ([]byte, error) {
	return nil, unsupported(KindWatchOnly, "export a keystore")
}

func (w *WatchOnly) sealed() {}
