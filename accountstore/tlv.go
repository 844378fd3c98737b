// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accountstore

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeAccountKind     tlv.Type = 1
	typeAccountVariant  tlv.Type = 2
	typeAccountIndex    tlv.Type = 3
	typeAccountKeystore tlv.Type = 4
)

// encodeAccount serializes everything but the ID of an account as a TLV
// stream.  The keystore is stored as its JSON encoding.
func encodeAccount(a *Account) ([]byte, error) {
	kind := uint8(a.Kind)
	variant := uint8(a.Variant)
	index := a.Index

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeAccountKind, &kind),
		tlv.MakePrimitiveRecord(typeAccountVariant, &variant),
		tlv.MakePrimitiveRecord(typeAccountIndex, &index),
	}

	if a.Keystore != nil {
		keystore, err := a.Keystore.Marshal()
		if err != nil {
			return nil, fmt.Errorf("error encoding keystore: %w", err)
		}
		records = append(records, tlv.MakePrimitiveRecord(
			typeAccountKeystore, &keystore,
		))
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeAccount parses a stream written by encodeAccount.
func decodeAccount(id string, data []byte) (*Account, error) {
	var (
		kind, variant uint8
		index         uint32
		keystore      []byte
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeAccountKind, &kind),
		tlv.MakePrimitiveRecord(typeAccountVariant, &variant),
		tlv.MakePrimitiveRecord(typeAccountIndex, &index),
		tlv.MakePrimitiveRecord(typeAccountKeystore, &keystore),
	)
	if err != nil {
		return nil, err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding account %s: %w", id, err)
	}

	a := &Account{
		ID:      id,
		Kind:    wallet.Kind(kind),
		Variant: hwproxy.Variant(variant),
		Index:   index,
	}
	if t, ok := parsed[typeAccountKeystore]; ok && t == nil {
		a.Keystore, err = keycrypt.ParseRecord(keystore)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}
