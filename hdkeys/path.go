// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/ethwallet/walleterr"
)

// DefaultPath is the BIP0044 external chain of the first Ethereum account.
// Children of the node at this path are the account addresses.
const DefaultPath = "m/44'/60'/0'/0"

// Path is a sequence of child indexes starting at the master node.  Hardened
// steps have hdkeychain.HardenedKeyStart added.
type Path []uint32

// ParsePath parses a derivation path such as m/44'/60'/0'/0.  Hardened
// steps may be marked with ' or h.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		str := fmt.Sprintf("derivation path %q must start with m", s)
		return nil, walleterr.New(walleterr.ErrDerivation, str, nil)
	}

	path := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'") ||
			strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}

		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n >= hdkeychain.HardenedKeyStart {
			str := fmt.Sprintf("invalid derivation path element %q "+
				"in %q", part, s)
			return nil, walleterr.New(walleterr.ErrDerivation, str, err)
		}

		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		path = append(path, idx)
	}

	return path, nil
}

// MustParsePath is like ParsePath but panics on error.  It is intended for
// package level path constants.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Child returns a copy of the path extended by index.
func (p Path) Child(index uint32) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, index)
}

// String returns the path in m/44'/60'/0'/0 notation.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		b.WriteByte('/')
		if idx >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(idx-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(idx), 10))
	}
	return b.String()
}
