// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keycrypt

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/ethwallet/walleterr"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	// KDFScrypt is the identifier of the scrypt key derivation function.
	KDFScrypt = "scrypt"

	// KDFPBKDF2 is the identifier of the PBKDF2 key derivation function.
	KDFPBKDF2 = "pbkdf2"

	// prfHMACSHA256 is the only pseudo-random function accepted for
	// PBKDF2.
	prfHMACSHA256 = "hmac-sha256"

	// minDKLen is the smallest derived key that can be split into an
	// AES-128 key and a MAC key.
	minDKLen = 32

	// maxDKLen bounds the derived key length.  Only the first 32 bytes
	// are ever used.
	maxDKLen = 64

	// maxScryptNR bounds scrypt memory, 128*N*r bytes, to 1GiB.
	maxScryptNR = 1 << 23

	// maxScryptNRP bounds the scrypt CPU cost.
	maxScryptNRP = 1 << 25

	// maxPBKDF2C bounds the PBKDF2 iteration count.
	maxPBKDF2C = 1 << 24
)

// Params are the key derivation function parameters used when encrypting a
// secret.  The work factors are opaque to this package; they are stored in
// the resulting record verbatim.
type Params struct {
	// KDF is either KDFScrypt or KDFPBKDF2.
	KDF string

	// N, R and P are the scrypt CPU/memory cost, block size and
	// parallelization parameters.
	N int
	R int
	P int

	// C is the PBKDF2 iteration count.
	C int

	// DKLen is the length of the derived key in bytes.
	DKLen int
}

var (
	// DefaultParams favours security over speed: roughly 256MB of memory
	// and a second of CPU time per derivation on desktop hardware.
	DefaultParams = Params{KDF: KDFScrypt, N: 1 << 18, R: 8, P: 1, DKLen: 32}

	// LightParams trade security for speed on constrained devices.
	LightParams = Params{KDF: KDFScrypt, N: 1 << 12, R: 8, P: 6, DKLen: 32}
)

// Validate returns an ErrInvalidParams error if the parameters cannot
// produce a derived key long enough for encryption and authentication, or
// if their work factors exceed what a keystore may reasonably demand.
// Records read from foreign keystore files are checked the same way before
// any key is derived.
func (p *Params) Validate() error {
	if p.DKLen < minDKLen {
		str := fmt.Sprintf("derived key length %d is shorter than %d "+
			"bytes", p.DKLen, minDKLen)
		return walleterr.New(walleterr.ErrInvalidParams, str, nil)
	}
	if p.DKLen > maxDKLen {
		str := fmt.Sprintf("derived key length %d exceeds %d bytes",
			p.DKLen, maxDKLen)
		return walleterr.New(walleterr.ErrInvalidParams, str, nil)
	}

	switch p.KDF {
	case KDFScrypt:
		if p.N <= 1 || p.N&(p.N-1) != 0 {
			str := fmt.Sprintf("scrypt n=%d is not a power of two "+
				"greater than one", p.N)
			return walleterr.New(walleterr.ErrInvalidParams, str, nil)
		}
		if p.R <= 0 || p.P <= 0 {
			str := fmt.Sprintf("scrypt r=%d p=%d must be positive",
				p.R, p.P)
			return walleterr.New(walleterr.ErrInvalidParams, str, nil)
		}
		if p.N > maxScryptNR/p.R || p.P > maxScryptNRP/(p.N*p.R) {
			str := fmt.Sprintf("scrypt n=%d r=%d p=%d exceeds the "+
				"supported work factor", p.N, p.R, p.P)
			return walleterr.New(walleterr.ErrInvalidParams, str, nil)
		}

	case KDFPBKDF2:
		if p.C <= 0 {
			str := fmt.Sprintf("pbkdf2 c=%d must be positive", p.C)
			return walleterr.New(walleterr.ErrInvalidParams, str, nil)
		}
		if p.C > maxPBKDF2C {
			str := fmt.Sprintf("pbkdf2 c=%d exceeds %d", p.C,
				maxPBKDF2C)
			return walleterr.New(walleterr.ErrInvalidParams, str, nil)
		}

	default:
		str := fmt.Sprintf("unsupported kdf %q", p.KDF)
		return walleterr.New(walleterr.ErrInvalidParams, str, nil)
	}

	return nil
}

// withDefaults fills an unset kdf, derived key length and scrypt block size
// and parallelization with the usual values.  An explicitly short derived
// key length is still rejected by Validate.
func (p Params) withDefaults() Params {
	if p.KDF == "" {
		p.KDF = KDFScrypt
	}
	if p.DKLen == 0 {
		p.DKLen = minDKLen
	}
	if p.KDF == KDFScrypt {
		if p.R == 0 {
			p.R = 8
		}
		if p.P == 0 {
			p.P = 1
		}
	}
	return p
}

// deriveKey stretches the password with the given salt.
func deriveKey(password, salt []byte, p *Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.KDF {
	case KDFScrypt:
		dk, err := scrypt.Key(password, salt, p.N, p.R, p.P, p.DKLen)
		if err != nil {
			return nil, walleterr.New(walleterr.ErrInvalidParams,
				"scrypt rejected parameters", err)
		}
		return dk, nil

	default:
		return pbkdf2.Key(password, salt, p.C, p.DKLen, sha256.New), nil
	}
}
