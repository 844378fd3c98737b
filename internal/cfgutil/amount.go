// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// AmountFlag holds an amount of wei given in a larger unit and implements
// the flags.Marshaler and Unmarshaler interfaces so it can be used as a
// config struct field.
type AmountFlag struct {
	Wei *big.Int

	unit     *big.Int
	decimals int
	suffix   string
}

// NewEtherFlag creates an AmountFlag parsed in ether.
func NewEtherFlag() *AmountFlag {
	return &AmountFlag{unit: big.NewInt(params.Ether), decimals: 18,
		suffix: "ETH"}
}

// NewGweiFlag creates an AmountFlag parsed in gwei.
func NewGweiFlag() *AmountFlag {
	return &AmountFlag{unit: big.NewInt(params.GWei), decimals: 9,
		suffix: "gwei"}
}

// IsSet reports whether a value was given.
func (a *AmountFlag) IsSet() bool {
	return a.Wei != nil
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	if a.Wei == nil {
		return "", nil
	}
	whole, frac := new(big.Int).QuoRem(a.Wei, a.unit, new(big.Int))
	if frac.Sign() == 0 {
		return fmt.Sprintf("%s %s", whole, a.suffix), nil
	}
	fs := frac.String()
	fs = strings.Repeat("0", a.decimals-len(fs)) + fs
	return fmt.Sprintf("%s.%s %s", whole, strings.TrimRight(fs, "0"),
		a.suffix), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(strings.TrimSuffix(value, a.suffix))
	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > a.decimals {
		return fmt.Errorf("amount %q has more than %d decimals", value,
			a.decimals)
	}

	digits := whole + frac + strings.Repeat("0", a.decimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok || wei.Sign() < 0 || strings.ContainsAny(digits, "+-") {
		return fmt.Errorf("invalid amount %q", value)
	}
	a.Wei = wei
	return nil
}
