// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/ethwallet/internal/prompt"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func TestPassword(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := prompt.NewFromReader(strings.NewReader(
		"\none\ntwo\nsecret\nsecret\n",
	), &out)

	pass, err := p.Password("Password", true)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), pass)
	require.Contains(t, out.String(), "do not match")

	_, err = p.Password("Password", false)
	require.ErrorIs(t, err, prompt.ErrEmptyInput)
}

func TestYesNo(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := prompt.NewFromReader(strings.NewReader("maybe\nY\n\n"), &out)

	yes, err := p.YesNo("Continue?", "no")
	require.NoError(t, err)
	require.True(t, yes)

	yes, err = p.YesNo("Continue?", "no")
	require.NoError(t, err)
	require.False(t, yes)
}

func TestMnemonic(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := prompt.NewFromReader(strings.NewReader(
		"yes\nabandon zoo\n  ABANDON abandon abandon abandon abandon "+
			"abandon abandon abandon abandon abandon abandon about\n",
	), &out)

	mnemonic, err := p.Mnemonic(128)
	require.NoError(t, err)
	require.Equal(t, testMnemonic, mnemonic)
	require.Contains(t, out.String(), "Invalid mnemonic")

	out.Reset()
	p = prompt.NewFromReader(strings.NewReader("no\nnot yet\nok\n"), &out)
	mnemonic, err = p.Mnemonic(128)
	require.NoError(t, err)
	require.Len(t, strings.Fields(mnemonic), 12)
	require.Contains(t, out.String(), mnemonic)
}
