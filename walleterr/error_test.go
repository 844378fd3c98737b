// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walleterr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/stretchr/testify/require"
)

// TestErrorCodeStringer tests the stringized output for the ErrorCode type.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   walleterr.ErrorCode
		want string
	}{
		{walleterr.ErrInvalidPassword, "ErrInvalidPassword"},
		{walleterr.ErrInvalidMnemonic, "ErrInvalidMnemonic"},
		{walleterr.ErrDerivation, "ErrDerivation"},
		{walleterr.ErrDeviceUnavailable, "ErrDeviceUnavailable"},
		{walleterr.ErrDeviceRejected, "ErrDeviceRejected"},
		{walleterr.ErrIntegrityMismatch, "ErrIntegrityMismatch"},
		{walleterr.ErrUnsupportedOperation, "ErrUnsupportedOperation"},
		{walleterr.ErrEncryption, "ErrEncryption"},
		{walleterr.ErrNotFound, "ErrNotFound"},
		{walleterr.ErrInvalidParams, "ErrInvalidParams"},
		{walleterr.ErrInvalidKeystore, "ErrInvalidKeystore"},
		{walleterr.ErrInvalidAddress, "ErrInvalidAddress"},
		{walleterr.ErrNoHDKey, "ErrNoHDKey"},
		{walleterr.ErrPersistence, "ErrPersistence"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}
	for i, test := range tests {
		require.Equal(t, test.want, test.in.String(), "String #%d", i)
	}
}

// TestError tests the error output and wrapping behaviour of Error.
func TestError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   walleterr.Error
		want string
	}{
		{
			walleterr.Error{Description: "human-readable error"},
			"human-readable error",
		},
		{
			walleterr.New(
				walleterr.ErrDeviceUnavailable,
				"failed to reach device",
				fmt.Errorf("usb disconnected"),
			),
			"failed to reach device: usb disconnected",
		},
	}
	for i, test := range tests {
		require.Equal(t, test.want, test.in.Error(), "Error #%d", i)
	}
}

// TestIsError ensures codes are recognised through fmt wrapping.
func TestIsError(t *testing.T) {
	t.Parallel()

	base := walleterr.New(walleterr.ErrIntegrityMismatch, "mismatch", nil)
	wrapped := fmt.Errorf("register child: %w", base)

	require.True(t, walleterr.IsError(wrapped, walleterr.ErrIntegrityMismatch))
	require.False(t, walleterr.IsError(wrapped, walleterr.ErrNotFound))
	require.False(t, walleterr.IsError(errors.New("plain"),
		walleterr.ErrNotFound))

	code, ok := walleterr.Code(wrapped)
	require.True(t, ok)
	require.Equal(t, walleterr.ErrIntegrityMismatch, code)
	require.False(t, code.Retryable())
	require.True(t, walleterr.ErrDeviceUnavailable.Retryable())
}
