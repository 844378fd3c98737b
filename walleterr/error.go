// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walleterr defines the error taxonomy shared by every package of
// the account manager.  Errors carry a machine readable ErrorCode so callers
// can tell an expected outcome, such as a mistyped password, apart from a
// fatal one, such as a hardware device reporting addresses that do not match
// its own derivation tree.
package walleterr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidPassword indicates that a keystore could not be decrypted
	// with the provided password.  This is an expected, user recoverable
	// outcome.
	ErrInvalidPassword ErrorCode = iota

	// ErrInvalidMnemonic indicates a malformed mnemonic word list or a
	// checksum failure.
	ErrInvalidMnemonic

	// ErrDerivation indicates that a hierarchical deterministic derivation
	// step produced an invalid key or was asked for an index it cannot
	// derive.
	ErrDerivation

	// ErrDeviceUnavailable indicates a transient hardware device failure,
	// including timeouts while waiting for user approval.  The operation
	// may be retried.
	ErrDeviceUnavailable

	// ErrDeviceRejected indicates the user declined the request on the
	// hardware device.
	ErrDeviceRejected

	// ErrIntegrityMismatch indicates that an address asserted by a device
	// or caller does not match the address derived locally.  It is always
	// fatal to the current operation.
	ErrIntegrityMismatch

	// ErrUnsupportedOperation indicates an operation was invoked on a
	// wallet variant that cannot perform it.
	ErrUnsupportedOperation

	// ErrEncryption indicates a failure of the environment while
	// encrypting, such as an exhausted randomness source.
	ErrEncryption

	// ErrNotFound indicates that a requested address is not known.
	ErrNotFound

	// ErrInvalidParams indicates key derivation function parameters that
	// cannot produce a usable key.
	ErrInvalidParams

	// ErrInvalidKeystore indicates a keystore record that is malformed or
	// uses an unsupported version, cipher or key derivation function.
	ErrInvalidKeystore

	// ErrInvalidAddress indicates a string that is neither a hex address
	// nor an extended public key.
	ErrInvalidAddress

	// ErrNoHDKey indicates an operation that needs the HD root key was
	// attempted before one was created or imported.
	ErrNoHDKey

	// ErrPersistence indicates that the persistence collaborator failed or
	// reported an unsuccessful write.
	ErrPersistence
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidPassword:      "ErrInvalidPassword",
	ErrInvalidMnemonic:      "ErrInvalidMnemonic",
	ErrDerivation:           "ErrDerivation",
	ErrDeviceUnavailable:    "ErrDeviceUnavailable",
	ErrDeviceRejected:       "ErrDeviceRejected",
	ErrIntegrityMismatch:    "ErrIntegrityMismatch",
	ErrUnsupportedOperation: "ErrUnsupportedOperation",
	ErrEncryption:           "ErrEncryption",
	ErrNotFound:             "ErrNotFound",
	ErrInvalidParams:        "ErrInvalidParams",
	ErrInvalidKeystore:      "ErrInvalidKeystore",
	ErrInvalidAddress:       "ErrInvalidAddress",
	ErrNoHDKey:              "ErrNoHDKey",
	ErrPersistence:          "ErrPersistence",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Retryable reports whether an error with this code may succeed when the
// same operation is attempted again without new user input.
func (e ErrorCode) Retryable() bool {
	return e == ErrDeviceUnavailable || e == ErrPersistence
}

// Error provides a single type for errors that can happen during account
// management.  It is used to indicate several types of failures including
// wrong passwords, device failures and integrity violations.
//
// The caller can use type assertions to determine if an error is an Error
// and access the ErrorCode field to ascertain the specific reason for the
// failure.
//
// The Err field is set to the underlying error, if any.  It never contains
// secret material.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// New creates an Error given a set of arguments.
func New(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error
// code.  Wrapped errors are inspected as well.
func IsError(err error, code ErrorCode) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.ErrorCode == code
}

// Code returns the ErrorCode carried by err and whether one was found.
func Code(err error) (ErrorCode, bool) {
	var e Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.ErrorCode, true
}
