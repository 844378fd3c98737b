// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walleterr

// Sink receives every error surfaced by the registry and the re-key
// orchestrator, in addition to the error being returned to the caller.  It
// is where a front end hooks its notification plumbing.
type Sink interface {
	EmitError(err error)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(err error)

// EmitError calls f(err).
func (f SinkFunc) EmitError(err error) {
	f(err)
}

// Discard is a Sink that drops every error.
var Discard Sink = SinkFunc(func(error) {})
