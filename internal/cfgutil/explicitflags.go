// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

// ExplicitString is a flag value that remembers whether it was given on the
// command line or in the config file.  Paths derived from other options,
// such as the log directory under the data directory, use it to tell a user
// choice apart from the default.
type ExplicitString struct {
	Value string
	set   bool
}

// NewExplicitString returns a value holding defaultValue that is not yet
// explicitly set.
func NewExplicitString(defaultValue string) *ExplicitString {
	return &ExplicitString{Value: defaultValue}
}

// ExplicitlySet reports whether the flags package assigned the value.
func (e *ExplicitString) ExplicitlySet() bool { return e.set }

// Default replaces the value unless it was explicitly set.
func (e *ExplicitString) Default(value string) {
	if !e.set {
		e.Value = value
	}
}

// MarshalFlag implements the flags.Marshaler interface.
func (e *ExplicitString) MarshalFlag() (string, error) { return e.Value, nil }

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (e *ExplicitString) UnmarshalFlag(value string) error {
	e.Value = value
	e.set = true
	return nil
}
