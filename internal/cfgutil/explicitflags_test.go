// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExplicitString(t *testing.T) {
	t.Parallel()

	e := NewExplicitString("~/logs")
	require.False(t, e.ExplicitlySet())
	e.Default("/data/logs")
	require.Equal(t, "/data/logs", e.Value)

	require.NoError(t, e.UnmarshalFlag("/var/log/ethwallet"))
	require.True(t, e.ExplicitlySet())
	e.Default("/data/logs")
	s, err := e.MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "/var/log/ethwallet", s)
}
