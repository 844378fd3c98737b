// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadValue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "selected")

	exists, err := FileExists(path)
	require.NoError(t, err)
	require.False(t, exists)

	_, ok, err := ReadValue(path)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("  0xabc\n"), 0600))
	exists, err = FileExists(path)
	require.NoError(t, err)
	require.True(t, exists)

	value, ok, err := ReadValue(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xabc", value)
}
