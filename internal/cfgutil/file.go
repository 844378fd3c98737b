// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// FileExists reports whether a file exists at filePath.  Errors other than
// the file not existing are returned.
func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// ReadValue returns the contents of the small text file at filePath with
// surrounding whitespace removed.  A missing file yields ok false and no
// error.
func ReadValue(filePath string) (value string, ok bool, err error) {
	b, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return strings.TrimSpace(string(b)), true, nil
}
