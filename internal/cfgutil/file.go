// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// FileExists reports whether the named file or directory exists.
func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CleanAndExpandPath expands a leading ~ to the home directory of the current
// (or named) user, expands environment variables and cleans the result.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string

		name, rest, _ := strings.Cut(path[1:], string(os.PathSeparator))
		if name == "" {
			homeDir, _ = os.UserHomeDir()
		} else if u, err := user.Lookup(name); err == nil {
			homeDir = u.HomeDir
		}
		if homeDir != "" {
			path = filepath.Join(homeDir, rest)
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
