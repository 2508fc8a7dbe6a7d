// Package utils has the path helpers shared by the assembler's watch mode
// and the GUI's reload watcher.
package utils

import (
	"path/filepath"
	"strings"
)

// GetPathInfo resolves relPath to a clean absolute path and the directory
// holding it. File watchers subscribe to that directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	parentDir = filepath.Dir(fullPath)
	return fullPath, parentDir, nil
}

// SamePath reports whether two paths name the same file once made absolute.
func SamePath(a, b string) bool {
	fa, _, errA := GetPathInfo(a)
	fb, _, errB := GetPathInfo(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return fa == fb
}

// HasExt reports whether path ends in ext, ignoring case.
func HasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
