package main

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultVersion is used when the source name carries no version.
const DefaultVersion = "0"

// nameVersion splits a plugin source name of the form name-version.ext.
// The extension is only stripped from regular files, so a directory
// named tools-1.2 yields version 1.2.
func nameVersion(p string) (string, string) {
	base := filepath.Base(filepath.Clean(p))
	if info, err := os.Stat(p); err != nil || !info.IsDir() {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	i := strings.LastIndexByte(base, '-')
	if i <= 0 || i == len(base)-1 {
		return base, DefaultVersion
	}
	return base[:i], base[i+1:]
}
