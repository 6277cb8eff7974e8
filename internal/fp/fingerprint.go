// Package fp derives stable identities for download sources.
package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// NormalizeSource trims surrounding whitespace from a source URI.
func NormalizeSource(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeTargetPath trims whitespace and cleans the directory path.
// Case is preserved; install paths on Linux are case-sensitive.
func NormalizeTargetPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

// Fingerprint is the hex SHA-256 of the normalized source and target
// directory, separated by NUL. A session uses it to collapse duplicate sources.
func Fingerprint(source, targetPath string) string {
	h := sha256.New()
	h.Write([]byte(NormalizeSource(source)))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeTargetPath(targetPath)))
	return hex.EncodeToString(h.Sum(nil))
}
