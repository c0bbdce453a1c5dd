package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const sha256HexLen = 64

// ParseChecksum extracts a SHA-256 digest from a sidecar file. It accepts a
// bare digest or sha256sum output ("<hex>  <file>" or "<hex> *<file>"). When
// the sidecar lists several files, the line for assetName is used.
// The digest is returned lowercased.
func ParseChecksum(data []byte, assetName string) (string, error) {
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if text == "" {
		return "", fmt.Errorf("checksum file is empty")
	}
	if isHexDigest(text) {
		return strings.ToLower(text), nil
	}

	var first string
	var candidates int
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if !isHexDigest(fields[0]) {
			continue
		}
		if len(fields) == 1 {
			candidates++
			first = fields[0]
			continue
		}
		name := path.Base(strings.TrimPrefix(fields[len(fields)-1], "*"))
		if name == assetName {
			return strings.ToLower(fields[0]), nil
		}
		candidates++
		if first == "" {
			first = fields[0]
		}
	}
	// A single-entry sidecar is trusted even if the file name differs
	// (releases are often renamed after hashing).
	if candidates == 1 {
		return strings.ToLower(first), nil
	}
	return "", fmt.Errorf("no sha256 digest for %s in checksum file", assetName)
}

func isHexDigest(s string) bool {
	if len(s) != sha256HexLen {
		return false
	}
	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

// FileSHA256 returns the lowercase hex SHA-256 of the file at p.
func FileSHA256(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumsMatch compares two hex digests case-insensitively.
func ChecksumsMatch(expected, actual string) bool {
	return expected != "" && strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(actual))
}
