// Package fingerprint computes content digests of regular files.
// The digest exists purely to detect content drift between two scans of
// the same nominal file; no cryptographic strength is required.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Size is the length of a hex-encoded digest in characters.
const Size = sha1.Size * 2

// Digest reads r to EOF and returns the lowercase hex digest of its content.
func Digest(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the content digest of the regular file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	digest, err := Digest(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return digest, nil
}
