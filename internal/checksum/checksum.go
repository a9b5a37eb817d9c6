// Package checksum computes content digests of archived source documents and
// cross-references them against the digests declared in a run's jurisdiction
// manifest.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// Prefix tags the digest algorithm, matching the scraper's checksum format.
const Prefix = "sha256:"

// File streams the file at path through SHA-256 and returns the digest as
// "sha256:<hex>". The same content always yields the same string.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "checksum: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrapf(err, "checksum: read %s", path)
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the "sha256:<hex>" digest of an in-memory buffer.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}
