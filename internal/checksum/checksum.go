// Package checksum detects unchanged source files by content hash.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Store keeps the last processed checksum per source file identifier.
// Entries never expire; a newer run overwrites them.
type Store interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Put(ctx context.Context, id, sum string) error
}

// Compute returns the hex SHA-256 of the file at path.
func Compute(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
