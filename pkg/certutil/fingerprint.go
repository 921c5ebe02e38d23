// Package certutil holds small helpers shared by the server and the admin
// CLI for working with encoded certificates and keys.
package certutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Fingerprint calculates the SHA256 fingerprint of a public key or an
// encoded certificate
func Fingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	b64hash := base64.RawStdEncoding.EncodeToString(hash[:])

	return fmt.Sprintf("SHA256:%s", b64hash)
}

// ParseHexKey decodes a hex-encoded public key and checks it is one of the
// three supported lengths (64, 96 or 128 bytes)
func ParseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key hex: %w", err)
	}
	switch len(key) {
	case 64, 96, 128:
		return key, nil
	}
	return nil, fmt.Errorf("public key must be 64, 96 or 128 bytes (got %d)", len(key))
}
