// Package security provides client address hashing
package security

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashClientIP returns a keyed, truncated digest of an IP address so logs
// can correlate requests from one client without storing the address.
func HashClientIP(ip, key string) string {
	var k []byte
	if key != "" {
		k = []byte(key)
		if len(k) > blake2b.Size {
			k = k[:blake2b.Size]
		}
	}
	h, err := blake2b.New(16, k)
	if err != nil {
		return ""
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}
