// Package hashutil wraps SHA-256 for preparing identifier uploads. The ads
// API matches on lowercase hex digests of normalized identifiers, so hex
// output is lowercase.
package hashutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// SumHex returns the lowercase hex SHA-256 digest of input
func SumHex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// SumBase64 returns the standard base64 SHA-256 digest of input
func SumBase64(input string) string {
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SumListHex hashes each input independently, preserving order
func SumListHex(inputs []string) []string {
	out := make([]string, len(inputs))
	for i, input := range inputs {
		out[i] = SumHex(input)
	}
	return out
}
