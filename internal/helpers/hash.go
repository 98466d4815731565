package helpers

import (
	"crypto/sha256"
	"encoding/binary"
)

// Fingerprint is a short base62 tag of the uploaded content. It lets an
// operator spot the same file ingested twice; it is not a security hash.
func Fingerprint(content []byte) string {
	hash := sha256.Sum256(content)

	// The first 8 bytes of the digest are plenty to tell uploads apart.
	return base62Encode(binary.BigEndian.Uint64(hash[:8]))
}

func base62Encode(num uint64) string {
	const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	if num == 0 {
		return "0"
	}

	var result []byte
	for num > 0 {
		result = append([]byte{charset[num%62]}, result...)
		num /= 62
	}
	return string(result)
}
