package util

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint hashes the blocks in order and formats the digest as a UUID.
// Each block is prefixed with its length so [ab][c] and [a][bc] differ.
func Fingerprint(blocks ...[]byte) string {
	hasher := md5.New()
	var size [8]byte
	for _, b := range blocks {
		n := uint64(len(b))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		hasher.Write(size[:])
		hasher.Write(b)
	}
	hash := hasher.Sum(nil)
	id, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return ""
	}
	return id.String()
}
