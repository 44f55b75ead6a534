package merkle

import "crypto/sha256"

// leafPrefix and innerPrefix domain-separate leaf and inner node hashes so
// a leaf can never be replayed as an inner node or vice versa.
var (
	leafPrefix  = []byte{0}
	innerPrefix = []byte{1}
)

func leafHash(leaf []byte) []byte {
	return tmhash(append(leafPrefix, leaf...))
}

func innerHash(left, right []byte) []byte {
	data := make([]byte, 0, 1+len(left)+len(right))
	data = append(data, innerPrefix...)
	data = append(data, left...)
	data = append(data, right...)
	return tmhash(data)
}

func tmhash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
