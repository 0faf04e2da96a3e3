package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// ComputeSweepFingerprint hashes every input that determines a sweep's output.
// Two sweeps with equal fingerprints produce identical reports.
func ComputeSweepFingerprint(nValues []int, qValues []float64, mass float64, method, prior string, realizations int, seed int64) Hash {
	var data strings.Builder
	data.WriteString("n=")
	for _, n := range nValues {
		data.WriteString(strconv.Itoa(n))
		data.WriteByte(',')
	}
	data.WriteString(";q=")
	for _, q := range qValues {
		data.WriteString(strconv.FormatFloat(q, 'g', -1, 64))
		data.WriteByte(',')
	}
	data.WriteString(";mass=")
	data.WriteString(strconv.FormatFloat(mass, 'g', -1, 64))
	data.WriteString(";method=")
	data.WriteString(method)
	data.WriteString(";prior=")
	data.WriteString(prior)
	data.WriteString(";realizations=")
	data.WriteString(strconv.Itoa(realizations))
	data.WriteString(";seed=")
	data.WriteString(strconv.FormatInt(seed, 10))
	return NewHash([]byte(data.String()))
}
