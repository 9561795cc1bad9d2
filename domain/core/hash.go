package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
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

// ComputeCountsHash fingerprints a set of labelled counts independent of map order.
func ComputeCountsHash(counts map[string]int) Hash {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%d", counts[key]))
		data.WriteString(";")
	}
	return NewHash([]byte(data.String()))
}

// ComputeContentHash fingerprints a tabular payload: headers then each row in order.
func ComputeContentHash(headers []string, rows [][]string) Hash {
	var data strings.Builder
	data.WriteString(strings.Join(headers, "\x1f"))
	for _, row := range rows {
		data.WriteString("\x1e")
		data.WriteString(strings.Join(row, "\x1f"))
	}
	return NewHash([]byte(data.String()))
}
