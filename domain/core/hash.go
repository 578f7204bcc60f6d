package core

import (
	"crypto/sha256"
	"encoding/hex"
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

// Short returns the first 12 hex characters, for log lines
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// DatasetFingerprint identifies the exact set of training texts and labels
type DatasetFingerprint Hash

func (h DatasetFingerprint) String() string { return Hash(h).String() }

// ComputeDatasetFingerprint hashes texts and labels in row order.
// Row order matters because the split depends on it.
func ComputeDatasetFingerprint(texts, labels []string) DatasetFingerprint {
	var data strings.Builder
	for i, text := range texts {
		data.WriteString(text)
		data.WriteByte(0x1f)
		if i < len(labels) {
			data.WriteString(labels[i])
		}
		data.WriteByte(0x1e)
	}
	return DatasetFingerprint(NewHash([]byte(data.String())))
}
