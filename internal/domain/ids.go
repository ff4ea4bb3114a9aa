package domain

import (
	"crypto/rand"
	"encoding/base32"
)

// NewID returns a short opaque identifier unique enough for task and node
// bookkeeping. It is not a UUID: the engine only needs uniqueness within a
// single process's queues, not global uniqueness across machines.
func NewID() string {
	var b [10]byte
	_, _ = rand.Read(b[:])
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:])
}
