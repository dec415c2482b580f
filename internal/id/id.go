// Package id generates short identifiers for validation attempts.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync/atomic"
)

var fallback atomic.Uint64

// Generate returns <prefix>_<12 hex chars>, e.g. "val_3f9a0c2b71de".
// The suffix is 6 random bytes; a process-local counter is used if the
// system random source fails.
func Generate(prefix string) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		n := strconv.FormatUint(fallback.Add(1), 16)
		return prefix + "_" + leftPad(n, 12)
	}
	return prefix + "_" + hex.EncodeToString(b)
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
