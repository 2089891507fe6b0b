// Package idhash derives the two stable identifiers the dispatcher computes
// from opaque bearer tokens: worker-ids and tenant token-hashes.
package idhash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// WorkerID returns the full SHA-256 hex digest of a worker token. The
// Worker Registry keys records by this value; it is a pure function of the
// token, never generated or stored separately.
func WorkerID(workerToken string) string {
	sum := sha256.Sum256([]byte(workerToken))
	return hex.EncodeToString(sum[:])
}

// TenantHash returns the first 16 hex characters of SHA-256(tenantToken),
// used as the public-safe URL segment for description fetches.
func TenantHash(tenantToken string) string {
	sum := sha256.Sum256([]byte(tenantToken))
	return hex.EncodeToString(sum[:])[:16]
}

// RandomToken generates a fresh 32-byte, hex-encoded bearer token, used by
// cmd/server to mint a process-lifetime admin token when none is configured.
func RandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("idhash: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}
