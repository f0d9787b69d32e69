package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainClaimKey separates claim-key digests from any other SHA-256 use.
// The version suffix leaves room for a future key layout.
const DomainClaimKey = "poe/claim-key/v1"

// claimKeyPrefixLen is the number of digest bytes kept in front of the raw
// claim.
const claimKeyPrefixLen = 16

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// ClaimKey derives the storage key for a claim: a hex digest prefix that
// spreads keys evenly, followed by the hex claim so the key stays reversible.
func ClaimKey(c Claim) string {
	digest := hashWithDomain(DomainClaimKey, c)
	return hex.EncodeToString(digest[:claimKeyPrefixLen]) + hex.EncodeToString(c)
}
