package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxAccountIDLength bounds the byte length of an AccountID.
const MaxAccountIDLength = 256

// Claim is an opaque fingerprint registered by an account. Two claims are
// equal iff their bytes are equal.
type Claim []byte

// String renders the claim as 0x-prefixed lowercase hex.
func (c Claim) String() string {
	return "0x" + hex.EncodeToString(c)
}

// Equal reports whether two claims hold the same bytes.
func (c Claim) Equal(other Claim) bool {
	return bytes.Equal(c, other)
}

// Clone returns a copy that does not alias c.
func (c Claim) Clone() Claim {
	if c == nil {
		return nil
	}
	out := make(Claim, len(c))
	copy(out, c)
	return out
}

// ParseClaim decodes the textual form of a claim.
//
// A "0x" prefix means the remainder is hex; anything else is taken as the
// literal UTF-8 bytes of s.
func ParseClaim(s string) (Claim, error) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("parse claim %q: %w", s, err)
		}
		return Claim(b), nil
	}
	return Claim(s), nil
}

// MarshalText renders the claim in its 0x hex form.
func (c Claim) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts any form ParseClaim does.
func (c *Claim) UnmarshalText(text []byte) error {
	parsed, err := ParseClaim(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AccountID identifies the party that owns a claim. Production identities
// are did:key strings; the registry treats them as opaque.
type AccountID string

// Validate checks that the identity is well formed.
func (a AccountID) Validate() error {
	s := string(a)
	if s == "" {
		return fmt.Errorf("account id is empty")
	}
	if len(s) > MaxAccountIDLength {
		return fmt.Errorf("account id exceeds %d bytes", MaxAccountIDLength)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("account id is not valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("account id contains whitespace or control characters")
		}
	}
	return nil
}

func (a AccountID) String() string {
	return string(a)
}

// Height is the logical block height supplied by the execution environment.
type Height uint64

// Int64 returns h for signed 64-bit storage. Heights above math.MaxInt64
// cannot be stored and are an error.
func (h Height) Int64() (int64, error) {
	if h > math.MaxInt64 {
		return 0, fmt.Errorf("height %d exceeds storable maximum %d", uint64(h), int64(math.MaxInt64))
	}
	return int64(h), nil
}

// Record is the value stored against a claim.
type Record struct {
	Owner        AccountID `json:"owner"`
	RegisteredAt Height    `json:"registered_at"`
}
