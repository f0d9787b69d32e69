package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"

	"github.com/roach88/poe/internal/ir"
)

const didKeyPrefix = "did:key:"

// ed25519-pub multicodec, varint encoded.
var ed25519PubCodec = []byte{0xed, 0x01}

// Keypair is an Ed25519 signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Parse decodes a keypair produced by Format.
func Parse(s string) (*Keypair, error) {
	_, seed, err := multibase.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return FromSeed(seed)
}

// Format encodes the private seed as base64 multibase.
func (k *Keypair) Format() string {
	s, _ := multibase.Encode(multibase.Base64, k.priv.Seed())
	return s
}

// PublicKey returns the verification key.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// PrivateKey returns the signing key.
func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.priv
}

// DID returns the did:key identifier of the public key.
func (k *Keypair) DID() ir.AccountID {
	return DIDFromPublicKey(k.PublicKey())
}

// DIDFromPublicKey encodes pub as did:key:z...
func DIDFromPublicKey(pub ed25519.PublicKey) ir.AccountID {
	buf := make([]byte, 0, len(ed25519PubCodec)+len(pub))
	buf = append(buf, ed25519PubCodec...)
	buf = append(buf, pub...)
	s, _ := multibase.Encode(multibase.Base58BTC, buf)
	return ir.AccountID(didKeyPrefix + s)
}

// PublicKeyFromDID decodes an Ed25519 did:key identifier.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	enc, ok := strings.CutPrefix(did, didKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("not a did:key: %q", did)
	}
	base, raw, err := multibase.Decode(enc)
	if err != nil {
		return nil, fmt.Errorf("decode did:key: %w", err)
	}
	if base != multibase.Base58BTC {
		return nil, fmt.Errorf("did:key must be base58btc encoded")
	}
	if !bytes.HasPrefix(raw, ed25519PubCodec) {
		return nil, fmt.Errorf("did:key is not an ed25519 key")
	}
	pub := raw[len(ed25519PubCodec):]
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return ed25519.PublicKey(pub), nil
}
