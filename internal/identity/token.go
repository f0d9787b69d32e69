package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/roach88/poe/internal/ir"
)

// DefaultAudience is the JWT audience issued and accepted by default.
const DefaultAudience = "poe"

// Issuer signs caller credentials.
type Issuer struct {
	audience string
	now      func() time.Time
}

// NewIssuer returns an issuer for the given audience.
func NewIssuer(audience string) *Issuer {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Issuer{audience: audience, now: time.Now}
}

// Issue signs a credential for kp valid for ttl.
func (i *Issuer) Issue(kp *Keypair, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    string(kp.DID()),
		Audience:  jwt.ClaimStrings{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	return token.SignedString(kp.PrivateKey())
}

// Token is a verified credential.
type Token struct {
	Account   ir.AccountID
	ExpiresAt time.Time
}

// Verifier resolves signed credentials.
type Verifier struct {
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifier accepts credentials for audience, tolerating leeway of clock
// skew on time-based claims.
func NewVerifier(audience string, leeway time.Duration) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{audience: audience, leeway: leeway, now: time.Now}
}

// Resolve implements Resolver.
func (v *Verifier) Resolve(ctx context.Context, credential string) (ir.AccountID, error) {
	tok, err := v.Verify(ctx, credential)
	if err != nil {
		return "", err
	}
	return tok.Account, nil
}

// Verify checks the credential signature against the issuer's did:key and
// validates audience and expiry.
func (v *Verifier) Verify(_ context.Context, credential string) (Token, error) {
	if credential == "" {
		return Token{}, unauthenticated("missing credential")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (any, error) {
		c, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		pub, err := PublicKeyFromDID(c.Issuer)
		if err != nil {
			return nil, err
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, unauthenticated("token has expired")
		}
		return Token{}, unauthenticated("invalid token: %v", err)
	}
	if !parsed.Valid {
		return Token{}, unauthenticated("invalid token")
	}

	account := ir.AccountID(claims.Issuer)
	if err := account.Validate(); err != nil {
		return Token{}, unauthenticated("invalid issuer: %v", err)
	}

	return Token{Account: account, ExpiresAt: claims.ExpiresAt.Time}, nil
}
