package identity

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/poe/internal/ir"
)

// DefaultCacheTTL bounds how long a successful resolution is reused.
const DefaultCacheTTL = time.Minute

// tokenVerifier is implemented by resolvers that know when a credential
// stops being valid.
type tokenVerifier interface {
	Verify(ctx context.Context, credential string) (Token, error)
}

// CachedResolver memoizes successful resolutions keyed by the raw
// credential. Failures are never cached.
type CachedResolver struct {
	next  Resolver
	ttl   time.Duration
	cache *gocache.Cache
	now   func() time.Time
}

// Cached wraps next. Entries live for ttl, or until the token expires if
// next reports expiry and that comes first.
func Cached(next Resolver, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedResolver{
		next:  next,
		ttl:   ttl,
		cache: gocache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, credential string) (ir.AccountID, error) {
	if v, found := c.cache.Get(credential); found {
		if id, ok := v.(ir.AccountID); ok {
			return id, nil
		}
	}

	ttl := c.ttl
	var id ir.AccountID
	if tv, ok := c.next.(tokenVerifier); ok {
		tok, err := tv.Verify(ctx, credential)
		if err != nil {
			return "", err
		}
		id = tok.Account
		if left := tok.ExpiresAt.Sub(c.now()); left < ttl {
			ttl = left
		}
	} else {
		var err error
		id, err = c.next.Resolve(ctx, credential)
		if err != nil {
			return "", err
		}
	}

	if ttl > 0 {
		c.cache.Set(credential, id, ttl)
	}
	return id, nil
}

// Len returns the number of cached resolutions.
func (c *CachedResolver) Len() int {
	return c.cache.ItemCount()
}
