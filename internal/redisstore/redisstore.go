// Package redisstore is a Redis-backed claim store for deployments where
// several processes share registry state.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/poe/internal/ir"
)

const (
	// Redis key prefix for claim hashes
	claimKeyPrefix = "poe:claim:"

	heightKey = "poe:height"

	fieldOwner        = "owner"
	fieldRegisteredAt = "registered_at"
)

// Conditional writes run as Lua scripts, so the existence or owner check
// and the write happen in one atomic step on the server.
var (
	insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "owner", ARGV[1], "registered_at", ARGV[2])
return 1
`)

	replaceScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "owner") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "owner", ARGV[2], "registered_at", ARGV[3])
return 1
`)

	removeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "owner") ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`)
)

// RedisClaimStore keeps one hash per claim.
type RedisClaimStore struct {
	client *redis.Client
}

// New connects to the Redis server at url and verifies the connection.
func New(ctx context.Context, url string) (*RedisClaimStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *RedisClaimStore {
	return &RedisClaimStore{client: client}
}

func redisKey(c ir.Claim) string {
	return claimKeyPrefix + ir.ClaimKey(c)
}

func (s *RedisClaimStore) Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(claim)).Result()
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get claim: %w", err)
	}
	if len(fields) == 0 {
		return ir.Record{}, false, nil
	}
	rec, err := parseRecord(fields)
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("get claim: %w", err)
	}
	return rec, true, nil
}

func (s *RedisClaimStore) Has(ctx context.Context, claim ir.Claim) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(claim)).Result()
	if err != nil {
		return false, fmt.Errorf("has claim: %w", err)
	}
	return n > 0, nil
}

// Insert stores rec unless claim is already registered.
func (s *RedisClaimStore) Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error) {
	n, err := insertScript.Run(ctx, s.client, []string{redisKey(claim)},
		string(rec.Owner), formatHeight(rec.RegisteredAt),
	).Int()
	if err != nil {
		return false, fmt.Errorf("insert claim: %w", err)
	}
	return n == 1, nil
}

// Replace overwrites the record for claim if owner holds it.
func (s *RedisClaimStore) Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error) {
	n, err := replaceScript.Run(ctx, s.client, []string{redisKey(claim)},
		string(owner), string(rec.Owner), formatHeight(rec.RegisteredAt),
	).Int()
	if err != nil {
		return false, fmt.Errorf("replace claim: %w", err)
	}
	return n == 1, nil
}

// Remove deletes claim if owner holds it.
func (s *RedisClaimStore) Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error) {
	n, err := removeScript.Run(ctx, s.client, []string{redisKey(claim)}, string(owner)).Int()
	if err != nil {
		return false, fmt.Errorf("remove claim: %w", err)
	}
	return n == 1, nil
}

func formatHeight(h ir.Height) string {
	return strconv.FormatUint(uint64(h), 10)
}

func (s *RedisClaimStore) LoadHeight(ctx context.Context) (ir.Height, error) {
	v, err := s.client.Get(ctx, heightKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load height: %w", err)
	}
	h, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("load height: %w", err)
	}
	return ir.Height(h), nil
}

func (s *RedisClaimStore) SaveHeight(ctx context.Context, h ir.Height) error {
	if err := s.client.Set(ctx, heightKey, formatHeight(h), 0).Err(); err != nil {
		return fmt.Errorf("save height: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisClaimStore) Close() error {
	return s.client.Close()
}

func parseRecord(fields map[string]string) (ir.Record, error) {
	owner, ok := fields[fieldOwner]
	if !ok {
		return ir.Record{}, fmt.Errorf("record missing %q", fieldOwner)
	}
	raw, ok := fields[fieldRegisteredAt]
	if !ok {
		return ir.Record{}, fmt.Errorf("record missing %q", fieldRegisteredAt)
	}
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return ir.Record{}, fmt.Errorf("parse %s: %w", fieldRegisteredAt, err)
	}
	return ir.Record{Owner: ir.AccountID(owner), RegisteredAt: ir.Height(h)}, nil
}
