// Package config loads poe configuration from CUE.
//
// A config file is unified with the embedded #Config definition, which
// supplies defaults and rejects unknown fields.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE []byte

// Backend names a claim storage backend.
type Backend string

const (
	BackendSQLite  Backend = "sqlite"
	BackendLevelDB Backend = "leveldb"
	BackendMemory  Backend = "memory"
	BackendRedis   Backend = "redis"
)

// DefaultDataDirName is created under the user's home directory when no
// data_dir is configured.
const DefaultDataDirName = ".poe"

// Config is the resolved configuration.
type Config struct {
	MaxClaimLength int
	Audience       string
	TokenTTL       time.Duration
	ClockSkew      time.Duration
	ResolverCache  time.Duration
	Backend        Backend
	DataDir        string
	RedisURL       string
	ListenAddr     string
}

// raw mirrors #Config field for field.
type raw struct {
	MaxClaimLength int    `json:"max_claim_length"`
	Audience       string `json:"audience"`
	TokenTTL       string `json:"token_ttl"`
	ClockSkew      string `json:"clock_skew"`
	ResolverCache  string `json:"resolver_cache"`
	Backend        string `json:"backend"`
	DataDir        string `json:"data_dir"`
	RedisURL       string `json:"redis_url"`
	ListenAddr     string `json:"listen_addr"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return parse(nil, "")
}

// Load reads the CUE file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data, path)
}

// Parse validates CUE source against the schema.
func Parse(src []byte) (*Config, error) {
	return parse(src, "config.cue")
}

func parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def
	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("compile config: %w", err)
		}
		value = def.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return r.resolve()
}

func (r raw) resolve() (*Config, error) {
	cfg := &Config{
		MaxClaimLength: r.MaxClaimLength,
		Audience:       r.Audience,
		Backend:        Backend(r.Backend),
		DataDir:        r.DataDir,
		RedisURL:       r.RedisURL,
		ListenAddr:     r.ListenAddr,
	}

	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"token_ttl", r.TokenTTL, &cfg.TokenTTL},
		{"clock_skew", r.ClockSkew, &cfg.ClockSkew},
		{"resolver_cache", r.ResolverCache, &cfg.ResolverCache},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %s: %w", d.name, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("invalid config: %s must not be negative", d.name)
		}
		*d.dst = v
	}
	if cfg.TokenTTL == 0 {
		return nil, fmt.Errorf("invalid config: token_ttl must be positive")
	}

	return cfg, nil
}

// ResolveDataDir returns DataDir, or ~/.poe when it is empty.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, DefaultDataDirName), nil
}
