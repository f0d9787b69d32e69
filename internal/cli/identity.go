package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/identity"
)

// KeyResult is the output of identity generate.
type KeyResult struct {
	DID        string `json:"did"`
	PrivateKey string `json:"private_key"`
}

func (r KeyResult) String() string {
	return fmt.Sprintf("did:         %s\nprivate key: %s", r.DID, r.PrivateKey)
}

// TokenResult is the output of identity token.
type TokenResult struct {
	DID       string    `json:"did"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r TokenResult) String() string {
	return r.Token
}

// TokenOptions holds flags for identity token.
type TokenOptions struct {
	*RootOptions
	Key string
	TTL time.Duration
}

// NewIdentityCommand groups key and credential helpers.
func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage did:key identities and credentials",
	}
	cmd.AddCommand(newIdentityGenerateCommand(rootOpts))
	cmd.AddCommand(newIdentityTokenCommand(rootOpts))
	return cmd
}

func newIdentityGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a new Ed25519 identity",
		Long: `Generate a new Ed25519 keypair and print its did:key account ID
together with the private key in multibase form.

Keep the private key secret; pass it to mutating commands with --key
or the ` + EnvPrivateKey + ` environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			kp, err := identity.Generate()
			if err != nil {
				return out.Fail("failed to generate keypair", err)
			}
			return out.Success(KeyResult{DID: string(kp.DID()), PrivateKey: kp.Format()})
		},
	}
}

func newIdentityTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer credential for the HTTP API",
		Long: `Sign a short-lived EdDSA credential for the identity given by --key.

Examples:
  poe identity token --key z...
  curl -H "Authorization: Bearer $(poe identity token)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentityToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "private key (default $"+EnvPrivateKey+")")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "credential lifetime (default from config)")

	return cmd
}

func runIdentityToken(opts *TokenOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail("failed to load config", err)
	}
	kp, err := loadKey(opts.Key)
	if err != nil {
		return err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	token, err := identity.NewIssuer(cfg.Audience).Issue(kp, ttl)
	if err != nil {
		return out.Fail("failed to issue credential", err)
	}

	return out.Success(TokenResult{
		DID:       string(kp.DID()),
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second),
	})
}
