package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/identity"
	"github.com/roach88/poe/internal/ir"
)

// RecordResult describes a registered claim.
type RecordResult struct {
	Claim        ir.Claim     `json:"claim"`
	Owner        ir.AccountID `json:"owner"`
	RegisteredAt ir.Height    `json:"registered_at"`
}

func (r RecordResult) String() string {
	return fmt.Sprintf("claim %s owner %s registered_at %d", r.Claim, r.Owner, r.RegisteredAt)
}

// RevokeResult is the output of revoke.
type RevokeResult struct {
	Claim  ir.Claim  `json:"claim"`
	Height ir.Height `json:"height"`
}

func (r RevokeResult) String() string {
	return fmt.Sprintf("claim %s revoked at %d", r.Claim, r.Height)
}

// MutateOptions holds flags shared by create, revoke and transfer.
type MutateOptions struct {
	*RootOptions
	Key string
}

// mutation is one registry call made with a signed credential.
type mutation func(ctx context.Context, e *env, credential string, claim ir.Claim) (any, error)

func newMutateCommand(rootOpts *RootOptions, use, short, long string, args cobra.PositionalArgs, build func(args []string) mutation) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			claim, err := ir.ParseClaim(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid claim", err)
			}
			return runMutation(opts, cmd, claim, build(args))
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "private key (default $"+EnvPrivateKey+")")
	return cmd
}

// runMutation signs a fresh credential, starts a new block and applies op.
func runMutation(opts *MutateOptions, cmd *cobra.Command, claim ir.Claim, op mutation) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	kp, err := loadKey(opts.Key)
	if err != nil {
		return err
	}

	e, err := opts.openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	credential, err := identity.NewIssuer(e.cfg.Audience).Issue(kp, e.cfg.TokenTTL)
	if err != nil {
		return out.Fail("failed to issue credential", err)
	}

	h, err := e.chain.Advance(ctx)
	if err != nil {
		return out.Fail("failed to advance height", err)
	}
	out.VerboseLog("height %d, caller %s", h, kp.DID())

	result, err := op(ctx, e, credential, claim)
	if err != nil {
		return out.Fail(fmt.Sprintf("%s failed", cmd.Name()), err)
	}
	return out.Success(result)
}

func lookupRecord(ctx context.Context, e *env, claim ir.Claim) (RecordResult, bool, error) {
	rec, ok, err := e.registry.Lookup(ctx, claim)
	if err != nil || !ok {
		return RecordResult{}, ok, err
	}
	return RecordResult{Claim: claim, Owner: rec.Owner, RegisteredAt: rec.RegisteredAt}, true, nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutateCommand(rootOpts,
		"create <claim>",
		"Register a claim to your identity",
		`Register a claim to the identity given by --key at the next height.

A claim is "0x" followed by hex, or any other text taken literally.

Examples:
  poe create 0x9f86d081884c7d65 --key z...
  poe create "contract v2" --format json`,
		cobra.ExactArgs(1),
		func([]string) mutation {
			return func(ctx context.Context, e *env, credential string, claim ir.Claim) (any, error) {
				if err := e.registry.Create(ctx, credential, claim); err != nil {
					return nil, err
				}
				rec, _, err := lookupRecord(ctx, e, claim)
				return rec, err
			}
		},
	)
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutateCommand(rootOpts,
		"revoke <claim>",
		"Revoke a claim you own",
		`Remove a claim you own. The claim can then be created again by anyone.`,
		cobra.ExactArgs(1),
		func([]string) mutation {
			return func(ctx context.Context, e *env, credential string, claim ir.Claim) (any, error) {
				if err := e.registry.Revoke(ctx, credential, claim); err != nil {
					return nil, err
				}
				return RevokeResult{Claim: claim, Height: e.chain.CurrentHeight()}, nil
			}
		},
	)
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutateCommand(rootOpts,
		"transfer <claim> <receiver>",
		"Transfer a claim you own to another account",
		`Hand a claim you own to receiver (a did:key account ID). The claim's
registration height is reset to the current height.`,
		cobra.ExactArgs(2),
		func(args []string) mutation {
			receiver := ir.AccountID(args[1])
			return func(ctx context.Context, e *env, credential string, claim ir.Claim) (any, error) {
				if err := e.registry.Transfer(ctx, credential, claim, receiver); err != nil {
					return nil, err
				}
				rec, _, err := lookupRecord(ctx, e, claim)
				return rec, err
			}
		},
	)
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <claim>",
		Short: "Show who owns a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := rootOpts.formatter(cmd)

			claim, err := ir.ParseClaim(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid claim", err)
			}

			e, err := rootOpts.openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rec, ok, err := lookupRecord(ctx, e, claim)
			if err != nil {
				return out.Fail("lookup failed", err)
			}
			if !ok {
				msg := fmt.Sprintf("claim %s is not registered", claim)
				_ = out.Error(CodeNotFound, msg, nil)
				return NewExitError(ExitFailure, msg)
			}
			return out.Success(rec)
		},
	}
}
