package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/config"
	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	All bool
}

// TraceEvent is one journal entry in the trace timeline.
type TraceEvent struct {
	Seq      int64        `json:"seq"`
	Kind     ir.EventKind `json:"kind"`
	Claim    ir.Claim     `json:"claim"`
	Caller   ir.AccountID `json:"caller"`
	Receiver ir.AccountID `json:"receiver,omitempty"`
	Height   ir.Height    `json:"height"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Claim    ir.Claim     `json:"claim,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats counts events by kind.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Created     int `json:"created"`
	Revoked     int `json:"revoked"`
	Transferred int `json:"transferred"`
}

func (r TraceResult) String() string {
	var b strings.Builder
	if r.Claim != nil {
		fmt.Fprintf(&b, "Trace for claim %s\n", r.Claim)
	} else {
		b.WriteString("Trace for all claims\n")
	}
	if len(r.Timeline) == 0 {
		b.WriteString("  (no events)")
		return b.String()
	}
	for _, ev := range r.Timeline {
		fmt.Fprintf(&b, "  [%d] height=%d %s %s by %s", ev.Seq, ev.Height, ev.Kind, ev.Claim, ev.Caller)
		if ev.Receiver != "" {
			fmt.Fprintf(&b, " -> %s", ev.Receiver)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d events: %d created, %d revoked, %d transferred",
		r.Stats.TotalEvents, r.Stats.Created, r.Stats.Revoked, r.Stats.Transferred)
	return b.String()
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [claim]",
		Short: "Show the event history of a claim",
		Long: `Show the journal of events recorded for a claim, oldest first.

The journal is kept by the sqlite backend only.

Examples:
  poe trace 0x6869
  poe trace --all --format json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "show events for every claim")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	var claim ir.Claim
	if !opts.All {
		c, err := ir.ParseClaim(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid claim", err)
		}
		claim = c
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail("failed to load config", err)
	}
	if cfg.Backend != config.BackendSQLite {
		msg := fmt.Sprintf("trace requires the sqlite backend (configured: %s)", cfg.Backend)
		_ = out.Error(CodeCommand, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	e, err := opts.openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var entries []store.JournalEntry
	if opts.All {
		entries, err = e.journal.ReadAllEvents(ctx)
	} else {
		entries, err = e.journal.ReadEvents(ctx, claim)
	}
	if err != nil {
		return out.Fail("failed to read journal", err)
	}

	return out.Success(buildTrace(claim, entries))
}

func buildTrace(claim ir.Claim, entries []store.JournalEntry) TraceResult {
	result := TraceResult{Claim: claim, Timeline: make([]TraceEvent, 0, len(entries))}
	for _, entry := range entries {
		ev := entry.Event
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:      entry.Seq,
			Kind:     ev.Kind,
			Claim:    ev.Claim,
			Caller:   ev.Caller,
			Receiver: ev.Receiver,
			Height:   ev.Height,
		})
		switch ev.Kind {
		case ir.EventClaimCreated:
			result.Stats.Created++
		case ir.EventClaimRevoked:
			result.Stats.Revoked++
		case ir.EventClaimTransfered:
			result.Stats.Transferred++
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)
	return result
}
