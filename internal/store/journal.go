package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/poe/internal/ir"
)

// AppendEvent appends ev to the journal and returns its sequence number.
//
// The payload column carries the canonical JSON form of ev.Payload(), so
// journal contents are byte-identical across backends and replays.
func (s *Store) AppendEvent(ctx context.Context, ev ir.Event) (int64, error) {
	payload, err := ir.MarshalCanonical(ev.Payload())
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	height, err := ev.Height.Int64()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (claim_key, claim, kind, caller, receiver, height, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ir.ClaimKey(ev.Claim),
		blob(ev.Claim),
		string(ev.Kind),
		string(ev.Caller),
		string(ev.Receiver),
		height,
		string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// JournalEntry is a stored event with its sequence number and payload.
type JournalEntry struct {
	Seq     int64
	Event   ir.Event
	Payload string
}

// ReadEvents returns every journaled event for claim in append order.
func (s *Store) ReadEvents(ctx context.Context, claim ir.Claim) ([]JournalEntry, error) {
	return s.readEvents(ctx, `
		SELECT seq, claim, kind, caller, receiver, height, payload
		FROM events
		WHERE claim_key = ?
		ORDER BY seq ASC
	`, ir.ClaimKey(claim))
}

// ReadAllEvents returns the whole journal in append order.
func (s *Store) ReadAllEvents(ctx context.Context) ([]JournalEntry, error) {
	return s.readEvents(ctx, `
		SELECT seq, claim, kind, caller, receiver, height, payload
		FROM events
		ORDER BY seq ASC
	`)
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e        JournalEntry
			claim    []byte
			kind     string
			caller   string
			receiver string
			height   int64
		)
		if err := rows.Scan(&e.Seq, &claim, &kind, &caller, &receiver, &height, &e.Payload); err != nil {
			return nil, fmt.Errorf("read events: scan: %w", err)
		}
		if claim == nil {
			claim = []byte{}
		}
		e.Event = ir.Event{
			Kind:     ir.EventKind(kind),
			Caller:   ir.AccountID(caller),
			Claim:    ir.Claim(claim),
			Receiver: ir.AccountID(receiver),
			Height:   ir.Height(height),
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

// Journal is a registry sink that appends every event to the store.
// Append failures are logged, never returned.
type Journal struct {
	store  *Store
	logger *slog.Logger
}

// Journal returns a sink writing to s.
func (s *Store) Journal(logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, logger: logger}
}

func (j *Journal) Emit(ctx context.Context, ev ir.Event) {
	if _, err := j.store.AppendEvent(ctx, ev); err != nil {
		j.logger.Error("journal append failed", "kind", ev.Kind, "claim", ev.Claim, "error", err)
	}
}
