package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/poe/internal/ir"
)

const tracerName = "github.com/roach88/poe/internal/registry"

// Registry is the claim registry state machine.
//
// INVARIANTS:
//   - A claim is present iff it was created and not revoked since.
//   - Only the current owner can revoke or transfer a claim.
//   - A rejected call leaves the store unchanged and emits nothing.
type Registry struct {
	mu sync.Mutex // serializes mutations (single writer)

	store    Store
	clock    Clock
	identity Identity
	sink     Sink

	maxClaimLength int
	logger         *slog.Logger
	observer       Observer
	tracer         trace.Tracer
}

// New creates a Registry over the given collaborators. store, clock and
// identity are required; a nil sink discards events.
func New(store Store, clock Clock, identity Identity, sink Sink, opts ...Option) *Registry {
	if sink == nil {
		sink = discardSink{}
	}

	r := &Registry{
		store:          store,
		clock:          clock,
		identity:       identity,
		sink:           sink,
		maxClaimLength: DefaultMaxClaimLength,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// MaxClaimLength returns the configured claim bound in bytes.
func (r *Registry) MaxClaimLength() int {
	return r.maxClaimLength
}

// Create registers claim to the caller at the current height.
//
// Errors: ErrAuthentication, ErrClaimTooLong, ErrProofAlreadyExist.
func (r *Registry) Create(ctx context.Context, credential string, claim ir.Claim) (err error) {
	ctx, span := r.start(ctx, OpCreate, claim)
	defer func() { r.finish(span, OpCreate, claim, err) }()

	caller, err := r.authenticate(ctx, claim, credential)
	if err != nil {
		return err
	}
	if err := r.checkBound(claim, caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.store.Has(ctx, claim)
	if err != nil {
		return fmt.Errorf("create claim %s: check existence: %w", claim, err)
	}
	if exists {
		return newError(ErrProofAlreadyExist, claim, caller, nil)
	}

	h := r.clock.CurrentHeight()
	inserted, err := r.store.Insert(ctx, claim, ir.Record{Owner: caller, RegisteredAt: h})
	if err != nil {
		return fmt.Errorf("create claim %s: %w", claim, err)
	}
	if !inserted {
		// another writer registered it after the existence check
		return newError(ErrProofAlreadyExist, claim, caller, nil)
	}

	r.logger.Info("claim created", "claim", claim, "owner", caller, "height", h)
	r.sink.Emit(ctx, ir.ClaimCreated(caller, claim, h))
	return nil
}

// Revoke removes claim. Only the current owner may revoke.
//
// Errors: ErrAuthentication, ErrClaimTooLong, ErrClaimNotExist, ErrNotClaimOwner.
func (r *Registry) Revoke(ctx context.Context, credential string, claim ir.Claim) (err error) {
	ctx, span := r.start(ctx, OpRevoke, claim)
	defer func() { r.finish(span, OpRevoke, claim, err) }()

	caller, err := r.authenticate(ctx, claim, credential)
	if err != nil {
		return err
	}
	if err := r.checkBound(claim, caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ownedBy(ctx, claim, caller); err != nil {
		return err
	}

	removed, err := r.store.Remove(ctx, claim, caller)
	if err != nil {
		return fmt.Errorf("revoke claim %s: %w", claim, err)
	}
	if !removed {
		return r.lost(ctx, claim, caller)
	}

	h := r.clock.CurrentHeight()
	r.logger.Info("claim revoked", "claim", claim, "owner", caller, "height", h)
	r.sink.Emit(ctx, ir.ClaimRevoked(caller, claim, h))
	return nil
}

// Transfer hands claim to receiver and refreshes its height. Only the
// current owner may transfer; receiver may equal the caller.
//
// Errors: ErrAuthentication, ErrClaimTooLong, ErrInvalidAccount,
// ErrClaimNotExist, ErrNotClaimOwner.
func (r *Registry) Transfer(ctx context.Context, credential string, claim ir.Claim, receiver ir.AccountID) (err error) {
	ctx, span := r.start(ctx, OpTransfer, claim)
	defer func() { r.finish(span, OpTransfer, claim, err) }()

	caller, err := r.authenticate(ctx, claim, credential)
	if err != nil {
		return err
	}
	if err := r.checkBound(claim, caller); err != nil {
		return err
	}
	if verr := receiver.Validate(); verr != nil {
		return newError(ErrInvalidAccount, claim, caller, verr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ownedBy(ctx, claim, caller); err != nil {
		return err
	}

	h := r.clock.CurrentHeight()
	replaced, err := r.store.Replace(ctx, claim, caller, ir.Record{Owner: receiver, RegisteredAt: h})
	if err != nil {
		return fmt.Errorf("transfer claim %s: %w", claim, err)
	}
	if !replaced {
		return r.lost(ctx, claim, caller)
	}

	r.logger.Info("claim transferred", "claim", claim, "from", caller, "to", receiver, "height", h)
	r.sink.Emit(ctx, ir.ClaimTransfered(caller, claim, receiver, h))
	return nil
}

// Lookup returns the record for claim and whether it is registered.
func (r *Registry) Lookup(ctx context.Context, claim ir.Claim) (ir.Record, bool, error) {
	if err := r.checkBound(claim, ""); err != nil {
		return ir.Record{}, false, err
	}
	rec, ok, err := r.store.Get(ctx, claim)
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("lookup claim %s: %w", claim, err)
	}
	return rec, ok, nil
}

// authenticate resolves the credential. Provider failures are wrapped so
// errors.Is(err, ErrAuthentication) holds and the cause stays reachable.
func (r *Registry) authenticate(ctx context.Context, claim ir.Claim, credential string) (ir.AccountID, error) {
	caller, err := r.identity.Resolve(ctx, credential)
	if err != nil {
		return "", newError(ErrAuthentication, claim, "", err)
	}
	if verr := caller.Validate(); verr != nil {
		return "", newError(ErrAuthentication, claim, "", verr)
	}
	return caller, nil
}

// checkBound rejects over-length claims before any store access.
func (r *Registry) checkBound(claim ir.Claim, caller ir.AccountID) error {
	if len(claim) > r.maxClaimLength {
		return newError(ErrClaimTooLong, claim, caller,
			fmt.Errorf("length %d > max %d", len(claim), r.maxClaimLength))
	}
	return nil
}

// ownedBy loads claim and checks that caller owns it.
// Must be called with r.mu held.
func (r *Registry) ownedBy(ctx context.Context, claim ir.Claim, caller ir.AccountID) (ir.Record, error) {
	rec, ok, err := r.store.Get(ctx, claim)
	if err != nil {
		return ir.Record{}, fmt.Errorf("read claim %s: %w", claim, err)
	}
	if !ok {
		return ir.Record{}, newError(ErrClaimNotExist, claim, caller, nil)
	}
	if rec.Owner != caller {
		return ir.Record{}, newError(ErrNotClaimOwner, claim, caller, nil)
	}
	return rec, nil
}

// lost classifies a conditional write that matched nothing because another
// writer revoked or transferred claim after ownedBy checked it.
func (r *Registry) lost(ctx context.Context, claim ir.Claim, caller ir.AccountID) error {
	if _, err := r.ownedBy(ctx, claim, caller); err != nil {
		return err
	}
	// changed and changed back between the write and this read
	return newError(ErrNotClaimOwner, claim, caller, nil)
}

func (r *Registry) start(ctx context.Context, op Operation, claim ir.Claim) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "registry."+string(op),
		trace.WithAttributes(
			attribute.String("poe.operation", string(op)),
			attribute.String("poe.claim", claim.String()),
		),
	)
}

// finish records the outcome on the span, the observer and the log.
// Successful commits are logged by the operation itself.
func (r *Registry) finish(span trace.Span, op Operation, claim ir.Claim, err error) {
	defer span.End()

	if r.observer != nil {
		r.observer.ObserveOperation(op, err)
	}

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case IsRejection(err):
		code := CodeOf(err)
		span.SetAttributes(attribute.String("poe.error_code", string(code)))
		span.SetStatus(codes.Error, string(code))
		r.logger.Info("claim operation rejected", "op", op, "claim", claim, "code", code)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("claim operation failed", "op", op, "claim", claim, "error", err)
	}
}
