// Package httpapi exposes the claim registry over HTTP.
//
// Routes:
//
//	POST   /claims                   {"claim": "..."}     -> 201 record
//	GET    /claims/{claim}                                -> 200 record | 404
//	DELETE /claims/{claim}                                -> 200
//	POST   /claims/{claim}/transfer  {"receiver": "..."}  -> 200 record
//	GET    /healthz
//	GET    /metrics
//
// The caller credential is taken from "Authorization: Bearer <token>".
// Claims in paths and bodies use the ir.ParseClaim text form.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/poe/internal/ir"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Registry is the subset of *registry.Registry the handler calls.
type Registry interface {
	Create(ctx context.Context, credential string, claim ir.Claim) error
	Revoke(ctx context.Context, credential string, claim ir.Claim) error
	Transfer(ctx context.Context, credential string, claim ir.Claim, receiver ir.AccountID) error
	Lookup(ctx context.Context, claim ir.Claim) (ir.Record, bool, error)
}

// Heights starts a new block. *clock.Chain satisfies it.
type Heights interface {
	Advance(ctx context.Context) (ir.Height, error)
}

// Handler wires claim endpoints to the registry.
type Handler struct {
	registry Registry
	heights  Heights
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New constructs a handler. heights may be nil when the clock is driven
// elsewhere; gatherer may be nil to omit /metrics.
func New(reg Registry, heights Heights, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: reg,
		heights:  heights,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/claims", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{claim}", h.HandleGet)
		r.Delete("/{claim}", h.HandleRevoke)
		r.Post("/{claim}/transfer", h.HandleTransfer)
	})
}

// Router returns a chi router with request IDs, panic recovery and all
// endpoints mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	h.Register(r)
	return r
}

type createRequest struct {
	Claim string `json:"claim"`
}

type transferRequest struct {
	Receiver string `json:"receiver"`
}

type recordResponse struct {
	Claim        ir.Claim     `json:"claim"`
	Owner        ir.AccountID `json:"owner"`
	RegisteredAt ir.Height    `json:"registered_at"`
}

type revokeResponse struct {
	Claim   ir.Claim `json:"claim"`
	Revoked bool     `json:"revoked"`
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCreate handles POST /claims.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFrom(ctx)

	var req createRequest
	if err := decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	claim, err := ir.ParseClaim(req.Claim)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if !h.advance(w, r) {
		return
	}
	if err := h.registry.Create(ctx, bearer(r), claim); err != nil {
		h.fail(w, r, "create", claim, err)
		return
	}

	rec, ok := h.lookup(w, r, claim)
	if !ok {
		return
	}
	h.logger.InfoContext(ctx, "claim created via api", "request_id", requestID, "claim", claim)
	writeJSON(w, http.StatusCreated, rec)
}

// HandleGet handles GET /claims/{claim}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claim, ok := pathClaim(w, r)
	if !ok {
		return
	}
	rec, ok := h.lookup(w, r, claim)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleRevoke handles DELETE /claims/{claim}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, ok := pathClaim(w, r)
	if !ok {
		return
	}

	if !h.advance(w, r) {
		return
	}
	if err := h.registry.Revoke(ctx, bearer(r), claim); err != nil {
		h.fail(w, r, "revoke", claim, err)
		return
	}

	h.logger.InfoContext(ctx, "claim revoked via api", "request_id", RequestIDFrom(ctx), "claim", claim)
	writeJSON(w, http.StatusOK, revokeResponse{Claim: claim, Revoked: true})
}

// HandleTransfer handles POST /claims/{claim}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, ok := pathClaim(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if !h.advance(w, r) {
		return
	}
	receiver := ir.AccountID(req.Receiver)
	if err := h.registry.Transfer(ctx, bearer(r), claim, receiver); err != nil {
		h.fail(w, r, "transfer", claim, err)
		return
	}

	rec, ok := h.lookup(w, r, claim)
	if !ok {
		return
	}
	h.logger.InfoContext(ctx, "claim transferred via api",
		"request_id", RequestIDFrom(ctx),
		"claim", claim,
		"receiver", receiver,
	)
	writeJSON(w, http.StatusOK, rec)
}

// advance starts a new block for a mutating request.
func (h *Handler) advance(w http.ResponseWriter, r *http.Request) bool {
	if h.heights == nil {
		return true
	}
	if _, err := h.heights.Advance(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "advance height failed",
			"request_id", RequestIDFrom(r.Context()),
			"error", err,
		)
		writeError(w, err)
		return false
	}
	return true
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, claim ir.Claim) (recordResponse, bool) {
	rec, found, err := h.registry.Lookup(r.Context(), claim)
	if err != nil {
		h.fail(w, r, "lookup", claim, err)
		return recordResponse{}, false
	}
	if !found {
		writeNotFound(w, claim)
		return recordResponse{}, false
	}
	return recordResponse{Claim: claim, Owner: rec.Owner, RegisteredAt: rec.RegisteredAt}, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, claim ir.Claim, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "claim request failed",
			"request_id", RequestIDFrom(r.Context()),
			"op", op,
			"claim", claim,
			"error", err,
		)
	}
	writeError(w, err)
}

// bearer extracts the token from an "Authorization: Bearer" header. A
// missing or malformed header yields "", which the registry rejects.
func bearer(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func pathClaim(w http.ResponseWriter, r *http.Request) (ir.Claim, bool) {
	raw := chi.URLParam(r, "claim")
	// chi matches against RawPath when the request has one, and the
	// already-decoded Path otherwise.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid claim in path: %v", err))
			return nil, false
		}
		raw = unescaped
	}
	claim, err := ir.ParseClaim(raw)
	if err != nil {
		writeBadRequest(w, err.Error())
		return nil, false
	}
	return claim, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
