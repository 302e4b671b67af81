package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"veritas-media/internal/auth"
	"veritas-media/internal/observability/logging"
)

// apiKeyHeader carries the static key presented by mobile clients.
const apiKeyHeader = "X-API-Key"

// apiKeyRejectedMessage is the exact envelope message mobile builds match on,
// so it must not change.
const apiKeyRejectedMessage = "Api key is wrong or not found"

// requireAPIKey gates machine-client endpoints on the configured keyring. It
// writes the failure envelope itself and reports whether the request may
// proceed.
func (h *Handler) requireAPIKey(w http.ResponseWriter, r *http.Request) bool {
	candidate := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	if candidate == "" || !h.Keys.Verify(candidate) {
		WriteFailure(w, http.StatusUnauthorized, apiKeyRejectedMessage)
		return false
	}
	return true
}

// ExtractBearerToken pulls the token from an Authorization: Bearer header,
// returning an empty string when the header is absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireBearerIdentity gates management endpoints on the configured token
// verifier. Rejection causes are logged but never distinguished to the
// client.
func (h *Handler) requireBearerIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token := ExtractBearerToken(r)
	if token == "" {
		WriteFailure(w, http.StatusUnauthorized, "Bearer token is missing or invalid")
		return auth.Identity{}, false
	}
	if h.Verifier == nil {
		WriteFailure(w, http.StatusUnauthorized, "Bearer token is missing or invalid")
		return auth.Identity{}, false
	}
	identity, err := h.Verifier.Verify(r.Context(), token)
	if err != nil {
		logging.WithContext(r.Context(), h.logger()).Info("bearer token rejected", "error", err)
		WriteFailure(w, http.StatusUnauthorized, "Bearer token is missing or invalid")
		return auth.Identity{}, false
	}
	return identity, true
}

type identityContextKey struct{}

type identityRecorderKey struct{}

// identityRecorder lets middleware observe an identity that a handler attaches
// deeper in the chain, where the derived request context is no longer visible
// to the wrapping layers.
type identityRecorder struct {
	mu       sync.Mutex
	identity auth.Identity
	set      bool
}

func (rec *identityRecorder) record(identity auth.Identity) {
	rec.mu.Lock()
	rec.identity = identity
	rec.set = true
	rec.mu.Unlock()
}

func (rec *identityRecorder) value() (auth.Identity, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.identity, rec.set
}

// ContextWithIdentityRecorder prepares ctx so that identities attached by
// handlers become visible to the caller through IdentityFromContext.
func ContextWithIdentityRecorder(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityRecorderKey{}, &identityRecorder{})
}

// ContextWithIdentity stores a verified identity on the context for audit
// logging downstream.
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if rec, ok := ctx.Value(identityRecorderKey{}).(*identityRecorder); ok {
		rec.record(identity)
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity stored by ContextWithIdentity,
// consulting the recorder when the direct value is absent.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if identity, ok := ctx.Value(identityContextKey{}).(auth.Identity); ok {
		return identity, true
	}
	if rec, ok := ctx.Value(identityRecorderKey{}).(*identityRecorder); ok {
		return rec.value()
	}
	return auth.Identity{}, false
}
