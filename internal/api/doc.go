// Package api hosts the HTTP handlers that front the Veritas media catalog.
//
// The handlers assembled by Handler coordinate request validation, the two
// authentication gates, and response shaping while delegating persistence to
// storage.Repository implementations injected at construction time. The API-key
// keyring and bearer-token verifier are passed in by the caller; the package
// does not reach for globals or singletons and expects callers to supply fully
// configured dependencies.
//
// Every JSON endpoint replies with the {success, message, data} envelope.
// Domain event publishing and health probes are also injected so catalog
// changes can be broadcast without coupling the package to specific runtime
// wiring. This keeps endpoint behaviour testable and aligned with the wider
// service architecture.
//
// Handler implementations assume upstream middleware from internal/server has
// already enforced request identification, metrics, auditing, and logging
// concerns. New routes should preserve that contract by avoiding duplicate
// instrumentation and by leaning on the middleware guarantees established in
// the server stack.
package api
