// Package server hosts the Veritas media API from a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// metrics, audit, CORS, and security headers so handlers all share common
// protections and instrumentation. Authentication stays inside the handlers
// because each route owns its envelope responses.
package server
