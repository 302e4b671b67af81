package server

import (
	"net/http"

	"veritas-media/internal/api"
)

// writeMiddlewareError normalises middleware error responses to the API
// envelope shape.
func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	api.WriteFailure(w, status, message)
}
