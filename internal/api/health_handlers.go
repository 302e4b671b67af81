package api

import (
	"context"
	"encoding/json"
	"net/http"
)

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components []componentStatus `json:"components"`
}

type pingable interface {
	Ping(ctx context.Context) error
}

// Health reports the reachability of the backing services. It intentionally
// skips the response envelope: this endpoint feeds load balancers and probes,
// not API clients.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	components, overall, statusCode := h.componentHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: overall, Components: components})
}

func (h *Handler) componentHealth(ctx context.Context) ([]componentStatus, string, int) {
	overallStatus := "ok"
	statusCode := http.StatusOK
	recordComponent := func(component string, err error) componentStatus {
		status := "ok"
		message := ""
		if err != nil {
			status = "degraded"
			message = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		h.recorder().SetComponentHealth(component, status)
		return componentStatus{Component: component, Status: status, Error: message}
	}

	components := make([]componentStatus, 0, 3)
	if h.Store != nil {
		components = append(components, recordComponent("datastore", h.Store.Ping(ctx)))
	}
	if cache, ok := h.Verifier.(pingable); ok {
		components = append(components, recordComponent("token_cache", cache.Ping(ctx)))
	}
	if h.Events != nil {
		components = append(components, recordComponent("events", h.Events.Ping(ctx)))
	}
	return components, overallStatus, statusCode
}
