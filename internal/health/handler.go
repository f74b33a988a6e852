package health

import (
	"encoding/json"
	"net/http"
)

// VaultChecker is the interface the health handler needs from the vault
// store. This avoids a direct dependency on internal/vault.
type VaultChecker interface {
	// Ping reports whether the vault snapshot can currently be read.
	Ping() error
}

// VaultCheckerFunc adapts a function to the VaultChecker interface.
type VaultCheckerFunc func() error

// Ping calls the wrapped function.
func (f VaultCheckerFunc) Ping() error { return f() }

// Handler provides HTTP health check endpoints.
type Handler struct {
	checker VaultChecker
	version string
}

// NewHandler creates a health check handler.
func NewHandler(checker VaultChecker, version string) *Handler {
	return &Handler{
		checker: checker,
		version: version,
	}
}

// ServeHTTP routes to the appropriate health endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		h.handleLiveness(w, r)
	case "/readyz":
		h.handleReadiness(w, r)
	default:
		http.NotFound(w, r)
	}
}

// LivenessResponse is the JSON response for /healthz.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadinessResponse is the JSON response for /readyz.
type ReadinessResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivenessResponse{
		Status:  "ok",
		Version: h.version,
	})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.checker.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: "not_ready",
			Error:  err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadinessResponse{Status: "ready"})
}
