package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/workflow"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by the document store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the unauthenticated operational handlers.
type Handler struct {
	store   Pinger
	version string
}

// NewHandler creates a new Handler. store may be nil.
func NewHandler(store Pinger, version string) *Handler {
	return &Handler{store: store, version: version}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Store     string    `json:"store,omitempty"`
}

// HandleHealth reports service status. It returns 503 when the store does
// not answer a ping.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "approval-tracker",
		Version:   h.version,
	}
	code := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Store = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status.Store = "ok"
		}
	}
	writeJSON(w, code, status)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't change response at this point
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(w http.ResponseWriter, status int, title, detail, instance string) {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(problem)
}

// StatusFor maps a tracker error to its HTTP status and problem title.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, workflow.ErrOrderViolation):
		return http.StatusUnprocessableEntity, "Step order violation"
	case errors.Is(err, workflow.ErrInvalidProposal), errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, workflow.ErrUnknownKind), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrDuplicateID):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, services.ErrPersistence):
		return http.StatusBadGateway, "Storage unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// ErrorHandler renders every handler error as a problem document.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, title := StatusFor(err)
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	writeError(c.Response(), status, title, detail, c.Request().URL.Path)
}
