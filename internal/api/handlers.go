// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/scanner"
)

// Scanner is the engine surface the handlers need.
type Scanner interface {
	Scan(ctx context.Context, userID string, privileged bool) (scanner.ScanResult, error)
	Page(ctx context.Context, sessionID string, index int) (scanner.Page, error)
	Token(ctx context.Context, input string) (scanner.Page, error)
	Callback(ctx context.Context, data string) (scanner.Page, scanner.View, error)
}

const userHeader = "X-User-ID"

// Handlers holds the HTTP handlers
type Handlers struct {
	scanner      Scanner
	entitlements scanner.Entitlements
	logger       *zap.Logger
}

func NewHandlers(s Scanner, e scanner.Entitlements, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if e == nil {
		e = scanner.NewStaticEntitlements(nil)
	}
	return &Handlers{scanner: s, entitlements: e, logger: logger.Named("handlers")}
}

type scanRequest struct {
	UserID string `json:"user_id"`
}

type scanResponse struct {
	Status            string        `json:"status"`
	RetryAfterSeconds int           `json:"retry_after_seconds,omitempty"`
	FromCache         bool          `json:"from_cache,omitempty"`
	Strategy          string        `json:"strategy,omitempty"`
	Page              *scanner.Page `json:"page,omitempty"`
}

type pageResponse struct {
	scanner.Page
	View scanner.View `json:"view,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Scan handles POST /scan. The caller is taken from X-User-ID or the JSON body.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" && r.Body != nil {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			userID = strings.TrimSpace(req.UserID)
		}
	}
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing_user", "user id is required")
		return
	}

	res, err := h.scanner.Scan(r.Context(), userID, h.entitlements.IsPrivileged(userID))
	if err != nil {
		h.fail(w, err)
		return
	}

	if !res.Decision.Allowed {
		secs := res.Decision.RemainingSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		h.writeJSON(w, http.StatusTooManyRequests, scanResponse{Status: "throttled", RetryAfterSeconds: secs})
		return
	}

	h.writeJSON(w, http.StatusOK, scanResponse{
		Status:    string(res.Status),
		FromCache: res.FromCache,
		Strategy:  res.Strategy,
		Page:      res.Page,
	})
}

// Page handles GET /sessions/{id}/{index}
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return
	}

	page, err := h.scanner.Page(r.Context(), vars["id"], index)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pageResponse{Page: page})
}

// Token handles GET /tokens/{mint}
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	page, err := h.scanner.Token(r.Context(), mux.Vars(r)["mint"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pageResponse{Page: page})
}

// Callback handles GET /callback?data=...
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	page, view, err := h.scanner.Callback(r.Context(), r.URL.Query().Get("data"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pageResponse{Page: page, View: view})
}

// NotFound handles unknown routes
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scanner.ErrSessionNotFound):
		h.writeError(w, http.StatusGone, "session_not_found", "session expired, run the scan again")
	case errors.Is(err, scanner.ErrInvalidMint):
		h.writeError(w, http.StatusBadRequest, "invalid_mint", err.Error())
	case errors.Is(err, scanner.ErrBadCallback):
		h.writeError(w, http.StatusBadRequest, "invalid_callback", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out")
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: code, Message: message})
}
