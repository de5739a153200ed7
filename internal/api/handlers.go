package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	apperrors "github.com/civicmesh/civic-broker/pkg/errors"
	"github.com/civicmesh/civic-broker/pkg/logger"

	"github.com/civicmesh/civic-broker/internal/audit"
	"github.com/civicmesh/civic-broker/internal/civic"
	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/profile"
)

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	broker         *civic.Broker
	audit          *audit.Log
	clientIPHeader string
	logger         *slog.Logger
}

// NewHandler creates the HTTP handler set. auditLog may be nil.
func NewHandler(broker *civic.Broker, auditLog *audit.Log, clientIPHeader string) *Handler {
	return &Handler{
		broker:         broker,
		audit:          auditLog,
		clientIPHeader: clientIPHeader,
		logger:         slog.Default().With("component", "api"),
	}
}

// ingestRequest is one provider record submission.
type ingestRequest struct {
	Source string              `json:"source"`
	Record normalize.RawRecord `json:"record"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body"))
		return
	}
	if req.Source == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "source is required"))
		return
	}

	id, err := h.broker.Ingest(r.Context(), req.Source, req.Record)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordAudit(r, "ingest", map[string]string{"source": req.Source, "politician_id": id})
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handlePolitician(w http.ResponseWriter, r *http.Request) {
	prof, err := h.broker.Politician(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, prof)
}

func (h *Handler) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	var callerID string
	if ident, ok := IdentityFrom(r.Context()); ok {
		callerID = ident.ID
	}
	summary, err := h.broker.RatingsFor(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type rateRequest struct {
	Rating int `json:"rating"`
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "authentication required"))
		return
	}
	// An absent body reads the current aggregates without casting a score.
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body"))
		return
	}

	politicianID := r.PathValue("id")
	summary, err := h.broker.Rate(r.Context(), politicianID, ident.ID, req.Rating)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Rating != 0 {
		h.recordAudit(r, "rate", map[string]any{"politician_id": politicianID, "rating": req.Rating})
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleProfileInfo(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "authentication required"))
		return
	}
	info, err := h.broker.ProfileInfo(r.Context(), ident)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "authentication required"))
		return
	}
	var req profile.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body"))
		return
	}

	if err := h.broker.UpdateProfile(r.Context(), ident.ID, req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordAudit(r, "profile_update", map[string]any{
		"party_changed":   req.Party != "",
		"address_changed": req.Address != "",
	})

	info, err := h.broker.ProfileInfo(r.Context(), ident)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	result, err := h.broker.SearchProfiles(r.Context(), query, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRepresentatives(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "authentication required"))
		return
	}
	reps, err := h.broker.RepresentativesFor(r.Context(), ident.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reps)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status < http.StatusInternalServerError {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

// recordAudit writes a best-effort audit entry for a mutating operation.
func (h *Handler) recordAudit(r *http.Request, operation string, payload any) {
	if h.audit == nil {
		return
	}
	var userID string
	if ident, ok := IdentityFrom(r.Context()); ok {
		userID = ident.ID
	}
	h.audit.Record(r.Context(), audit.Entry{
		Operation: operation,
		UserID:    userID,
		ClientIP:  h.clientIP(r),
		Payload:   payload,
	})
}

func (h *Handler) clientIP(r *http.Request) string {
	if h.clientIPHeader != "" {
		if ip := r.Header.Get(h.clientIPHeader); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
