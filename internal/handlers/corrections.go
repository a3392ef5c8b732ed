package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/request"
	"github.com/otakon/companion/internal/services/behavior"
	"github.com/otakon/companion/internal/services/correction"
	"github.com/otakon/companion/internal/validation"
)

// CorrectionSubmitter runs the correction submission state machine.
type CorrectionSubmitter interface {
	SubmitCorrection(ctx context.Context, userID string, sub correction.Submission) correction.Result
}

// CorrectionsHandler handles correction submission and management
type CorrectionsHandler struct {
	service CorrectionSubmitter
	store   *behavior.Store
	logger  *zap.Logger
}

// NewCorrectionsHandler creates a new corrections handler
func NewCorrectionsHandler(service CorrectionSubmitter, store *behavior.Store, logger *zap.Logger) *CorrectionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorrectionsHandler{service: service, store: store, logger: logger}
}

// RegisterRoutes registers correction routes
func (h *CorrectionsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/corrections", h.Submit).Methods("POST")
	r.HandleFunc("/corrections", h.List).Methods("GET")
	r.HandleFunc("/corrections/{id}/toggle", h.Toggle).Methods("POST")
	r.HandleFunc("/corrections/{id}", h.Remove).Methods("DELETE")
}

// SubmitCorrectionRequest represents a correction submission
type SubmitCorrectionRequest struct {
	OriginalResponse string `json:"original_response" validate:"required"`
	CorrectionText   string `json:"correction_text" validate:"required"`
	Type             string `json:"type,omitempty"`
	Scope            string `json:"scope,omitempty" validate:"omitempty,correction_scope"`
	GameTitle        string `json:"game_title,omitempty"`
}

// Submit handles a correction submission
func (h *CorrectionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req SubmitCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	req.CorrectionText = validation.SanitizeText(req.CorrectionText)
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "original_response and correction_text are required; scope, when given, must be valid")
		return
	}

	result := h.service.SubmitCorrection(r.Context(), user.ID, correction.Submission{
		OriginalResponse: req.OriginalResponse,
		CorrectionText:   req.CorrectionText,
		Type:             models.CorrectionType(req.Type),
		Scope:            models.CorrectionScope(req.Scope),
		GameTitle:        req.GameTitle,
	})

	// Rejections are ordinary outcomes; the submission endpoint always
	// answers 200 with the result payload.
	respondJSON(w, http.StatusOK, result)
}

// List returns the user's corrections
func (h *CorrectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	data := h.store.GetBehaviorData(r.Context(), user.ID)
	corrections := data.AICorrections
	if corrections == nil {
		corrections = []models.Correction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"corrections": corrections})
}

// Toggle flips a correction's active flag
func (h *CorrectionsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid correction id")
		return
	}

	found, err := h.store.ToggleCorrection(r.Context(), user.ID, id)
	if err != nil {
		h.logger.Error("failed to toggle correction",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update correction")
		return
	}
	if !found {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Correction not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"toggled": true})
}

// Remove deletes a correction
func (h *CorrectionsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid correction id")
		return
	}

	found, err := h.store.RemoveCorrection(r.Context(), user.ID, id)
	if err != nil {
		h.logger.Error("failed to remove correction",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to remove correction")
		return
	}
	if !found {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Correction not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": true})
}
