package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/request"
	"github.com/otakon/companion/internal/services/behavior"
	"github.com/otakon/companion/internal/validation"
)

// PreferencesHandler reads and writes the user's AI preferences
type PreferencesHandler struct {
	store  *behavior.Store
	logger *zap.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(store *behavior.Store, logger *zap.Logger) *PreferencesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferencesHandler{store: store, logger: logger}
}

// RegisterRoutes registers preference routes
func (h *PreferencesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/preferences", h.Get).Methods("GET")
	r.HandleFunc("/preferences", h.Update).Methods("PUT")
}

// UpdatePreferencesRequest represents a preferences update
type UpdatePreferencesRequest struct {
	ResponseHistoryScope   string `json:"response_history_scope" validate:"required"`
	ApplyCorrections       bool   `json:"apply_corrections"`
	CorrectionDefaultScope string `json:"correction_default_scope" validate:"required,correction_scope"`
}

// Get returns the user's current preferences
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	data := h.store.GetBehaviorData(r.Context(), user.ID)
	respondJSON(w, http.StatusOK, data.AIPreferences)
}

// Update replaces the user's preferences
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "response_history_scope and a valid correction_default_scope are required")
		return
	}
	if err := validation.ValidateHistoryScope(req.ResponseHistoryScope); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	prefs := models.AIPreferences{
		ResponseHistoryScope:   models.HistoryScope(req.ResponseHistoryScope),
		ApplyCorrections:       req.ApplyCorrections,
		CorrectionDefaultScope: models.CorrectionScope(req.CorrectionDefaultScope),
	}
	if err := h.store.SetPreferences(r.Context(), user.ID, prefs); err != nil {
		h.logger.Error("failed to save preferences",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save preferences")
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}
