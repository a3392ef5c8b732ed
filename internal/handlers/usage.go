package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/request"
	"github.com/otakon/companion/internal/services/grounding"
)

// UsageHandler reports the caller's grounding usage for the current month
type UsageHandler struct {
	store  grounding.UsageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(store grounding.UsageStore, logger *zap.Logger) *UsageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageHandler{store: store, logger: logger, now: time.Now}
}

// RegisterRoutes registers usage routes
func (h *UsageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/grounding/usage", h.Get).Methods("GET")
}

// GroundingUsageResponse is the per-month usage summary for the caller.
type GroundingUsageResponse struct {
	MonthYear  string `json:"month_year"`
	UsageCount int    `json:"usage_count"`
	Quota      int    `json:"quota"`
	Remaining  int    `json:"remaining"`
}

// Get returns the caller's usage for the current month
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	monthYear := models.MonthYear(h.now())
	count, err := h.store.GetUsage(r.Context(), user.ID, monthYear)
	if err != nil {
		if grounding.IsSchemaMissing(err) {
			// Usage table not provisioned; report a zero month rather than
			// failing the call.
			count = 0
		} else {
			h.logger.Error("failed to read grounding usage",
				zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
				zap.String("error", logpkg.SanitizeError(err)))
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read usage")
			return
		}
	}

	quota := models.GroundingQuota(user.Tier)
	remaining := quota - count
	if remaining < 0 {
		remaining = 0
	}
	respondJSON(w, http.StatusOK, GroundingUsageResponse{
		MonthYear:  monthYear,
		UsageCount: count,
		Quota:      quota,
		Remaining:  remaining,
	})
}
