package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/request"
	"github.com/otakon/companion/internal/services/chat"
	"github.com/otakon/companion/internal/services/grounding"
	"github.com/otakon/companion/internal/validation"
)

// ChatRunner runs one full pipeline cycle for a user message.
type ChatRunner interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// ChatHandler handles chat turn requests
type ChatHandler struct {
	pipeline ChatRunner
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(pipeline ChatRunner, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.SendMessage).Methods("POST")
}

// ChatMessageRequest represents one chat turn request
type ChatMessageRequest struct {
	Message         string                     `json:"message" validate:"required,min=1,max=8000"`
	Conversation    *models.Conversation       `json:"conversation"`
	Profile         models.UserProfile         `json:"profile"`
	ProfileOverride *models.UserProfile        `json:"profile_override,omitempty"`
	IsActiveSession bool                       `json:"is_active_session"`
	Interaction     *models.InteractionContext `json:"interaction,omitempty"`
	ReleaseEpoch    int64                      `json:"release_epoch,omitempty"`
	Timezone        string                     `json:"timezone,omitempty"`
}

// ChatMessageResponse is the client-facing shape of one pipeline run.
type ChatMessageResponse struct {
	Content      string                `json:"content"`
	Directives   *models.DirectiveSet  `json:"directives,omitempty"`
	Conversation *models.Conversation  `json:"conversation"`
	Grounding    grounding.Eligibility `json:"grounding"`
}

// SendMessage runs the pipeline for one user message
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	req.Message = validation.SanitizeText(req.Message)
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is required and must be at most 8000 characters")
		return
	}

	resp, err := h.pipeline.Handle(r.Context(), chat.Request{
		UserID:          user.ID,
		Tier:            user.Tier,
		Conversation:    req.Conversation,
		UserQuery:       req.Message,
		Profile:         req.Profile,
		ProfileOverride: req.ProfileOverride,
		IsActiveSession: req.IsActiveSession,
		Interaction:     req.Interaction,
		ReleaseEpoch:    req.ReleaseEpoch,
		Timezone:        req.Timezone,
	})
	if err != nil {
		h.logger.Error("chat turn failed",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID)),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusBadGateway, "Upstream Error", "The AI service is currently unavailable")
		return
	}

	respondJSON(w, http.StatusOK, ChatMessageResponse{
		Content:      resp.CleanContent,
		Directives:   resp.Directives,
		Conversation: resp.Conversation,
		Grounding:    resp.Grounding,
	})
}
