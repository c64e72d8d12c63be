package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/presencechat/internal/api/middleware"
	"github.com/mcoot/presencechat/internal/api/request"
	"github.com/mcoot/presencechat/internal/api/response"
	"github.com/mcoot/presencechat/internal/services/registry"
)

// ParticipantHandler handles registration, listing and heartbeats
type ParticipantHandler struct {
	registry *registry.Service
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(registry *registry.Service) *ParticipantHandler {
	return &ParticipantHandler{
		registry: registry,
	}
}

// Register handles POST /participants
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	p, err := h.registry.Register(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ParticipantFromModel(p))
}

// List handles GET /participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	participants, err := h.registry.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ParticipantsFromModel(participants))
}

// Heartbeat handles POST /status
func (h *ParticipantHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	if err := h.registry.Touch(r.Context(), user); err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w)
}
