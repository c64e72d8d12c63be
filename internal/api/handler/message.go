package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/presencechat/internal/api/middleware"
	"github.com/mcoot/presencechat/internal/api/request"
	"github.com/mcoot/presencechat/internal/api/response"
	"github.com/mcoot/presencechat/internal/services/ledger"
	"github.com/mcoot/presencechat/internal/services/validation"
)

// MessageHandler handles posting and reading messages
type MessageHandler struct {
	ledger       *ledger.Service
	defaultLimit *int
}

// NewMessageHandler creates a new message handler.
// defaultLimit applies to listings without a limit parameter and may be nil.
func NewMessageHandler(ledger *ledger.Service, defaultLimit *int) *MessageHandler {
	return &MessageHandler{
		ledger:       ledger,
		defaultLimit: defaultLimit,
	}
}

// Post handles POST /messages
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	m, err := h.ledger.Post(r.Context(), user, req.To, req.Text, req.Type)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.MessageFromModel(m))
}

// List handles GET /messages?limit=N
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	limit, err := validation.Limit(r.URL.Query().Get("limit"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if limit == nil {
		limit = h.defaultLimit
	}

	messages, err := h.ledger.ListVisible(r.Context(), user, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MessagesFromModel(messages))
}
