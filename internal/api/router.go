package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/presencechat/internal/api/apierr"
	"github.com/mcoot/presencechat/internal/api/handler"
	apimiddleware "github.com/mcoot/presencechat/internal/api/middleware"
	"github.com/mcoot/presencechat/internal/api/response"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/middleware"
	"github.com/mcoot/presencechat/internal/services/ledger"
	"github.com/mcoot/presencechat/internal/services/registry"
)

// healthTimeout bounds the store ping made by the health check
const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Registry *registry.Service
	Ledger   *ledger.Service
	Store    Pinger
	// Metrics is optional; without it /metrics is not served
	Metrics *metrics.Metrics
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string
	// DefaultMessageLimit applies when GET /messages has no limit (optional)
	DefaultMessageLimit *int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	participantHandler := handler.NewParticipantHandler(cfg.Registry)
	messageHandler := handler.NewMessageHandler(cfg.Ledger, cfg.DefaultMessageLimit)

	// Common middleware
	r.Use(apimiddleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Participant routes
	r.HandleFunc("/participants", participantHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/participants", participantHandler.List).Methods(http.MethodGet)

	// Routes acting as the participant named in the User header
	acting := r.NewRoute().Subrouter()
	acting.Use(apimiddleware.RequireUser)
	acting.HandleFunc("/status", participantHandler.Heartbeat).Methods(http.MethodPost)
	acting.HandleFunc("/messages", messageHandler.Post).Methods(http.MethodPost)
	acting.HandleFunc("/messages", messageHandler.List).Methods(http.MethodGet)

	// Operational endpoints
	r.HandleFunc("/health", healthHandler(cfg.Store)).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return apimiddleware.CORS(cfg.AllowedOrigins)(r)
}

func healthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				apierr.WriteError(w, err)
				return
			}
		}
		response.OK(w)
	}
}
