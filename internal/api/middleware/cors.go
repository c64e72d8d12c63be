package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/mcoot/presencechat/internal/api/request"
)

// CORS allows browser clients from origins to call the API.
// An empty list or "*" allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", request.UserHeader}),
	)
}
