package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler writes the response for a request whose handler panicked
type PanicHandler func(w http.ResponseWriter, r *http.Request, recovered any)

// Recovery turns handler panics into a logged error and a PanicHandler response.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recovery(logger *slog.Logger, handler PanicHandler) func(http.Handler) http.Handler {
	if handler == nil {
		handler = DefaultPanicHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}

				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.Any("panic", recovered),
					slog.String("method", r.Method),
					slog.String("route", routeTemplate(r)),
					slog.String("user", r.Header.Get("User")),
					slog.String("stack", string(debug.Stack())),
				)

				handler(w, r, recovered)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultPanicHandler replies with a plain 500
func DefaultPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
