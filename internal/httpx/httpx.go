package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultAllowHeaders covers the headers browser clients of the dashboard send.
var DefaultAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type", "x-mfa-token", "x-user-id"}

// CORS allows browser calls from the dashboard UI. Preflight requests are
// answered directly with 204 and never reach next.
func CORS(allowHeaders ...string) func(http.Handler) http.Handler {
	if len(allowHeaders) == 0 {
		allowHeaders = DefaultAllowHeaders
	}
	headers := strings.Join(allowHeaders, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetCORSHeaders(w, headers)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetCORSHeaders writes the permissive cross-origin headers.
func SetCORSHeaders(w http.ResponseWriter, allowHeaders string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Type")
}

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// MethodNotAllowed is a chi-compatible handler that answers in JSON.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
}

// NotFound is a chi-compatible handler that answers in JSON.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not found")
}

// Serve runs srv until ctx is cancelled, then drains in-flight requests.
func Serve(ctx context.Context, srv *http.Server, drain time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
