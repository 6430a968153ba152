// Package auth resolves the calling dashboard user from API keys, with an
// optional TOTP second factor.
package auth

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"

	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user_id"

// DevUser is the identity assumed when no API keys are configured.
const DevUser = "local-recruiter"

// Config maps API keys to user ids.
type Config struct {
	APIKeys   map[string]string
	MFASecret string
	MFABypass string
}

// LoadConfig reads AUTH_API_KEYS ("user:key,user:key"), AUTH_MFA_SECRET and
// AUTH_MFA_BYPASS.
func LoadConfig() Config {
	cfg := Config{APIKeys: map[string]string{}}
	if raw := os.Getenv("AUTH_API_KEYS"); raw != "" {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			parts := strings.SplitN(token, ":", 2)
			if len(parts) != 2 {
				log.Warn().Msg("ignoring malformed AUTH_API_KEYS entry")
				continue
			}
			user := strings.TrimSpace(parts[0])
			key := strings.TrimSpace(parts[1])
			if user != "" && key != "" {
				cfg.APIKeys[key] = user
			}
		}
	}
	cfg.MFASecret = os.Getenv("AUTH_MFA_SECRET")
	cfg.MFABypass = os.Getenv("AUTH_MFA_BYPASS")
	return cfg
}

// Middleware rejects unauthenticated requests and stores the user id in the
// request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// No keys configured: development fallback.
			if len(cfg.APIKeys) == 0 {
				user := strings.TrimSpace(r.Header.Get("X-User-ID"))
				if user == "" {
					user = DevUser
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}
			token := bearer(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing authorization")
				return
			}
			user, ok := cfg.APIKeys[token]
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			if cfg.MFASecret != "" {
				provided := strings.TrimSpace(r.Header.Get("X-MFA-Token"))
				if provided == "" {
					httpx.WriteError(w, http.StatusUnauthorized, "mfa token required")
					return
				}
				if cfg.MFABypass == "" || provided != cfg.MFABypass {
					if !totp.Validate(provided, cfg.MFASecret) {
						httpx.WriteError(w, http.StatusUnauthorized, "invalid mfa token")
						return
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// bearer accepts "Authorization: Bearer <key>" and the apikey header.
func bearer(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return h
	}
	return strings.TrimSpace(r.Header.Get("apikey"))
}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUser, userID)
}

// UserID returns the authenticated user, or "" outside the middleware.
func UserID(ctx context.Context) string {
	user, _ := ctx.Value(ctxKeyUser).(string)
	return user
}
