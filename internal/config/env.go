package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadDotEnv reads .env files into the process environment when present.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg(".env not loaded, using process environment")
	}
}

// Env returns the value of key or def when unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BoolEnv parses key as a bool, falling back to def on absence or parse error.
func BoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// Int64Env parses key as an int64, falling back to def.
func Int64Env(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

// DurationEnv accepts Go durations ("90s") or bare seconds ("90").
func DurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

// SanitizeListenAddr trims whitespace/comments so malformed env values (e.g. ":8080 :: note") do not break net.Listen.
func SanitizeListenAddr(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	fields := strings.Fields(trimmed)
	if len(fields) > 0 {
		trimmed = fields[0]
	}
	trimmed = strings.Trim(trimmed, "\"'")
	return trimmed
}

// ListenAddr reads a bind address and warns when it had to be sanitized.
func ListenAddr(key, def string) string {
	raw := Env(key, def)
	addr := SanitizeListenAddr(raw)
	if addr != raw {
		log.Warn().
			Str("raw", raw).
			Str("sanitized", addr).
			Msgf("sanitized %s; remove inline comments from address", key)
	}
	return addr
}
