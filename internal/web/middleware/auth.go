package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/ETL/internal/config"
	"github.com/JonMunkholm/ETL/internal/logging"
)

// APIKeyAuth gates requests on the X-API-Key header.
//
// With RequireAPIKey disabled every request passes through. When enabled,
// requests without a key get 401 and requests with a wrong key get 403. If
// auth is required but no keys are configured the middleware fails closed
// and rejects everything; Config.Validate reports that misconfiguration at
// startup.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			if !keyMatches(key, cfg.APIKeys) {
				logging.FromContext(r.Context()).Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// keyMatches checks key against every configured key using constant-time
// comparison, continuing through the whole list even after a match.
func keyMatches(key string, configured []string) bool {
	valid := 0
	for _, candidate := range configured {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(candidate))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
