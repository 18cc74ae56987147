package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"chatd/pkg/logger"
	"chatd/pkg/utils"
)

// Middleware authenticates every request: an API key resolves the role,
// signed X-User-ID / X-User-Signature headers resolve the acting user,
// and a per-key token bucket throttles abusive callers. Backend keys may
// supply an unsigned X-User-ID (trusted server-to-server impersonation,
// the master-key path).
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// health and metrics are probe-facing and unauthenticated
			if r.Method == http.MethodGet && (r.URL.Path == "/healthz" || r.URL.Path == "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			role, key := resolveRole(r, cfg)
			if role == RoleUnauth {
				logger.Warn("request_unauthenticated", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "missing or unknown api key")
				return
			}
			limKey := key
			if limKey == "" {
				limKey = clientIP(r)
			}
			if !limiters.Allow(limKey) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))
			if role != RoleBackend || sig != "" {
				if userID == "" || sig == "" {
					logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
					utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
					return
				}
				if !verifySignature(userID, sig, cfg.SigningKeys) {
					logger.Warn("invalid_signature", "user", userID)
					utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
					return
				}
			}
			if userID == "" && role != RoleBackend {
				utils.JSONError(w, http.StatusUnauthorized, "missing user identity")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveRole(r *http.Request, cfg SecConfig) (Role, string) {
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if key == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			key = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if key == "" {
		return RoleUnauth, ""
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key
	}
	return RoleUnauth, ""
}

// verifySignature checks hex(HMAC-SHA256(key, userID)) against every
// configured signing key.
func verifySignature(userID, sig string, keys map[string]struct{}) bool {
	for k := range keys {
		mac := hmac.New(sha256.New, []byte(k))
		mac.Write([]byte(userID))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// SignUserID computes the signature a client must present for a user id.
// Exported for tests and provisioning tools.
func SignUserID(signingKey, userID string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
