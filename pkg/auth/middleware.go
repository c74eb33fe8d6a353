package auth

import (
	"net/http"
	"strings"

	apperrors "classbook/pkg/errors"
	httputil "classbook/pkg/http"
	"classbook/pkg/logger"
)

// Authenticate verifies the bearer token on every request and injects
// the resulting Identity into the context. Requests without a valid
// token never reach the application handlers.
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				writeAuthError(w, log, apperrors.Unauthorized("Missing bearer token"))
				return
			}

			identity, err := ParseToken(secret, tokenString)
			if err != nil {
				log.Warn("Token verification failed",
					"path", r.URL.Path,
					"error", err,
				)
				writeAuthError(w, log, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireStaff rejects non-staff identities. Must run after Authenticate.
func RequireStaff(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := FromContext(r.Context())
			if !ok {
				writeAuthError(w, log, apperrors.Unauthorized("Authentication required"))
				return
			}
			if !identity.IsStaff {
				log.Warn("Staff-only endpoint denied",
					"path", r.URL.Path,
					"user_id", identity.UserID,
				)
				writeAuthError(w, log, apperrors.Forbidden("Staff access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthError(w http.ResponseWriter, log *logger.Logger, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write auth error response", "error", writeErr)
	}
}
