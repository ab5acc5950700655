package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/arunavo4/turns-management-sub001/platform/go/auth"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo so services can stamp
// audit fields without reaching back into the HTTP layer. It must run after the auth
// middleware so user credentials are available when present. The client IP (chi RealIP
// has already normalized RemoteAddr) and User-Agent ride along for the audit trail.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		var audit requesttrace.AuditInfo
		if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
			var err error
			audit, err = requesttrace.FromCredentials(creds, requestID)
			if err != nil {
				if logger != nil {
					logger.Error("build audit info from credentials", zap.Error(err))
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else {
			audit = requesttrace.Anonymous(requestID)
		}

		audit.IPAddress = r.RemoteAddr
		audit.UserAgent = r.UserAgent()

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger != nil {
			fields := []zap.Field{zap.String("actor_kind", string(audit.ActorKind))}
			if audit.UserID != nil && *audit.UserID != "" {
				fields = append(fields, zap.String("user_id", *audit.UserID))
			}
			logger = logger.With(fields...)
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
