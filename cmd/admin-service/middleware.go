package main

import (
	"net/http"

	"ride-sim/pkg/auth"
	"ride-sim/pkg/logger"
)

// audit logs every admin request with the caller's id. It must run after
// the auth middleware.
func audit(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := logger.LogFields{
			"method": r.Method,
			"path":   r.URL.Path,
		}
		if claims, ok := auth.GetClaims(r.Context()); ok {
			fields["admin_id"] = claims.UserID
		}
		log.WithFields(fields).Info("admin_request", "Admin request")

		next.ServeHTTP(w, r)
	})
}
