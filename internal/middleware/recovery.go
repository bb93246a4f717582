package middleware

import (
	"net/http"
	"runtime/debug"

	"lab-backend/internal/logger"
	"lab-backend/pkg/utils"
)

func PanicRecovery(next http.Handler) http.Handler {
	log := logger.WithComponent("recovery")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", r.URL.Path).
					Str("request_id", GetRequestID(r.Context())).Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
