package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lab-backend/internal/logger"
	"lab-backend/internal/middleware"
	"lab-backend/internal/services"
	"lab-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// respondServiceError maps typed service errors onto status codes. Anything untyped is a 500
// whose detail stays in the log.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *services.ValidationError
	var notFound *services.NotFoundError
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &validation):
		utils.RespondFieldError(w, http.StatusBadRequest, validation.Field, validation.Error())
	case errors.As(err, &notFound):
		utils.RespondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		utils.RespondError(w, http.StatusConflict, conflict.Message)
	default:
		log := logger.WithRequestID(middleware.GetRequestID(r.Context()))
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// scope returns the tenant and user of an authenticated request
func scope(w http.ResponseWriter, r *http.Request) (tenantID, userID int, ok bool) {
	tenantID, ok = middleware.GetTenantIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, 0, false
	}
	userID, _ = middleware.GetUserIDFromContext(r.Context())
	return tenantID, userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
