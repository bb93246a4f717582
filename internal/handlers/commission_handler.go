package handlers

import (
	"net/http"

	"lab-backend/internal/models"
	"lab-backend/internal/services"
	"lab-backend/pkg/utils"
)

type CommissionHandler struct {
	Service *services.CommissionService
}

func NewCommissionHandler(s *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{Service: s}
}

// Preview returns the commission split for a prospective invoice without saving anything
func (h *CommissionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := scope(w, r)
	if !ok {
		return
	}
	var req models.CommissionPreviewRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.Preview(r.Context(), tenantID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}
