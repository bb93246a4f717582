package handlers

import (
	"net/http"

	"lab-backend/internal/models"
	"lab-backend/internal/services"
	"lab-backend/pkg/utils"
)

type DoctorHandler struct {
	Payouts *services.PayoutService
}

func NewDoctorHandler(payouts *services.PayoutService) *DoctorHandler {
	return &DoctorHandler{Payouts: payouts}
}

// GetOutstandingCommission returns earned, paid and outstanding commission by month
func (h *DoctorHandler) GetOutstandingCommission(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := scope(w, r)
	if !ok {
		return
	}
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	out, err := h.Payouts.GetOutstandingCommission(r.Context(), tenantID, doctorID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, out)
}

// CreatePayout records money paid out to a doctor
func (h *DoctorHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.CreatePayoutRequest
	if !decode(w, r, &req) {
		return
	}

	payout, err := h.Payouts.CreatePayout(r.Context(), tenantID, doctorID, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, payout)
}
