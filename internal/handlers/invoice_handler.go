package handlers

import (
	"net/http"

	"lab-backend/internal/models"
	"lab-backend/internal/services"
	"lab-backend/pkg/utils"
)

type InvoiceHandler struct {
	Service *services.InvoiceService
}

func NewInvoiceHandler(s *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Service: s}
}

// CreateInvoice creates a new invoice
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	var req models.CreateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}

	invoice, err := h.Service.Create(r.Context(), tenantID, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, invoice)
}

// UpdateInvoice re-specifies items, discount and referral of an invoice
func (h *InvoiceHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.UpdateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}

	invoice, err := h.Service.Update(r.Context(), tenantID, id, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoice)
}

// GetInvoice retrieves an invoice by ID
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := scope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	invoice, err := h.Service.Get(r.Context(), tenantID, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoice)
}

// ApplyPayment collects money against the balance
func (h *InvoiceHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.ApplyPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	invoice, err := h.Service.ApplyPayment(r.Context(), tenantID, id, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) Refund(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.RefundRequest
	if !decode(w, r, &req) {
		return
	}

	invoice, err := h.Service.Refund(r.Context(), tenantID, id, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoice)
}
