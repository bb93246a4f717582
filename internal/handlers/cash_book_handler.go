package handlers

import (
	"fmt"
	"net/http"
	"time"

	"lab-backend/internal/models"
	"lab-backend/internal/services"
	"lab-backend/internal/timeutil"
	"lab-backend/pkg/utils"
)

type CashBookHandler struct {
	Service *services.CashBookService
}

func NewCashBookHandler(s *services.CashBookService) *CashBookHandler {
	return &CashBookHandler{Service: s}
}

// rangeQuery reads ?from=&to=&mode= of a cash book request
func rangeQuery(w http.ResponseWriter, r *http.Request) (from, to time.Time, mode string, ok bool) {
	q := r.URL.Query()
	from, to, err := timeutil.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		utils.RespondFieldError(w, http.StatusBadRequest, "from", err.Error())
		return from, to, "", false
	}
	return from, to, q.Get("mode"), true
}

// GetCashBook returns the merged cash book of a date range
func (h *CashBookHandler) GetCashBook(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := scope(w, r)
	if !ok {
		return
	}
	from, to, mode, ok := rangeQuery(w, r)
	if !ok {
		return
	}

	book, err := h.Service.Aggregate(r.Context(), tenantID, from, to, mode)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, book)
}

// ExportCashBook streams the cash book of a date range as a PDF
func (h *CashBookHandler) ExportCashBook(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := scope(w, r)
	if !ok {
		return
	}
	from, to, mode, ok := rangeQuery(w, r)
	if !ok {
		return
	}

	pdf, book, err := h.Service.Export(r.Context(), tenantID, from, to, mode)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("cashbook_%s_%s.pdf",
		timeutil.FormatIST(book.From, timeutil.DateLayout), timeutil.FormatIST(book.To, timeutil.DateLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// CreateEntry records a manual cash book entry
func (h *CashBookHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := scope(w, r)
	if !ok {
		return
	}
	var req models.CreateCashBookEntryRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.Service.CreateEntry(r.Context(), tenantID, userID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, entry)
}
