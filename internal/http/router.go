package http

import (
	"net/http"

	"lab-backend/internal/handlers"
	"lab-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Roles allowed to move money out of the lab
var payoutRoles = []string{"admin", "accountant"}

func NewRouter(
	invoiceHandler *handlers.InvoiceHandler,
	commissionHandler *handlers.CommissionHandler,
	cashBookHandler *handlers.CashBookHandler,
	doctorHandler *handlers.DoctorHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	// Protected API routes - Invoices
	invoicesAPI := r.PathPrefix("/api/invoices").Subrouter()
	invoicesAPI.Use(authMiddleware.Authenticate)
	invoicesAPI.HandleFunc("", invoiceHandler.CreateInvoice).Methods("POST")
	invoicesAPI.HandleFunc("/{id:[0-9]+}", invoiceHandler.GetInvoice).Methods("GET")
	invoicesAPI.HandleFunc("/{id:[0-9]+}", invoiceHandler.UpdateInvoice).Methods("PUT")
	invoicesAPI.HandleFunc("/{id:[0-9]+}/payments", invoiceHandler.ApplyPayment).Methods("POST")
	invoicesAPI.HandleFunc("/{id:[0-9]+}/refunds", invoiceHandler.Refund).Methods("POST")

	// Protected API routes - Commission
	commissionAPI := r.PathPrefix("/api/commission").Subrouter()
	commissionAPI.Use(authMiddleware.Authenticate)
	commissionAPI.HandleFunc("/preview", commissionHandler.Preview).Methods("POST")

	// Protected API routes - Cash book
	cashBookAPI := r.PathPrefix("/api/cash-book").Subrouter()
	cashBookAPI.Use(authMiddleware.Authenticate)
	cashBookAPI.HandleFunc("", cashBookHandler.GetCashBook).Methods("GET")
	cashBookAPI.HandleFunc("/export", cashBookHandler.ExportCashBook).Methods("GET")
	cashBookAPI.HandleFunc("/entries", cashBookHandler.CreateEntry).Methods("POST")

	// Protected API routes - Doctors
	doctorsAPI := r.PathPrefix("/api/doctors").Subrouter()
	doctorsAPI.Use(authMiddleware.Authenticate)
	doctorsAPI.HandleFunc("/{id:[0-9]+}/commission", doctorHandler.GetOutstandingCommission).Methods("GET")
	doctorsAPI.Handle("/{id:[0-9]+}/payouts",
		authMiddleware.RequireRole(payoutRoles...)(http.HandlerFunc(doctorHandler.CreatePayout))).Methods("POST")

	// Health endpoints (no auth)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
