package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LabTest is a catalog test as priced at invoice time
type LabTest struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	GSTPercentage decimal.Decimal `json:"gst_percentage"`
}

// Patient is the subset of patient data billing needs
type Patient struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Report record statuses. Only PENDING records may be retracted by an invoice edit.
const (
	ReportStatusPending   = "PENDING"
	ReportStatusCompleted = "COMPLETED"
	ReportStatusVerified  = "VERIFIED"
)

// ReportRecord is the pending result slot created for each test on an invoice
type ReportRecord struct {
	ID        int       `json:"id"`
	InvoiceID int       `json:"invoice_id"`
	TestID    int       `json:"test_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Purchase invoice statuses
const (
	PurchaseStatusPending = "PENDING"
	PurchaseStatusPartial = "PARTIAL"
	PurchaseStatusPaid    = "PAID"
)

// PurchaseInvoice is a supplier bill, read-only to billing
type PurchaseInvoice struct {
	ID            int             `json:"id"`
	TenantID      int             `json:"tenant_id"`
	InvoiceNumber string          `json:"invoice_number"`
	SupplierName  string          `json:"supplier_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaymentMode   PaymentMode     `json:"payment_mode"`
	PurchaseDate  time.Time       `json:"purchase_date"`
}
