package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the monetary state of an invoice
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPartial  PaymentStatus = "PARTIAL"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PaymentMode is how money changed hands. CASH goes to the cash column, everything else to bank.
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "CASH"
	PaymentModeCard         PaymentMode = "CARD"
	PaymentModeUPI          PaymentMode = "UPI"
	PaymentModeBankTransfer PaymentMode = "BANK_TRANSFER"
	PaymentModeCheque       PaymentMode = "CHEQUE"
	PaymentModeOnline       PaymentMode = "ONLINE"
)

// NormalizePaymentMode upper-cases a mode and defaults empty input to CASH
func NormalizePaymentMode(s string) PaymentMode {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PaymentModeCash
	}
	return PaymentMode(s)
}

// IsCash reports whether the mode is booked in the cash column
func (m PaymentMode) IsCash() bool {
	return m == "" || m == PaymentModeCash
}

// Valid reports whether the mode is one of the known modes
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCard, PaymentModeUPI, PaymentModeBankTransfer,
		PaymentModeCheque, PaymentModeOnline:
		return true
	}
	return false
}

// Invoice is one billing transaction for a patient visit
type Invoice struct {
	ID                   int             `json:"id"`
	InvoiceNumber        string          `json:"invoice_number"`
	TenantID             int             `json:"tenant_id"`
	BranchID             *int            `json:"branch_id,omitempty"`
	PatientID            int             `json:"patient_id"`
	PatientName          string          `json:"patient_name,omitempty"` // Joined from patients table
	DoctorID             *int            `json:"doctor_id"`
	IntroducerID         *int            `json:"introducer_id"`
	IntroducerRaw        string          `json:"introducer_raw,omitempty"` // "SELF" or the id as entered
	Department           string          `json:"department"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	NetAmount            decimal.Decimal `json:"net_amount"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	RefundAmount         decimal.Decimal `json:"refund_amount"`
	BalanceAmount        decimal.Decimal `json:"balance_amount"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentMode          PaymentMode     `json:"payment_mode"`
	CommissionMode       CommissionMode  `json:"commission_mode"`
	DoctorCommission     decimal.Decimal `json:"doctor_commission"`
	IntroducerCommission decimal.Decimal `json:"introducer_commission"`
	Notes                string          `json:"notes"`
	CreatedByUserID      int             `json:"created_by_user_id"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Items                []InvoiceItem   `json:"items,omitempty"`
}

// InvoiceItem is one test line on an invoice
type InvoiceItem struct {
	ID            int             `json:"id"`
	InvoiceID     int             `json:"invoice_id"`
	TestID        int             `json:"test_id"`
	TestName      string          `json:"test_name"`
	Price         decimal.Decimal `json:"price"`
	GSTPercentage decimal.Decimal `json:"gst_percentage"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LineItemInput is a requested test line
type LineItemInput struct {
	TestID int `json:"test_id"`
}

// CreateInvoiceRequest represents the request to create an invoice
type CreateInvoiceRequest struct {
	PatientID    int             `json:"patient_id"`
	DoctorID     *int            `json:"doctor_id"`
	IntroducerID *int            `json:"introducer_id"`
	Introducer   string          `json:"introducer"` // raw form value, "SELF" for self-referral
	Department   string          `json:"department"`
	LineItems    []LineItemInput `json:"line_items"`
	Discount     decimal.Decimal `json:"discount"`
	PaymentMode  string          `json:"payment_mode"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Notes        string          `json:"notes"`
}

// UpdateInvoiceRequest re-specifies an invoice. PaidAmount is kept when nil.
type UpdateInvoiceRequest struct {
	DoctorID     *int             `json:"doctor_id"`
	IntroducerID *int             `json:"introducer_id"`
	Introducer   string           `json:"introducer"`
	Department   string           `json:"department"`
	LineItems    []LineItemInput  `json:"line_items"`
	Discount     decimal.Decimal  `json:"discount"`
	PaymentMode  string           `json:"payment_mode"`
	PaidAmount   *decimal.Decimal `json:"paid_amount"`
	Notes        string           `json:"notes"`
}

// ApplyPaymentRequest is an incremental top-up against the balance
type ApplyPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
}

// RefundRequest returns money already collected on an invoice
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// TestIDs returns the test ids of the invoice lines
func (inv *Invoice) TestIDs() []int {
	ids := make([]int, 0, len(inv.Items))
	for _, item := range inv.Items {
		ids = append(ids, item.TestID)
	}
	return ids
}
