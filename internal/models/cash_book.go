package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashBookEntryType is the column a manual entry books into
type CashBookEntryType string

const (
	CashBookEntryCashIn  CashBookEntryType = "CASH_IN"
	CashBookEntryCashOut CashBookEntryType = "CASH_OUT"
	CashBookEntryBankIn  CashBookEntryType = "BANK_IN"
	CashBookEntryBankOut CashBookEntryType = "BANK_OUT"
)

// Valid reports whether t is one of the four entry types
func (t CashBookEntryType) Valid() bool {
	switch t {
	case CashBookEntryCashIn, CashBookEntryCashOut, CashBookEntryBankIn, CashBookEntryBankOut:
		return true
	}
	return false
}

// CashBookEntry is a user-entered ledger line (rent, salary, manual receipt)
type CashBookEntry struct {
	ID              int               `json:"id"`
	TenantID        int               `json:"tenant_id"`
	EntryType       CashBookEntryType `json:"entry_type"`
	Amount          decimal.Decimal   `json:"amount"`
	Particulars     string            `json:"particulars"`
	Reference       string            `json:"reference"`
	Category        string            `json:"category"`
	PaymentMode     PaymentMode       `json:"payment_mode"`
	EntryDate       time.Time         `json:"entry_date"`
	CreatedByUserID int               `json:"created_by_user_id"`
	CreatedAt       time.Time         `json:"created_at"`
}

type CreateCashBookEntryRequest struct {
	EntryType   string          `json:"entry_type"`
	Amount      decimal.Decimal `json:"amount"`
	Particulars string          `json:"particulars"`
	Reference   string          `json:"reference"`
	Category    string          `json:"category"`
	PaymentMode string          `json:"payment_mode"`
	EntryDate   *time.Time      `json:"entry_date"`
}

// CashBookRowType is Dr (INWARD) or Cr (OUTWARD)
type CashBookRowType string

const (
	CashBookInward  CashBookRowType = "INWARD"
	CashBookOutward CashBookRowType = "OUTWARD"
)

// Cash book categories
const (
	CategoryPatientReceipt = "Patient Receipt"
	CategoryDueCollection  = "Due Collection"
	CategoryDoctorPayout   = "Doctor Payout"
	CategoryPurchase       = "Purchase"
	CategoryManualEntry    = "Manual Entry"
)

// CashBookRow is one derived line of the cash book. Never persisted.
type CashBookRow struct {
	Timestamp   time.Time       `json:"timestamp"`
	Reference   string          `json:"reference"`
	Particulars string          `json:"particulars"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	CashIn      decimal.Decimal `json:"cash_in"`
	BankIn      decimal.Decimal `json:"bank_in"`
	CashOut     decimal.Decimal `json:"cash_out"`
	BankOut     decimal.Decimal `json:"bank_out"`
	Type        CashBookRowType `json:"type"`
	Category    string          `json:"category"`
	RunningCash decimal.Decimal `json:"running_cash"`
	RunningBank decimal.Decimal `json:"running_bank"`
}

// CashBookSummary holds the column totals of a cash book
type CashBookSummary struct {
	TotalCashIn  decimal.Decimal `json:"total_cash_in"`
	TotalBankIn  decimal.Decimal `json:"total_bank_in"`
	TotalCashOut decimal.Decimal `json:"total_cash_out"`
	TotalBankOut decimal.Decimal `json:"total_bank_out"`
	ClosingCash  decimal.Decimal `json:"closing_cash"`
	ClosingBank  decimal.Decimal `json:"closing_bank"`
	RowCount     int             `json:"row_count"`
}

// CashBook is the aggregation result for one tenant and date range
type CashBook struct {
	TenantID    int             `json:"tenant_id"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	PaymentMode string          `json:"payment_mode,omitempty"`
	Rows        []CashBookRow   `json:"rows"`
	Summary     CashBookSummary `json:"summary"`
	// Partial is set when at least one source stream failed and contributed no rows
	Partial       bool     `json:"partial"`
	FailedStreams []string `json:"failed_streams,omitempty"`
}

// InvoiceReceipt is an invoice row as seen by the first-receipt stream
type InvoiceReceipt struct {
	InvoiceID     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PatientName   string          `json:"patient_name"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMode   PaymentMode     `json:"payment_mode"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DueCollection is a payment applied to an invoice after its creation
type DueCollection struct {
	InvoiceID     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PatientName   string          `json:"patient_name"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMode   PaymentMode     `json:"payment_mode"`
	CollectedAt   time.Time       `json:"collected_at"`
}
