package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout is money paid to a doctor or introducer against accrued commission. Immutable.
type Payout struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	DoctorID        int             `json:"doctor_id"`
	DoctorName      string          `json:"doctor_name,omitempty"` // Joined from doctors table
	Amount          decimal.Decimal `json:"amount"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	Reference       string          `json:"reference"`
	PaidAt          time.Time       `json:"paid_at"`
	Notes           string          `json:"notes"`
	CreatedByUserID int             `json:"created_by_user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

type CreatePayoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
	Reference   string          `json:"reference"`
	PaidAt      *time.Time      `json:"paid_at"`
	Notes       string          `json:"notes"`
}

// MonthlyAmount is a per-month total, Month formatted as YYYY-MM
type MonthlyAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyCommission is one row of the outstanding commission breakdown
type MonthlyCommission struct {
	Month  string          `json:"month"`
	Earned decimal.Decimal `json:"earned"`
	Paid   decimal.Decimal `json:"paid"`
}

// OutstandingCommission summarises what a doctor/introducer has earned and been paid
type OutstandingCommission struct {
	DoctorID         int                 `json:"doctor_id"`
	DoctorName       string              `json:"doctor_name"`
	TotalEarned      decimal.Decimal     `json:"total_earned"`
	TotalPaid        decimal.Decimal     `json:"total_paid"`
	Outstanding      decimal.Decimal     `json:"outstanding"`
	MonthlyBreakdown []MonthlyCommission `json:"monthly_breakdown"`
}
