package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEventKind classifies a monetary movement on an invoice
type PaymentEventKind string

const (
	PaymentEventInitial       PaymentEventKind = "INITIAL"        // paid at invoice creation
	PaymentEventDueCollection PaymentEventKind = "DUE_COLLECTION" // any later top-up
	PaymentEventAdjustment    PaymentEventKind = "ADJUSTMENT"     // paid amount lowered by an edit
	PaymentEventRefund        PaymentEventKind = "REFUND"
)

// PaymentEvent is an append-only record written in the same transaction as the invoice change
type PaymentEvent struct {
	ID              int              `json:"id"`
	TenantID        int              `json:"tenant_id"`
	InvoiceID       int              `json:"invoice_id"`
	Kind            PaymentEventKind `json:"kind"`
	Amount          decimal.Decimal  `json:"amount"`
	PaymentMode     PaymentMode      `json:"payment_mode"`
	CreatedByUserID int              `json:"created_by_user_id"`
	CreatedAt       time.Time        `json:"created_at"`
}
