package models

import (
	"encoding/json"
	"time"
)

// Audited entity types
const (
	EntityTypeInvoice = "INVOICE"
	EntityTypePayout  = "PAYOUT"
)

// Audit actions
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionRefund = "REFUND"
)

// AuditEvent is one append-only state-change record. Incremental invoice payments are
// stored as UPDATE events whose NewValues carry a paidAmount field.
type AuditEvent struct {
	ID         int             `json:"id" db:"id"`
	TenantID   int             `json:"tenant_id" db:"tenant_id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   int             `json:"entity_id" db:"entity_id"`
	Action     string          `json:"action" db:"action"`
	OldValues  json.RawMessage `json:"old_values,omitempty" db:"old_values"`
	NewValues  json.RawMessage `json:"new_values,omitempty" db:"new_values"`
	UserID     *int            `json:"user_id,omitempty" db:"user_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
