package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType is how a doctor's commission is configured
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "PERCENTAGE"
	CommissionTypeFixed      CommissionType = "FIXED"
)

// CommissionMode is the outcome of the attribution decision for one invoice
type CommissionMode string

const (
	CommissionModeNone       CommissionMode = "NONE"
	CommissionModeDoctor     CommissionMode = "DOCTOR"     // 100% to the referring doctor
	CommissionModeIntroducer CommissionMode = "INTRODUCER" // 100% to the introducer
	CommissionModeSplit      CommissionMode = "SPLIT"      // 50/50
)

// Doctor is a referring party. Introducers use the same record with IsIntroducer set.
type Doctor struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	IsIntroducer    bool            `json:"is_introducer"`
	CommissionType  CommissionType  `json:"commission_type"`
	CommissionValue decimal.Decimal `json:"commission_value"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CommissionResult is what the commission engine decides for one invoice
type CommissionResult struct {
	Mode                 CommissionMode  `json:"mode"`
	DoctorCommission     decimal.Decimal `json:"doctor_commission"`
	IntroducerCommission decimal.Decimal `json:"introducer_commission"`
	TotalCommission      decimal.Decimal `json:"total_commission"`
	// ConfigResolved is false when a doctor was given but had no usable commission setup
	ConfigResolved bool `json:"config_resolved"`
}

// CommissionPreviewRequest asks for the split without committing anything
type CommissionPreviewRequest struct {
	DoctorID     *int            `json:"doctor_id"`
	IntroducerID *int            `json:"introducer_id"`
	Introducer   string          `json:"introducer"`
	Department   string          `json:"department"`
	NetAmount    decimal.Decimal `json:"net_amount"`
}
