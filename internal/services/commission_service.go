package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lab-backend/internal/logger"
	"lab-backend/internal/models"
	"lab-backend/internal/money"
	"lab-backend/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DepartmentMRI  = "MRI"
	IntroducerSelf = "SELF"

	// DefaultTieBreakWindow is how far back referral cases are counted for the split tie-break
	DefaultTieBreakWindow = 30 * 24 * time.Hour
)

// CommissionInput is everything the decision needs about one invoice
type CommissionInput struct {
	TenantID      int
	Department    string
	DoctorID      *int
	IntroducerID  *int
	IntroducerRaw string
	NetAmount     decimal.Decimal
}

// HasRealIntroducer reports whether an introducer other than a self-referral is present
func (in CommissionInput) HasRealIntroducer() bool {
	return in.IntroducerID != nil && !strings.EqualFold(strings.TrimSpace(in.IntroducerRaw), IntroducerSelf)
}

func (in CommissionInput) isMRI() bool {
	return strings.EqualFold(strings.TrimSpace(in.Department), DepartmentMRI)
}

// CaseCounts are the trailing-window referral counts used by the tie-break
type CaseCounts struct {
	Doctor     int
	Introducer int
}

// CommissionConfig is the referring doctor's commission setup
type CommissionConfig struct {
	Type     models.CommissionType
	Value    decimal.Decimal
	Resolved bool
}

// UnresolvedCommissionConfig is used when the doctor id does not resolve to a configured doctor.
// The mode is still decided normally; every amount comes out zero.
var UnresolvedCommissionConfig = CommissionConfig{Type: models.CommissionTypeFixed, Value: decimal.Zero}

// ConfigFromDoctor reads the commission setup off a doctor record
func ConfigFromDoctor(d *models.Doctor) CommissionConfig {
	if d == nil {
		return UnresolvedCommissionConfig
	}
	switch d.CommissionType {
	case models.CommissionTypeFixed, models.CommissionTypePercentage:
		return CommissionConfig{Type: d.CommissionType, Value: d.CommissionValue, Resolved: true}
	}
	return UnresolvedCommissionConfig
}

// base is the unrounded total commission
func (c CommissionConfig) base(net decimal.Decimal) decimal.Decimal {
	if c.Type == models.CommissionTypePercentage {
		return money.Percent(net, c.Value)
	}
	return c.Value
}

// DecideCommission picks the commission mode and splits the total between doctor and introducer.
//
//	MRI      + real introducer -> SPLIT
//	non-MRI  + real introducer -> INTRODUCER, or SPLIT when both case counts are equal and > 0
//	no/SELF introducer         -> DOCTOR
//	no doctor                  -> NONE
func DecideCommission(in CommissionInput, cfg CommissionConfig, counts CaseCounts) models.CommissionResult {
	if in.DoctorID == nil {
		return models.CommissionResult{
			Mode:                 models.CommissionModeNone,
			DoctorCommission:     decimal.Zero,
			IntroducerCommission: decimal.Zero,
			TotalCommission:      decimal.Zero,
			ConfigResolved:       true,
		}
	}

	mode := models.CommissionModeDoctor
	if in.HasRealIntroducer() {
		switch {
		case in.isMRI():
			mode = models.CommissionModeSplit
		case counts.Doctor > 0 && counts.Doctor == counts.Introducer:
			mode = models.CommissionModeSplit
		default:
			mode = models.CommissionModeIntroducer
		}
	}

	total := money.Round(cfg.base(in.NetAmount))
	result := models.CommissionResult{
		Mode:            mode,
		TotalCommission: total,
		ConfigResolved:  cfg.Resolved,
	}

	switch mode {
	case models.CommissionModeDoctor:
		result.DoctorCommission = total
		result.IntroducerCommission = decimal.Zero
	case models.CommissionModeIntroducer:
		result.DoctorCommission = decimal.Zero
		result.IntroducerCommission = total
	case models.CommissionModeSplit:
		// introducer takes the remainder so the two halves always sum to the total
		result.DoctorCommission = money.Round(money.Half(total))
		result.IntroducerCommission = total.Sub(result.DoctorCommission)
	}
	return result
}

// CaseCountLookup counts invoices referred by a doctor or an introducer since a point in time
type CaseCountLookup interface {
	CountDoctorCases(ctx context.Context, tenantID, doctorID int, since time.Time) (int, error)
	CountIntroducerCases(ctx context.Context, tenantID, introducerID int, since time.Time) (int, error)
}

// DoctorLookup resolves a doctor or introducer within a tenant
type DoctorLookup interface {
	GetDoctor(ctx context.Context, tenantID, id int) (*models.Doctor, error)
}

type CommissionService struct {
	Doctors DoctorLookup
	Cases   CaseCountLookup
	Window  time.Duration
	Now     func() time.Time
	log     zerolog.Logger
}

func NewCommissionService(doctors DoctorLookup, cases CaseCountLookup, window time.Duration) *CommissionService {
	if window <= 0 {
		window = DefaultTieBreakWindow
	}
	return &CommissionService{
		Doctors: doctors,
		Cases:   cases,
		Window:  window,
		Now:     time.Now,
		log:     logger.WithComponent("commission"),
	}
}

// Compute resolves the doctor's configuration and the tie-break counts, then decides.
// Counts are looked up fresh on every call.
func (s *CommissionService) Compute(ctx context.Context, in CommissionInput) (models.CommissionResult, error) {
	if in.DoctorID == nil {
		return DecideCommission(in, UnresolvedCommissionConfig, CaseCounts{}), nil
	}

	cfg := UnresolvedCommissionConfig
	doctor, err := s.Doctors.GetDoctor(ctx, in.TenantID, *in.DoctorID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		s.log.Warn().Int("tenant_id", in.TenantID).Int("doctor_id", *in.DoctorID).
			Msg("doctor not found, commission falls back to zero")
	case err != nil:
		return models.CommissionResult{}, fmt.Errorf("failed to load doctor %d: %w", *in.DoctorID, err)
	default:
		cfg = ConfigFromDoctor(doctor)
		if !cfg.Resolved {
			s.log.Warn().Int("doctor_id", doctor.ID).Str("commission_type", string(doctor.CommissionType)).
				Msg("doctor has no usable commission configuration")
		}
	}

	var counts CaseCounts
	if in.HasRealIntroducer() && !in.isMRI() {
		since := s.Now().Add(-s.Window)
		counts.Doctor, err = s.Cases.CountDoctorCases(ctx, in.TenantID, *in.DoctorID, since)
		if err != nil {
			return models.CommissionResult{}, fmt.Errorf("failed to count doctor cases: %w", err)
		}
		counts.Introducer, err = s.Cases.CountIntroducerCases(ctx, in.TenantID, *in.IntroducerID, since)
		if err != nil {
			return models.CommissionResult{}, fmt.Errorf("failed to count introducer cases: %w", err)
		}
	}

	return DecideCommission(in, cfg, counts), nil
}

// Preview computes the split for a prospective invoice without writing anything
func (s *CommissionService) Preview(ctx context.Context, tenantID int, req *models.CommissionPreviewRequest) (models.CommissionResult, error) {
	if req.NetAmount.IsNegative() {
		return models.CommissionResult{}, invalidAmount("net_amount", "must be >= 0, got %s", req.NetAmount.StringFixed(2))
	}
	introducerID := ResolveIntroducerID(req.IntroducerID, req.Introducer)
	if err := s.RequireIntroducer(ctx, tenantID, introducerID); err != nil {
		return models.CommissionResult{}, err
	}
	return s.Compute(ctx, CommissionInput{
		TenantID:      tenantID,
		Department:    req.Department,
		DoctorID:      req.DoctorID,
		IntroducerID:  introducerID,
		IntroducerRaw: req.Introducer,
		NetAmount:     req.NetAmount,
	})
}

// RequireIntroducer checks that a resolved introducer id exists in the tenant. A nil id passes.
func (s *CommissionService) RequireIntroducer(ctx context.Context, tenantID int, id *int) error {
	if id == nil {
		return nil
	}
	if _, err := s.Doctors.GetDoctor(ctx, tenantID, *id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Entity: "introducer", ID: *id}
		}
		return fmt.Errorf("failed to load introducer: %w", err)
	}
	return nil
}

// ResolveIntroducerID returns the explicit id, or the raw form value when it is a numeric id
func ResolveIntroducerID(id *int, raw string) *int {
	if id != nil {
		return id
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, IntroducerSelf) {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
