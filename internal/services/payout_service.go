package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lab-backend/internal/cache"
	"lab-backend/internal/logger"
	"lab-backend/internal/models"
	"lab-backend/internal/money"
	"lab-backend/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PayoutStore interface {
	CreatePayout(ctx context.Context, payout *models.Payout) error
	MonthlyPayouts(ctx context.Context, tenantID, doctorID int) ([]models.MonthlyAmount, error)
}

// EarningsSource sums commission earned as doctor and as introducer per month, excluding refunded invoices
type EarningsSource interface {
	MonthlyEarnings(ctx context.Context, tenantID, doctorID int) ([]models.MonthlyAmount, error)
}

type PayoutService struct {
	Doctors  DoctorLookup
	Payouts  PayoutStore
	Earnings EarningsSource
	Audit    AuditTrail
	log      zerolog.Logger
}

func NewPayoutService(doctors DoctorLookup, payouts PayoutStore, earnings EarningsSource, audit AuditTrail) *PayoutService {
	return &PayoutService{
		Doctors:  doctors,
		Payouts:  payouts,
		Earnings: earnings,
		Audit:    audit,
		log:      logger.WithComponent("payout"),
	}
}

func (s *PayoutService) doctor(ctx context.Context, tenantID, doctorID int) (*models.Doctor, error) {
	d, err := s.Doctors.GetDoctor(ctx, tenantID, doctorID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &NotFoundError{Entity: "doctor", ID: doctorID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	return d, nil
}

// CreatePayout records money paid to a doctor or introducer. It is not capped by the
// outstanding balance.
func (s *PayoutService) CreatePayout(ctx context.Context, tenantID, doctorID, userID int, req *models.CreatePayoutRequest) (*models.Payout, error) {
	if !req.Amount.IsPositive() {
		return nil, invalidAmount("amount", "must be > 0, got %s", req.Amount.StringFixed(2))
	}
	mode, err := parseMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}
	d, err := s.doctor(ctx, tenantID, doctorID)
	if err != nil {
		return nil, err
	}

	payout := &models.Payout{
		TenantID:        tenantID,
		DoctorID:        d.ID,
		DoctorName:      d.Name,
		Amount:          money.Round(req.Amount),
		PaymentMode:     mode,
		Reference:       strings.TrimSpace(req.Reference),
		PaidAt:          time.Now(),
		Notes:           req.Notes,
		CreatedByUserID: userID,
	}
	if req.PaidAt != nil {
		payout.PaidAt = *req.PaidAt
	}
	if err := s.Payouts.CreatePayout(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	s.log.Info().Int("tenant_id", tenantID).Int("doctor_id", d.ID).Int("payout_id", payout.ID).
		Str("amount", payout.Amount.StringFixed(2)).Str("mode", string(mode)).Msg("payout recorded")

	event := &models.AuditEvent{
		TenantID:   tenantID,
		EntityType: models.EntityTypePayout,
		EntityID:   payout.ID,
		Action:     models.AuditActionCreate,
	}
	if userID > 0 {
		event.UserID = &userID
	}
	writeAudit(ctx, s.Audit, s.log, event, nil, map[string]interface{}{
		"doctorId":    d.ID,
		"amount":      amount(payout.Amount),
		"paymentMode": mode,
		"reference":   payout.Reference,
	})
	cache.InvalidateCashBook(ctx, tenantID)
	return payout, nil
}

// GetOutstandingCommission is earned minus paid, with a per-month breakdown in ascending order
func (s *PayoutService) GetOutstandingCommission(ctx context.Context, tenantID, doctorID int) (*models.OutstandingCommission, error) {
	d, err := s.doctor(ctx, tenantID, doctorID)
	if err != nil {
		return nil, err
	}
	earned, err := s.Earnings.MonthlyEarnings(ctx, tenantID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earnings: %w", err)
	}
	paid, err := s.Payouts.MonthlyPayouts(ctx, tenantID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts: %w", err)
	}

	return mergeOutstanding(d, earned, paid), nil
}

func mergeOutstanding(d *models.Doctor, earned, paid []models.MonthlyAmount) *models.OutstandingCommission {
	byMonth := make(map[string]*models.MonthlyCommission)
	row := func(month string) *models.MonthlyCommission {
		m, ok := byMonth[month]
		if !ok {
			m = &models.MonthlyCommission{Month: month, Earned: decimal.Zero, Paid: decimal.Zero}
			byMonth[month] = m
		}
		return m
	}

	out := &models.OutstandingCommission{
		DoctorID:    d.ID,
		DoctorName:  d.Name,
		TotalEarned: decimal.Zero,
		TotalPaid:   decimal.Zero,
	}
	for _, e := range earned {
		m := row(e.Month)
		m.Earned = m.Earned.Add(e.Amount)
		out.TotalEarned = out.TotalEarned.Add(e.Amount)
	}
	for _, p := range paid {
		m := row(p.Month)
		m.Paid = m.Paid.Add(p.Amount)
		out.TotalPaid = out.TotalPaid.Add(p.Amount)
	}
	out.Outstanding = out.TotalEarned.Sub(out.TotalPaid)

	out.MonthlyBreakdown = make([]models.MonthlyCommission, 0, len(byMonth))
	for _, m := range byMonth {
		out.MonthlyBreakdown = append(out.MonthlyBreakdown, *m)
	}
	sort.Slice(out.MonthlyBreakdown, func(i, j int) bool {
		return out.MonthlyBreakdown[i].Month < out.MonthlyBreakdown[j].Month
	})
	return out
}
