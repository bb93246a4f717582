package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lab-backend/internal/cache"
	"lab-backend/internal/logger"
	"lab-backend/internal/metrics"
	"lab-backend/internal/models"
	"lab-backend/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InvoiceStore runs invoice mutations inside one database transaction
type InvoiceStore interface {
	WithTx(ctx context.Context, fn func(tx repositories.InvoiceTx) error) error
	GetInvoice(ctx context.Context, tenantID, id int) (*models.Invoice, error)
}

// Catalog resolves tests and patients at invoice time
type Catalog interface {
	GetTests(ctx context.Context, tenantID int, ids []int) (map[int]models.LabTest, error)
	GetPatient(ctx context.Context, tenantID, id int) (*models.Patient, error)
}

// AuditTrail is the append side of the audit log
type AuditTrail interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// InvoiceNotifier is told about new invoices after commit
type InvoiceNotifier interface {
	NotifyInvoiceCreated(ctx context.Context, patient *models.Patient, invoice *models.Invoice) error
}

type InvoiceService struct {
	Store      InvoiceStore
	Catalog    Catalog
	Commission *CommissionService
	Audit      AuditTrail
	Notifier   InvoiceNotifier

	notifyTimeout time.Duration
	log           zerolog.Logger
}

func NewInvoiceService(store InvoiceStore, catalog Catalog, commission *CommissionService, audit AuditTrail, notifier InvoiceNotifier) *InvoiceService {
	return &InvoiceService{
		Store:         store,
		Catalog:       catalog,
		Commission:    commission,
		Audit:         audit,
		Notifier:      notifier,
		notifyTimeout: 15 * time.Second,
		log:           logger.WithComponent("invoice"),
	}
}

// Get returns an invoice with its line items
func (s *InvoiceService) Get(ctx context.Context, tenantID, id int) (*models.Invoice, error) {
	inv, err := s.Store.GetInvoice(ctx, tenantID, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &NotFoundError{Entity: "invoice", ID: id}
	}
	return inv, err
}

// referral is the doctor/introducer part of a create or update request, already checked
type referral struct {
	doctorID      *int
	introducerID  *int
	introducerRaw string
}

func (s *InvoiceService) resolveReferral(ctx context.Context, tenantID int, doctorID, introducerID *int, raw string) (referral, error) {
	ref := referral{
		doctorID:      doctorID,
		introducerID:  ResolveIntroducerID(introducerID, raw),
		introducerRaw: strings.TrimSpace(raw),
	}
	if ref.introducerID != nil && ref.doctorID == nil {
		return ref, &ValidationError{Field: "doctor_id", Message: "a referring doctor is required when an introducer is given"}
	}
	if err := s.Commission.RequireIntroducer(ctx, tenantID, ref.introducerID); err != nil {
		return ref, err
	}
	return ref, nil
}

func (s *InvoiceService) price(ctx context.Context, tenantID int, lines []models.LineItemInput, discount decimal.Decimal) (Totals, error) {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.TestID)
	}
	tests, err := s.Catalog.GetTests(ctx, tenantID, ids)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to load tests: %w", err)
	}
	return PriceItems(lines, tests, discount)
}

func parseMode(raw string) (models.PaymentMode, error) {
	mode := models.NormalizePaymentMode(raw)
	if !mode.Valid() {
		return "", &ValidationError{Field: "payment_mode", Message: fmt.Sprintf("unknown payment mode %q", raw)}
	}
	return mode, nil
}

// Create registers an invoice together with its line items, pending report records and the
// initial payment event in one transaction.
func (s *InvoiceService) Create(ctx context.Context, tenantID, userID int, req *models.CreateInvoiceRequest) (inv *models.Invoice, err error) {
	defer func() { observeTransition("create", err) }()

	if req.PatientID <= 0 {
		return nil, &ValidationError{Field: "patient_id", Message: "is required"}
	}
	mode, err := parseMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}
	ref, err := s.resolveReferral(ctx, tenantID, req.DoctorID, req.IntroducerID, req.Introducer)
	if err != nil {
		return nil, err
	}

	patient, err := s.Catalog.GetPatient(ctx, tenantID, req.PatientID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &NotFoundError{Entity: "patient", ID: req.PatientID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	totals, err := s.price(ctx, tenantID, req.LineItems, req.Discount)
	if err != nil {
		return nil, err
	}
	paid := req.PaidAmount
	if err := validatePaid(paid, totals.Net, decimal.Zero); err != nil {
		return nil, err
	}

	commission, err := s.Commission.Compute(ctx, CommissionInput{
		TenantID:      tenantID,
		Department:    req.Department,
		DoctorID:      ref.doctorID,
		IntroducerID:  ref.introducerID,
		IntroducerRaw: ref.introducerRaw,
		NetAmount:     totals.Net,
	})
	if err != nil {
		return nil, err
	}

	inv = &models.Invoice{
		TenantID:        tenantID,
		PatientID:       patient.ID,
		PatientName:     patient.Name,
		DoctorID:        ref.doctorID,
		IntroducerID:    ref.introducerID,
		IntroducerRaw:   ref.introducerRaw,
		Department:      strings.TrimSpace(req.Department),
		TotalAmount:     totals.Total,
		TaxAmount:       totals.Tax,
		DiscountAmount:  totals.Discount,
		NetAmount:       totals.Net,
		PaidAmount:      paid,
		RefundAmount:    decimal.Zero,
		PaymentMode:     mode,
		Notes:           req.Notes,
		CreatedByUserID: userID,
		Items:           totals.Items,
	}
	setCommission(inv, commission)
	settle(inv)

	err = s.Store.WithTx(ctx, func(tx repositories.InvoiceTx) error {
		number, err := tx.NextInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}
		if err := tx.CreatePendingReports(ctx, inv.ID, inv.TestIDs()); err != nil {
			return err
		}
		if paid.IsPositive() {
			return tx.AppendPaymentEvent(ctx, &models.PaymentEvent{
				TenantID:        tenantID,
				InvoiceID:       inv.ID,
				Kind:            models.PaymentEventInitial,
				Amount:          paid,
				PaymentMode:     mode,
				CreatedByUserID: userID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeError("create invoice", err)
	}

	s.log.Info().Int("tenant_id", tenantID).Int("invoice_id", inv.ID).Str("invoice_number", inv.InvoiceNumber).
		Str("net", inv.NetAmount.StringFixed(2)).Str("status", string(inv.PaymentStatus)).Msg("invoice created")

	s.audit(ctx, tenantID, inv.ID, userID, models.AuditActionCreate, nil, map[string]interface{}{
		"invoiceNumber":  inv.InvoiceNumber,
		"netAmount":      amount(inv.NetAmount),
		"initialPaid":    amount(inv.PaidAmount),
		"paymentMode":    inv.PaymentMode,
		"paymentStatus":  inv.PaymentStatus,
		"commissionMode": inv.CommissionMode,
	})
	cache.InvalidateCashBook(ctx, tenantID)
	s.notify(patient, inv)
	return inv, nil
}

// Update re-specifies the line items, discount and referral of an invoice. The paid amount is
// kept unless supplied. Pending reports follow the test diff; completed ones are never removed.
func (s *InvoiceService) Update(ctx context.Context, tenantID, invoiceID, userID int, req *models.UpdateInvoiceRequest) (inv *models.Invoice, err error) {
	defer func() { observeTransition("update", err) }()

	ref, err := s.resolveReferral(ctx, tenantID, req.DoctorID, req.IntroducerID, req.Introducer)
	if err != nil {
		return nil, err
	}
	var mode models.PaymentMode
	if strings.TrimSpace(req.PaymentMode) != "" {
		if mode, err = parseMode(req.PaymentMode); err != nil {
			return nil, err
		}
	}
	totals, err := s.price(ctx, tenantID, req.LineItems, req.Discount)
	if err != nil {
		return nil, err
	}
	commission, err := s.Commission.Compute(ctx, CommissionInput{
		TenantID:      tenantID,
		Department:    req.Department,
		DoctorID:      ref.doctorID,
		IntroducerID:  ref.introducerID,
		IntroducerRaw: ref.introducerRaw,
		NetAmount:     totals.Net,
	})
	if err != nil {
		return nil, err
	}

	var before models.Invoice
	var delta decimal.Decimal
	var removedReports int64

	err = s.Store.WithTx(ctx, func(tx repositories.InvoiceTx) error {
		current, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Entity: "invoice", ID: invoiceID}
		}
		if err != nil {
			return err
		}
		if current.PaymentStatus == models.PaymentStatusRefunded {
			return &ValidationError{Field: "invoice", Message: "a fully refunded invoice cannot be edited"}
		}
		before = *current

		paid := current.PaidAmount
		if req.PaidAmount != nil {
			paid = *req.PaidAmount
		}
		if err := validatePaid(paid, totals.Net, current.RefundAmount); err != nil {
			return err
		}

		oldItems, err := tx.ListItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		added, removed := diffTests(testIDs(oldItems), testIDs(totals.Items))

		current.DoctorID = ref.doctorID
		current.IntroducerID = ref.introducerID
		current.IntroducerRaw = ref.introducerRaw
		current.Department = strings.TrimSpace(req.Department)
		current.TotalAmount = totals.Total
		current.TaxAmount = totals.Tax
		current.DiscountAmount = totals.Discount
		current.NetAmount = totals.Net
		current.PaidAmount = paid
		if mode != "" {
			current.PaymentMode = mode
		}
		current.Notes = req.Notes
		current.Items = totals.Items
		setCommission(current, commission)
		settle(current)

		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, invoiceID, current.Items); err != nil {
			return err
		}
		if len(removed) > 0 {
			if removedReports, err = tx.DeletePendingReports(ctx, invoiceID, removed); err != nil {
				return err
			}
		}
		if len(added) > 0 {
			if err := tx.CreatePendingReports(ctx, invoiceID, added); err != nil {
				return err
			}
		}

		delta = paid.Sub(before.PaidAmount)
		if !delta.IsZero() {
			kind := models.PaymentEventDueCollection
			if delta.IsNegative() {
				kind = models.PaymentEventAdjustment
			}
			if err := tx.AppendPaymentEvent(ctx, &models.PaymentEvent{
				TenantID:        tenantID,
				InvoiceID:       invoiceID,
				Kind:            kind,
				Amount:          delta,
				PaymentMode:     current.PaymentMode,
				CreatedByUserID: userID,
			}); err != nil {
				return err
			}
		}
		inv = current
		return nil
	})
	if err != nil {
		return nil, storeError("update invoice", err)
	}

	s.log.Info().Int("tenant_id", tenantID).Int("invoice_id", invoiceID).Int64("reports_removed", removedReports).
		Str("net", inv.NetAmount.StringFixed(2)).Str("status", string(inv.PaymentStatus)).Msg("invoice updated")

	oldValues, newValues := changedFields(&before, inv)
	if delta.IsPositive() {
		newValues["paidAmount"] = amount(delta)
		newValues["paymentMode"] = inv.PaymentMode
	}
	s.audit(ctx, tenantID, invoiceID, userID, models.AuditActionUpdate, oldValues, newValues)
	cache.InvalidateCashBook(ctx, tenantID)
	return inv, nil
}

// ApplyPayment collects an amount against the outstanding balance. The invoice keeps its own
// payment mode; the mode of this payment is recorded on the payment event.
func (s *InvoiceService) ApplyPayment(ctx context.Context, tenantID, invoiceID, userID int, req *models.ApplyPaymentRequest) (inv *models.Invoice, err error) {
	defer func() { observeTransition("payment", err) }()

	mode, err := parseMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}

	var before models.Invoice
	err = s.Store.WithTx(ctx, func(tx repositories.InvoiceTx) error {
		current, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Entity: "invoice", ID: invoiceID}
		}
		if err != nil {
			return err
		}
		before = *current
		if err := applyPayment(current, req.Amount); err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		if err := tx.AppendPaymentEvent(ctx, &models.PaymentEvent{
			TenantID:        tenantID,
			InvoiceID:       invoiceID,
			Kind:            models.PaymentEventDueCollection,
			Amount:          req.Amount,
			PaymentMode:     mode,
			CreatedByUserID: userID,
		}); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return nil, storeError("apply payment", err)
	}

	s.log.Info().Int("tenant_id", tenantID).Int("invoice_id", invoiceID).Str("amount", req.Amount.StringFixed(2)).
		Str("mode", string(mode)).Str("status", string(inv.PaymentStatus)).Msg("payment applied")

	s.audit(ctx, tenantID, invoiceID, userID, models.AuditActionUpdate,
		map[string]interface{}{
			"balanceAmount": amount(before.BalanceAmount),
			"paymentStatus": before.PaymentStatus,
		},
		map[string]interface{}{
			"paidAmount":    amount(req.Amount),
			"paymentMode":   mode,
			"balanceAmount": amount(inv.BalanceAmount),
			"paymentStatus": inv.PaymentStatus,
		})
	cache.InvalidateCashBook(ctx, tenantID)
	return inv, nil
}

// Refund returns collected money. The invoice becomes REFUNDED once the full net is refunded.
func (s *InvoiceService) Refund(ctx context.Context, tenantID, invoiceID, userID int, req *models.RefundRequest) (inv *models.Invoice, err error) {
	defer func() { observeTransition("refund", err) }()

	var before models.Invoice
	err = s.Store.WithTx(ctx, func(tx repositories.InvoiceTx) error {
		current, err := tx.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Entity: "invoice", ID: invoiceID}
		}
		if err != nil {
			return err
		}
		before = *current
		if err := applyRefund(current, req.Amount); err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		if err := tx.AppendPaymentEvent(ctx, &models.PaymentEvent{
			TenantID:        tenantID,
			InvoiceID:       invoiceID,
			Kind:            models.PaymentEventRefund,
			Amount:          req.Amount,
			PaymentMode:     current.PaymentMode,
			CreatedByUserID: userID,
		}); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return nil, storeError("refund invoice", err)
	}

	s.log.Info().Int("tenant_id", tenantID).Int("invoice_id", invoiceID).Str("amount", req.Amount.StringFixed(2)).
		Str("status", string(inv.PaymentStatus)).Msg("refund applied")

	s.audit(ctx, tenantID, invoiceID, userID, models.AuditActionRefund,
		map[string]interface{}{
			"refundAmount":  amount(before.RefundAmount),
			"balanceAmount": amount(before.BalanceAmount),
			"paymentStatus": before.PaymentStatus,
		},
		map[string]interface{}{
			"refundAmount":  amount(inv.RefundAmount),
			"refundedNow":   amount(req.Amount),
			"balanceAmount": amount(inv.BalanceAmount),
			"paymentStatus": inv.PaymentStatus,
			"note":          req.Note,
		})
	cache.InvalidateCashBook(ctx, tenantID)
	return inv, nil
}

// audit appends an event. Failures are logged and counted, never returned.
func (s *InvoiceService) audit(ctx context.Context, tenantID, invoiceID, userID int, action string, oldValues, newValues map[string]interface{}) {
	event := &models.AuditEvent{
		TenantID:   tenantID,
		EntityType: models.EntityTypeInvoice,
		EntityID:   invoiceID,
		Action:     action,
	}
	if userID > 0 {
		event.UserID = &userID
	}
	writeAudit(ctx, s.Audit, s.log, event, oldValues, newValues)
}

// notify runs after commit on its own goroutine; failures are only logged
func (s *InvoiceService) notify(patient *models.Patient, inv *models.Invoice) {
	if s.Notifier == nil {
		return
	}
	snapshot := *inv
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.Notifier.NotifyInvoiceCreated(ctx, patient, &snapshot); err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).Int("invoice_id", snapshot.ID).Msg("invoice notification failed")
			return
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}()
}

func setCommission(inv *models.Invoice, c models.CommissionResult) {
	inv.CommissionMode = c.Mode
	inv.DoctorCommission = c.DoctorCommission
	inv.IntroducerCommission = c.IntroducerCommission
}

// amount renders a decimal as a JSON number with two places
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func testIDs(items []models.InvoiceItem) []int {
	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.TestID)
	}
	return ids
}

// diffTests returns the tests only in next (added) and only in prev (removed)
func diffTests(prev, next []int) (added, removed []int) {
	inPrev := make(map[int]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	inNext := make(map[int]bool, len(next))
	for _, id := range next {
		inNext[id] = true
		if !inPrev[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !inNext[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// changedFields lists the audited invoice fields that differ between two versions
func changedFields(before, after *models.Invoice) (map[string]interface{}, map[string]interface{}) {
	oldValues := map[string]interface{}{}
	newValues := map[string]interface{}{}
	amounts := []struct {
		key      string
		old, new decimal.Decimal
	}{
		{"totalAmount", before.TotalAmount, after.TotalAmount},
		{"taxAmount", before.TaxAmount, after.TaxAmount},
		{"discountAmount", before.DiscountAmount, after.DiscountAmount},
		{"netAmount", before.NetAmount, after.NetAmount},
		{"balanceAmount", before.BalanceAmount, after.BalanceAmount},
		{"doctorCommission", before.DoctorCommission, after.DoctorCommission},
		{"introducerCommission", before.IntroducerCommission, after.IntroducerCommission},
	}
	for _, m := range amounts {
		if !m.old.Equal(m.new) {
			oldValues[m.key] = amount(m.old)
			newValues[m.key] = amount(m.new)
		}
	}
	if before.PaymentStatus != after.PaymentStatus {
		oldValues["paymentStatus"] = before.PaymentStatus
		newValues["paymentStatus"] = after.PaymentStatus
	}
	if before.CommissionMode != after.CommissionMode {
		oldValues["commissionMode"] = before.CommissionMode
		newValues["commissionMode"] = after.CommissionMode
	}
	if before.Department != after.Department {
		oldValues["department"] = before.Department
		newValues["department"] = after.Department
	}
	if !sameRef(before.DoctorID, after.DoctorID) {
		oldValues["doctorId"] = before.DoctorID
		newValues["doctorId"] = after.DoctorID
	}
	if !sameRef(before.IntroducerID, after.IntroducerID) {
		oldValues["introducerId"] = before.IntroducerID
		newValues["introducerId"] = after.IntroducerID
	}
	return oldValues, newValues
}

func sameRef(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// storeError turns lock contention into a ConflictError and wraps anything unexpected
func storeError(op string, err error) error {
	var v *ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &v), errors.As(err, &nf):
		return err
	case errors.Is(err, repositories.ErrLockNotAvailable):
		return &ConflictError{Message: op + ": invoice is being modified concurrently, retry", Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func observeTransition(action string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsValidation(err), IsNotFound(err):
		result = "rejected"
	case IsConflict(err):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.InvoiceTransitionsTotal.WithLabelValues(action, result).Inc()
}
