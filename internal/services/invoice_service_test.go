package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lab-backend/internal/models"
	"lab-backend/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory InvoiceStore. A transaction holds the store mutex for its whole
// duration, which stands in for the row lock, and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	seq      int
	nextID   int
	invoices map[int]*models.Invoice
	items    map[int][]models.InvoiceItem
	reports  map[int]map[int]string
	events   []models.PaymentEvent
	txErr    error
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		invoices: map[int]*models.Invoice{},
		items:    map[int][]models.InvoiceItem{},
		reports:  map[int]map[int]string{},
		now:      time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

type memSnapshot struct {
	seq, nextID int
	invoices    map[int]models.Invoice
	items       map[int][]models.InvoiceItem
	reports     map[int]map[int]string
	events      []models.PaymentEvent
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{seq: m.seq, nextID: m.nextID, invoices: map[int]models.Invoice{},
		items: map[int][]models.InvoiceItem{}, reports: map[int]map[int]string{}}
	for id, inv := range m.invoices {
		s.invoices[id] = *inv
	}
	for id, it := range m.items {
		s.items[id] = append([]models.InvoiceItem(nil), it...)
	}
	for id, r := range m.reports {
		cp := map[int]string{}
		for k, v := range r {
			cp[k] = v
		}
		s.reports[id] = cp
	}
	s.events = append([]models.PaymentEvent(nil), m.events...)
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.seq, m.nextID = s.seq, s.nextID
	m.invoices = map[int]*models.Invoice{}
	for id, inv := range s.invoices {
		inv := inv
		m.invoices[id] = &inv
	}
	m.items, m.reports, m.events = s.items, s.reports, s.events
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx repositories.InvoiceTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}
	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetInvoice(_ context.Context, tenantID, id int) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	cp := *inv
	cp.Items = append([]models.InvoiceItem(nil), m.items[id]...)
	return &cp, nil
}

func (m *memStore) eventsFor(invoiceID int) []models.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentEvent
	for _, e := range m.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out
}

type memTx struct{ m *memStore }

func (t *memTx) NextInvoiceNumber(context.Context) (string, error) {
	t.m.seq++
	return fmt.Sprintf("INV-%06d", t.m.seq), nil
}

func (t *memTx) InsertInvoice(_ context.Context, inv *models.Invoice) error {
	t.m.nextID++
	inv.ID = t.m.nextID
	inv.CreatedAt, inv.UpdatedAt = t.m.now, t.m.now
	cp := *inv
	t.m.invoices[inv.ID] = &cp
	return nil
}

func (t *memTx) GetInvoiceForUpdate(_ context.Context, tenantID, id int) (*models.Invoice, error) {
	inv, ok := t.m.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (t *memTx) UpdateInvoice(_ context.Context, inv *models.Invoice) error {
	cp := *inv
	t.m.invoices[inv.ID] = &cp
	return nil
}

func (t *memTx) ListItems(_ context.Context, invoiceID int) ([]models.InvoiceItem, error) {
	return append([]models.InvoiceItem(nil), t.m.items[invoiceID]...), nil
}

func (t *memTx) ReplaceItems(_ context.Context, invoiceID int, items []models.InvoiceItem) error {
	t.m.items[invoiceID] = append([]models.InvoiceItem(nil), items...)
	return nil
}

func (t *memTx) CreatePendingReports(_ context.Context, invoiceID int, testIDs []int) error {
	if t.m.reports[invoiceID] == nil {
		t.m.reports[invoiceID] = map[int]string{}
	}
	for _, id := range testIDs {
		t.m.reports[invoiceID][id] = models.ReportStatusPending
	}
	return nil
}

func (t *memTx) DeletePendingReports(_ context.Context, invoiceID int, testIDs []int) (int64, error) {
	var n int64
	for _, id := range testIDs {
		if t.m.reports[invoiceID][id] == models.ReportStatusPending {
			delete(t.m.reports[invoiceID], id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) AppendPaymentEvent(_ context.Context, ev *models.PaymentEvent) error {
	ev.ID = len(t.m.events) + 1
	ev.CreatedAt = t.m.now
	t.m.events = append(t.m.events, *ev)
	return nil
}

type fakeCatalog struct {
	tests    map[int]models.LabTest
	patients map[int]*models.Patient
}

func (f *fakeCatalog) GetTests(_ context.Context, _ int, ids []int) (map[int]models.LabTest, error) {
	out := map[int]models.LabTest{}
	for _, id := range ids {
		if t, ok := f.tests[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetPatient(_ context.Context, _ int, id int) (*models.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (f *fakeAudit) Append(_ context.Context, ev *models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeAudit) last(t *testing.T) (models.AuditEvent, map[string]interface{}) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.events)
	ev := f.events[len(f.events)-1]
	values := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(ev.NewValues, &values))
	return ev, values
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeNotifier) NotifyInvoiceCreated(_ context.Context, p *models.Patient, inv *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p.Phone+":"+inv.InvoiceNumber)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type invoiceFixture struct {
	svc      *InvoiceService
	store    *memStore
	audit    *fakeAudit
	notifier *fakeNotifier
}

func newInvoiceFixture() *invoiceFixture {
	store := newMemStore()
	catalog := &fakeCatalog{
		tests: map[int]models.LabTest{
			1: {ID: 1, Name: "CBC", Price: dec("400"), GSTPercentage: decimal.Zero},
			2: {ID: 2, Name: "Thyroid Profile", Price: dec("600"), GSTPercentage: decimal.Zero},
			3: {ID: 3, Name: "HbA1c", Price: dec("500"), GSTPercentage: dec("18")},
		},
		patients: map[int]*models.Patient{7: {ID: 7, Name: "Asha", Phone: "9876543210"}},
	}
	doctors := fakeDoctors{
		1: percentDoctor(1, "10"),
		2: {ID: 2, TenantID: 1, Name: "Care NGO", IsIntroducer: true, CommissionType: models.CommissionTypeFixed, CommissionValue: dec("50")},
	}
	commission := NewCommissionService(doctors, &fakeCases{}, 0)
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	return &invoiceFixture{
		svc:      NewInvoiceService(store, catalog, commission, audit, notifier),
		store:    store,
		audit:    audit,
		notifier: notifier,
	}
}

func (f *invoiceFixture) create(t *testing.T, paid string, tests ...int) *models.Invoice {
	t.Helper()
	lines := make([]models.LineItemInput, 0, len(tests))
	for _, id := range tests {
		lines = append(lines, models.LineItemInput{TestID: id})
	}
	inv, err := f.svc.Create(context.Background(), 1, 5, &models.CreateInvoiceRequest{
		PatientID:   7,
		DoctorID:    intPtr(1),
		Department:  "PATHOLOGY",
		LineItems:   lines,
		PaymentMode: "cash",
		PaidAmount:  dec(paid),
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceService_Create(t *testing.T) {
	f := newInvoiceFixture()

	inv := f.create(t, "300", 1, 2)

	assert.Equal(t, "INV-000001", inv.InvoiceNumber)
	assert.Equal(t, "1000.00", inv.NetAmount.StringFixed(2))
	assert.Equal(t, "700.00", inv.BalanceAmount.StringFixed(2))
	assert.Equal(t, models.PaymentStatusPartial, inv.PaymentStatus)
	assert.Equal(t, models.PaymentModeCash, inv.PaymentMode)
	assert.Equal(t, models.CommissionModeDoctor, inv.CommissionMode)
	assert.Equal(t, "100.00", inv.DoctorCommission.StringFixed(2))
	assertBalanceIdentity(t, inv)

	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, map[int]string{1: models.ReportStatusPending, 2: models.ReportStatusPending}, f.store.reports[inv.ID])

	events := f.store.eventsFor(inv.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.PaymentEventInitial, events[0].Kind)
	assert.Equal(t, "300.00", events[0].Amount.StringFixed(2))

	ev, values := f.audit.last(t)
	assert.Equal(t, models.AuditActionCreate, ev.Action)
	assert.Equal(t, models.EntityTypeInvoice, ev.EntityType)
	assert.Equal(t, "INV-000001", values["invoiceNumber"])
	assert.NotContains(t, values, "paidAmount", "the initial payment is not a due collection")

	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestInvoiceService_CreateStatuses(t *testing.T) {
	f := newInvoiceFixture()

	assert.Equal(t, models.PaymentStatusPending, f.create(t, "0", 1).PaymentStatus)
	assert.Equal(t, models.PaymentStatusPaid, f.create(t, "400", 1).PaymentStatus)
	assert.Empty(t, f.store.eventsFor(1), "no payment event without money")
}

func TestInvoiceService_CreateRejections(t *testing.T) {
	tests := []struct {
		name  string
		req   models.CreateInvoiceRequest
		check func(error) bool
	}{
		{"paid above net", models.CreateInvoiceRequest{PatientID: 7, DoctorID: intPtr(1), LineItems: []models.LineItemInput{{TestID: 1}}, PaidAmount: dec("400.01")}, IsValidation},
		{"sub-cent paid", models.CreateInvoiceRequest{PatientID: 7, LineItems: []models.LineItemInput{{TestID: 1}, {TestID: 2}}, PaidAmount: dec("333.335")}, IsValidation},
		{"negative paid", models.CreateInvoiceRequest{PatientID: 7, LineItems: []models.LineItemInput{{TestID: 1}}, PaidAmount: dec("-1")}, IsValidation},
		{"introducer without doctor", models.CreateInvoiceRequest{PatientID: 7, IntroducerID: intPtr(2), LineItems: []models.LineItemInput{{TestID: 1}}}, IsValidation},
		{"unknown payment mode", models.CreateInvoiceRequest{PatientID: 7, PaymentMode: "BARTER", LineItems: []models.LineItemInput{{TestID: 1}}}, IsValidation},
		{"unknown patient", models.CreateInvoiceRequest{PatientID: 99, LineItems: []models.LineItemInput{{TestID: 1}}}, IsNotFound},
		{"unknown introducer", models.CreateInvoiceRequest{PatientID: 7, DoctorID: intPtr(1), IntroducerID: intPtr(42), LineItems: []models.LineItemInput{{TestID: 1}}}, IsNotFound},
		{"unknown test", models.CreateInvoiceRequest{PatientID: 7, LineItems: []models.LineItemInput{{TestID: 9}}}, IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceFixture()
			req := tt.req

			_, err := f.svc.Create(context.Background(), 1, 5, &req)

			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, f.store.invoices, "nothing may be committed")
		})
	}
}

func TestInvoiceService_AuditFailureDoesNotFailCreate(t *testing.T) {
	f := newInvoiceFixture()
	f.audit.err = errors.New("audit table unavailable")

	inv := f.create(t, "100", 1)

	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", stored.PaidAmount.StringFixed(2))
}

func TestInvoiceService_NotifierFailureIsIgnored(t *testing.T) {
	f := newInvoiceFixture()
	f.notifier.err = errors.New("sms gateway down")

	inv := f.create(t, "0", 1)

	assert.NotZero(t, inv.ID)
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestInvoiceService_SplitCommissionOnCreate(t *testing.T) {
	f := newInvoiceFixture()

	inv, err := f.svc.Create(context.Background(), 1, 5, &models.CreateInvoiceRequest{
		PatientID:    7,
		DoctorID:     intPtr(1),
		IntroducerID: intPtr(2),
		Department:   "MRI",
		LineItems:    []models.LineItemInput{{TestID: 1}, {TestID: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.CommissionModeSplit, inv.CommissionMode)
	assert.Equal(t, "50.00", inv.DoctorCommission.StringFixed(2))
	assert.Equal(t, "50.00", inv.IntroducerCommission.StringFixed(2))
	require.NotNil(t, inv.IntroducerID)
	assert.Equal(t, 2, *inv.IntroducerID)
}

func TestInvoiceService_UpdateDiffsPendingReports(t *testing.T) {
	// GIVEN an invoice for tests 1 and 2 where test 1 already has a completed result
	f := newInvoiceFixture()
	inv := f.create(t, "300", 1, 2)
	f.store.reports[inv.ID][1] = models.ReportStatusCompleted

	// WHEN it is edited to tests 2 and 3
	updated, err := f.svc.Update(context.Background(), 1, inv.ID, 5, &models.UpdateInvoiceRequest{
		DoctorID:   intPtr(1),
		Department: "PATHOLOGY",
		LineItems:  []models.LineItemInput{{TestID: 2}, {TestID: 3}},
	})

	// THEN totals are recomputed, paid is kept and only pending reports follow the diff
	require.NoError(t, err)
	assert.Equal(t, "1100.00", updated.TotalAmount.StringFixed(2))
	assert.Equal(t, "90.00", updated.TaxAmount.StringFixed(2))
	assert.Equal(t, "1190.00", updated.NetAmount.StringFixed(2))
	assert.Equal(t, "300.00", updated.PaidAmount.StringFixed(2))
	assert.Equal(t, "890.00", updated.BalanceAmount.StringFixed(2))
	assert.Equal(t, "119.00", updated.DoctorCommission.StringFixed(2))
	assertBalanceIdentity(t, updated)
	assert.Equal(t, map[int]string{
		1: models.ReportStatusCompleted,
		2: models.ReportStatusPending,
		3: models.ReportStatusPending,
	}, f.store.reports[inv.ID])

	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, stored.TestIDs())
	assert.Len(t, f.store.eventsFor(inv.ID), 1, "unchanged paid amount emits no payment event")
}

func TestInvoiceService_UpdatePaidBoundsRollBack(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "300", 1, 2)

	_, err := f.svc.Update(context.Background(), 1, inv.ID, 5, &models.UpdateInvoiceRequest{
		DoctorID:   intPtr(1),
		LineItems:  []models.LineItemInput{{TestID: 1}},
		PaidAmount: decPtr("400.01"),
	})

	require.True(t, IsValidation(err))
	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", stored.NetAmount.StringFixed(2))
	assert.Len(t, stored.Items, 2)
}

func TestInvoiceService_UpdateWithHigherPaidIsADueCollection(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "300", 1, 2)

	updated, err := f.svc.Update(context.Background(), 1, inv.ID, 5, &models.UpdateInvoiceRequest{
		DoctorID:    intPtr(1),
		LineItems:   []models.LineItemInput{{TestID: 1}, {TestID: 2}},
		PaymentMode: "UPI",
		PaidAmount:  decPtr("1000"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	events := f.store.eventsFor(inv.ID)
	require.Len(t, events, 2)
	assert.Equal(t, models.PaymentEventDueCollection, events[1].Kind)
	assert.Equal(t, "700.00", events[1].Amount.StringFixed(2))

	ev, values := f.audit.last(t)
	assert.Equal(t, models.AuditActionUpdate, ev.Action)
	assert.Equal(t, 700.0, values["paidAmount"])
	assert.Equal(t, "UPI", values["paymentMode"])
}

func TestInvoiceService_UpdateRefundedRejected(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "400", 1)
	_, err := f.svc.Refund(context.Background(), 1, inv.ID, 5, &models.RefundRequest{Amount: dec("400")})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), 1, inv.ID, 5, &models.UpdateInvoiceRequest{
		LineItems: []models.LineItemInput{{TestID: 1}},
	})

	assert.True(t, IsValidation(err))
}

func TestInvoiceService_ApplyPayment(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "500", 1, 2)

	_, err := f.svc.ApplyPayment(context.Background(), 1, inv.ID, 5, &models.ApplyPaymentRequest{Amount: dec("500.01"), PaymentMode: "UPI"})
	require.True(t, IsValidation(err))

	paid, err := f.svc.ApplyPayment(context.Background(), 1, inv.ID, 5, &models.ApplyPaymentRequest{Amount: dec("300"), PaymentMode: "UPI"})
	require.NoError(t, err)

	assert.Equal(t, "800.00", paid.PaidAmount.StringFixed(2))
	assert.Equal(t, "200.00", paid.BalanceAmount.StringFixed(2))
	assert.Equal(t, models.PaymentStatusPartial, paid.PaymentStatus)
	assert.Equal(t, models.PaymentModeCash, paid.PaymentMode, "invoice keeps its own mode")

	events := f.store.eventsFor(inv.ID)
	require.Len(t, events, 2)
	assert.Equal(t, models.PaymentEventDueCollection, events[1].Kind)
	assert.Equal(t, models.PaymentModeUPI, events[1].PaymentMode)

	ev, values := f.audit.last(t)
	assert.Equal(t, models.AuditActionUpdate, ev.Action)
	assert.Equal(t, inv.ID, ev.EntityID)
	assert.Equal(t, 300.0, values["paidAmount"])
	assert.Equal(t, "UPI", values["paymentMode"])
}

func TestInvoiceService_SubCentPaymentRejected(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "0", 1, 2)

	_, err := f.svc.ApplyPayment(context.Background(), 1, inv.ID, 5, &models.ApplyPaymentRequest{Amount: dec("0.004"), PaymentMode: "CASH"})
	require.True(t, IsValidation(err), "unexpected error: %v", err)

	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.IsZero())
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Empty(t, f.store.eventsFor(inv.ID))
}

func TestInvoiceService_RefundBoundaryAndAudit(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "600", 1, 2)

	_, err := f.svc.Refund(context.Background(), 1, inv.ID, 5, &models.RefundRequest{Amount: dec("600.01")})
	require.True(t, IsValidation(err))

	refunded, err := f.svc.Refund(context.Background(), 1, inv.ID, 5, &models.RefundRequest{Amount: dec("600"), Note: "test cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "600.00", refunded.RefundAmount.StringFixed(2))
	assert.NotEqual(t, models.PaymentStatusRefunded, refunded.PaymentStatus, "net is 1000, only 600 refunded")
	assertBalanceIdentity(t, refunded)

	ev, values := f.audit.last(t)
	assert.Equal(t, models.AuditActionRefund, ev.Action)
	assert.Equal(t, "test cancelled", values["note"])
	assert.NotContains(t, values, "paidAmount")
}

func TestInvoiceService_NotFound(t *testing.T) {
	f := newInvoiceFixture()

	_, err := f.svc.ApplyPayment(context.Background(), 1, 404, 5, &models.ApplyPaymentRequest{Amount: dec("1")})
	assert.True(t, IsNotFound(err))

	_, err = f.svc.Get(context.Background(), 1, 404)
	assert.True(t, IsNotFound(err))

	inv := f.create(t, "0", 1)
	_, err = f.svc.Get(context.Background(), 2, inv.ID)
	assert.True(t, IsNotFound(err), "other tenants cannot see the invoice")
}

func TestInvoiceService_LockTimeoutIsConflict(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "0", 1)
	f.store.txErr = repositories.ErrLockNotAvailable

	_, err := f.svc.ApplyPayment(context.Background(), 1, inv.ID, 5, &models.ApplyPaymentRequest{Amount: dec("1")})

	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, repositories.ErrLockNotAvailable)
}

func TestInvoiceService_ConcurrentPaymentsNeverExceedNet(t *testing.T) {
	f := newInvoiceFixture()
	inv := f.create(t, "0", 1, 2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyPayment(context.Background(), 1, inv.ID, 5, &models.ApplyPaymentRequest{Amount: dec("300")})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, err := f.svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, "900.00", stored.PaidAmount.StringFixed(2))
	assert.True(t, stored.PaidAmount.LessThanOrEqual(stored.NetAmount))
	assertBalanceIdentity(t, stored)
}

func TestDiffTests(t *testing.T) {
	added, removed := diffTests([]int{1, 2, 3}, []int{3, 4})
	assert.Equal(t, []int{4}, added)
	assert.Equal(t, []int{1, 2}, removed)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
