package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lab-backend/internal/cache"
	"lab-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReceipts struct {
	receipts []models.InvoiceReceipt
	err      error
}

func (f *fakeReceipts) InvoiceReceipts(context.Context, int, time.Time, time.Time) ([]models.InvoiceReceipt, error) {
	return f.receipts, f.err
}

type fakeDues struct {
	dues       []models.DueCollection
	subsequent map[int]decimal.Decimal
	err        error
}

func (f *fakeDues) DueCollections(context.Context, int, time.Time, time.Time) ([]models.DueCollection, error) {
	return f.dues, f.err
}

func (f *fakeDues) SubsequentTotals(_ context.Context, _ int, ids []int) (map[int]decimal.Decimal, error) {
	out := map[int]decimal.Decimal{}
	for _, id := range ids {
		if v, ok := f.subsequent[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type fakePayouts struct {
	payouts []models.Payout
	err     error
}

func (f *fakePayouts) PayoutsBetween(context.Context, int, time.Time, time.Time) ([]models.Payout, error) {
	return f.payouts, f.err
}

type fakePurchases struct {
	purchases []models.PurchaseInvoice
	err       error
}

func (f *fakePurchases) PaidPurchases(context.Context, int, time.Time, time.Time) ([]models.PurchaseInvoice, error) {
	return f.purchases, f.err
}

type fakeEntries struct {
	mu      sync.Mutex
	entries []models.CashBookEntry
	err     error
}

func (f *fakeEntries) EntriesBetween(context.Context, int, time.Time, time.Time) ([]models.CashBookEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CashBookEntry(nil), f.entries...), f.err
}

func (f *fakeEntries) CreateEntry(_ context.Context, e *models.CashBookEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = len(f.entries) + 1
	f.entries = append(f.entries, *e)
	return nil
}

type fakeArchive struct {
	keys []string
	err  error
}

func (f *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	f.keys = append(f.keys, key)
	return f.err
}

// memCashBookCache is an in-memory CashBookCache with the same generation semantics as Redis
type memCashBookCache struct {
	mu   sync.Mutex
	gen  map[int]int64
	data map[string][]byte
	sets int
}

func newMemCashBookCache() *memCashBookCache {
	return &memCashBookCache{gen: map[int]int64{}, data: map[string][]byte{}}
}

func (c *memCashBookCache) Generation(_ context.Context, tenantID int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[tenantID]
}

func (c *memCashBookCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	return data, ok
}

func (c *memCashBookCache) Set(_ context.Context, key string, data []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
}

func (c *memCashBookCache) Invalidate(_ context.Context, tenantID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[tenantID]++
}

// hookedPurchases runs onFetch while the purchase stream is being read
type hookedPurchases struct {
	*fakePurchases
	fetches int
	onFetch func(n int)
}

func (h *hookedPurchases) PaidPurchases(ctx context.Context, tenantID int, from, to time.Time) ([]models.PurchaseInvoice, error) {
	h.fetches++
	if h.onFetch != nil {
		h.onFetch(h.fetches)
	}
	return h.fakePurchases.PaidPurchases(ctx, tenantID, from, to)
}

var day = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

type cashBookFixture struct {
	receipts  *fakeReceipts
	dues      *fakeDues
	payouts   *fakePayouts
	purchases *fakePurchases
	entries   *fakeEntries
	svc       *CashBookService
}

// newCashBookFixture models one day: an invoice paid 500 in cash at creation and topped up by
// 300 over UPI later the same day, a cash payout and a bank purchase.
func newCashBookFixture() *cashBookFixture {
	f := &cashBookFixture{
		receipts: &fakeReceipts{receipts: []models.InvoiceReceipt{
			{InvoiceID: 1, InvoiceNumber: "INV-000001", PatientName: "Asha", PaidAmount: dec("800"), PaymentMode: models.PaymentModeCash, CreatedAt: at(9)},
		}},
		dues: &fakeDues{
			dues: []models.DueCollection{
				{InvoiceID: 1, InvoiceNumber: "INV-000001", PatientName: "Asha", Amount: dec("300"), PaymentMode: models.PaymentModeUPI, CollectedAt: at(15)},
			},
			subsequent: map[int]decimal.Decimal{1: dec("300")},
		},
		payouts: &fakePayouts{payouts: []models.Payout{
			{ID: 4, DoctorName: "Dr. Rao", Amount: dec("150"), PaymentMode: models.PaymentModeCash, PaidAt: at(12)},
		}},
		purchases: &fakePurchases{purchases: []models.PurchaseInvoice{
			{InvoiceNumber: "PUR-17", SupplierName: "Reagents Co", TotalAmount: dec("200"), Status: models.PurchaseStatusPartial, PaymentMode: models.PaymentModeBankTransfer, PurchaseDate: at(11)},
		}},
		entries: &fakeEntries{},
	}
	f.svc = NewCashBookService(CashBookSources{
		Receipts:  f.receipts,
		Dues:      f.dues,
		Payouts:   f.payouts,
		Purchases: f.purchases,
		Entries:   f.entries,
	}, f.entries, 0)
	return f
}

func (f *cashBookFixture) aggregate(t *testing.T, mode string) *models.CashBook {
	t.Helper()
	book, err := f.svc.Aggregate(context.Background(), 1, day, day.Add(24*time.Hour-time.Nanosecond), mode)
	require.NoError(t, err)
	return book
}

func TestCashBook_NoDoubleCountingOfLaterPayments(t *testing.T) {
	f := newCashBookFixture()

	book := f.aggregate(t, "")

	require.Len(t, book.Rows, 4)
	receipt := book.Rows[0]
	assert.Equal(t, models.CategoryPatientReceipt, receipt.Category)
	assert.Equal(t, "500.00", receipt.CashIn.StringFixed(2), "only the amount paid at creation")
	due := book.Rows[3]
	assert.Equal(t, models.CategoryDueCollection, due.Category)
	assert.Equal(t, "300.00", due.BankIn.StringFixed(2))

	assert.Equal(t, "800.00", book.Summary.TotalCashIn.Add(book.Summary.TotalBankIn).StringFixed(2))
	assert.False(t, book.Partial)
}

func TestCashBook_ReceiptSkippedWhenEverythingCameLater(t *testing.T) {
	f := newCashBookFixture()
	f.receipts.receipts[0].PaidAmount = dec("300")

	book := f.aggregate(t, "")

	for _, r := range book.Rows {
		assert.NotEqual(t, models.CategoryPatientReceipt, r.Category)
	}
}

func TestCashBook_OrderingAndRunningBalances(t *testing.T) {
	f := newCashBookFixture()

	book := f.aggregate(t, "")

	refs := make([]string, 0, len(book.Rows))
	for i, r := range book.Rows {
		refs = append(refs, r.Reference)
		if i > 0 {
			assert.False(t, r.Timestamp.Before(book.Rows[i-1].Timestamp))
		}
	}
	assert.Equal(t, []string{"INV-000001", "PUR-17", "PAYOUT-4", "INV-000001"}, refs)

	wantCash := []string{"500.00", "500.00", "350.00", "350.00"}
	wantBank := []string{"0.00", "-200.00", "-200.00", "100.00"}
	for i, r := range book.Rows {
		assert.Equal(t, wantCash[i], r.RunningCash.StringFixed(2), "row %d cash", i)
		assert.Equal(t, wantBank[i], r.RunningBank.StringFixed(2), "row %d bank", i)
	}

	sum := book.Summary
	assert.Equal(t, 4, sum.RowCount)
	assert.True(t, sum.ClosingCash.Equal(sum.TotalCashIn.Sub(sum.TotalCashOut)))
	assert.True(t, sum.ClosingBank.Equal(sum.TotalBankIn.Sub(sum.TotalBankOut)))
	last := book.Rows[len(book.Rows)-1]
	assert.True(t, last.RunningCash.Equal(sum.ClosingCash))
	assert.True(t, last.RunningBank.Equal(sum.ClosingBank))
}

func TestCashBook_EachRowUsesOneColumn(t *testing.T) {
	f := newCashBookFixture()

	for _, r := range f.aggregate(t, "").Rows {
		nonZero := 0
		for _, v := range []decimal.Decimal{r.CashIn, r.BankIn, r.CashOut, r.BankOut} {
			if !v.IsZero() {
				nonZero++
			}
		}
		assert.Equal(t, 1, nonZero, "row %s", r.Reference)
		if r.Type == models.CashBookInward {
			assert.True(t, r.CashOut.IsZero() && r.BankOut.IsZero())
		}
	}
}

func TestCashBook_ModeFilter(t *testing.T) {
	tests := []struct {
		mode string
		refs []string
	}{
		{"CASH", []string{"INV-000001", "PAYOUT-4"}},
		{"bank", []string{"PUR-17", "INV-000001"}},
		{"UPI", []string{"INV-000001"}},
		{"ALL", []string{"INV-000001", "PUR-17", "PAYOUT-4", "INV-000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			f := newCashBookFixture()

			book := f.aggregate(t, tt.mode)

			refs := []string{}
			for _, r := range book.Rows {
				refs = append(refs, r.Reference)
			}
			assert.Equal(t, tt.refs, refs)
		})
	}
}

func TestCashBook_UnknownModeFilterRejected(t *testing.T) {
	f := newCashBookFixture()

	for _, mode := range []string{"FOO", "cashh", "BANK_OUT"} {
		_, err := f.svc.Aggregate(context.Background(), 1, day, day.Add(time.Hour), mode)
		assert.True(t, IsValidation(err), "mode %q: %v", mode, err)
	}

	for _, mode := range []string{"", " all ", "Cheque", "bank_transfer"} {
		_, err := f.svc.Aggregate(context.Background(), 1, day, day.Add(time.Hour), mode)
		assert.NoError(t, err, "mode %q", mode)
	}
}

func TestCashBook_Idempotent(t *testing.T) {
	f := newCashBookFixture()

	first := f.aggregate(t, "")
	second := f.aggregate(t, "")

	assert.Equal(t, first, second)
}

func TestCashBook_CachedUntilInvalidated(t *testing.T) {
	f := newCashBookFixture()
	c := newMemCashBookCache()
	purchases := &hookedPurchases{fakePurchases: f.purchases}
	f.svc.Cache = c
	f.svc.Sources.Purchases = purchases

	first := f.aggregate(t, "")
	second := f.aggregate(t, "")
	assert.Equal(t, 1, purchases.fetches, "second read is served from the cache")
	assert.Len(t, second.Rows, len(first.Rows))

	c.Invalidate(context.Background(), 1)
	f.aggregate(t, "")
	assert.Equal(t, 2, purchases.fetches)
}

func TestCashBook_WriteDuringAggregationIsNotServedStale(t *testing.T) {
	// GIVEN a payout commits and invalidates while the streams are being read
	f := newCashBookFixture()
	c := newMemCashBookCache()
	purchases := &hookedPurchases{fakePurchases: f.purchases, onFetch: func(n int) {
		if n == 1 {
			c.Invalidate(context.Background(), 1)
		}
	}}
	f.svc.Cache = c
	f.svc.Sources.Purchases = purchases

	// WHEN the in-flight aggregation finishes and stores its book
	stale := f.aggregate(t, "")
	require.Equal(t, 1, c.sets)
	f.payouts.payouts = append(f.payouts.payouts, models.Payout{
		ID: 5, DoctorName: "Dr. Mehta", Amount: dec("75"), PaymentMode: models.PaymentModeCash, PaidAt: at(14),
	})

	// THEN the next read misses the cache and sees the payout
	fresh := f.aggregate(t, "")
	assert.Equal(t, 2, purchases.fetches)
	assert.Len(t, fresh.Rows, len(stale.Rows)+1)
	assert.Equal(t, "225.00", fresh.Summary.TotalCashOut.StringFixed(2))
}

func TestCashBook_PartialBookIsNotCached(t *testing.T) {
	f := newCashBookFixture()
	c := newMemCashBookCache()
	f.svc.Cache = c
	f.payouts.err = errors.New("connection reset")

	f.aggregate(t, "")

	assert.Zero(t, c.sets)
}

func TestCashBook_CacheTTLIsCapped(t *testing.T) {
	svc := NewCashBookService(CashBookSources{}, nil, 0)

	svc.CacheTTL = time.Hour
	assert.Equal(t, cache.MaxCashBookTTL, svc.cacheTTL())

	svc.CacheTTL = 0
	assert.Zero(t, svc.cacheTTL())
}

func TestCashBook_FailedStreamIsPartial(t *testing.T) {
	// GIVEN the payout stream is down
	f := newCashBookFixture()
	f.payouts.err = errors.New("connection reset")

	// WHEN the cash book is built
	book := f.aggregate(t, "")

	// THEN the other streams still contribute and the result says what is missing
	assert.True(t, book.Partial)
	assert.Equal(t, []string{StreamPayouts}, book.FailedStreams)
	assert.Len(t, book.Rows, 3)
	assert.True(t, book.Summary.TotalCashOut.IsZero())
}

func TestCashBook_RangeValidation(t *testing.T) {
	f := newCashBookFixture()
	ctx := context.Background()

	_, err := f.svc.Aggregate(ctx, 1, day, day.Add(-time.Hour), "")
	assert.True(t, IsValidation(err))

	_, err = f.svc.Aggregate(ctx, 1, day, day.Add(400*24*time.Hour), "")
	assert.True(t, IsValidation(err))

	_, err = f.svc.Aggregate(ctx, 1, time.Time{}, day, "")
	assert.True(t, IsValidation(err))

	_, err = f.svc.Aggregate(ctx, 1, day, day, "")
	assert.NoError(t, err, "a zero-length range is allowed")
}

func TestCashBook_PurchasesAndManualEntries(t *testing.T) {
	f := newCashBookFixture()
	f.receipts.receipts, f.dues.dues, f.payouts.payouts = nil, nil, nil
	f.purchases.purchases = append(f.purchases.purchases, models.PurchaseInvoice{
		InvoiceNumber: "PUR-18", SupplierName: "Glassware", TotalAmount: dec("90"), Status: models.PurchaseStatusPending, PurchaseDate: at(13),
	})
	f.entries.entries = []models.CashBookEntry{
		{ID: 9, EntryType: models.CashBookEntryCashOut, Amount: dec("40"), Particulars: "Tea and snacks", PaymentMode: models.PaymentModeCash, EntryDate: at(10)},
		{ID: 10, EntryType: models.CashBookEntryBankIn, Amount: dec("1000"), Particulars: "Owner capital", Reference: "NEFT-1", PaymentMode: models.PaymentModeBankTransfer, EntryDate: at(16)},
	}

	book := f.aggregate(t, "")

	require.Len(t, book.Rows, 3)
	assert.Equal(t, "CB-9", book.Rows[0].Reference)
	assert.Equal(t, models.CashBookOutward, book.Rows[0].Type)
	assert.Equal(t, models.CategoryManualEntry, book.Rows[0].Category)
	assert.Equal(t, "200.00", book.Rows[1].BankOut.StringFixed(2), "a partially paid purchase is booked at its total")
	assert.Equal(t, "NEFT-1", book.Rows[2].Reference)
	assert.Equal(t, "1000.00", book.Rows[2].BankIn.StringFixed(2))
}

func TestCashBook_CreateEntry(t *testing.T) {
	f := newCashBookFixture()
	c := newMemCashBookCache()
	f.svc.Cache = c
	ctx := context.Background()

	entry, err := f.svc.CreateEntry(ctx, 1, 5, &models.CreateCashBookEntryRequest{
		EntryType: "cash_out", Amount: dec("12.345"), Particulars: " Courier ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CashBookEntryCashOut, entry.EntryType)
	assert.Equal(t, "12.35", entry.Amount.StringFixed(2))
	assert.Equal(t, "Courier", entry.Particulars)
	assert.Equal(t, models.PaymentModeCash, entry.PaymentMode)
	assert.Equal(t, models.CategoryManualEntry, entry.Category)

	bank, err := f.svc.CreateEntry(ctx, 1, 5, &models.CreateCashBookEntryRequest{
		EntryType: "BANK_IN", Amount: dec("100"), Particulars: "Insurance claim",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentModeBankTransfer, bank.PaymentMode)

	rejected := []models.CreateCashBookEntryRequest{
		{EntryType: "TRANSFER", Amount: dec("1"), Particulars: "x"},
		{EntryType: "CASH_IN", Amount: dec("0"), Particulars: "x"},
		{EntryType: "CASH_IN", Amount: dec("1"), Particulars: "  "},
		{EntryType: "CASH_IN", Amount: dec("1"), Particulars: "x", PaymentMode: "UPI"},
		{EntryType: "BANK_OUT", Amount: dec("1"), Particulars: "x", PaymentMode: "CASH"},
	}
	for _, req := range rejected {
		req := req
		_, err := f.svc.CreateEntry(ctx, 1, 5, &req)
		assert.True(t, IsValidation(err), "%+v", req)
	}
	assert.Len(t, f.entries.entries, 2)
	assert.Equal(t, int64(2), c.Generation(ctx, 1), "each stored entry invalidates the tenant")
}

func TestCashBook_Export(t *testing.T) {
	f := newCashBookFixture()
	archive := &fakeArchive{}
	f.svc.Archive = archive

	pdf, book, err := f.svc.Export(context.Background(), 1, day, day.Add(24*time.Hour-time.Nanosecond), "")

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Len(t, book.Rows, 4)
	assert.Equal(t, []string{"cashbook/1/2024-04-01_2024-04-02_ALL.pdf"}, archive.keys)
}

func TestCashBook_ExportArchiveKeyPerMode(t *testing.T) {
	f := newCashBookFixture()
	archive := &fakeArchive{}
	f.svc.Archive = archive
	ctx := context.Background()
	to := day.Add(24*time.Hour - time.Nanosecond)

	_, _, err := f.svc.Export(ctx, 1, day, to, "")
	require.NoError(t, err)
	_, _, err = f.svc.Export(ctx, 1, day, to, "cash")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cashbook/1/2024-04-01_2024-04-02_ALL.pdf",
		"cashbook/1/2024-04-01_2024-04-02_CASH.pdf",
	}, archive.keys)
}

func TestCashBook_PartialExportIsNotArchived(t *testing.T) {
	f := newCashBookFixture()
	archive := &fakeArchive{}
	f.svc.Archive = archive
	f.purchases.err = errors.New("supplier system down")

	pdf, book, err := f.svc.Export(context.Background(), 1, day, day.Add(time.Hour), "")

	require.NoError(t, err)
	assert.True(t, book.Partial)
	assert.NotEmpty(t, pdf, "the caller still gets the flagged document")
	assert.Empty(t, archive.keys)
}

func TestCashBook_ExportSurvivesArchiveFailure(t *testing.T) {
	f := newCashBookFixture()
	f.svc.Archive = &fakeArchive{err: errors.New("bucket unavailable")}

	pdf, _, err := f.svc.Export(context.Background(), 1, day, day.Add(time.Hour), "")

	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
