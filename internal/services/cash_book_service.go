package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lab-backend/internal/cache"
	"lab-backend/internal/logger"
	"lab-backend/internal/metrics"
	"lab-backend/internal/models"
	"lab-backend/internal/money"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReceiptSource lists invoices created in a range with their current cumulative paid amount
type ReceiptSource interface {
	InvoiceReceipts(ctx context.Context, tenantID int, from, to time.Time) ([]models.InvoiceReceipt, error)
}

// DueCollectionSource recovers payments applied after invoice creation
type DueCollectionSource interface {
	DueCollections(ctx context.Context, tenantID int, from, to time.Time) ([]models.DueCollection, error)
	// SubsequentTotals sums every later top-up per invoice, regardless of date
	SubsequentTotals(ctx context.Context, tenantID int, invoiceIDs []int) (map[int]decimal.Decimal, error)
}

type PayoutSource interface {
	PayoutsBetween(ctx context.Context, tenantID int, from, to time.Time) ([]models.Payout, error)
}

// PurchaseSource lists purchase invoices with status PAID or PARTIAL
type PurchaseSource interface {
	PaidPurchases(ctx context.Context, tenantID int, from, to time.Time) ([]models.PurchaseInvoice, error)
}

type ManualEntrySource interface {
	EntriesBetween(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookEntry, error)
}

type ManualEntryStore interface {
	CreateEntry(ctx context.Context, entry *models.CashBookEntry) error
}

// CashBookSources are the independent streams merged into a cash book
type CashBookSources struct {
	Receipts  ReceiptSource
	Dues      DueCollectionSource
	Payouts   PayoutSource
	Purchases PurchaseSource
	Entries   ManualEntrySource
}

// Stream names as reported in CashBook.FailedStreams
const (
	StreamReceipts       = "receipts"
	StreamDueCollections = "due_collections"
	StreamPayouts        = "payouts"
	StreamPurchases      = "purchases"
	StreamManualEntries  = "manual_entries"
)

// Mode filters accepted besides a concrete payment mode
const (
	ModeFilterAll  = "ALL"
	ModeFilterCash = "CASH"
	ModeFilterBank = "BANK"
)

const DefaultMaxCashBookRange = 366 * 24 * time.Hour

// CashBookCache stores aggregated cash books under keys that embed the tenant generation.
// Invalidate bumps the generation, so a book built from streams read before the bump is
// stored under a key nobody asks for again.
type CashBookCache interface {
	Generation(ctx context.Context, tenantID int) int64
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Invalidate(ctx context.Context, tenantID int)
}

// redisCashBookCache is the CashBookCache over the shared Redis client
type redisCashBookCache struct{}

func (redisCashBookCache) Generation(ctx context.Context, tenantID int) int64 {
	return cache.CashBookGeneration(ctx, tenantID)
}

func (redisCashBookCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return cache.GetCached(ctx, key)
}

func (redisCashBookCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	cache.SetCached(ctx, key, data, ttl)
}

func (redisCashBookCache) Invalidate(ctx context.Context, tenantID int) {
	cache.InvalidateCashBook(ctx, tenantID)
}

type CashBookService struct {
	Sources  CashBookSources
	Store    ManualEntryStore
	MaxRange time.Duration
	// CacheTTL <= 0 disables caching; values above cache.MaxCashBookTTL are capped
	CacheTTL time.Duration
	Cache    CashBookCache
	Archive  Archiver
	log      zerolog.Logger
}

func NewCashBookService(sources CashBookSources, store ManualEntryStore, maxRange time.Duration) *CashBookService {
	if maxRange <= 0 {
		maxRange = DefaultMaxCashBookRange
	}
	return &CashBookService{
		Sources:  sources,
		Store:    store,
		MaxRange: maxRange,
		CacheTTL: cache.DefaultCashBookTTL,
		Cache:    redisCashBookCache{},
		log:      logger.WithComponent("cashbook"),
	}
}

func (s *CashBookService) validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return &ValidationError{Field: "from", Message: "from and to are required"}
	}
	if to.Before(from) {
		return &ValidationError{Field: "to", Message: "must not be before from"}
	}
	if to.Sub(from) > s.MaxRange {
		return &ValidationError{Field: "to", Message: fmt.Sprintf("range must not exceed %d days", int(s.MaxRange.Hours()/24))}
	}
	return nil
}

// Aggregate builds the cash book of a tenant for [from, to]. Each stream is fetched on its own
// goroutine; a failing stream contributes no rows and the result is flagged Partial.
func (s *CashBookService) Aggregate(ctx context.Context, tenantID int, from, to time.Time, modeFilter string) (*models.CashBook, error) {
	if err := s.validateRange(from, to); err != nil {
		return nil, err
	}
	modeFilter, err := normalizeModeFilter(modeFilter)
	if err != nil {
		return nil, err
	}

	// read before the streams: a write committed during the fan-out moves readers to a new key
	key := cache.CashBookKey(tenantID, s.Cache.Generation(ctx, tenantID), from, to, modeFilter)
	if data, ok := s.Cache.Get(ctx, key); ok {
		var book models.CashBook
		if err := json.Unmarshal(data, &book); err == nil {
			metrics.CashBookCacheHitsTotal.Inc()
			return &book, nil
		}
	}

	start := time.Now()
	defer func() { metrics.CashBookAggregationDuration.Observe(time.Since(start).Seconds()) }()

	type stream struct {
		name  string
		fetch func() ([]models.CashBookRow, error)
	}
	streams := []stream{
		{StreamReceipts, func() ([]models.CashBookRow, error) { return s.receiptRows(ctx, tenantID, from, to) }},
		{StreamDueCollections, func() ([]models.CashBookRow, error) { return s.dueRows(ctx, tenantID, from, to) }},
		{StreamPayouts, func() ([]models.CashBookRow, error) { return s.payoutRows(ctx, tenantID, from, to) }},
		{StreamPurchases, func() ([]models.CashBookRow, error) { return s.purchaseRows(ctx, tenantID, from, to) }},
		{StreamManualEntries, func() ([]models.CashBookRow, error) { return s.entryRows(ctx, tenantID, from, to) }},
	}

	results := make([][]models.CashBookRow, len(streams))
	errs := make([]error, len(streams))
	var wg sync.WaitGroup
	for i, st := range streams {
		wg.Add(1)
		go func(i int, st stream) {
			defer wg.Done()
			results[i], errs[i] = st.fetch()
		}(i, st)
	}
	wg.Wait()

	book := &models.CashBook{
		TenantID:    tenantID,
		From:        from,
		To:          to,
		PaymentMode: modeFilter,
		Rows:        []models.CashBookRow{},
	}
	for i, st := range streams {
		if errs[i] != nil {
			book.Partial = true
			book.FailedStreams = append(book.FailedStreams, st.name)
			metrics.CashBookStreamFailuresTotal.WithLabelValues(st.name).Inc()
			s.log.Error().Err(errs[i]).Int("tenant_id", tenantID).Str("stream", st.name).
				Msg("cash book stream failed, continuing without it")
			continue
		}
		for _, row := range results[i] {
			if matchesMode(row.PaymentMode, modeFilter) {
				book.Rows = append(book.Rows, row)
			}
		}
	}

	// stable: rows with equal timestamps keep stream order, then source order
	sort.SliceStable(book.Rows, func(a, b int) bool {
		return book.Rows[a].Timestamp.Before(book.Rows[b].Timestamp)
	})
	book.Summary = foldRunningBalances(book.Rows)

	if ttl := s.cacheTTL(); ttl > 0 && !book.Partial {
		if data, err := json.Marshal(book); err == nil {
			s.Cache.Set(ctx, key, data, ttl)
		}
	}
	return book, nil
}

func (s *CashBookService) cacheTTL() time.Duration {
	if s.CacheTTL > cache.MaxCashBookTTL {
		return cache.MaxCashBookTTL
	}
	return s.CacheTTL
}

// foldRunningBalances attaches post-row running totals and returns the column sums
func foldRunningBalances(rows []models.CashBookRow) models.CashBookSummary {
	sum := models.CashBookSummary{
		TotalCashIn:  decimal.Zero,
		TotalBankIn:  decimal.Zero,
		TotalCashOut: decimal.Zero,
		TotalBankOut: decimal.Zero,
		RowCount:     len(rows),
	}
	runningCash, runningBank := decimal.Zero, decimal.Zero
	for i := range rows {
		r := &rows[i]
		runningCash = runningCash.Add(r.CashIn).Sub(r.CashOut)
		runningBank = runningBank.Add(r.BankIn).Sub(r.BankOut)
		r.RunningCash = runningCash
		r.RunningBank = runningBank

		sum.TotalCashIn = sum.TotalCashIn.Add(r.CashIn)
		sum.TotalBankIn = sum.TotalBankIn.Add(r.BankIn)
		sum.TotalCashOut = sum.TotalCashOut.Add(r.CashOut)
		sum.TotalBankOut = sum.TotalBankOut.Add(r.BankOut)
	}
	sum.ClosingCash = sum.TotalCashIn.Sub(sum.TotalCashOut)
	sum.ClosingBank = sum.TotalBankIn.Sub(sum.TotalBankOut)
	return sum
}

// normalizeModeFilter maps ALL and blank to "" and rejects anything but CASH, BANK or a known mode
func normalizeModeFilter(raw string) (string, error) {
	filter := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case filter == "" || filter == ModeFilterAll:
		return "", nil
	case filter == ModeFilterBank || models.PaymentMode(filter).Valid():
		return filter, nil
	}
	return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode filter %q", raw)}
}

func matchesMode(mode models.PaymentMode, filter string) bool {
	switch filter {
	case "":
		return true
	case ModeFilterCash:
		return mode.IsCash()
	case ModeFilterBank:
		return !mode.IsCash()
	}
	return string(mode) == filter
}

// newRow builds a row with the amount in the cash or bank column of its direction
func newRow(ts time.Time, ref, particulars, category string, mode models.PaymentMode, dir models.CashBookRowType, amt decimal.Decimal) models.CashBookRow {
	if mode == "" {
		mode = models.PaymentModeCash
	}
	row := models.CashBookRow{
		Timestamp:   ts,
		Reference:   ref,
		Particulars: particulars,
		PaymentMode: mode,
		CashIn:      decimal.Zero,
		BankIn:      decimal.Zero,
		CashOut:     decimal.Zero,
		BankOut:     decimal.Zero,
		Type:        dir,
		Category:    category,
	}
	switch {
	case dir == models.CashBookInward && mode.IsCash():
		row.CashIn = amt
	case dir == models.CashBookInward:
		row.BankIn = amt
	case mode.IsCash():
		row.CashOut = amt
	default:
		row.BankOut = amt
	}
	return row
}

// receiptRows emits the part of each invoice's paid amount collected at creation time.
// Later top-ups come from the due-collection stream and are subtracted here.
func (s *CashBookService) receiptRows(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookRow, error) {
	receipts, err := s.Sources.Receipts.InvoiceReceipts(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("invoice receipts: %w", err)
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(receipts))
	for _, r := range receipts {
		ids = append(ids, r.InvoiceID)
	}
	subsequent, err := s.Sources.Dues.SubsequentTotals(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("subsequent payment totals: %w", err)
	}

	rows := make([]models.CashBookRow, 0, len(receipts))
	for _, r := range receipts {
		initial := r.PaidAmount.Sub(subsequent[r.InvoiceID])
		if !initial.IsPositive() {
			continue
		}
		rows = append(rows, newRow(r.CreatedAt, r.InvoiceNumber, "Receipt from "+r.PatientName,
			models.CategoryPatientReceipt, r.PaymentMode, models.CashBookInward, initial))
	}
	return rows, nil
}

func (s *CashBookService) dueRows(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookRow, error) {
	dues, err := s.Sources.Dues.DueCollections(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("due collections: %w", err)
	}
	rows := make([]models.CashBookRow, 0, len(dues))
	for _, d := range dues {
		if !d.Amount.IsPositive() {
			continue
		}
		rows = append(rows, newRow(d.CollectedAt, d.InvoiceNumber, "Due collected from "+d.PatientName,
			models.CategoryDueCollection, d.PaymentMode, models.CashBookInward, d.Amount))
	}
	return rows, nil
}

func (s *CashBookService) payoutRows(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookRow, error) {
	payouts, err := s.Sources.Payouts.PayoutsBetween(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("payouts: %w", err)
	}
	rows := make([]models.CashBookRow, 0, len(payouts))
	for _, p := range payouts {
		ref := p.Reference
		if ref == "" {
			ref = fmt.Sprintf("PAYOUT-%d", p.ID)
		}
		rows = append(rows, newRow(p.PaidAt, ref, "Commission paid to "+p.DoctorName,
			models.CategoryDoctorPayout, p.PaymentMode, models.CashBookOutward, p.Amount))
	}
	return rows, nil
}

// purchaseRows books PAID and PARTIAL purchases at their full total
func (s *CashBookService) purchaseRows(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookRow, error) {
	purchases, err := s.Sources.Purchases.PaidPurchases(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("purchases: %w", err)
	}
	rows := make([]models.CashBookRow, 0, len(purchases))
	for _, p := range purchases {
		if p.Status != models.PurchaseStatusPaid && p.Status != models.PurchaseStatusPartial {
			continue
		}
		rows = append(rows, newRow(p.PurchaseDate, p.InvoiceNumber, "Purchase from "+p.SupplierName,
			models.CategoryPurchase, p.PaymentMode, models.CashBookOutward, p.TotalAmount))
	}
	return rows, nil
}

func (s *CashBookService) entryRows(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookRow, error) {
	if s.Sources.Entries == nil {
		return nil, nil
	}
	entries, err := s.Sources.Entries.EntriesBetween(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("manual entries: %w", err)
	}
	rows := make([]models.CashBookRow, 0, len(entries))
	for _, e := range entries {
		dir := models.CashBookInward
		if e.EntryType == models.CashBookEntryCashOut || e.EntryType == models.CashBookEntryBankOut {
			dir = models.CashBookOutward
		}
		category := e.Category
		if category == "" {
			category = models.CategoryManualEntry
		}
		ref := e.Reference
		if ref == "" {
			ref = fmt.Sprintf("CB-%d", e.ID)
		}
		rows = append(rows, newRow(e.EntryDate, ref, e.Particulars, category, e.PaymentMode, dir, e.Amount))
	}
	return rows, nil
}

// CreateEntry records a manual cash book line. Cash entry types must use CASH, bank types a
// non-cash mode (BANK_TRANSFER when none is given).
func (s *CashBookService) CreateEntry(ctx context.Context, tenantID, userID int, req *models.CreateCashBookEntryRequest) (*models.CashBookEntry, error) {
	entryType := models.CashBookEntryType(strings.ToUpper(strings.TrimSpace(req.EntryType)))
	if !entryType.Valid() {
		return nil, &ValidationError{Field: "entry_type", Message: fmt.Sprintf("unknown entry type %q", req.EntryType)}
	}
	if !req.Amount.IsPositive() {
		return nil, invalidAmount("amount", "must be > 0, got %s", req.Amount.StringFixed(2))
	}
	if strings.TrimSpace(req.Particulars) == "" {
		return nil, &ValidationError{Field: "particulars", Message: "is required"}
	}

	isCashType := entryType == models.CashBookEntryCashIn || entryType == models.CashBookEntryCashOut
	mode := models.PaymentModeBankTransfer
	if isCashType {
		mode = models.PaymentModeCash
	}
	if strings.TrimSpace(req.PaymentMode) != "" {
		var err error
		if mode, err = parseMode(req.PaymentMode); err != nil {
			return nil, err
		}
	}
	if mode.IsCash() != isCashType {
		return nil, &ValidationError{Field: "payment_mode", Message: fmt.Sprintf("%s does not match entry type %s", mode, entryType)}
	}

	entry := &models.CashBookEntry{
		TenantID:        tenantID,
		EntryType:       entryType,
		Amount:          money.Round(req.Amount),
		Particulars:     strings.TrimSpace(req.Particulars),
		Reference:       strings.TrimSpace(req.Reference),
		Category:        strings.TrimSpace(req.Category),
		PaymentMode:     mode,
		EntryDate:       time.Now(),
		CreatedByUserID: userID,
	}
	if entry.Category == "" {
		entry.Category = models.CategoryManualEntry
	}
	if req.EntryDate != nil {
		entry.EntryDate = *req.EntryDate
	}

	if err := s.Store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create cash book entry: %w", err)
	}
	s.log.Info().Int("tenant_id", tenantID).Int("entry_id", entry.ID).Str("type", string(entryType)).
		Str("amount", entry.Amount.StringFixed(2)).Msg("manual cash book entry created")
	s.Cache.Invalidate(ctx, tenantID)
	return entry, nil
}
