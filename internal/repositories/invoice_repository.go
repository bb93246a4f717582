package repositories

import (
	"context"
	"fmt"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceTx is the set of writes an invoice mutation performs inside one transaction
type InvoiceTx interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	// GetInvoiceForUpdate reads the invoice and holds its row lock until commit or rollback
	GetInvoiceForUpdate(ctx context.Context, tenantID, id int) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *models.Invoice) error
	ListItems(ctx context.Context, invoiceID int) ([]models.InvoiceItem, error)
	ReplaceItems(ctx context.Context, invoiceID int, items []models.InvoiceItem) error
	CreatePendingReports(ctx context.Context, invoiceID int, testIDs []int) error
	// DeletePendingReports removes report records still PENDING; completed results are kept
	DeletePendingReports(ctx context.Context, invoiceID int, testIDs []int) (int64, error)
	AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

type InvoiceRepository struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{DB: db, LockTimeout: 5 * time.Second}
}

// WithTx runs fn in a transaction with a bounded lock wait. Lock timeouts surface as
// ErrLockNotAvailable.
func (r *InvoiceRepository) WithTx(ctx context.Context, fn func(tx InvoiceTx) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.LockTimeout.Milliseconds())); err != nil {
		return translate(err)
	}
	if err := fn(&invoiceTx{tx: tx}); err != nil {
		return translate(err)
	}
	return translate(tx.Commit(ctx))
}

const invoiceColumns = `i.id, i.invoice_number, i.tenant_id, i.branch_id, i.patient_id, COALESCE(p.name, ''),
	i.doctor_id, i.introducer_id, COALESCE(i.introducer_raw, ''), COALESCE(i.department, ''),
	i.total_amount, i.tax_amount, i.discount_amount, i.net_amount, i.paid_amount, i.refund_amount,
	i.balance_amount, i.payment_status, i.payment_mode, i.commission_mode, i.doctor_commission,
	i.introducer_commission, COALESCE(i.notes, ''), i.created_by_user_id, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.TenantID, &inv.BranchID, &inv.PatientID, &inv.PatientName,
		&inv.DoctorID, &inv.IntroducerID, &inv.IntroducerRaw, &inv.Department,
		&inv.TotalAmount, &inv.TaxAmount, &inv.DiscountAmount, &inv.NetAmount, &inv.PaidAmount, &inv.RefundAmount,
		&inv.BalanceAmount, &inv.PaymentStatus, &inv.PaymentMode, &inv.CommissionMode, &inv.DoctorCommission,
		&inv.IntroducerCommission, &inv.Notes, &inv.CreatedByUserID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// GetInvoice retrieves an invoice with its items
func (r *InvoiceRepository) GetInvoice(ctx context.Context, tenantID, id int) (*models.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRow(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices i
		 LEFT JOIN patients p ON p.id = i.patient_id
		 WHERE i.tenant_id = $1 AND i.id = $2`, tenantID, id))
	if err != nil {
		return nil, err
	}
	inv.Items, err = listItems(ctx, r.DB, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, invoiceID int) ([]models.InvoiceItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, test_id, test_name, price, gst_percentage, tax_amount, created_at
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.TestID, &item.TestName, &item.Price,
			&item.GSTPercentage, &item.TaxAmount, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type invoiceTx struct {
	tx pgx.Tx
}

func (t *invoiceTx) NextInvoiceNumber(ctx context.Context) (string, error) {
	var next int64
	if err := t.tx.QueryRow(ctx, "SELECT nextval('invoice_number_sequence')").Scan(&next); err != nil {
		return "", fmt.Errorf("failed to get next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%06d", next), nil
}

func (t *invoiceTx) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	return t.tx.QueryRow(ctx,
		`INSERT INTO invoices(invoice_number, tenant_id, branch_id, patient_id, doctor_id, introducer_id,
			introducer_raw, department, total_amount, tax_amount, discount_amount, net_amount, paid_amount,
			refund_amount, balance_amount, payment_status, payment_mode, commission_mode, doctor_commission,
			introducer_commission, notes, created_by_user_id)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 RETURNING id, created_at, updated_at`,
		inv.InvoiceNumber, inv.TenantID, inv.BranchID, inv.PatientID, inv.DoctorID, inv.IntroducerID,
		inv.IntroducerRaw, inv.Department, inv.TotalAmount, inv.TaxAmount, inv.DiscountAmount, inv.NetAmount,
		inv.PaidAmount, inv.RefundAmount, inv.BalanceAmount, inv.PaymentStatus, inv.PaymentMode,
		inv.CommissionMode, inv.DoctorCommission, inv.IntroducerCommission, inv.Notes, inv.CreatedByUserID,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

func (t *invoiceTx) GetInvoiceForUpdate(ctx context.Context, tenantID, id int) (*models.Invoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices i
		 LEFT JOIN patients p ON p.id = i.patient_id
		 WHERE i.tenant_id = $1 AND i.id = $2
		 FOR UPDATE OF i`, tenantID, id))
}

func (t *invoiceTx) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE invoices SET doctor_id = $3, introducer_id = $4, introducer_raw = $5, department = $6,
			total_amount = $7, tax_amount = $8, discount_amount = $9, net_amount = $10, paid_amount = $11,
			refund_amount = $12, balance_amount = $13, payment_status = $14, payment_mode = $15,
			commission_mode = $16, doctor_commission = $17, introducer_commission = $18, notes = $19,
			updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		inv.TenantID, inv.ID, inv.DoctorID, inv.IntroducerID, inv.IntroducerRaw, inv.Department,
		inv.TotalAmount, inv.TaxAmount, inv.DiscountAmount, inv.NetAmount, inv.PaidAmount,
		inv.RefundAmount, inv.BalanceAmount, inv.PaymentStatus, inv.PaymentMode,
		inv.CommissionMode, inv.DoctorCommission, inv.IntroducerCommission, inv.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *invoiceTx) ListItems(ctx context.Context, invoiceID int) ([]models.InvoiceItem, error) {
	return listItems(ctx, t.tx, invoiceID)
}

func (t *invoiceTx) ReplaceItems(ctx context.Context, invoiceID int, items []models.InvoiceItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(
			`INSERT INTO invoice_items(invoice_id, test_id, test_name, price, gst_percentage, tax_amount)
			 VALUES($1, $2, $3, $4, $5, $6)`,
			invoiceID, item.TestID, item.TestName, item.Price, item.GSTPercentage, item.TaxAmount)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *invoiceTx) CreatePendingReports(ctx context.Context, invoiceID int, testIDs []int) error {
	if len(testIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO report_records(invoice_id, test_id, status)
		 SELECT $1, unnest($2::int[]), $3`,
		invoiceID, testIDs, models.ReportStatusPending)
	return err
}

func (t *invoiceTx) DeletePendingReports(ctx context.Context, invoiceID int, testIDs []int) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM report_records WHERE invoice_id = $1 AND test_id = ANY($2) AND status = $3`,
		invoiceID, testIDs, models.ReportStatusPending)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *invoiceTx) AppendPaymentEvent(ctx context.Context, ev *models.PaymentEvent) error {
	return t.tx.QueryRow(ctx,
		`INSERT INTO payment_events(tenant_id, invoice_id, kind, amount, payment_mode, created_by_user_id)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		ev.TenantID, ev.InvoiceID, ev.Kind, ev.Amount, ev.PaymentMode, ev.CreatedByUserID,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// CountDoctorCases counts invoices referred by a doctor since a point in time
func (r *InvoiceRepository) CountDoctorCases(ctx context.Context, tenantID, doctorID int, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = $1 AND doctor_id = $2 AND created_at >= $3`,
		tenantID, doctorID, since).Scan(&n)
	return n, err
}

// CountIntroducerCases counts invoices brought in by an introducer since a point in time
func (r *InvoiceRepository) CountIntroducerCases(ctx context.Context, tenantID, introducerID int, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices
		 WHERE tenant_id = $1 AND introducer_id = $2 AND UPPER(COALESCE(introducer_raw, '')) <> 'SELF'
		   AND created_at >= $3`,
		tenantID, introducerID, since).Scan(&n)
	return n, err
}

// InvoiceReceipts lists invoices created in [from, to] that have collected money
func (r *InvoiceRepository) InvoiceReceipts(ctx context.Context, tenantID int, from, to time.Time) ([]models.InvoiceReceipt, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT i.id, i.invoice_number, COALESCE(p.name, ''), i.paid_amount, i.payment_mode, i.created_at
		 FROM invoices i
		 LEFT JOIN patients p ON p.id = i.patient_id
		 WHERE i.tenant_id = $1 AND i.created_at BETWEEN $2 AND $3 AND i.paid_amount > 0
		 ORDER BY i.created_at, i.id`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []models.InvoiceReceipt
	for rows.Next() {
		var rc models.InvoiceReceipt
		if err := rows.Scan(&rc.InvoiceID, &rc.InvoiceNumber, &rc.PatientName, &rc.PaidAmount,
			&rc.PaymentMode, &rc.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

// MonthlyEarnings sums commission earned by a party, as doctor and as introducer, per IST month.
// Refunded invoices earn nothing.
func (r *InvoiceRepository) MonthlyEarnings(ctx context.Context, tenantID, doctorID int) ([]models.MonthlyAmount, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT to_char(created_at AT TIME ZONE 'Asia/Kolkata', 'YYYY-MM') AS month,
		        SUM(CASE WHEN doctor_id = $2 THEN doctor_commission ELSE 0 END) +
		        SUM(CASE WHEN introducer_id = $2 THEN introducer_commission ELSE 0 END) AS earned
		 FROM invoices
		 WHERE tenant_id = $1 AND (doctor_id = $2 OR introducer_id = $2) AND payment_status <> 'REFUNDED'
		 GROUP BY month
		 ORDER BY month`, tenantID, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MonthlyAmount
	for rows.Next() {
		var m models.MonthlyAmount
		if err := rows.Scan(&m.Month, &m.Amount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
