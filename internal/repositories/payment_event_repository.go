package repositories

import (
	"context"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentEventRepository reads the payment event log written by invoice transactions
type PaymentEventRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentEventRepository(db *pgxpool.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{DB: db}
}

// DueCollections lists top-ups collected in [from, to], whenever their invoice was created
func (r *PaymentEventRepository) DueCollections(ctx context.Context, tenantID int, from, to time.Time) ([]models.DueCollection, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT e.invoice_id, i.invoice_number, COALESCE(p.name, ''), e.amount, e.payment_mode, e.created_at
		 FROM payment_events e
		 JOIN invoices i ON i.id = e.invoice_id
		 LEFT JOIN patients p ON p.id = i.patient_id
		 WHERE e.tenant_id = $1 AND e.kind = $2 AND e.created_at BETWEEN $3 AND $4
		 ORDER BY e.created_at, e.id`, tenantID, models.PaymentEventDueCollection, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DueCollection
	for rows.Next() {
		var d models.DueCollection
		if err := rows.Scan(&d.InvoiceID, &d.InvoiceNumber, &d.PatientName, &d.Amount, &d.PaymentMode,
			&d.CollectedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SubsequentTotals sums all due collections per invoice, regardless of date
func (r *PaymentEventRepository) SubsequentTotals(ctx context.Context, tenantID int, invoiceIDs []int) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT invoice_id, SUM(amount) FROM payment_events
		 WHERE tenant_id = $1 AND kind = $2 AND invoice_id = ANY($3)
		 GROUP BY invoice_id`, tenantID, models.PaymentEventDueCollection, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var total decimal.Decimal
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}
