package repositories

import (
	"context"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseRepository struct {
	DB *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

// PaidPurchases lists PAID and PARTIAL purchase invoices dated in [from, to]
func (r *PurchaseRepository) PaidPurchases(ctx context.Context, tenantID int, from, to time.Time) ([]models.PurchaseInvoice, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, tenant_id, invoice_number, supplier_name, total_amount, status,
		        COALESCE(payment_mode, 'CASH'), purchase_date
		 FROM purchase_invoices
		 WHERE tenant_id = $1 AND status IN ('PAID', 'PARTIAL') AND purchase_date BETWEEN $2 AND $3
		 ORDER BY purchase_date, id`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PurchaseInvoice
	for rows.Next() {
		var p models.PurchaseInvoice
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceNumber, &p.SupplierName, &p.TotalAmount,
			&p.Status, &p.PaymentMode, &p.PurchaseDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
