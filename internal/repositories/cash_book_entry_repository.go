package repositories

import (
	"context"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CashBookEntryRepository struct {
	DB *pgxpool.Pool
}

func NewCashBookEntryRepository(db *pgxpool.Pool) *CashBookEntryRepository {
	return &CashBookEntryRepository{DB: db}
}

func (r *CashBookEntryRepository) CreateEntry(ctx context.Context, e *models.CashBookEntry) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO cash_book_entries(tenant_id, entry_type, amount, particulars, reference, category,
		        payment_mode, entry_date, created_by_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		e.TenantID, e.EntryType, e.Amount, e.Particulars, e.Reference, e.Category,
		e.PaymentMode, e.EntryDate, e.CreatedByUserID).Scan(&e.ID, &e.CreatedAt)
}

// EntriesBetween lists manual entries dated in [from, to]
func (r *CashBookEntryRepository) EntriesBetween(ctx context.Context, tenantID int, from, to time.Time) ([]models.CashBookEntry, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, tenant_id, entry_type, amount, particulars, COALESCE(reference, ''),
		        COALESCE(category, ''), payment_mode, entry_date, created_by_user_id, created_at
		 FROM cash_book_entries
		 WHERE tenant_id = $1 AND entry_date BETWEEN $2 AND $3
		 ORDER BY entry_date, id`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CashBookEntry
	for rows.Next() {
		var e models.CashBookEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntryType, &e.Amount, &e.Particulars, &e.Reference,
			&e.Category, &e.PaymentMode, &e.EntryDate, &e.CreatedByUserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
