package repositories

import (
	"context"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PayoutRepository struct {
	DB *pgxpool.Pool
}

func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{DB: db}
}

func (r *PayoutRepository) CreatePayout(ctx context.Context, p *models.Payout) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO payouts(tenant_id, doctor_id, amount, payment_mode, reference, paid_at, notes, created_by_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		p.TenantID, p.DoctorID, p.Amount, p.PaymentMode, p.Reference, p.PaidAt, p.Notes, p.CreatedByUserID,
	).Scan(&p.ID, &p.CreatedAt)
}

// MonthlyPayouts sums payouts to a doctor per IST month
func (r *PayoutRepository) MonthlyPayouts(ctx context.Context, tenantID, doctorID int) ([]models.MonthlyAmount, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT to_char(paid_at AT TIME ZONE 'Asia/Kolkata', 'YYYY-MM') AS month, SUM(amount)
		 FROM payouts
		 WHERE tenant_id = $1 AND doctor_id = $2
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

// PayoutsBetween lists payouts paid in [from, to] with the payee's name
func (r *PayoutRepository) PayoutsBetween(ctx context.Context, tenantID int, from, to time.Time) ([]models.Payout, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT p.id, p.tenant_id, p.doctor_id, COALESCE(d.name, ''), p.amount, p.payment_mode,
		        COALESCE(p.reference, ''), p.paid_at, COALESCE(p.notes, ''), p.created_by_user_id, p.created_at
		 FROM payouts p
		 LEFT JOIN doctors d ON d.id = p.doctor_id
		 WHERE p.tenant_id = $1 AND p.paid_at BETWEEN $2 AND $3
		 ORDER BY p.paid_at, p.id`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.ID, &p.TenantID, &p.DoctorID, &p.DoctorName, &p.Amount, &p.PaymentMode,
			&p.Reference, &p.PaidAt, &p.Notes, &p.CreatedByUserID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
