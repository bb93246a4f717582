package repositories

import (
	"context"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DoctorRepository struct {
	DB *pgxpool.Pool
}

func NewDoctorRepository(db *pgxpool.Pool) *DoctorRepository {
	return &DoctorRepository{DB: db}
}

// GetDoctor returns a doctor or introducer of the tenant. A missing commission setup is
// returned as an empty CommissionType.
func (r *DoctorRepository) GetDoctor(ctx context.Context, tenantID, id int) (*models.Doctor, error) {
	var d models.Doctor
	err := r.DB.QueryRow(ctx,
		`SELECT id, tenant_id, name, COALESCE(phone, ''), COALESCE(email, ''), is_introducer,
		        COALESCE(commission_type, ''), COALESCE(commission_value, 0), is_active, created_at
		 FROM doctors WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&d.ID, &d.TenantID, &d.Name, &d.Phone, &d.Email, &d.IsIntroducer,
			&d.CommissionType, &d.CommissionValue, &d.IsActive, &d.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}
