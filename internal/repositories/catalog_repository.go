package repositories

import (
	"context"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository reads the test price list and patients
type CatalogRepository struct {
	DB *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

// GetTests returns the requested active tests keyed by id. Unknown ids are simply absent.
func (r *CatalogRepository) GetTests(ctx context.Context, tenantID int, ids []int) (map[int]models.LabTest, error) {
	out := make(map[int]models.LabTest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, price, gst_percentage FROM lab_tests
		 WHERE tenant_id = $1 AND id = ANY($2) AND is_active`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.LabTest
		if err := rows.Scan(&t.ID, &t.Name, &t.Price, &t.GSTPercentage); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (r *CatalogRepository) GetPatient(ctx context.Context, tenantID, id int) (*models.Patient, error) {
	var p models.Patient
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, COALESCE(phone, '') FROM patients WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&p.ID, &p.Name, &p.Phone)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}
