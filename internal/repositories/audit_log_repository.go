package repositories

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"lab-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AuditLogRepository is the append-only audit trail
type AuditLogRepository struct {
	DB *pgxpool.Pool
}

func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, ev *models.AuditEvent) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO audit_logs(tenant_id, entity_type, entity_id, action, old_values, new_values, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		ev.TenantID, ev.EntityType, ev.EntityID, ev.Action, nullJSON(ev.OldValues), nullJSON(ev.NewValues), ev.UserID,
	).Scan(&ev.ID, &ev.CreatedAt)
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// Query lists the audit events of one entity, oldest first
func (r *AuditLogRepository) Query(ctx context.Context, tenantID int, entityType string, entityID int) ([]models.AuditEvent, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, tenant_id, entity_type, entity_id, action, old_values, new_values, user_id, created_at
		 FROM audit_logs
		 WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		 ORDER BY created_at, id`, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var oldValues, newValues []byte
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.EntityType, &ev.EntityID, &ev.Action,
			&oldValues, &newValues, &ev.UserID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.OldValues, ev.NewValues = oldValues, newValues
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AuditReplaySource recovers due collections from invoice UPDATE events carrying an
// incremental paidAmount. It serves data written before the payment event log existed.
type AuditReplaySource struct {
	DB *pgxpool.Pool
}

func NewAuditReplaySource(db *pgxpool.Pool) *AuditReplaySource {
	return &AuditReplaySource{DB: db}
}

// DecodeDueCollection reads the incremental payment out of an audit event's new values.
// ok is false when the event carries no positive paidAmount. A missing mode means CASH.
func DecodeDueCollection(newValues []byte) (amount decimal.Decimal, mode models.PaymentMode, ok bool) {
	if len(newValues) == 0 {
		return decimal.Zero, "", false
	}
	var v struct {
		PaidAmount  json.RawMessage `json:"paidAmount"`
		PaymentMode string          `json:"paymentMode"`
	}
	if err := json.Unmarshal(newValues, &v); err != nil || len(v.PaidAmount) == 0 {
		return decimal.Zero, "", false
	}
	raw := strings.Trim(string(v.PaidAmount), `"`)
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, "", false
	}
	return amount, models.NormalizePaymentMode(v.PaymentMode), true
}

func (s *AuditReplaySource) DueCollections(ctx context.Context, tenantID int, from, to time.Time) ([]models.DueCollection, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT a.entity_id, i.invoice_number, COALESCE(p.name, ''), a.new_values, a.created_at
		 FROM audit_logs a
		 JOIN invoices i ON i.id = a.entity_id AND i.tenant_id = a.tenant_id
		 LEFT JOIN patients p ON p.id = i.patient_id
		 WHERE a.tenant_id = $1 AND a.entity_type = $2 AND a.action = $3
		   AND a.new_values ? 'paidAmount' AND a.created_at BETWEEN $4 AND $5
		 ORDER BY a.created_at, a.id`,
		tenantID, models.EntityTypeInvoice, models.AuditActionUpdate, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DueCollection
	for rows.Next() {
		var d models.DueCollection
		var newValues []byte
		if err := rows.Scan(&d.InvoiceID, &d.InvoiceNumber, &d.PatientName, &newValues, &d.CollectedAt); err != nil {
			return nil, err
		}
		amount, mode, ok := DecodeDueCollection(newValues)
		if !ok {
			continue
		}
		d.Amount, d.PaymentMode = amount, mode
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *AuditReplaySource) SubsequentTotals(ctx context.Context, tenantID int, invoiceIDs []int) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx,
		`SELECT entity_id, new_values FROM audit_logs
		 WHERE tenant_id = $1 AND entity_type = $2 AND action = $3
		   AND new_values ? 'paidAmount' AND entity_id = ANY($4)`,
		tenantID, models.EntityTypeInvoice, models.AuditActionUpdate, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var newValues []byte
		if err := rows.Scan(&id, &newValues); err != nil {
			return nil, err
		}
		if amount, _, ok := DecodeDueCollection(newValues); ok {
			out[id] = out[id].Add(amount)
		}
	}
	return out, rows.Err()
}
