package services

import (
	"context"
	"encoding/json"

	"lab-backend/internal/metrics"
	"lab-backend/internal/models"

	"github.com/rs/zerolog"
)

// writeAudit fills the value columns of ev and appends it after the business write has committed.
// Marshal and append failures are counted and logged, never returned.
func writeAudit(ctx context.Context, trail AuditTrail, log zerolog.Logger, ev *models.AuditEvent, oldValues, newValues map[string]interface{}) {
	if trail == nil {
		return
	}
	err := marshalAuditValues(ev, oldValues, newValues)
	if err == nil {
		err = trail.Append(ctx, ev)
	}
	if err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		log.Error().Err(err).Str("entity_type", ev.EntityType).Int("entity_id", ev.EntityID).
			Str("action", ev.Action).Msg("failed to write audit event")
	}
}

func marshalAuditValues(ev *models.AuditEvent, oldValues, newValues map[string]interface{}) error {
	var err error
	if oldValues != nil {
		if ev.OldValues, err = json.Marshal(oldValues); err != nil {
			return err
		}
	}
	ev.NewValues, err = json.Marshal(newValues)
	return err
}
