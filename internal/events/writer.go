package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	ReportSaved         = "report.saved"
	ReportStatusChanged = "report.status_changed"
	ReportDeleted       = "report.deleted"
	ApproverAdded       = "approver.added"
	ApproverRemoved     = "approver.removed"
	ApproverSoftDeleted = "approver.soft_deleted"
	ApproverRestored    = "approver.restored"
	ApproverDecided     = "approver.decided"
	GoalPruned          = "goal.pruned"
	ObjectivePruned     = "objective.pruned"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside tx so it commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, reportID int64, entityKind string, entityID int64, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,report_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullableID(reportID), entityKind, nullableEntity(entityID), actorID, string(data))
	return err
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableEntity(v int64) any {
	if v == 0 {
		return nil
	}
	return strconv.FormatInt(v, 10)
}
