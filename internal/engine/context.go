package engine

import (
	"database/sql"

	"reportline/internal/domain"
)

// reconcileCtx carries everything one save needs. It is created per call and
// handed by pointer to each synchronizer; nothing is shared between calls.
type reconcileCtx struct {
	tx           *sql.Tx
	report       domain.Report
	previousType domain.RecipientType
	// scope is nil until the report has a recipient type.
	scope domain.RecipientScope
	actor string
	now   string

	touchedGoals      map[int64]bool
	touchedObjectives map[int64]bool
}

func newReconcileCtx(tx *sql.Tx, report domain.Report, actor, now string) *reconcileCtx {
	return &reconcileCtx{
		tx:                tx,
		report:            report,
		previousType:      report.ActivityRecipientType,
		actor:             actor,
		now:               now,
		touchedGoals:      map[int64]bool{},
		touchedObjectives: map[int64]bool{},
	}
}

func (rc *reconcileCtx) typeChanged() bool {
	return rc.previousType != "" && rc.previousType != rc.report.ActivityRecipientType
}
