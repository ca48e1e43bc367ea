package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"reportline/internal/domain"
	"reportline/internal/events"
	"reportline/internal/repo"
)

// approverState is the three-way state of one (report, user) approver pair.
type approverState int

const (
	approverAbsent approverState = iota
	approverActive
	approverSoftDeleted
)

// syncApprovers makes the report's active approvers equal to userIDs. Removed
// approvers who never reviewed are deleted outright; the rest are soft-deleted
// so a later re-add restores their decision and note.
func (e Engine) syncApprovers(ctx context.Context, rc *reconcileCtx, userIDs []int64) error {
	want := dedupe(userIDs)
	if err := e.requireExisting(ctx, rc, "users", "approverUserIds", want); err != nil {
		return err
	}
	rows, err := e.Repo.ListApprovers(ctx, rc.tx, rc.report.ID, true)
	if err != nil {
		return fmt.Errorf("list approvers: %w", err)
	}
	byUser := make(map[int64]domain.Approver, len(rows))
	for _, a := range rows {
		if prev, dup := byUser[a.UserID]; dup {
			if prev.Active() && a.Active() {
				return e.invariant(repo.ErrDuplicateActiveApprover,
					zap.Int64("report_id", rc.report.ID), zap.Int64("user_id", a.UserID))
			}
			if prev.Active() {
				continue
			}
		}
		byUser[a.UserID] = a
	}

	wanted := toSet(want)
	for _, a := range rows {
		if byUser[a.UserID].ID != a.ID || !a.Active() || wanted[a.UserID] {
			continue
		}
		if err := e.removeApprover(ctx, rc, a); err != nil {
			return err
		}
	}
	for _, userID := range want {
		a, ok := byUser[userID]
		switch stateOf(a, ok) {
		case approverActive:
			continue
		case approverSoftDeleted:
			if err := e.restoreApprover(ctx, rc, a); err != nil {
				return err
			}
		case approverAbsent:
			id, err := e.Repo.InsertApprover(ctx, rc.tx, rc.report.ID, userID, rc.now)
			if err != nil {
				return fmt.Errorf("insert approver %d: %w", userID, err)
			}
			approverChanges.WithLabelValues("added").Inc()
			if err := e.emit(ctx, rc, events.ApproverAdded, "approver", id, events.EventPayload{"userId": userID}); err != nil {
				return err
			}
		}
	}
	return nil
}

func stateOf(a domain.Approver, ok bool) approverState {
	switch {
	case !ok:
		return approverAbsent
	case a.Active():
		return approverActive
	default:
		return approverSoftDeleted
	}
}

func (e Engine) removeApprover(ctx context.Context, rc *reconcileCtx, a domain.Approver) error {
	if !a.Reviewed() {
		if err := e.Repo.DeleteApprover(ctx, rc.tx, a.ID); err != nil {
			return fmt.Errorf("delete approver %d: %w", a.UserID, err)
		}
		approverChanges.WithLabelValues("removed").Inc()
		return e.emit(ctx, rc, events.ApproverRemoved, "approver", a.ID, events.EventPayload{"userId": a.UserID})
	}
	if err := e.Repo.SoftDeleteApprover(ctx, rc.tx, a.ID, rc.now); err != nil {
		return fmt.Errorf("soft delete approver %d: %w", a.UserID, err)
	}
	approverChanges.WithLabelValues("soft_deleted").Inc()
	e.log().Info("approver soft-deleted", zap.Int64("report_id", rc.report.ID), zap.Int64("user_id", a.UserID))
	return e.emit(ctx, rc, events.ApproverSoftDeleted, "approver", a.ID, events.EventPayload{"userId": a.UserID})
}

func (e Engine) restoreApprover(ctx context.Context, rc *reconcileCtx, a domain.Approver) error {
	if err := e.Repo.RestoreApprover(ctx, rc.tx, a.ID, rc.now); err != nil {
		return fmt.Errorf("restore approver %d: %w", a.UserID, err)
	}
	approverChanges.WithLabelValues("restored").Inc()
	e.log().Info("approver restored", zap.Int64("report_id", rc.report.ID), zap.Int64("user_id", a.UserID))
	return e.emit(ctx, rc, events.ApproverRestored, "approver", a.ID, events.EventPayload{"userId": a.UserID})
}

// SetApproverDecision records one approver's review. A soft-deleted approver
// is restored first. The report status is re-derived in the same transaction.
func (e Engine) SetApproverDecision(ctx context.Context, reportID, userID int64, d domain.ApproverDecision, actorID string) (domain.Approver, error) {
	if err := validateStruct(d); err != nil {
		return domain.Approver{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Approver{}, err
	}
	defer tx.Rollback()

	report, err := e.Repo.GetReport(ctx, tx, reportID)
	if err != nil {
		return domain.Approver{}, err
	}
	if report.SubmissionStatus == domain.SubmissionDeleted {
		return domain.Approver{}, ErrNotFound
	}
	rc := newReconcileCtx(tx, report, actorID, e.timestamp())

	a, err := e.Repo.GetApprover(ctx, tx, reportID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateActiveApprover) {
			return domain.Approver{}, e.invariant(err, zap.Int64("report_id", reportID), zap.Int64("user_id", userID))
		}
		return domain.Approver{}, err
	}
	if !a.Active() {
		if err := e.restoreApprover(ctx, rc, a); err != nil {
			return domain.Approver{}, err
		}
	}
	if err := e.Repo.UpdateApproverDecision(ctx, tx, a.ID, d.Status, d.Note, rc.now); err != nil {
		return domain.Approver{}, fmt.Errorf("update approver decision: %w", err)
	}
	approverChanges.WithLabelValues("decided").Inc()
	if err := e.emit(ctx, rc, events.ApproverDecided, "approver", a.ID, events.EventPayload{"userId": userID, "status": d.Status}); err != nil {
		return domain.Approver{}, err
	}
	if err := e.recomputeStatus(ctx, rc); err != nil {
		return domain.Approver{}, err
	}
	updated, err := e.Repo.GetApprover(ctx, tx, reportID, userID)
	if err != nil {
		return domain.Approver{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Approver{}, err
	}
	return updated, nil
}
