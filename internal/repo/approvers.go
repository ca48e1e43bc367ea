package repo

import (
	"context"
	"database/sql"

	"reportline/internal/domain"
)

const approverColumns = `id,report_id,user_id,status,note,deleted_at,created_at,updated_at`

func scanApprover(row interface{ Scan(...any) error }) (domain.Approver, error) {
	var a domain.Approver
	var status, note, deleted sql.NullString
	if err := row.Scan(&a.ID, &a.ReportID, &a.UserID, &status, &note, &deleted, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return a, err
	}
	if status.Valid {
		s := domain.ApproverStatus(status.String)
		a.Status = &s
	}
	a.Note = stringPtr(note)
	a.DeletedAt = stringPtr(deleted)
	return a, nil
}

// ListApprovers returns the report's approver rows, soft-deleted ones included
// when withDeleted is set.
func (r Repo) ListApprovers(ctx context.Context, q Querier, reportID int64, withDeleted bool) ([]domain.Approver, error) {
	query := `SELECT ` + approverColumns + ` FROM activity_report_approvers WHERE report_id=?`
	if !withDeleted {
		query += ` AND deleted_at IS NULL`
	}
	rows, err := r.on(q).QueryContext(ctx, query+` ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Approver{}
	for rows.Next() {
		a, err := scanApprover(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// GetApprover returns the row for (reportID, userID), active or soft-deleted.
// An active row wins over soft-deleted ones; two active rows are an invariant
// violation reported as ErrDuplicateActiveApprover.
func (r Repo) GetApprover(ctx context.Context, q Querier, reportID, userID int64) (domain.Approver, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT `+approverColumns+` FROM activity_report_approvers WHERE report_id=? AND user_id=? ORDER BY id`, reportID, userID)
	if err != nil {
		return domain.Approver{}, err
	}
	defer rows.Close()
	var (
		found       bool
		best        domain.Approver
		activeCount int
	)
	for rows.Next() {
		a, err := scanApprover(rows)
		if err != nil {
			return domain.Approver{}, err
		}
		if a.Active() {
			activeCount++
			best = a
		} else if !found || !best.Active() {
			best = a
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return domain.Approver{}, err
	}
	if activeCount > 1 {
		return domain.Approver{}, ErrDuplicateActiveApprover
	}
	if !found {
		return domain.Approver{}, ErrNotFound
	}
	return best, nil
}

func (r Repo) InsertApprover(ctx context.Context, q Querier, reportID, userID int64, now string) (int64, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO activity_report_approvers(report_id,user_id,created_at,updated_at) VALUES (?,?,?,?)`, reportID, userID, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) DeleteApprover(ctx context.Context, q Querier, id int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM activity_report_approvers WHERE id=?`, id)
	return err
}

func (r Repo) SoftDeleteApprover(ctx context.Context, q Querier, id int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE activity_report_approvers SET deleted_at=?,updated_at=? WHERE id=? AND deleted_at IS NULL`, now, now, id)
	return err
}

func (r Repo) RestoreApprover(ctx context.Context, q Querier, id int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE activity_report_approvers SET deleted_at=NULL,updated_at=? WHERE id=?`, now, id)
	return err
}

func (r Repo) UpdateApproverDecision(ctx context.Context, q Querier, id int64, status domain.ApproverStatus, note *string, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE activity_report_approvers SET status=?,note=?,updated_at=? WHERE id=?`, string(status), nullableStringPtr(note), now, id)
	return err
}
