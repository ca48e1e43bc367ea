package repo

import (
	"context"
	"database/sql"
	"fmt"

	"reportline/internal/domain"
)

const goalColumns = `g.id,g.grant_id,g.name,g.status,g.end_date,g.source,g.created_via,g.on_approved_ar,g.created_at,g.updated_at`

func scanGoal(row interface{ Scan(...any) error }) (domain.Goal, error) {
	var g domain.Goal
	var end sql.NullString
	var approved int
	err := row.Scan(&g.ID, &g.GrantID, &g.Name, &g.Status, &end, &g.Source, &g.CreatedVia, &approved, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	g.EndDate = stringPtr(end)
	g.OnApprovedAR = approved == 1
	return g, err
}

func scanGoals(rows *sql.Rows) ([]domain.Goal, error) {
	defer rows.Close()
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (r Repo) GetGoal(ctx context.Context, q Querier, id int64) (domain.Goal, error) {
	return scanGoal(r.on(q).QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals g WHERE g.id=?`, id))
}

// FindOpenGoalsByIDs returns the goals among ids that belong to grantID and are not closed.
func (r Repo) FindOpenGoalsByIDs(ctx context.Context, q Querier, grantID int64, ids []int64) ([]domain.Goal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	args = append([]any{grantID, domain.GoalStatusClosed}, args...)
	rows, err := r.on(q).QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM goals g WHERE g.grant_id=? AND g.status<>? AND g.id IN %s ORDER BY g.id`, goalColumns, in), args...)
	if err != nil {
		return nil, err
	}
	return scanGoals(rows)
}

// FindOpenGoalByName returns the oldest non-closed goal with name on grantID.
func (r Repo) FindOpenGoalByName(ctx context.Context, q Querier, grantID int64, name string) (domain.Goal, error) {
	return scanGoal(r.on(q).QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals g WHERE g.grant_id=? AND g.name=? AND g.status<>? ORDER BY g.id LIMIT 1`,
		grantID, name, domain.GoalStatusClosed))
}

func (r Repo) InsertGoal(ctx context.Context, q Querier, g domain.Goal) (int64, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO goals(grant_id,name,status,end_date,source,created_via,on_approved_ar,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		g.GrantID, g.Name, g.Status, nullableStringPtr(g.EndDate), g.Source, g.CreatedVia, boolInt(g.OnApprovedAR), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateGoal(ctx context.Context, q Querier, g domain.Goal) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE goals SET name=?,status=?,end_date=?,source=?,updated_at=? WHERE id=?`,
		g.Name, g.Status, nullableStringPtr(g.EndDate), g.Source, g.UpdatedAt, g.ID)
	return err
}

func (r Repo) UpdateGoalStatus(ctx context.Context, q Querier, id int64, status, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE goals SET status=?,updated_at=? WHERE id=?`, status, now, id)
	return err
}

// DeleteGoal removes a goal; its objectives and their report links cascade.
func (r Repo) DeleteGoal(ctx context.Context, q Querier, id int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM goals WHERE id=?`, id)
	return err
}

func (r Repo) LinkGoal(ctx context.Context, q Querier, reportID, goalID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO activity_report_goals(report_id,goal_id,created_at) VALUES (?,?,?) ON CONFLICT DO NOTHING`, reportID, goalID, now)
	return err
}

func (r Repo) UnlinkGoal(ctx context.Context, q Querier, reportID, goalID int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM activity_report_goals WHERE report_id=? AND goal_id=?`, reportID, goalID)
	return err
}

// ListReportGoals returns the goals linked to a report ordered by id.
func (r Repo) ListReportGoals(ctx context.Context, q Querier, reportID int64) ([]domain.Goal, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT `+goalColumns+` FROM goals g JOIN activity_report_goals arg ON arg.goal_id=g.id WHERE arg.report_id=? ORDER BY g.id`, reportID)
	if err != nil {
		return nil, err
	}
	return scanGoals(rows)
}

// CountGoalLinks returns how many reports reference the goal.
func (r Repo) CountGoalLinks(ctx context.Context, q Querier, goalID int64) (int, error) {
	var n int
	err := r.on(q).QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_report_goals WHERE goal_id=?`, goalID).Scan(&n)
	return n, err
}

// MarkReportGoalsApproved flags every goal linked to the report as used on an approved report.
func (r Repo) MarkReportGoalsApproved(ctx context.Context, q Querier, reportID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE goals SET on_approved_ar=1,updated_at=? WHERE on_approved_ar=0 AND id IN (SELECT goal_id FROM activity_report_goals WHERE report_id=?)`, now, reportID)
	return err
}

// UnmarkReportGoalsApproved clears the flag on the report's goals unless another
// approved report still references them.
func (r Repo) UnmarkReportGoalsApproved(ctx context.Context, q Querier, reportID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE goals SET on_approved_ar=0,updated_at=?
WHERE on_approved_ar=1
  AND id IN (SELECT goal_id FROM activity_report_goals WHERE report_id=?)
  AND NOT EXISTS (
    SELECT 1 FROM activity_report_goals o JOIN reports rp ON rp.id=o.report_id
    WHERE o.goal_id=goals.id AND o.report_id<>? AND rp.calculated_status='approved')`, now, reportID, reportID)
	return err
}
