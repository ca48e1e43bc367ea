package repo

import (
	"context"
	"database/sql"
	"fmt"

	"reportline/internal/domain"
)

// ObjectiveOwner identifies the goal or other entity an objective belongs to.
// Exactly one field is non-zero.
type ObjectiveOwner struct {
	GoalID        int64
	OtherEntityID int64
}

func (o ObjectiveOwner) clause() (string, int64) {
	if o.GoalID != 0 {
		return "o.goal_id=?", o.GoalID
	}
	return "o.other_entity_id=?", o.OtherEntityID
}

const objectiveColumns = `o.id,o.goal_id,o.other_entity_id,o.title,o.status,o.created_via,o.on_approved_ar,o.created_at,o.updated_at`

func scanObjective(row interface{ Scan(...any) error }) (domain.Objective, error) {
	var o domain.Objective
	var goal, entity sql.NullInt64
	var approved int
	err := row.Scan(&o.ID, &goal, &entity, &o.Title, &o.Status, &o.CreatedVia, &approved, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	o.GoalID = int64Ptr(goal)
	o.OtherEntityID = int64Ptr(entity)
	o.OnApprovedAR = approved == 1
	return o, err
}

func (r Repo) GetObjective(ctx context.Context, q Querier, id int64) (domain.Objective, error) {
	return scanObjective(r.on(q).QueryRowContext(ctx, `SELECT `+objectiveColumns+` FROM objectives o WHERE o.id=?`, id))
}

// FindOpenObjectivesByIDs returns the objectives among ids owned by owner and not complete.
func (r Repo) FindOpenObjectivesByIDs(ctx context.Context, q Querier, owner ObjectiveOwner, ids []int64) ([]domain.Objective, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	where, ownerID := owner.clause()
	in, args := inClause(ids)
	args = append([]any{ownerID, domain.ObjectiveStatusComplete}, args...)
	rows, err := r.on(q).QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM objectives o WHERE %s AND o.status<>? AND o.id IN %s ORDER BY o.id`, objectiveColumns, where, in), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Objective
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// FindOpenObjectiveByTitle returns the oldest non-complete objective of owner with title.
func (r Repo) FindOpenObjectiveByTitle(ctx context.Context, q Querier, owner ObjectiveOwner, title string) (domain.Objective, error) {
	where, ownerID := owner.clause()
	return scanObjective(r.on(q).QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM objectives o WHERE %s AND o.title=? AND o.status<>? ORDER BY o.id LIMIT 1`, objectiveColumns, where),
		ownerID, title, domain.ObjectiveStatusComplete))
}

func (r Repo) InsertObjective(ctx context.Context, q Querier, o domain.Objective) (int64, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO objectives(goal_id,other_entity_id,title,status,created_via,on_approved_ar,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		nullableInt64Ptr(o.GoalID), nullableInt64Ptr(o.OtherEntityID), o.Title, o.Status, o.CreatedVia, boolInt(o.OnApprovedAR), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateObjective(ctx context.Context, q Querier, o domain.Objective) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE objectives SET title=?,status=?,updated_at=? WHERE id=?`, o.Title, o.Status, o.UpdatedAt, o.ID)
	return err
}

func (r Repo) DeleteObjective(ctx context.Context, q Querier, id int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM objectives WHERE id=?`, id)
	return err
}

// UpsertReportObjective creates or updates the report-scoped join row and returns its id.
func (r Repo) UpsertReportObjective(ctx context.Context, q Querier, aro domain.ReportObjective, now string) (int64, error) {
	var id int64
	err := r.on(q).QueryRowContext(ctx, `INSERT INTO activity_report_objectives(report_id,objective_id,tta_provided,support_type,status,display_order,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(report_id,objective_id) DO UPDATE SET
  tta_provided=excluded.tta_provided,
  support_type=excluded.support_type,
  status=excluded.status,
  display_order=excluded.display_order,
  updated_at=CASE WHEN activity_report_objectives.tta_provided IS excluded.tta_provided
    AND activity_report_objectives.support_type IS excluded.support_type
    AND activity_report_objectives.status IS excluded.status
    AND activity_report_objectives.display_order IS excluded.display_order
    THEN activity_report_objectives.updated_at ELSE excluded.updated_at END
RETURNING id`,
		aro.ReportID, aro.ObjectiveID, aro.TTAProvided, aro.SupportType, aro.Status, aro.DisplayOrder, now, now).Scan(&id)
	return id, err
}

func (r Repo) DeleteReportObjective(ctx context.Context, q Querier, reportID, objectiveID int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM activity_report_objectives WHERE report_id=? AND objective_id=?`, reportID, objectiveID)
	return err
}

// ReportObjectiveRow is an objective together with its join row on one report.
type ReportObjectiveRow struct {
	Link      domain.ReportObjective
	Objective domain.Objective
}

// ListReportObjectives returns the report's objectives ordered by display order.
func (r Repo) ListReportObjectives(ctx context.Context, q Querier, reportID int64) ([]ReportObjectiveRow, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT aro.id,aro.report_id,aro.objective_id,aro.tta_provided,aro.support_type,aro.status,aro.display_order,`+objectiveColumns+`
FROM activity_report_objectives aro JOIN objectives o ON o.id=aro.objective_id
WHERE aro.report_id=? ORDER BY aro.display_order, aro.id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportObjectiveRow
	for rows.Next() {
		var (
			row          ReportObjectiveRow
			goal, entity sql.NullInt64
			approved     int
		)
		l := &row.Link
		o := &row.Objective
		if err := rows.Scan(&l.ID, &l.ReportID, &l.ObjectiveID, &l.TTAProvided, &l.SupportType, &l.Status, &l.DisplayOrder,
			&o.ID, &goal, &entity, &o.Title, &o.Status, &o.CreatedVia, &approved, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.GoalID = int64Ptr(goal)
		o.OtherEntityID = int64Ptr(entity)
		o.OnApprovedAR = approved == 1
		res = append(res, row)
	}
	return res, rows.Err()
}

// CountObjectiveLinks returns how many reports reference the objective.
func (r Repo) CountObjectiveLinks(ctx context.Context, q Querier, objectiveID int64) (int, error) {
	var n int
	err := r.on(q).QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_report_objectives WHERE objective_id=?`, objectiveID).Scan(&n)
	return n, err
}

func (r Repo) MarkReportObjectivesApproved(ctx context.Context, q Querier, reportID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE objectives SET on_approved_ar=1,updated_at=? WHERE on_approved_ar=0 AND id IN (SELECT objective_id FROM activity_report_objectives WHERE report_id=?)`, now, reportID)
	return err
}

func (r Repo) UnmarkReportObjectivesApproved(ctx context.Context, q Querier, reportID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE objectives SET on_approved_ar=0,updated_at=?
WHERE on_approved_ar=1
  AND id IN (SELECT objective_id FROM activity_report_objectives WHERE report_id=?)
  AND NOT EXISTS (
    SELECT 1 FROM activity_report_objectives o JOIN reports rp ON rp.id=o.report_id
    WHERE o.objective_id=objectives.id AND o.report_id<>? AND rp.calculated_status='approved')`, now, reportID, reportID)
	return err
}
