package repo

import (
	"context"
)

func (r Repo) ListCollaborators(ctx context.Context, q Querier, reportID int64) ([]int64, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT user_id FROM report_collaborators WHERE report_id=? ORDER BY user_id`, reportID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (r Repo) AddCollaborator(ctx context.Context, q Querier, reportID, userID int64, now string) error {
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO report_collaborators(report_id,user_id,created_at) VALUES (?,?,?) ON CONFLICT DO NOTHING`, reportID, userID, now)
	return err
}

func (r Repo) RemoveCollaborator(ctx context.Context, q Querier, reportID, userID int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM report_collaborators WHERE report_id=? AND user_id=?`, reportID, userID)
	return err
}
