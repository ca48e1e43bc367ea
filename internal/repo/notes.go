package repo

import (
	"context"
	"database/sql"

	"reportline/internal/domain"
)

// ListNotes returns a channel's notes in creation order.
func (r Repo) ListNotes(ctx context.Context, q Querier, reportID int64, channel domain.NoteChannel) ([]domain.Note, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT id,report_id,note_type,note,complete_date,created_at,updated_at FROM next_steps WHERE report_id=? AND note_type=? ORDER BY id`, reportID, string(channel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		var complete sql.NullString
		if err := rows.Scan(&n.ID, &n.ReportID, &n.Channel, &n.Note, &complete, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.CompleteDate = stringPtr(complete)
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) InsertNote(ctx context.Context, q Querier, n domain.Note) (int64, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO next_steps(report_id,note_type,note,complete_date,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		n.ReportID, string(n.Channel), n.Note, nullableStringPtr(n.CompleteDate), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateNote(ctx context.Context, q Querier, n domain.Note) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE next_steps SET note=?,complete_date=?,updated_at=? WHERE id=? AND report_id=?`,
		n.Note, nullableStringPtr(n.CompleteDate), n.UpdatedAt, n.ID, n.ReportID)
	return err
}

func (r Repo) DeleteNote(ctx context.Context, q Querier, id int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM next_steps WHERE id=?`, id)
	return err
}
