package repo

import (
	"context"
	"database/sql"

	"reportline/internal/domain"
)

func (r Repo) ListRecipients(ctx context.Context, q Querier, reportID int64) ([]domain.Recipient, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT id,report_id,grant_id,other_entity_id FROM activity_recipients WHERE report_id=? ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Recipient
	for rows.Next() {
		var (
			rec           domain.Recipient
			grant, entity sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.ReportID, &grant, &entity); err != nil {
			return nil, err
		}
		rec.GrantID = int64Ptr(grant)
		rec.OtherEntityID = int64Ptr(entity)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// InsertRecipient attaches a grant or other entity depending on t.
func (r Repo) InsertRecipient(ctx context.Context, q Querier, reportID int64, t domain.RecipientType, id int64, now string) error {
	var grant, entity any
	if t == domain.RecipientTypeGrant {
		grant = id
	} else {
		entity = id
	}
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO activity_recipients(report_id,grant_id,other_entity_id,created_at) VALUES (?,?,?,?)`, reportID, grant, entity, now)
	return err
}

func (r Repo) DeleteRecipient(ctx context.Context, q Querier, id int64) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM activity_recipients WHERE id=?`, id)
	return err
}

// ListActivityRecipients returns the normalized recipient view with display names.
func (r Repo) ListActivityRecipients(ctx context.Context, q Querier, reportID int64) ([]domain.ActivityRecipient, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT ar.id, COALESCE(ar.grant_id, ar.other_entity_id),
  CASE WHEN ar.grant_id IS NOT NULL THEN g.name || CASE WHEN g.recipient_name <> '' THEN ' - ' || g.recipient_name ELSE '' END ELSE oe.name END,
  CASE WHEN ar.grant_id IS NOT NULL THEN 'recipient' ELSE 'other-entity' END
FROM activity_recipients ar
LEFT JOIN grants g ON g.id = ar.grant_id
LEFT JOIN other_entities oe ON oe.id = ar.other_entity_id
WHERE ar.report_id=? ORDER BY ar.id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ActivityRecipient{}
	for rows.Next() {
		var ar domain.ActivityRecipient
		if err := rows.Scan(&ar.ActivityRecipientID, &ar.ID, &ar.Name, &ar.Type); err != nil {
			return nil, err
		}
		res = append(res, ar)
	}
	return res, rows.Err()
}
