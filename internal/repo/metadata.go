package repo

import (
	"context"

	"reportline/internal/domain"
)

// MetadataRow is one stored metadata item with its payload position.
type MetadataRow struct {
	Item     domain.MetadataItem
	Position int
}

func (r Repo) ListObjectiveMetadata(ctx context.Context, q Querier, aroID int64) ([]MetadataRow, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT kind,ref,position FROM activity_report_objective_metadata WHERE aro_id=? ORDER BY position,kind,ref`, aroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []MetadataRow
	for rows.Next() {
		var m MetadataRow
		if err := rows.Scan(&m.Item.Kind, &m.Item.Ref, &m.Position); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) InsertObjectiveMetadata(ctx context.Context, q Querier, aroID int64, m domain.MetadataItem, position int) error {
	_, err := r.on(q).ExecContext(ctx, `INSERT INTO activity_report_objective_metadata(aro_id,kind,ref,position) VALUES (?,?,?,?) ON CONFLICT DO NOTHING`, aroID, string(m.Kind), m.Ref, position)
	return err
}

func (r Repo) UpdateObjectiveMetadataPosition(ctx context.Context, q Querier, aroID int64, m domain.MetadataItem, position int) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE activity_report_objective_metadata SET position=? WHERE aro_id=? AND kind=? AND ref=?`, position, aroID, string(m.Kind), m.Ref)
	return err
}

func (r Repo) DeleteObjectiveMetadata(ctx context.Context, q Querier, aroID int64, m domain.MetadataItem) error {
	_, err := r.on(q).ExecContext(ctx, `DELETE FROM activity_report_objective_metadata WHERE aro_id=? AND kind=? AND ref=?`, aroID, string(m.Kind), m.Ref)
	return err
}

// ListReportMetadata returns every metadata item on the report keyed by join
// row id, in payload order.
func (r Repo) ListReportMetadata(ctx context.Context, q Querier, reportID int64) (map[int64][]domain.MetadataItem, error) {
	rows, err := r.on(q).QueryContext(ctx, `SELECT m.aro_id,m.kind,m.ref FROM activity_report_objective_metadata m
JOIN activity_report_objectives aro ON aro.id=m.aro_id WHERE aro.report_id=? ORDER BY m.aro_id,m.position,m.kind,m.ref`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int64][]domain.MetadataItem{}
	for rows.Next() {
		var aroID int64
		var m domain.MetadataItem
		if err := rows.Scan(&aroID, &m.Kind, &m.Ref); err != nil {
			return nil, err
		}
		res[aroID] = append(res[aroID], m)
	}
	return res, rows.Err()
}
