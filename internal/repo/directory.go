package repo

import (
	"context"
	"database/sql"
	"fmt"

	"reportline/internal/domain"
)

func (r Repo) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name) VALUES (?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, u.ID, u.Name)
	return err
}

func (r Repo) UpsertGrant(ctx context.Context, g domain.Grant) error {
	status := g.Status
	if status == "" {
		status = "Active"
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO grants(id,name,recipient_name,region_id,status) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, recipient_name=excluded.recipient_name, region_id=excluded.region_id, status=excluded.status`,
		g.ID, g.Name, g.RecipientName, nullableInt64Ptr(g.RegionID), status)
	return err
}

func (r Repo) UpsertOtherEntity(ctx context.Context, e domain.OtherEntity) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO other_entities(id,name) VALUES (?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, e.ID, e.Name)
	return err
}

// MissingIDs returns the ids absent from the given directory table.
func (r Repo) MissingIDs(ctx context.Context, q Querier, table string, ids []int64) ([]int64, error) {
	switch table {
	case "users", "grants", "other_entities":
	default:
		return nil, fmt.Errorf("unknown directory table %q", table)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := r.on(q).QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id IN %s`, table, in), args...)
	if err != nil {
		return nil, err
	}
	found, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

func (r Repo) GetGrant(ctx context.Context, q Querier, id int64) (domain.Grant, error) {
	var g domain.Grant
	var region sql.NullInt64
	err := r.on(q).QueryRowContext(ctx, `SELECT id,name,recipient_name,region_id,status FROM grants WHERE id=?`, id).
		Scan(&g.ID, &g.Name, &g.RecipientName, &region, &g.Status)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	g.RegionID = int64Ptr(region)
	return g, err
}
