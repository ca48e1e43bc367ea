package engine

import (
	"context"
	"fmt"
)

func (e Engine) syncCollaborators(ctx context.Context, rc *reconcileCtx, userIDs []int64) error {
	want := dedupe(userIDs)
	if err := e.requireExisting(ctx, rc, "users", "collaborators", want); err != nil {
		return err
	}
	have, err := e.Repo.ListCollaborators(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list collaborators: %w", err)
	}
	wanted := toSet(want)
	current := toSet(have)
	for _, id := range have {
		if !wanted[id] {
			if err := e.Repo.RemoveCollaborator(ctx, rc.tx, rc.report.ID, id); err != nil {
				return fmt.Errorf("remove collaborator %d: %w", id, err)
			}
		}
	}
	for _, id := range want {
		if !current[id] {
			if err := e.Repo.AddCollaborator(ctx, rc.tx, rc.report.ID, id, rc.now); err != nil {
				return fmt.Errorf("add collaborator %d: %w", id, err)
			}
		}
	}
	return nil
}

// requireExisting fails validation when any id is missing from a directory table.
func (e Engine) requireExisting(ctx context.Context, rc *reconcileCtx, table, field string, ids []int64) error {
	missing, err := e.Repo.MissingIDs(ctx, rc.tx, table, ids)
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if len(missing) > 0 {
		return invalid(field, "unknown id(s) %v", missing)
	}
	return nil
}

// dedupe drops repeated ids, keeping first occurrence order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toSet(ids []int64) map[int64]bool {
	s := make(map[int64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
