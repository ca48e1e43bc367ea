package engine

import (
	"context"
	"fmt"

	"reportline/internal/domain"
	"reportline/internal/events"
	"reportline/internal/repo"
)

// reconcileGoals upserts each payload goal once per grant it names, links it
// to the report and reconciles its objectives.
func (e Engine) reconcileGoals(ctx context.Context, rc *reconcileCtx, scope domain.GrantRecipient, goals []domain.GoalPayload) error {
	for i, gp := range goals {
		for _, grantID := range dedupe(gp.GrantIDs) {
			if !scope.Contains(grantID) {
				return invalid(fmt.Sprintf("goals[%d].grantIds", i), "grant %d is not a recipient of this report", grantID)
			}
			goal, err := e.upsertGoal(ctx, rc, grantID, gp)
			if err != nil {
				return err
			}
			if err := e.Repo.LinkGoal(ctx, rc.tx, rc.report.ID, goal.ID, rc.now); err != nil {
				return fmt.Errorf("link goal %d: %w", goal.ID, err)
			}
			rc.touchedGoals[goal.ID] = true
			for j, op := range gp.Objectives {
				if op.Empty() {
					continue
				}
				if err := e.reconcileObjective(ctx, rc, repo.ObjectiveOwner{GoalID: goal.ID}, op, j); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// reconcileEntityObjectives handles reports whose recipients are other
// entities: objectives hang directly off each entity.
func (e Engine) reconcileEntityObjectives(ctx context.Context, rc *reconcileCtx, scope domain.AlternateEntity, objectives []domain.ObjectivePayload) error {
	for i, op := range objectives {
		if op.Empty() {
			continue
		}
		owners := dedupe(op.RecipientIDs)
		if len(owners) == 0 {
			owners = scope.EntityIDs
		}
		for _, entityID := range owners {
			if !scope.Contains(entityID) {
				return invalid(fmt.Sprintf("objectivesWithoutGoals[%d].recipientIds", i), "entity %d is not a recipient of this report", entityID)
			}
			if err := e.reconcileObjective(ctx, rc, repo.ObjectiveOwner{OtherEntityID: entityID}, op, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e Engine) upsertGoal(ctx context.Context, rc *reconcileCtx, grantID int64, gp domain.GoalPayload) (domain.Goal, error) {
	m, err := e.resolveGoal(ctx, rc, grantID, gp)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("resolve goal: %w", err)
	}
	if m.Kind == MatchNone {
		g := domain.Goal{
			GrantID:    grantID,
			Name:       gp.Name,
			Status:     gp.Status,
			Source:     gp.Source,
			CreatedVia: domain.CreatedViaActivityReport,
			CreatedAt:  rc.now,
			UpdatedAt:  rc.now,
		}
		if g.Status == "" {
			g.Status = domain.GoalStatusDraft
		}
		if gp.EndDate != "" {
			d := gp.EndDate
			g.EndDate = &d
		}
		id, err := e.Repo.InsertGoal(ctx, rc.tx, g)
		if err != nil {
			return domain.Goal{}, fmt.Errorf("insert goal: %w", err)
		}
		g.ID = id
		return g, nil
	}

	g := m.Row
	if g.OnApprovedAR {
		return g, nil
	}
	next := g
	next.Name = gp.Name
	if gp.Status != "" {
		next.Status = gp.Status
	}
	if gp.EndDate != "" {
		d := gp.EndDate
		next.EndDate = &d
	}
	if gp.Source != "" {
		next.Source = gp.Source
	}
	if next.Name == g.Name && next.Status == g.Status && next.Source == g.Source && equalStringPtr(next.EndDate, g.EndDate) {
		return g, nil
	}
	next.UpdatedAt = rc.now
	if err := e.Repo.UpdateGoal(ctx, rc.tx, next); err != nil {
		return domain.Goal{}, fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	return next, nil
}

// reconcileObjective resolves, creates or updates one objective under owner
// and records its report-scoped narrative, status, order and metadata.
func (e Engine) reconcileObjective(ctx context.Context, rc *reconcileCtx, owner repo.ObjectiveOwner, op domain.ObjectivePayload, order int) error {
	m, err := e.resolveObjective(ctx, rc, owner, op)
	if err != nil {
		return fmt.Errorf("resolve objective: %w", err)
	}
	obj := m.Row
	switch {
	case m.Kind == MatchNone:
		obj = domain.Objective{
			Title:      op.Title,
			Status:     op.Status,
			CreatedVia: domain.CreatedViaActivityReport,
			CreatedAt:  rc.now,
			UpdatedAt:  rc.now,
		}
		if owner.GoalID != 0 {
			id := owner.GoalID
			obj.GoalID = &id
		} else {
			id := owner.OtherEntityID
			obj.OtherEntityID = &id
		}
		if obj.Status == "" {
			obj.Status = domain.ObjectiveStatusNotStarted
		}
		id, err := e.Repo.InsertObjective(ctx, rc.tx, obj)
		if err != nil {
			return fmt.Errorf("insert objective: %w", err)
		}
		obj.ID = id
	case !obj.OnApprovedAR:
		next := obj
		if op.Title != "" {
			next.Title = op.Title
		}
		if op.Status != "" {
			next.Status = op.Status
		}
		if next.Title != obj.Title || next.Status != obj.Status {
			next.UpdatedAt = rc.now
			if err := e.Repo.UpdateObjective(ctx, rc.tx, next); err != nil {
				return fmt.Errorf("update objective %d: %w", obj.ID, err)
			}
			obj = next
		}
	}

	status := op.Status
	if status == "" {
		status = obj.Status
	}
	aroID, err := e.Repo.UpsertReportObjective(ctx, rc.tx, domain.ReportObjective{
		ReportID:     rc.report.ID,
		ObjectiveID:  obj.ID,
		TTAProvided:  op.TTAProvided,
		SupportType:  op.SupportType,
		Status:       status,
		DisplayOrder: order,
	}, rc.now)
	if err != nil {
		return fmt.Errorf("link objective %d: %w", obj.ID, err)
	}
	if err := e.syncObjectiveMetadata(ctx, rc, aroID, op.Metadata()); err != nil {
		return err
	}
	rc.touchedObjectives[obj.ID] = true
	return nil
}

// prune detaches every goal and objective linked to the report that this save
// did not touch. Detached rows that were authored through a report, are not
// on an approved report and have no other report links are deleted.
func (e Engine) prune(ctx context.Context, rc *reconcileCtx) error {
	objs, err := e.Repo.ListReportObjectives(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report objectives: %w", err)
	}
	for _, row := range objs {
		if rc.touchedObjectives[row.Objective.ID] {
			continue
		}
		if err := e.detachObjective(ctx, rc, row.Objective); err != nil {
			return err
		}
	}
	goals, err := e.Repo.ListReportGoals(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report goals: %w", err)
	}
	for _, g := range goals {
		if rc.touchedGoals[g.ID] {
			continue
		}
		if err := e.detachGoal(ctx, rc, g); err != nil {
			return err
		}
	}
	return nil
}

// removeRecipientGoals detaches the report's goals on the given grants along
// with their objectives.
func (e Engine) removeRecipientGoals(ctx context.Context, rc *reconcileCtx, grantIDs []int64) error {
	if len(grantIDs) == 0 {
		return nil
	}
	remove := toSet(grantIDs)
	goals, err := e.Repo.ListReportGoals(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report goals: %w", err)
	}
	doomed := map[int64]bool{}
	for _, g := range goals {
		if remove[g.GrantID] {
			doomed[g.ID] = true
		}
	}
	if len(doomed) == 0 {
		return nil
	}
	objs, err := e.Repo.ListReportObjectives(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report objectives: %w", err)
	}
	for _, row := range objs {
		if row.Objective.GoalID != nil && doomed[*row.Objective.GoalID] {
			if err := e.detachObjective(ctx, rc, row.Objective); err != nil {
				return err
			}
		}
	}
	for _, g := range goals {
		if doomed[g.ID] {
			if err := e.detachGoal(ctx, rc, g); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e Engine) detachObjective(ctx context.Context, rc *reconcileCtx, o domain.Objective) error {
	if err := e.Repo.DeleteReportObjective(ctx, rc.tx, rc.report.ID, o.ID); err != nil {
		return fmt.Errorf("unlink objective %d: %w", o.ID, err)
	}
	deleted := false
	if o.CreatedVia == domain.CreatedViaActivityReport && !o.OnApprovedAR {
		n, err := e.Repo.CountObjectiveLinks(ctx, rc.tx, o.ID)
		if err != nil {
			return fmt.Errorf("count objective links: %w", err)
		}
		if n == 0 {
			if err := e.Repo.DeleteObjective(ctx, rc.tx, o.ID); err != nil {
				return fmt.Errorf("delete objective %d: %w", o.ID, err)
			}
			deleted = true
			prunedTotal.WithLabelValues("objective").Inc()
		}
	}
	return e.emit(ctx, rc, events.ObjectivePruned, "objective", o.ID, events.EventPayload{"deleted": deleted})
}

func (e Engine) detachGoal(ctx context.Context, rc *reconcileCtx, g domain.Goal) error {
	if err := e.Repo.UnlinkGoal(ctx, rc.tx, rc.report.ID, g.ID); err != nil {
		return fmt.Errorf("unlink goal %d: %w", g.ID, err)
	}
	deleted := false
	if g.CreatedVia == domain.CreatedViaActivityReport && !g.OnApprovedAR {
		n, err := e.Repo.CountGoalLinks(ctx, rc.tx, g.ID)
		if err != nil {
			return fmt.Errorf("count goal links: %w", err)
		}
		if n == 0 {
			if err := e.Repo.DeleteGoal(ctx, rc.tx, g.ID); err != nil {
				return fmt.Errorf("delete goal %d: %w", g.ID, err)
			}
			deleted = true
			prunedTotal.WithLabelValues("goal").Inc()
		}
	}
	return e.emit(ctx, rc, events.GoalPruned, "goal", g.ID, events.EventPayload{"deleted": deleted, "grantId": g.GrantID})
}
