package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"reportline/internal/domain"
	"reportline/internal/repo"
)

// MatchKind says how a nested payload entry was tied to a persisted row.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchByID
	MatchByNaturalKey
)

func (k MatchKind) String() string {
	switch k {
	case MatchByID:
		return "id"
	case MatchByNaturalKey:
		return "natural_key"
	default:
		return "none"
	}
}

// Match is the result of identity resolution. StaleIDs is set when the payload
// carried ids but none of them named a usable row, so resolution fell back.
type Match[T any] struct {
	Kind     MatchKind
	Row      T
	StaleIDs bool
}

// resolveGoal finds the open goal on grantID for a payload entry: first among
// its goal ids, then by name.
func (e Engine) resolveGoal(ctx context.Context, rc *reconcileCtx, grantID int64, gp domain.GoalPayload) (Match[domain.Goal], error) {
	var m Match[domain.Goal]
	if len(gp.GoalIDs) > 0 {
		goals, err := e.Repo.FindOpenGoalsByIDs(ctx, rc.tx, grantID, gp.GoalIDs)
		if err != nil {
			return m, err
		}
		if len(goals) > 0 {
			m.Kind, m.Row = MatchByID, goals[0]
			return m, nil
		}
		m.StaleIDs = true
	}
	g, err := e.Repo.FindOpenGoalByName(ctx, rc.tx, grantID, gp.Name)
	switch {
	case err == nil:
		m.Kind, m.Row = MatchByNaturalKey, g
	case !errors.Is(err, repo.ErrNotFound):
		return m, err
	}
	if m.StaleIDs {
		e.log().Debug("goal ids did not resolve",
			zap.Int64("report_id", rc.report.ID), zap.Int64s("goal_ids", gp.GoalIDs), zap.Stringer("fallback", m.Kind))
	}
	return m, nil
}

// resolveObjective finds the non-complete objective of owner for a payload
// entry: first among its ids, then by title.
func (e Engine) resolveObjective(ctx context.Context, rc *reconcileCtx, owner repo.ObjectiveOwner, op domain.ObjectivePayload) (Match[domain.Objective], error) {
	var m Match[domain.Objective]
	if len(op.IDs) > 0 {
		objs, err := e.Repo.FindOpenObjectivesByIDs(ctx, rc.tx, owner, op.IDs)
		if err != nil {
			return m, err
		}
		if len(objs) > 0 {
			m.Kind, m.Row = MatchByID, objs[0]
			return m, nil
		}
		m.StaleIDs = true
	}
	o, err := e.Repo.FindOpenObjectiveByTitle(ctx, rc.tx, owner, op.Title)
	switch {
	case err == nil:
		m.Kind, m.Row = MatchByNaturalKey, o
	case !errors.Is(err, repo.ErrNotFound):
		return m, err
	}
	if m.StaleIDs {
		e.log().Debug("objective ids did not resolve",
			zap.Int64("report_id", rc.report.ID), zap.Int64s("objective_ids", op.IDs), zap.Stringer("fallback", m.Kind))
	}
	return m, nil
}
