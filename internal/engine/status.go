package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reportline/internal/domain"
	"reportline/internal/events"
)

// CalculateStatus derives a report's approval status from its submission
// status and the decisions of its active approvers (nil = not yet reviewed).
func CalculateStatus(submission domain.SubmissionStatus, decisions []*domain.ApproverStatus) domain.CalculatedStatus {
	if submission != domain.SubmissionSubmitted {
		return domain.CalculatedStatus(submission)
	}
	approved := 0
	for _, d := range decisions {
		if d == nil {
			continue
		}
		switch *d {
		case domain.ApproverNeedsAction:
			return domain.StatusNeedsAction
		case domain.ApproverApproved:
			approved++
		}
	}
	if len(decisions) > 0 && approved == len(decisions) {
		return domain.StatusApproved
	}
	return domain.StatusSubmitted
}

// DeriveStatus computes the status a report should hold and its approval
// timestamp. approvedAt is set to now only on a fresh entry into approved and
// is otherwise carried over unchanged.
func DeriveStatus(report domain.Report, decisions []*domain.ApproverStatus, now string) (domain.CalculatedStatus, *string) {
	status := CalculateStatus(report.SubmissionStatus, decisions)
	if status == domain.StatusApproved && report.CalculatedStatus != domain.StatusApproved {
		ts := now
		return status, &ts
	}
	return status, report.ApprovedAt
}

// recomputeStatus re-derives the report status inside the current transaction
// and runs the side effects of entering or leaving approved.
func (e Engine) recomputeStatus(ctx context.Context, rc *reconcileCtx) error {
	approvers, err := e.Repo.ListApprovers(ctx, rc.tx, rc.report.ID, false)
	if err != nil {
		return fmt.Errorf("list approvers: %w", err)
	}
	decisions := make([]*domain.ApproverStatus, 0, len(approvers))
	for _, a := range approvers {
		decisions = append(decisions, a.Status)
	}
	prev := rc.report.CalculatedStatus
	status, approvedAt := DeriveStatus(rc.report, decisions, rc.now)
	if status == domain.StatusApproved && prev == domain.StatusApproved {
		// a save of an approved report may have linked new goals or objectives
		if err := e.protectReportWork(ctx, rc); err != nil {
			return err
		}
	}
	if status == prev && equalStringPtr(approvedAt, rc.report.ApprovedAt) {
		return nil
	}
	if err := e.Repo.UpdateReportStatus(ctx, rc.tx, rc.report.ID, status, approvedAt, rc.now); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	rc.report.CalculatedStatus = status
	rc.report.ApprovedAt = approvedAt
	rc.report.UpdatedAt = rc.now
	if status == prev {
		return nil
	}

	statusTransitions.WithLabelValues(string(status)).Inc()
	e.log().Info("report status changed",
		zap.Int64("report_id", rc.report.ID), zap.String("from", string(prev)), zap.String("to", string(status)))
	if err := e.emit(ctx, rc, events.ReportStatusChanged, "report", rc.report.ID, events.EventPayload{"from": prev, "to": status}); err != nil {
		return err
	}
	switch {
	case status == domain.StatusApproved:
		return e.onApproved(ctx, rc)
	case prev == domain.StatusApproved:
		return e.onUnapproved(ctx, rc)
	}
	return nil
}

// onApproved protects the report's goals and objectives and moves goals
// with work underway to In Progress.
func (e Engine) onApproved(ctx context.Context, rc *reconcileCtx) error {
	if err := e.protectReportWork(ctx, rc); err != nil {
		return err
	}
	objs, err := e.Repo.ListReportObjectives(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report objectives: %w", err)
	}
	active := map[int64]bool{}
	for _, row := range objs {
		if row.Objective.GoalID == nil {
			continue
		}
		status := row.Link.Status
		if status == "" {
			status = row.Objective.Status
		}
		if status == domain.ObjectiveStatusInProgress || status == domain.ObjectiveStatusComplete {
			active[*row.Objective.GoalID] = true
		}
	}
	goals, err := e.Repo.ListReportGoals(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report goals: %w", err)
	}
	for _, g := range goals {
		if !active[g.ID] || (g.Status != domain.GoalStatusDraft && g.Status != domain.GoalStatusNotStarted) {
			continue
		}
		if err := e.Repo.UpdateGoalStatus(ctx, rc.tx, g.ID, domain.GoalStatusInProgress, rc.now); err != nil {
			return fmt.Errorf("update goal %d status: %w", g.ID, err)
		}
	}
	return nil
}

// protectReportWork flags every goal and objective linked to the report as
// used on an approved report.
func (e Engine) protectReportWork(ctx context.Context, rc *reconcileCtx) error {
	if err := e.Repo.MarkReportGoalsApproved(ctx, rc.tx, rc.report.ID, rc.now); err != nil {
		return fmt.Errorf("mark goals approved: %w", err)
	}
	if err := e.Repo.MarkReportObjectivesApproved(ctx, rc.tx, rc.report.ID, rc.now); err != nil {
		return fmt.Errorf("mark objectives approved: %w", err)
	}
	return nil
}

func (e Engine) onUnapproved(ctx context.Context, rc *reconcileCtx) error {
	if err := e.Repo.UnmarkReportGoalsApproved(ctx, rc.tx, rc.report.ID, rc.now); err != nil {
		return fmt.Errorf("unmark goals approved: %w", err)
	}
	if err := e.Repo.UnmarkReportObjectivesApproved(ctx, rc.tx, rc.report.ID, rc.now); err != nil {
		return fmt.Errorf("unmark objectives approved: %w", err)
	}
	return nil
}

// onSubmitted moves the report's draft goals to Not Started.
func (e Engine) onSubmitted(ctx context.Context, rc *reconcileCtx) error {
	goals, err := e.Repo.ListReportGoals(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list report goals: %w", err)
	}
	for _, g := range goals {
		if g.Status != domain.GoalStatusDraft || g.OnApprovedAR {
			continue
		}
		if err := e.Repo.UpdateGoalStatus(ctx, rc.tx, g.ID, domain.GoalStatusNotStarted, rc.now); err != nil {
			return fmt.Errorf("update goal %d status: %w", g.ID, err)
		}
	}
	return nil
}
