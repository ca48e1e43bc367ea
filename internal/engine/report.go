package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reportline/internal/domain"
	"reportline/internal/events"
	"reportline/internal/repo"
)

// Save reconciles the report identified by reportID (0 creates one) with the
// desired state in p and returns the canonical view. Everything runs in one
// transaction; any error leaves the database untouched.
func (e Engine) Save(ctx context.Context, reportID int64, p domain.ReportPayload, actorID string) (domain.ReportView, error) {
	start := time.Now()
	id, created, err := e.save(ctx, reportID, p, actorID)
	if err == nil {
		var view domain.ReportView
		view, err = e.GetReport(ctx, id)
		if err == nil {
			savesTotal.WithLabelValues("ok").Inc()
			saveDuration.Observe(time.Since(start).Seconds())
			e.log().Info("report saved", zap.Int64("report_id", id), zap.Bool("created", created),
				zap.Duration("duration", time.Since(start)))
			return view, nil
		}
	}
	savesTotal.WithLabelValues(outcome(err)).Inc()
	return domain.ReportView{}, err
}

func (e Engine) save(ctx context.Context, reportID int64, p domain.ReportPayload, actorID string) (int64, bool, error) {
	if err := validateStruct(p); err != nil {
		return 0, false, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()
	now := e.timestamp()

	var report domain.Report
	created := reportID == 0
	if created {
		report = domain.Report{
			SubmissionStatus: domain.SubmissionDraft,
			CalculatedStatus: domain.StatusDraft,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	} else {
		report, err = e.Repo.GetReport(ctx, tx, reportID)
		if err != nil {
			return 0, false, err
		}
		if report.SubmissionStatus == domain.SubmissionDeleted {
			return 0, false, ErrNotFound
		}
	}
	rc := newReconcileCtx(tx, report, actorID, now)
	prevSubmission := report.SubmissionStatus

	// 1. scalars
	changed := applyScalars(&rc.report, p)
	if p.AuthorID != nil {
		if err := e.requireExisting(ctx, rc, "users", "authorId", []int64{*p.AuthorID}); err != nil {
			return 0, false, err
		}
	}
	if created {
		id, err := e.Repo.InsertReport(ctx, tx, rc.report)
		if err != nil {
			return 0, false, fmt.Errorf("insert report: %w", err)
		}
		rc.report.ID = id
	} else if changed {
		rc.report.UpdatedAt = now
		if err := e.Repo.UpdateReportScalars(ctx, tx, rc.report); err != nil {
			return 0, false, fmt.Errorf("update report: %w", err)
		}
	}

	// 2. collaborators
	if p.Collaborators != nil {
		if err := e.syncCollaborators(ctx, rc, *p.Collaborators); err != nil {
			return 0, false, err
		}
	}
	// 3. recipients; a type change detaches everything linked under the old type
	if err := e.syncRecipients(ctx, rc, p.Recipients); err != nil {
		return 0, false, err
	}
	if rc.typeChanged() {
		if err := e.prune(ctx, rc); err != nil {
			return 0, false, err
		}
	}
	// 4. notes
	if p.RecipientNextSteps != nil {
		if err := e.syncNotes(ctx, rc, domain.NoteChannelRecipient, *p.RecipientNextSteps); err != nil {
			return 0, false, err
		}
	}
	if p.SpecialistNextSteps != nil {
		if err := e.syncNotes(ctx, rc, domain.NoteChannelSpecialist, *p.SpecialistNextSteps); err != nil {
			return 0, false, err
		}
	}
	// 5. forced removal of recipients' goals
	if p.RecipientsWhoHaveGoalsThatShouldBeRemoved != nil {
		if err := e.removeRecipientGoals(ctx, rc, *p.RecipientsWhoHaveGoalsThatShouldBeRemoved); err != nil {
			return 0, false, err
		}
	}
	// 6. goals and objectives, by recipient kind
	if err := e.reconcileWork(ctx, rc, p); err != nil {
		return 0, false, err
	}
	// 7. approvers and derived status
	if p.ApproverUserIDs != nil {
		if err := e.syncApprovers(ctx, rc, *p.ApproverUserIDs); err != nil {
			return 0, false, err
		}
	}
	if prevSubmission != domain.SubmissionSubmitted && rc.report.SubmissionStatus == domain.SubmissionSubmitted {
		if err := e.onSubmitted(ctx, rc); err != nil {
			return 0, false, err
		}
	}
	if err := e.recomputeStatus(ctx, rc); err != nil {
		return 0, false, err
	}

	if err := e.emit(ctx, rc, events.ReportSaved, "report", rc.report.ID, events.EventPayload{
		"created":          created,
		"submissionStatus": rc.report.SubmissionStatus,
		"calculatedStatus": rc.report.CalculatedStatus,
	}); err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return rc.report.ID, created, nil
}

// reconcileWork dispatches goal/objective reconciliation on the recipient scope.
func (e Engine) reconcileWork(ctx context.Context, rc *reconcileCtx, p domain.ReportPayload) error {
	hasGoals := p.Goals != nil && len(*p.Goals) > 0
	hasObjectives := p.ObjectivesWithoutGoals != nil && len(*p.ObjectivesWithoutGoals) > 0

	switch scope := rc.scope.(type) {
	case nil:
		if hasGoals {
			return invalid("goals", "activityRecipientType must be set before goals are added")
		}
		if hasObjectives {
			return invalid("objectivesWithoutGoals", "activityRecipientType must be set before objectives are added")
		}
		return nil
	case domain.GrantRecipient:
		if hasObjectives {
			return invalid("objectivesWithoutGoals", "not allowed on a report for grant recipients")
		}
		if p.Goals == nil {
			return nil
		}
		if err := e.reconcileGoals(ctx, rc, scope, *p.Goals); err != nil {
			return err
		}
		return e.prune(ctx, rc)
	case domain.AlternateEntity:
		if hasGoals {
			return invalid("goals", "not allowed on a report for other entities")
		}
		if p.ObjectivesWithoutGoals == nil {
			return nil
		}
		if err := e.reconcileEntityObjectives(ctx, rc, scope, *p.ObjectivesWithoutGoals); err != nil {
			return err
		}
		return e.prune(ctx, rc)
	default:
		return fmt.Errorf("unhandled recipient scope %T", scope)
	}
}

// applyScalars copies the payload's present scalar fields onto r and reports
// whether anything changed.
func applyScalars(r *domain.Report, p domain.ReportPayload) bool {
	changed := false
	setInt64 := func(dst **int64, src *int64) {
		if src != nil && (*dst == nil || **dst != *src) {
			v := *src
			*dst = &v
			changed = true
		}
	}
	setString := func(dst **string, src *string) {
		if src != nil && !equalStringPtr(*dst, src) {
			v := *src
			*dst = &v
			changed = true
		}
	}
	setText := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setInt64(&r.RegionID, p.RegionID)
	setInt64(&r.AuthorID, p.AuthorID)
	setString(&r.StartDate, p.StartDate)
	setString(&r.EndDate, p.EndDate)
	setText(&r.DeliveryMethod, p.DeliveryMethod)
	setText(&r.Context, p.Context)
	setText(&r.AdditionalNotes, p.AdditionalNotes)
	if p.Duration != nil && (r.Duration == nil || *r.Duration != *p.Duration) {
		v := *p.Duration
		r.Duration = &v
		changed = true
	}
	if p.NumberOfParticipants != nil && (r.NumberOfParticipants == nil || *r.NumberOfParticipants != *p.NumberOfParticipants) {
		v := *p.NumberOfParticipants
		r.NumberOfParticipants = &v
		changed = true
	}
	if p.ActivityRecipientType != nil && r.ActivityRecipientType != *p.ActivityRecipientType {
		r.ActivityRecipientType = *p.ActivityRecipientType
		changed = true
	}
	if p.SubmissionStatus != nil && r.SubmissionStatus != *p.SubmissionStatus {
		r.SubmissionStatus = *p.SubmissionStatus
		changed = true
	}
	return changed
}

// SetSubmissionStatus moves a report between draft and submitted and
// re-derives its status.
func (e Engine) SetSubmissionStatus(ctx context.Context, reportID int64, status domain.SubmissionStatus, actorID string) (domain.ReportView, error) {
	if status != domain.SubmissionDraft && status != domain.SubmissionSubmitted {
		return domain.ReportView{}, invalid("submissionStatus", "must be one of [draft submitted]")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReportView{}, err
	}
	defer tx.Rollback()
	report, err := e.Repo.GetReport(ctx, tx, reportID)
	if err != nil {
		return domain.ReportView{}, err
	}
	if report.SubmissionStatus == domain.SubmissionDeleted {
		return domain.ReportView{}, ErrNotFound
	}
	rc := newReconcileCtx(tx, report, actorID, e.timestamp())
	if report.SubmissionStatus != status {
		if err := e.Repo.UpdateSubmissionStatus(ctx, tx, reportID, status, rc.now); err != nil {
			return domain.ReportView{}, fmt.Errorf("update submission status: %w", err)
		}
		rc.report.SubmissionStatus = status
		rc.report.UpdatedAt = rc.now
		if status == domain.SubmissionSubmitted {
			if err := e.onSubmitted(ctx, rc); err != nil {
				return domain.ReportView{}, err
			}
		}
	}
	if err := e.recomputeStatus(ctx, rc); err != nil {
		return domain.ReportView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ReportView{}, err
	}
	return e.GetReport(ctx, reportID)
}

// SoftDeleteReport marks the report deleted and removes the goals and
// objectives that exist only because of it.
func (e Engine) SoftDeleteReport(ctx context.Context, reportID int64, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	report, err := e.Repo.GetReport(ctx, tx, reportID)
	if err != nil {
		return err
	}
	if report.SubmissionStatus == domain.SubmissionDeleted {
		return ErrNotFound
	}
	rc := newReconcileCtx(tx, report, actorID, e.timestamp())
	if err := e.Repo.UpdateSubmissionStatus(ctx, tx, reportID, domain.SubmissionDeleted, rc.now); err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	rc.report.SubmissionStatus = domain.SubmissionDeleted
	if err := e.recomputeStatus(ctx, rc); err != nil {
		return err
	}
	if err := e.prune(ctx, rc); err != nil {
		return err
	}
	if err := e.emit(ctx, rc, events.ReportDeleted, "report", reportID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// GetReport assembles the canonical composed view of a report.
func (e Engine) GetReport(ctx context.Context, reportID int64) (domain.ReportView, error) {
	report, err := e.Repo.GetReport(ctx, nil, reportID)
	if err != nil {
		return domain.ReportView{}, err
	}
	view := domain.ReportView{Report: report}
	var (
		goals    []domain.Goal
		objs     []repo.ReportObjectiveRow
		metadata map[int64][]domain.MetadataItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Collaborators, err = e.Repo.ListCollaborators(gctx, nil, reportID)
		return err
	})
	g.Go(func() (err error) {
		view.ActivityRecipients, err = e.Repo.ListActivityRecipients(gctx, nil, reportID)
		return err
	})
	g.Go(func() (err error) {
		view.RecipientNextSteps, err = e.Repo.ListNotes(gctx, nil, reportID, domain.NoteChannelRecipient)
		return err
	})
	g.Go(func() (err error) {
		view.SpecialistNextSteps, err = e.Repo.ListNotes(gctx, nil, reportID, domain.NoteChannelSpecialist)
		return err
	})
	g.Go(func() (err error) {
		view.Approvers, err = e.Repo.ListApprovers(gctx, nil, reportID, false)
		return err
	})
	g.Go(func() (err error) {
		goals, err = e.Repo.ListReportGoals(gctx, nil, reportID)
		return err
	})
	g.Go(func() (err error) {
		objs, err = e.Repo.ListReportObjectives(gctx, nil, reportID)
		return err
	})
	g.Go(func() (err error) {
		metadata, err = e.Repo.ListReportMetadata(gctx, nil, reportID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReportView{}, fmt.Errorf("read report %d: %w", reportID, err)
	}
	if view.Collaborators == nil {
		view.Collaborators = []int64{}
	}
	view.GoalsAndObjectives, view.ObjectivesWithoutGoals = buildGoalTree(goals, objs, metadata)
	return view, nil
}
