package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/config"
	"reportline/internal/db"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/events"
	"reportline/internal/migrate"
	"reportline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn), "migrate")

	env := &testEnv{
		Ctx: context.Background(),
		now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return env.now }
	env.Engine = eng

	for id, name := range map[int64]string{1: "Ada", 2: "Grace", 3: "Linus", 4: "Barbara"} {
		require.NoError(t, eng.Repo.UpsertUser(env.Ctx, domain.User{ID: id, Name: name}))
	}
	for id, name := range map[int64]string{1: "01CH0001", 2: "01CH0002", 3: "01HP0003"} {
		require.NoError(t, eng.Repo.UpsertGrant(env.Ctx, domain.Grant{ID: id, Name: name, RecipientName: "Recipient " + name, Status: "Active"}))
	}
	for id, name := range map[int64]string{1: "State Office", 2: "Regional Network"} {
		require.NoError(t, eng.Repo.UpsertOtherEntity(env.Ctx, domain.OtherEntity{ID: id, Name: name}))
	}
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func (env *testEnv) stamp() string { return env.now.UTC().Format(time.RFC3339) }

func (env *testEnv) save(t *testing.T, id int64, p domain.ReportPayload) domain.ReportView {
	t.Helper()
	view, err := env.Engine.Save(env.Ctx, id, p, "tester")
	require.NoError(t, err, "save report %d", id)
	return view
}

func (env *testEnv) decide(t *testing.T, reportID, userID int64, status domain.ApproverStatus, note *string) domain.Approver {
	t.Helper()
	a, err := env.Engine.SetApproverDecision(env.Ctx, reportID, userID, domain.ApproverDecision{Status: status, Note: note}, "tester")
	require.NoError(t, err, "decide approver %d", userID)
	return a
}

func (env *testEnv) get(t *testing.T, id int64) domain.ReportView {
	t.Helper()
	view, err := env.Engine.GetReport(env.Ctx, id)
	require.NoError(t, err)
	return view
}

func (env *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, env.Engine.DB.QueryRowContext(env.Ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }

func ids(v ...int64) *[]int64 {
	if v == nil {
		v = []int64{}
	}
	return &v
}

func grantReport(grants ...int64) domain.ReportPayload {
	return domain.ReportPayload{
		ActivityRecipientType: ptr(domain.RecipientTypeGrant),
		Recipients:            ids(grants...),
	}
}

func entityReport(entities ...int64) domain.ReportPayload {
	return domain.ReportPayload{
		ActivityRecipientType: ptr(domain.RecipientTypeOtherEntity),
		Recipients:            ids(entities...),
	}
}

func approverByUser(t *testing.T, approvers []domain.Approver, userID int64) domain.Approver {
	t.Helper()
	for _, a := range approvers {
		if a.UserID == userID {
			return a
		}
	}
	t.Fatalf("approver %d not found", userID)
	return domain.Approver{}
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
}

func TestCalculateStatus(t *testing.T) {
	approved := ptr(domain.ApproverApproved)
	needsAction := ptr(domain.ApproverNeedsAction)
	cases := []struct {
		name       string
		submission domain.SubmissionStatus
		decisions  []*domain.ApproverStatus
		want       domain.CalculatedStatus
	}{
		{"submitted no approvers", domain.SubmissionSubmitted, nil, domain.StatusSubmitted},
		{"single approved", domain.SubmissionSubmitted, []*domain.ApproverStatus{approved}, domain.StatusApproved},
		{"approved and pending", domain.SubmissionSubmitted, []*domain.ApproverStatus{approved, nil}, domain.StatusSubmitted},
		{"approved and needs action", domain.SubmissionSubmitted, []*domain.ApproverStatus{approved, needsAction}, domain.StatusNeedsAction},
		{"needs action twice", domain.SubmissionSubmitted, []*domain.ApproverStatus{needsAction, needsAction}, domain.StatusNeedsAction},
		{"pending and needs action", domain.SubmissionSubmitted, []*domain.ApproverStatus{nil, needsAction}, domain.StatusNeedsAction},
		{"draft ignores approvers", domain.SubmissionDraft, []*domain.ApproverStatus{approved}, domain.StatusDraft},
		{"draft needs action", domain.SubmissionDraft, []*domain.ApproverStatus{needsAction}, domain.StatusDraft},
		{"deleted", domain.SubmissionDeleted, []*domain.ApproverStatus{approved}, domain.StatusDeleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.CalculateStatus(tc.submission, tc.decisions))
		})
	}
}

func TestDeriveStatusApprovedAt(t *testing.T) {
	approved := []*domain.ApproverStatus{ptr(domain.ApproverApproved)}
	first := "2024-01-01T09:00:00Z"

	report := domain.Report{SubmissionStatus: domain.SubmissionSubmitted, CalculatedStatus: domain.StatusSubmitted}
	status, at := engine.DeriveStatus(report, approved, first)
	require.Equal(t, domain.StatusApproved, status)
	require.NotNil(t, at)
	assert.Equal(t, first, *at)

	// staying approved keeps the original timestamp
	report.CalculatedStatus, report.ApprovedAt = status, at
	_, at = engine.DeriveStatus(report, approved, "2024-02-01T09:00:00Z")
	assert.Equal(t, first, *at)

	// leaving and re-entering approved stamps a fresh time
	report.CalculatedStatus = domain.StatusNeedsAction
	_, at = engine.DeriveStatus(report, approved, "2024-03-01T09:00:00Z")
	assert.Equal(t, "2024-03-01T09:00:00Z", *at)
}

func TestApprovalScenario(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(1, 2)
	view := env.save(t, 0, p)
	require.Len(t, view.Approvers, 2)
	assert.Equal(t, domain.StatusSubmitted, view.CalculatedStatus)

	env.decide(t, view.ID, 1, domain.ApproverApproved, nil)
	assert.Equal(t, domain.StatusSubmitted, env.get(t, view.ID).CalculatedStatus)

	env.decide(t, view.ID, 2, domain.ApproverNeedsAction, ptr("dates are wrong"))
	assert.Equal(t, domain.StatusNeedsAction, env.get(t, view.ID).CalculatedStatus)

	env.advance(time.Hour)
	approvedStamp := env.stamp()
	env.decide(t, view.ID, 2, domain.ApproverApproved, nil)
	got := env.get(t, view.ID)
	require.Equal(t, domain.StatusApproved, got.CalculatedStatus)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, approvedStamp, *got.ApprovedAt)

	env.advance(time.Hour)
	got = env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids(1)})
	require.Len(t, got.Approvers, 1)
	assert.Equal(t, int64(1), got.Approvers[0].UserID)
	assert.Equal(t, domain.StatusApproved, got.CalculatedStatus)

	got = env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids(1, 2)})
	require.Len(t, got.Approvers, 2)
	b := approverByUser(t, got.Approvers, 2)
	require.NotNil(t, b.Status)
	assert.Equal(t, domain.ApproverApproved, *b.Status)
	assert.Equal(t, domain.StatusApproved, got.CalculatedStatus)
	assert.Equal(t, approvedStamp, *got.ApprovedAt)
}

func TestApproverSoftDeleteRestoresDecision(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(3)
	view := env.save(t, 0, p)
	original := env.decide(t, view.ID, 3, domain.ApproverNeedsAction, ptr("add participant count"))

	got := env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids()})
	assert.Empty(t, got.Approvers)
	assert.Equal(t, domain.StatusSubmitted, got.CalculatedStatus)

	rows, err := env.Engine.Repo.ListApprovers(env.Ctx, nil, view.ID, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].DeletedAt)

	got = env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids(3)})
	require.Len(t, got.Approvers, 1)
	restored := got.Approvers[0]
	assert.Equal(t, original.ID, restored.ID)
	require.NotNil(t, restored.Status)
	assert.Equal(t, domain.ApproverNeedsAction, *restored.Status)
	require.NotNil(t, restored.Note)
	assert.Equal(t, "add participant count", *restored.Note)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, domain.StatusNeedsAction, got.CalculatedStatus)
}

func TestApproverNeverReviewedRemovalIsDestructive(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.ApproverUserIDs = ids(2)
	view := env.save(t, 0, p)
	require.Len(t, view.Approvers, 1)
	firstID := view.Approvers[0].ID

	env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids()})
	rows, err := env.Engine.Repo.ListApprovers(env.Ctx, nil, view.ID, true)
	require.NoError(t, err)
	assert.Empty(t, rows)

	got := env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids(2)})
	require.Len(t, got.Approvers, 1)
	assert.NotEqual(t, firstID, got.Approvers[0].ID)
	assert.Nil(t, got.Approvers[0].Status)
}

func TestApproverDecisionRestoresSoftDeleted(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(1)
	view := env.save(t, 0, p)
	env.decide(t, view.ID, 1, domain.ApproverNeedsAction, nil)
	env.save(t, view.ID, domain.ReportPayload{ApproverUserIDs: ids()})

	a := env.decide(t, view.ID, 1, domain.ApproverApproved, nil)
	assert.Nil(t, a.DeletedAt)
	require.NotNil(t, a.Status)
	assert.Equal(t, domain.ApproverApproved, *a.Status)
	assert.Equal(t, domain.StatusApproved, env.get(t, view.ID).CalculatedStatus)
}

func TestApproverDecisionErrors(t *testing.T) {
	env := newTestEnv(t)
	view := env.save(t, 0, grantReport(1))

	_, err := env.Engine.SetApproverDecision(env.Ctx, view.ID, 4, domain.ApproverDecision{Status: domain.ApproverApproved}, "tester")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = env.Engine.SetApproverDecision(env.Ctx, 404, 1, domain.ApproverDecision{Status: domain.ApproverApproved}, "tester")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = env.Engine.SetApproverDecision(env.Ctx, view.ID, 1, domain.ApproverDecision{Status: "maybe"}, "tester")
	requireValidation(t, err, "status")
}

func TestApproverIDsAreDeduplicatedAndValidated(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.ApproverUserIDs = ids(1, 2, 1)
	view := env.save(t, 0, p)
	assert.Len(t, view.Approvers, 2)

	_, err := env.Engine.Save(env.Ctx, view.ID, domain.ReportPayload{ApproverUserIDs: ids(1, 99)}, "tester")
	requireValidation(t, err, "approverUserIds")
}

func fullPayload() domain.ReportPayload {
	p := grantReport(1, 2)
	p.StartDate = ptr("2024-01-10")
	p.EndDate = ptr("2024-01-12")
	p.Duration = ptr(2.5)
	p.Context = ptr("Quarterly visit")
	p.Collaborators = ids(2, 3)
	p.ApproverUserIDs = ids(4)
	p.RecipientNextSteps = &[]domain.NotePayload{{Note: "Share coaching plan", CompleteDate: "2024-02-01"}}
	p.SpecialistNextSteps = &[]domain.NotePayload{{Note: "Follow up in March"}}
	p.Goals = &[]domain.GoalPayload{{
		Name:     "Improve classroom quality",
		GrantIDs: []int64{1, 2},
		Objectives: []domain.ObjectivePayload{{
			Title:       "Coach lead teachers",
			TTAProvided: "Modelled interactions",
			SupportType: "Implementing",
			Topics:      []string{"Coaching", "CLASS"},
			Resources:   []string{"https://example.org/guide"},
		}},
	}}
	return p
}

func TestSaveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	first := env.save(t, 0, fullPayload())
	require.Len(t, first.GoalsAndObjectives, 2)
	require.Len(t, first.GoalsAndObjectives[0].Objectives, 1)
	assert.ElementsMatch(t, []string{"Coaching", "CLASS"}, first.GoalsAndObjectives[0].Objectives[0].Topics)

	tables := []string{"goals", "objectives", "activity_report_objectives", "activity_report_objective_metadata",
		"next_steps", "activity_recipients", "report_collaborators", "activity_report_approvers"}
	before := map[string]int{}
	for _, table := range tables {
		before[table] = env.count(t, table)
	}

	env.save(t, first.ID, fullPayload())
	second := env.save(t, first.ID, fullPayload())

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	for _, table := range tables {
		assert.Equal(t, before[table], env.count(t, table), table)
	}
}

func TestOmittedCollectionsAreUntouched(t *testing.T) {
	env := newTestEnv(t)
	view := env.save(t, 0, fullPayload())

	got := env.save(t, view.ID, domain.ReportPayload{Context: ptr("Revised context")})
	assert.Equal(t, "Revised context", got.Context)
	assert.ElementsMatch(t, []int64{2, 3}, got.Collaborators)
	assert.Len(t, got.ActivityRecipients, 2)
	assert.Len(t, got.RecipientNextSteps, 1)
	assert.Len(t, got.GoalsAndObjectives, 2)
	assert.Len(t, got.Approvers, 1)

	got = env.save(t, view.ID, domain.ReportPayload{Collaborators: ids(), Goals: &[]domain.GoalPayload{}})
	assert.Empty(t, got.Collaborators)
	assert.Empty(t, got.GoalsAndObjectives)
	assert.Equal(t, 0, env.count(t, "goals"))
	assert.Equal(t, 0, env.count(t, "objectives"))
}

func TestValidationFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.Collaborators = ids(1)
	view := env.save(t, 0, p)

	_, err := env.Engine.Save(env.Ctx, view.ID, domain.ReportPayload{
		Collaborators:   ids(2),
		Context:         ptr("should not persist"),
		ApproverUserIDs: ids(42),
	}, "tester")
	requireValidation(t, err, "approverUserIds")

	_, err = env.Engine.Save(env.Ctx, view.ID, domain.ReportPayload{
		RecipientNextSteps: &[]domain.NotePayload{{Note: "lost"}},
		Goals:              &[]domain.GoalPayload{{Name: "Out of scope", GrantIDs: []int64{2}}},
	}, "tester")
	requireValidation(t, err, "goals[0].grantIds")

	got := env.get(t, view.ID)
	assert.Equal(t, []int64{1}, got.Collaborators)
	assert.Empty(t, got.Context)
	assert.Empty(t, got.RecipientNextSteps)
	assert.Equal(t, 0, env.count(t, "goals"))
}

func TestSaveValidationRules(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		p     domain.ReportPayload
		field string
	}{
		{"recipients without type", domain.ReportPayload{Recipients: ids(1)}, "activityRecipientType"},
		{"unknown grant", grantReport(9), "recipients"},
		{"unknown entity", entityReport(7), "recipients"},
		{"unknown collaborator", domain.ReportPayload{Collaborators: ids(77)}, "collaborators"},
		{"bad date", domain.ReportPayload{StartDate: ptr("01/10/2024")}, "startDate"},
		{"goals on entity report", func() domain.ReportPayload {
			p := entityReport(1)
			p.Goals = &[]domain.GoalPayload{{Name: "g", GrantIDs: []int64{1}}}
			return p
		}(), "goals"},
		{"objectives on grant report", func() domain.ReportPayload {
			p := grantReport(1)
			p.ObjectivesWithoutGoals = &[]domain.ObjectivePayload{{Title: "o"}}
			return p
		}(), "objectivesWithoutGoals"},
		{"goal without name", func() domain.ReportPayload {
			p := grantReport(1)
			p.Goals = &[]domain.GoalPayload{{GrantIDs: []int64{1}}}
			return p
		}(), "goals[0].name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.Save(env.Ctx, 0, tc.p, "tester")
			requireValidation(t, err, tc.field)
		})
	}
	assert.Equal(t, 0, env.count(t, "reports"))
}

func TestSaveMissingReport(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Save(env.Ctx, 12345, domain.ReportPayload{Context: ptr("x")}, "tester")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestCompleteObjectiveIsNeverReopened(t *testing.T) {
	env := newTestEnv(t)
	p := entityReport(1)
	p.ObjectivesWithoutGoals = &[]domain.ObjectivePayload{{Title: "Train staff", Status: domain.ObjectiveStatusComplete}}
	view := env.save(t, 0, p)
	require.Len(t, view.ObjectivesWithoutGoals, 1)
	done := view.ObjectivesWithoutGoals[0].ID

	p2 := domain.ReportPayload{ObjectivesWithoutGoals: &[]domain.ObjectivePayload{{Title: "Train staff", Status: domain.ObjectiveStatusInProgress}}}
	got := env.save(t, view.ID, p2)
	require.Len(t, got.ObjectivesWithoutGoals, 1)
	assert.NotEqual(t, done, got.ObjectivesWithoutGoals[0].ID)
	assert.Equal(t, domain.ObjectiveStatusInProgress, got.ObjectivesWithoutGoals[0].Status)
}

func TestEntityObjectivesDefaultToEveryRecipient(t *testing.T) {
	env := newTestEnv(t)
	p := entityReport(1, 2)
	p.ObjectivesWithoutGoals = &[]domain.ObjectivePayload{
		{Title: "Share data", Topics: []string{"Data"}},
		{Title: "Plan summit", RecipientIDs: []int64{2}},
	}
	view := env.save(t, 0, p)
	require.Len(t, view.ObjectivesWithoutGoals, 3)
	owners := map[int64]int{}
	for _, o := range view.ObjectivesWithoutGoals {
		require.NotNil(t, o.OtherEntityID)
		owners[*o.OtherEntityID]++
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 2}, owners)

	p.ObjectivesWithoutGoals = &[]domain.ObjectivePayload{{Title: "Plan summit", RecipientIDs: []int64{1}}}
	_, err := env.Engine.Save(env.Ctx, view.ID, domain.ReportPayload{
		Recipients:             ids(2),
		ObjectivesWithoutGoals: p.ObjectivesWithoutGoals,
	}, "tester")
	requireValidation(t, err, "objectivesWithoutGoals[0].recipientIds")
}

func TestPruneKeepsGoalsLinkedElsewhere(t *testing.T) {
	env := newTestEnv(t)
	goals := &[]domain.GoalPayload{{Name: "Family engagement", GrantIDs: []int64{1}}}
	pa := grantReport(1)
	pa.Goals = goals
	a := env.save(t, 0, pa)
	pb := grantReport(1)
	pb.Goals = goals
	b := env.save(t, 0, pb)
	require.Len(t, a.GoalsAndObjectives, 1)
	require.Len(t, b.GoalsAndObjectives, 1)
	shared := a.GoalsAndObjectives[0].ID
	require.Equal(t, shared, b.GoalsAndObjectives[0].ID)

	got := env.save(t, a.ID, domain.ReportPayload{Goals: &[]domain.GoalPayload{}})
	assert.Empty(t, got.GoalsAndObjectives)
	_, err := env.Engine.Repo.GetGoal(env.Ctx, nil, shared)
	require.NoError(t, err)
	assert.Len(t, env.get(t, b.ID).GoalsAndObjectives, 1)

	env.save(t, b.ID, domain.ReportPayload{Goals: &[]domain.GoalPayload{}})
	_, err = env.Engine.Repo.GetGoal(env.Ctx, nil, shared)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRecipientTypeSwitchDetachesEntityObjectives(t *testing.T) {
	env := newTestEnv(t)
	p := entityReport(1)
	p.ObjectivesWithoutGoals = &[]domain.ObjectivePayload{{Title: "Align state plans"}}
	view := env.save(t, 0, p)
	require.Len(t, view.ObjectivesWithoutGoals, 1)
	objectiveID := view.ObjectivesWithoutGoals[0].ID

	next := grantReport(1)
	next.Goals = &[]domain.GoalPayload{{Name: "Unrelated goal", GrantIDs: []int64{1}}}
	got := env.save(t, view.ID, next)
	assert.Equal(t, domain.RecipientTypeGrant, got.ActivityRecipientType)
	assert.Empty(t, got.ObjectivesWithoutGoals)
	require.Len(t, got.ActivityRecipients, 1)
	assert.Equal(t, domain.RecipientTypeGrant, got.ActivityRecipients[0].Type)
	assert.Len(t, got.GoalsAndObjectives, 1)

	_, err := env.Engine.Repo.GetObjective(env.Ctx, nil, objectiveID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestForcedRecipientGoalRemoval(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1, 2)
	p.Goals = &[]domain.GoalPayload{
		{Name: "Goal on one", GrantIDs: []int64{1}},
		{Name: "Goal on two", GrantIDs: []int64{2}, Objectives: []domain.ObjectivePayload{{Title: "Objective on two"}}},
	}
	view := env.save(t, 0, p)
	require.Len(t, view.GoalsAndObjectives, 2)

	got := env.save(t, view.ID, domain.ReportPayload{
		Recipients: ids(1),
		RecipientsWhoHaveGoalsThatShouldBeRemoved: ids(2),
	})
	require.Len(t, got.GoalsAndObjectives, 1)
	assert.Equal(t, int64(1), got.GoalsAndObjectives[0].GrantID)
	assert.Equal(t, 1, env.count(t, "goals"))
	assert.Equal(t, 0, env.count(t, "objectives"))
}

func TestApprovedGoalsAreProtected(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(1)
	p.Goals = &[]domain.GoalPayload{{
		Name:       "Improve attendance",
		GrantIDs:   []int64{1},
		Objectives: []domain.ObjectivePayload{{Title: "Coach directors", Status: domain.ObjectiveStatusInProgress}},
	}}
	a := env.save(t, 0, p)
	require.Len(t, a.GoalsAndObjectives, 1)
	goalID := a.GoalsAndObjectives[0].ID
	assert.Equal(t, domain.GoalStatusNotStarted, a.GoalsAndObjectives[0].Status)

	env.decide(t, a.ID, 1, domain.ApproverApproved, nil)
	goal, err := env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	require.NoError(t, err)
	assert.True(t, goal.OnApprovedAR)
	assert.Equal(t, domain.GoalStatusInProgress, goal.Status)

	pb := grantReport(1)
	pb.Goals = &[]domain.GoalPayload{{GoalIDs: []int64{goalID}, Name: "Renamed", GrantIDs: []int64{1}}}
	b := env.save(t, 0, pb)
	require.Len(t, b.GoalsAndObjectives, 1)
	assert.Equal(t, goalID, b.GoalsAndObjectives[0].ID)
	assert.Equal(t, "Improve attendance", b.GoalsAndObjectives[0].Name)

	env.save(t, b.ID, domain.ReportPayload{Goals: &[]domain.GoalPayload{}})
	_, err = env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	require.NoError(t, err)

	env.decide(t, a.ID, 1, domain.ApproverNeedsAction, nil)
	goal, err = env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	require.NoError(t, err)
	assert.False(t, goal.OnApprovedAR)
}

func TestGoalsLinkedToApprovedReportAreProtected(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(1)
	a := env.save(t, 0, p)
	env.decide(t, a.ID, 1, domain.ApproverApproved, nil)
	require.Equal(t, domain.StatusApproved, env.get(t, a.ID).CalculatedStatus)

	a = env.save(t, a.ID, domain.ReportPayload{Goals: &[]domain.GoalPayload{{
		Name:       "Improve attendance",
		GrantIDs:   []int64{1},
		Objectives: []domain.ObjectivePayload{{Title: "Coach directors", Status: domain.ObjectiveStatusInProgress}},
	}}})
	require.Equal(t, domain.StatusApproved, a.CalculatedStatus)
	require.Len(t, a.GoalsAndObjectives, 1)
	goalID := a.GoalsAndObjectives[0].ID
	require.Len(t, a.GoalsAndObjectives[0].Objectives, 1)
	objectiveID := a.GoalsAndObjectives[0].Objectives[0].ID

	goal, err := env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	require.NoError(t, err)
	assert.True(t, goal.OnApprovedAR)
	obj, err := env.Engine.Repo.GetObjective(env.Ctx, nil, objectiveID)
	require.NoError(t, err)
	assert.True(t, obj.OnApprovedAR)

	pb := grantReport(1)
	pb.Goals = &[]domain.GoalPayload{{
		GoalIDs:  []int64{goalID},
		Name:     "Renamed by B",
		Status:   domain.GoalStatusSuspended,
		GrantIDs: []int64{1},
		Objectives: []domain.ObjectivePayload{{
			IDs:    []int64{objectiveID},
			Title:  "Coach directors",
			Status: domain.ObjectiveStatusSuspended,
		}},
	}}
	env.save(t, 0, pb)

	goal, err = env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	require.NoError(t, err)
	assert.Equal(t, "Improve attendance", goal.Name)
	assert.NotEqual(t, domain.GoalStatusSuspended, goal.Status)
	obj, err = env.Engine.Repo.GetObjective(env.Ctx, nil, objectiveID)
	require.NoError(t, err)
	assert.Equal(t, domain.ObjectiveStatusInProgress, obj.Status)
}

func TestObjectiveMetadataKeepsPayloadOrder(t *testing.T) {
	env := newTestEnv(t)
	goal := func(topics ...string) *[]domain.GoalPayload {
		return &[]domain.GoalPayload{{
			Name:     "Improve attendance",
			GrantIDs: []int64{1},
			Objectives: []domain.ObjectivePayload{{
				Title:     "Coach directors",
				Topics:    topics,
				Resources: []string{"https://b.example", "https://a.example"},
			}},
		}}
	}
	p := grantReport(1)
	p.Goals = goal("Zeta", "Alpha", "Zeta")
	view := env.save(t, 0, p)
	obj := view.GoalsAndObjectives[0].Objectives[0]
	assert.Equal(t, []string{"Zeta", "Alpha"}, obj.Topics)
	assert.Equal(t, []string{"https://b.example", "https://a.example"}, obj.Resources)

	view = env.save(t, view.ID, domain.ReportPayload{Goals: goal("Alpha", "Beta", "Zeta")})
	obj = view.GoalsAndObjectives[0].Objectives[0]
	assert.Equal(t, []string{"Alpha", "Beta", "Zeta"}, obj.Topics)
	assert.Equal(t, 5, env.count(t, "activity_report_objective_metadata"))
}

func TestSubmissionMovesDraftGoals(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.Goals = &[]domain.GoalPayload{{Name: "Draft goal", GrantIDs: []int64{1}}}
	view := env.save(t, 0, p)
	require.Equal(t, domain.GoalStatusDraft, view.GoalsAndObjectives[0].Status)

	got, err := env.Engine.SetSubmissionStatus(env.Ctx, view.ID, domain.SubmissionSubmitted, "tester")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.CalculatedStatus)
	assert.Equal(t, domain.GoalStatusNotStarted, got.GoalsAndObjectives[0].Status)

	got, err = env.Engine.SetSubmissionStatus(env.Ctx, view.ID, domain.SubmissionDraft, "tester")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.CalculatedStatus)

	_, err = env.Engine.SetSubmissionStatus(env.Ctx, view.ID, domain.SubmissionDeleted, "tester")
	requireValidation(t, err, "submissionStatus")
}

func TestNextStepsReconcile(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.RecipientNextSteps = &[]domain.NotePayload{{Note: "Send agenda"}, {Note: "Book room", CompleteDate: "2024-01-20"}, {}}
	view := env.save(t, 0, p)
	require.Len(t, view.RecipientNextSteps, 2)
	keep := view.RecipientNextSteps[0]

	got := env.save(t, view.ID, domain.ReportPayload{
		RecipientNextSteps: &[]domain.NotePayload{{ID: ptr(keep.ID), Note: "Send revised agenda"}},
	})
	require.Len(t, got.RecipientNextSteps, 1)
	assert.Equal(t, keep.ID, got.RecipientNextSteps[0].ID)
	assert.Equal(t, "Send revised agenda", got.RecipientNextSteps[0].Note)
	assert.Empty(t, got.SpecialistNextSteps)
	for _, n := range got.RecipientNextSteps {
		assert.Equal(t, domain.NoteChannelRecipient, n.Channel)
	}
}

func TestSoftDeleteReport(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.Goals = &[]domain.GoalPayload{{Name: "Only here", GrantIDs: []int64{1}}}
	view := env.save(t, 0, p)
	goalID := view.GoalsAndObjectives[0].ID

	require.NoError(t, env.Engine.SoftDeleteReport(env.Ctx, view.ID, "tester"))
	got := env.get(t, view.ID)
	assert.Equal(t, domain.SubmissionDeleted, got.SubmissionStatus)
	assert.Equal(t, domain.StatusDeleted, got.CalculatedStatus)
	assert.Empty(t, got.GoalsAndObjectives)
	_, err := env.Engine.Repo.GetGoal(env.Ctx, nil, goalID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	assert.ErrorIs(t, env.Engine.SoftDeleteReport(env.Ctx, view.ID, "tester"), engine.ErrNotFound)
	_, err = env.Engine.Save(env.Ctx, view.ID, domain.ReportPayload{Context: ptr("x")}, "tester")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSaveWritesAuditEvents(t *testing.T) {
	env := newTestEnv(t)
	p := grantReport(1)
	p.SubmissionStatus = ptr(domain.SubmissionSubmitted)
	p.ApproverUserIDs = ids(2)
	view := env.save(t, 0, p)

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, 0, repo.EventFilter{ReportID: view.ID})
	require.NoError(t, err)
	types := map[string]int{}
	for _, evt := range evts {
		types[evt.Type]++
		assert.Equal(t, "tester", evt.ActorID)
		assert.Equal(t, env.stamp(), evt.TS)
	}
	assert.Equal(t, 1, types[events.ReportSaved])
	assert.Equal(t, 1, types[events.ApproverAdded])
	assert.Equal(t, 1, types[events.ReportStatusChanged])
}
