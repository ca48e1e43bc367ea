package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/domain"
)

var approverRowColumns = []string{"id", "report_id", "user_id", "status", "note", "deleted_at", "created_at", "updated_at"}

const ts = "2024-01-01T00:00:00Z"

func newMockRepo(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return Repo{DB: conn}, mock
}

func expectApproverQuery(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta(`FROM activity_report_approvers WHERE report_id=? AND user_id=?`)).
		WithArgs(int64(10), int64(5)).
		WillReturnRows(rows)
}

func TestGetApproverDuplicateActive(t *testing.T) {
	r, mock := newMockRepo(t)
	expectApproverQuery(mock, sqlmock.NewRows(approverRowColumns).
		AddRow(int64(1), int64(10), int64(5), nil, nil, nil, ts, ts).
		AddRow(int64(2), int64(10), int64(5), "approved", nil, nil, ts, ts))

	_, err := r.GetApprover(context.Background(), nil, 10, 5)
	assert.ErrorIs(t, err, ErrDuplicateActiveApprover)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetApproverPrefersActiveRow(t *testing.T) {
	r, mock := newMockRepo(t)
	expectApproverQuery(mock, sqlmock.NewRows(approverRowColumns).
		AddRow(int64(1), int64(10), int64(5), "needs_action", "old note", ts, ts, ts).
		AddRow(int64(2), int64(10), int64(5), nil, nil, nil, ts, ts))

	a, err := r.GetApprover(context.Background(), nil, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.ID)
	assert.True(t, a.Active())
	assert.Nil(t, a.Status)
}

func TestGetApproverSoftDeletedOnly(t *testing.T) {
	r, mock := newMockRepo(t)
	expectApproverQuery(mock, sqlmock.NewRows(approverRowColumns).
		AddRow(int64(7), int64(10), int64(5), "needs_action", "fix dates", ts, ts, ts))

	a, err := r.GetApprover(context.Background(), nil, 10, 5)
	require.NoError(t, err)
	assert.False(t, a.Active())
	require.NotNil(t, a.Status)
	assert.Equal(t, domain.ApproverNeedsAction, *a.Status)
	require.NotNil(t, a.Note)
	assert.Equal(t, "fix dates", *a.Note)
	assert.True(t, a.Reviewed())
}

func TestGetApproverNotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	expectApproverQuery(mock, sqlmock.NewRows(approverRowColumns))

	_, err := r.GetApprover(context.Background(), nil, 10, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetApproverQueryError(t *testing.T) {
	r, mock := newMockRepo(t)
	boom := errors.New("database is locked")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM activity_report_approvers`)).WillReturnError(boom)

	_, err := r.GetApprover(context.Background(), nil, 10, 5)
	assert.ErrorIs(t, err, boom)
}

func TestMissingIDs(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM grants WHERE id IN (?,?,?)`)).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	missing, err := r.MissingIDs(context.Background(), nil, "grants", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, missing)

	_, err = r.MissingIDs(context.Background(), nil, "reports", []int64{1})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnFallsBackToDB(t *testing.T) {
	r, _ := newMockRepo(t)
	assert.Equal(t, Querier(r.DB), r.on(nil))
}
