package engine_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/repo"
)

func TestDuplicateActiveApproverIsInvariantViolation(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	core, logs := observer.New(zapcore.ErrorLevel)
	e := engine.New(conn, nil, zap.New(core))

	const ts = "2024-01-01T00:00:00Z"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reports WHERE id=?`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "region_id", "author_id", "activity_recipient_type", "start_date", "end_date",
			"duration", "number_of_participants", "delivery_method", "context", "additional_notes", "submission_status",
			"calculated_status", "approved_at", "created_at", "updated_at"}).
			AddRow(int64(10), nil, nil, "recipient", nil, nil, nil, nil, "", "", "", "submitted", "submitted", nil, ts, ts))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM activity_report_approvers WHERE report_id=? AND user_id=?`)).
		WithArgs(int64(10), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "user_id", "status", "note", "deleted_at", "created_at", "updated_at"}).
			AddRow(int64(1), int64(10), int64(5), nil, nil, nil, ts, ts).
			AddRow(int64(2), int64(10), int64(5), nil, nil, nil, ts, ts))
	mock.ExpectRollback()

	_, err = e.SetApproverDecision(context.Background(), 10, 5, domain.ApproverDecision{Status: domain.ApproverApproved}, "tester")
	var ierr *engine.InvariantError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, repo.ErrDuplicateActiveApprover)
	assert.Equal(t, 1, logs.FilterMessage("storage invariant violated").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}
