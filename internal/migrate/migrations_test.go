package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/db"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	v, err := Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, MigrateContext(ctx, conn))
	require.NoError(t, MigrateContext(ctx, conn))

	latest, err := Latest()
	require.NoError(t, err)
	v, err = Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)
	assert.GreaterOrEqual(t, latest, 1)

	for _, table := range []string{"reports", "activity_report_approvers", "goals", "objectives", "events"} {
		var name string
		err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestApproverPairIsUnique(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, Migrate(conn))
	ctx := context.Background()

	const ts = "2024-01-01T00:00:00Z"
	_, err = conn.ExecContext(ctx, `INSERT INTO users(id,name) VALUES (1,'Ada')`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO reports(submission_status,calculated_status,created_at,updated_at) VALUES ('draft','draft',?,?)`, ts, ts)
	require.NoError(t, err)
	insert := `INSERT INTO activity_report_approvers(report_id,user_id,created_at,updated_at) VALUES (1,1,?,?)`
	_, err = conn.ExecContext(ctx, insert, ts, ts)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, insert, ts, ts)
	assert.Error(t, err)
}
