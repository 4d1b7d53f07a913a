package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxintel/internal/model"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS todos (
    id          UUID PRIMARY KEY,
    user_email  TEXT NOT NULL,
    text        TEXT NOT NULL,
    sender      TEXT NOT NULL,
    is_done     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Integration tests against a real Postgres; set TEST_DATABASE_URL to run.
// CI runs these against a service container — they are the only coverage of
// the owner predicates in the SQL itself.
func newTestRepo(t *testing.T) *TaskRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE todos")
	require.NoError(t, err)

	return NewTaskRepository(pool, zap.NewNop())
}

func TestBulkInsertAndListOpen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.BulkInsert(ctx, "user@example.com", []model.TaskItem{
		{Text: "Reply to Alice", Sender: "Alice"},
		{Text: "Pay the invoice", Sender: "Billing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Another user's tasks must stay invisible.
	_, err = repo.BulkInsert(ctx, "other@example.com", []model.TaskItem{
		{Text: "Other user's task", Sender: "X"},
	})
	require.NoError(t, err)

	tasks, err := repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "user@example.com", task.UserEmail)
		assert.False(t, task.IsDone)
	}
}

func TestListOpenNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.BulkInsert(ctx, "user@example.com", []model.TaskItem{{Text: "older", Sender: "a"}})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = repo.BulkInsert(ctx, "user@example.com", []model.TaskItem{{Text: "newer", Sender: "b"}})
	require.NoError(t, err)

	tasks, err := repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "newer", tasks[0].Text)
	assert.Equal(t, "older", tasks[1].Text)
}

func TestListOpenExcludesDoneTasks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.BulkInsert(ctx, "user@example.com", []model.TaskItem{
		{Text: "keep me", Sender: "a"},
		{Text: "finish me", Sender: "b"},
	})
	require.NoError(t, err)

	tasks, err := repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	var doneID uuid.UUID
	for _, task := range tasks {
		if task.Text == "finish me" {
			doneID = task.ID
		}
	}
	require.NoError(t, repo.MarkDone(ctx, "user@example.com", doneID))

	tasks, err = repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "keep me", tasks[0].Text)
}

func TestMarkDoneWrongOwnerLeavesTaskOpen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.BulkInsert(ctx, "user@example.com", []model.TaskItem{{Text: "mine", Sender: "a"}})
	require.NoError(t, err)
	tasks, err := repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	err = repo.MarkDone(ctx, "attacker@example.com", tasks[0].ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// Completion flag unchanged.
	tasks, err = repo.ListOpen(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestMarkDoneUnknownID(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.MarkDone(context.Background(), "user@example.com", uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
