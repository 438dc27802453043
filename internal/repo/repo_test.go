package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/migrate"
	"taskdeck/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func insertTask(t *testing.T, r repo.Repo, task domain.Task) domain.Task {
	t.Helper()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Stage == "" {
		task.Stage = domain.StageTodo
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityNormal
	}
	if task.CreatedAt == "" {
		task.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if task.UpdatedAt == "" {
		task.UpdatedAt = task.CreatedAt
	}
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, r.InsertTask(ctx, tx, task))
	require.NoError(t, tx.Commit())
	return task
}

func TestTaskRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	task := insertTask(t, r, domain.Task{
		Title:       "roundtrip",
		Description: "desc",
		Assignees:   []string{"u1", "u2"},
	})

	got, err := r.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.Title, got.Title)
	require.ElementsMatch(t, []string{"u1", "u2"}, got.Assignees)
	require.Empty(t, got.SubTasks)
	require.False(t, got.IsTrashed)

	_, err = r.GetTask(ctx, "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestInsertTaskDuplicateID(t *testing.T) {
	r := newTestRepo(t)
	task := insertTask(t, r, domain.Task{Title: "one"})

	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	err = r.InsertTask(ctx, tx, domain.Task{
		ID: task.ID, Title: "two", Stage: domain.StageTodo, Priority: domain.PriorityNormal,
		CreatedAt: task.CreatedAt, UpdatedAt: task.UpdatedAt,
	})
	require.ErrorIs(t, err, repo.ErrConflict)
}

func TestReplaceAssignees(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	task := insertTask(t, r, domain.Task{Title: "assign", Assignees: []string{"u1"}})

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceAssignees(ctx, tx, task.ID, []string{"u2", "u3"}))
	require.NoError(t, tx.Commit())

	got, err := r.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u2", "u3"}, got.Assignees)
}

func TestListTasksFiltersAndCursor(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		insertTask(t, r, domain.Task{Title: "t", CreatedAt: ts, UpdatedAt: ts})
	}

	page1, err := r.ListTasks(ctx, repo.TaskFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	// Newest first.
	require.Greater(t, page1[0].CreatedAt, page1[1].CreatedAt)

	last := page1[len(page1)-1]
	page2, err := r.ListTasks(ctx, repo.TaskFilters{
		Limit:           10,
		CursorCreatedAt: last.CreatedAt,
		CursorID:        last.ID,
	})
	require.NoError(t, err)
	require.Len(t, page2, 3)
	for _, item := range page2 {
		require.Less(t, item.CreatedAt, last.CreatedAt)
	}
}

func TestSetTrashedAndListSides(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	live := insertTask(t, r, domain.Task{Title: "live"})
	doomed := insertTask(t, r, domain.Task{Title: "doomed"})

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.SetTrashed(ctx, tx, doomed.ID, true, time.Now().UTC().Format(time.RFC3339)))
	require.NoError(t, tx.Commit())

	ids, err := r.ListTaskIDs(ctx, false)
	require.NoError(t, err)
	require.Equal(t, []string{live.ID}, ids)
	ids, err = r.ListTaskIDs(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{doomed.ID}, ids)

	tx, err = r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.ErrorIs(t, r.SetTrashed(ctx, tx, "missing", true, ""), repo.ErrNotFound)
}

func TestDeleteTaskCascades(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	task := insertTask(t, r, domain.Task{Title: "parent", Assignees: []string{"u1"}})

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.InsertSubTask(ctx, tx, task.ID, domain.SubTask{
		ID: uuid.New().String(), Title: "sub", Tag: "qa",
		Date: "2024-03-02T00:00:00Z", CreatedAt: "2024-03-01T00:00:00Z",
	}))
	require.NoError(t, tx.Commit())

	require.NoError(t, r.DeleteTask(ctx, task.ID))
	_, err = r.GetTask(ctx, task.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)

	var n int
	require.NoError(t, r.DB.QueryRow(`SELECT count(*) FROM subtasks WHERE task_id=?`, task.ID).Scan(&n))
	require.Zero(t, n, "subtasks must go with the task")
	require.NoError(t, r.DB.QueryRow(`SELECT count(*) FROM task_assignees WHERE task_id=?`, task.ID).Scan(&n))
	require.Zero(t, n, "assignee rows must go with the task")
}

func TestUserStore(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := domain.User{
		ID: uuid.New().String(), Name: "dev", Email: "dev@example.com",
		IsActive: true, CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	require.NoError(t, r.InsertUser(ctx, u))

	got, err := r.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "dev", got.Name)
	require.True(t, got.IsActive)

	require.NoError(t, r.SetUserActive(ctx, u.ID, false))
	got, err = r.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.ErrorIs(t, r.SetUserActive(ctx, "missing", true), repo.ErrNotFound)

	n, err := r.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestAPIKeyStore(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := domain.User{ID: uuid.New().String(), Name: "bot", IsActive: true, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	require.NoError(t, r.InsertUser(ctx, u))

	plaintext := "tdk_secret"
	key := domain.APIKey{
		ID:      uuid.New().String(),
		UserID:  u.ID,
		Name:    "ci",
		KeyHash: repo.HashAPIKey(plaintext),
	}
	require.NoError(t, r.InsertAPIKey(ctx, key))

	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("  tdk_secret  "))
	require.NoError(t, err, "hash must be whitespace-insensitive")
	require.Equal(t, u.ID, got.UserID)

	_, err = r.GetAPIKeyByHash(ctx, repo.HashAPIKey("wrong"))
	require.ErrorIs(t, err, repo.ErrNotFound)

	keys, err := r.ListAPIKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, r.DeleteAPIKey(ctx, key.ID))
	require.ErrorIs(t, r.DeleteAPIKey(ctx, key.ID), repo.ErrNotFound)
}

func TestActivitiesOrderedByTime(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	task := insertTask(t, r, domain.Task{Title: "log"})

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	for i, text := range []string{"first", "second", "third"} {
		_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,task_id,type,text,actor_id,ts) VALUES (?,?,?,?,?,?)`,
			uuid.New().String(), task.ID, domain.ActivityCommented, text, "u1",
			base.Add(time.Duration(i)*time.Second).Format(time.RFC3339))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	acts, err := r.ListActivities(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	require.Equal(t, "first", acts[0].Text)
	require.Equal(t, "third", acts[2].Text)

	n, err := r.CountActivities(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestStoreErrClassification(t *testing.T) {
	require.NoError(t, repo.StoreErr(nil))

	err := repo.StoreErr(errors.New("database is locked (5) (SQLITE_BUSY)"))
	var te repo.TransientError
	require.ErrorAs(t, err, &te)

	err = repo.StoreErr(errors.New("constraint failed: UNIQUE constraint failed: tasks.id (1555)"))
	require.ErrorIs(t, err, repo.ErrConflict)

	plain := errors.New("disk I/O error")
	require.Equal(t, plain, repo.StoreErr(plain))
}
