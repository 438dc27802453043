package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/migrate"
	"taskdeck/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	step := 0
	eng.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustCreate(t *testing.T, env testEnv, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Ship it", ActorID: "u1"})
	if task.Stage != domain.StageTodo {
		t.Fatalf("stage = %q, want todo", task.Stage)
	}
	if task.Priority != domain.PriorityNormal {
		t.Fatalf("priority = %q, want normal", task.Priority)
	}
	if task.IsTrashed {
		t.Fatalf("new task must not be trashed")
	}
	if len(task.Activities) != 0 {
		t.Fatalf("unassigned task should start with an empty log, got %d entries", len(task.Activities))
	}
}

func TestCreateTaskSeedsAssignedActivity(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{
		Title:     "Ship it",
		Assignees: []string{"u1", "u2"},
		ActorID:   "admin",
	})
	if len(task.Activities) != 1 {
		t.Fatalf("want 1 seed activity, got %d", len(task.Activities))
	}
	if task.Activities[0].Type != domain.ActivityAssigned {
		t.Fatalf("seed activity type = %q", task.Activities[0].Type)
	}
	if len(task.Assignees) != 2 {
		t.Fatalf("assignees = %v", task.Assignees)
	}
}

func TestActivityTimestampsFollowEngineClock(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{
		Title:     "Ship it",
		Assignees: []string{"u1"},
		ActorID:   "admin",
	})
	if got := task.Activities[0].TS; got != task.CreatedAt {
		t.Fatalf("seed activity ts = %q, want task created_at %q", got, task.CreatedAt)
	}

	moved, err := env.Engine.ChangeStage(env.Ctx, task.ID, domain.StageInProgress, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if got := moved.Activities[1].TS; got != moved.UpdatedAt {
		t.Fatalf("stage activity ts = %q, want task updated_at %q", got, moved.UpdatedAt)
	}
	ts, err := time.Parse(time.RFC3339, moved.Activities[1].TS)
	if err != nil || ts.Year() != 2024 {
		t.Fatalf("activity ts %q did not use the injected clock: %v", moved.Activities[1].TS, err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	var ve engine.ValidationError
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "  "}); !errors.As(err, &ve) {
		t.Fatalf("blank title: got %v", err)
	}
	var se engine.InvalidStageError
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Stage: "done"}); !errors.As(err, &se) {
		t.Fatalf("bad stage: got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Priority: "asap"}); !errors.As(err, &ve) {
		t.Fatalf("bad priority: got %v", err)
	}
}

func TestChangeStageAppendsExactlyOneActivity(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "work", ActorID: "u1"})

	task, err := env.Engine.ChangeStage(env.Ctx, task.ID, domain.StageInProgress, "u1")
	if err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if task.Stage != domain.StageInProgress {
		t.Fatalf("stage = %q", task.Stage)
	}
	if len(task.Activities) != 1 {
		t.Fatalf("want 1 activity after first move, got %d", len(task.Activities))
	}

	// Moving to the same stage still records the action.
	task, err = env.Engine.ChangeStage(env.Ctx, task.ID, domain.StageInProgress, "u1")
	if err != nil {
		t.Fatalf("same-stage change: %v", err)
	}
	if len(task.Activities) != 2 {
		t.Fatalf("want 2 activities, got %d", len(task.Activities))
	}

	var se engine.InvalidStageError
	if _, err := env.Engine.ChangeStage(env.Ctx, task.ID, "archived", "u1"); !errors.As(err, &se) {
		t.Fatalf("invalid stage: got %v", err)
	}
	got, err := env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Activities) != 2 {
		t.Fatalf("rejected change must not log, got %d activities", len(got.Activities))
	}
}

func TestUpdateTaskPatchesFields(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "before", ActorID: "u1"})

	title := "after"
	prio := domain.PriorityUrgent
	assignees := []string{"u9"}
	updated, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:        task.ID,
		Title:     &title,
		Priority:  &prio,
		Assignees: &assignees,
		ActorID:   "u1",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "after" || updated.Priority != domain.PriorityUrgent {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if len(updated.Assignees) != 1 || updated.Assignees[0] != "u9" {
		t.Fatalf("assignees = %v", updated.Assignees)
	}
	if updated.Stage != task.Stage {
		t.Fatalf("update must not move stage")
	}
	if updated.UpdatedAt <= task.UpdatedAt {
		t.Fatalf("updated_at did not advance: %s -> %s", task.UpdatedAt, updated.UpdatedAt)
	}

	empty := " "
	var ve engine.ValidationError
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: &empty}); !errors.As(err, &ve) {
		t.Fatalf("blank title patch: got %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: "missing", Title: &title}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown id: got %v", err)
	}
}

func TestSubTaskValidationAndOrder(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "parent", ActorID: "u1"})

	var ve engine.ValidationError
	if _, err := env.Engine.CreateSubTask(env.Ctx, task.ID, engine.SubTaskOptions{Title: "", Tag: "qa", Date: "2024-01-11T00:00:00Z"}); !errors.As(err, &ve) {
		t.Fatalf("blank title: got %v", err)
	}
	if _, err := env.Engine.CreateSubTask(env.Ctx, task.ID, engine.SubTaskOptions{Title: "x", Tag: "qa", Date: "yesterday"}); !errors.As(err, &ve) {
		t.Fatalf("bad date: got %v", err)
	}
	got, err := env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SubTasks) != 0 {
		t.Fatalf("failed validation must leave subtasks unchanged, got %d", len(got.SubTasks))
	}

	for _, title := range []string{"first", "second", "third"} {
		if _, err := env.Engine.CreateSubTask(env.Ctx, task.ID, engine.SubTaskOptions{Title: title, Tag: "qa", Date: "2024-01-11T00:00:00Z"}); err != nil {
			t.Fatalf("subtask %s: %v", title, err)
		}
	}
	got, err = env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SubTasks) != 3 {
		t.Fatalf("want 3 subtasks, got %d", len(got.SubTasks))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got.SubTasks[i].Title != want {
			t.Fatalf("subtask order broken: pos %d = %q", i, got.SubTasks[i].Title)
		}
	}
}

func TestDuplicateTask(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{
		Title:     "original",
		Priority:  domain.PriorityHigh,
		Assignees: []string{"u1"},
		ActorID:   "admin",
	})
	if _, err := env.Engine.CreateSubTask(env.Ctx, task.ID, engine.SubTaskOptions{Title: "sub", Tag: "qa", Date: "2024-01-11T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.PostActivity(env.Ctx, task.ID, domain.ActivityCommented, "note", "u1"); err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatal(err)
	}

	dup, err := env.Engine.DuplicateTask(env.Ctx, task.ID, "admin")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID == task.ID {
		t.Fatalf("duplicate must get a fresh id")
	}
	if dup.Title != "original - Duplicate" {
		t.Fatalf("title = %q", dup.Title)
	}
	if dup.Priority != domain.PriorityHigh || dup.Stage != task.Stage {
		t.Fatalf("stage/priority not copied: %+v", dup)
	}
	if len(dup.Assignees) != 1 || len(dup.SubTasks) != 1 {
		t.Fatalf("assignees/subtasks not copied: %+v", dup)
	}
	if dup.SubTasks[0].ID == task.SubTasks[0].ID {
		t.Fatalf("subtask ids must be fresh")
	}
	// The copy starts its own history: only the seeded assignment entry.
	if len(dup.Activities) != 1 || dup.Activities[0].Type != domain.ActivityAssigned {
		t.Fatalf("duplicate log = %+v", dup.Activities)
	}
	if dup.IsTrashed {
		t.Fatalf("duplicate must start untrashed")
	}

	src, err := env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if src.Title != "original" {
		t.Fatalf("source mutated: %+v", src)
	}
}

func TestPostActivity(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "work", ActorID: "u1"})

	task, err := env.Engine.PostActivity(env.Ctx, task.ID, domain.ActivityBug, "found a crash", "u2")
	if err != nil {
		t.Fatalf("post activity: %v", err)
	}
	if len(task.Activities) != 1 || task.Activities[0].Text != "found a crash" {
		t.Fatalf("activities = %+v", task.Activities)
	}

	var ve engine.ValidationError
	if _, err := env.Engine.PostActivity(env.Ctx, task.ID, "shrug", "x", "u2"); !errors.As(err, &ve) {
		t.Fatalf("bad type: got %v", err)
	}
	if _, err := env.Engine.PostActivity(env.Ctx, "missing", domain.ActivityBug, "x", "u2"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown task: got %v", err)
	}
}

func TestTrashRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "doomed", ActorID: "u1"})

	if err := env.Engine.TrashOrRestore(env.Ctx, task.ID, engine.ActionDelete); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if _, err := env.Engine.GetTask(env.Ctx, task.ID, false); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("trashed task must be hidden, got %v", err)
	}
	got, err := env.Engine.GetTask(env.Ctx, task.ID, true)
	if err != nil {
		t.Fatalf("include_trashed get: %v", err)
	}
	if !got.IsTrashed {
		t.Fatalf("is_trashed not set")
	}

	items, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("default list must hide trash, got %d", len(items))
	}
	trashed := true
	items, err = env.Engine.ListTasks(env.Ctx, repo.TaskFilters{Trashed: &trashed})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("trash listing = %d items", len(items))
	}

	if err := env.Engine.TrashOrRestore(env.Ctx, task.ID, engine.ActionRestore); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err = env.Engine.GetTask(env.Ctx, task.ID, false)
	if err != nil {
		t.Fatalf("restored task hidden: %v", err)
	}
	if got.IsTrashed {
		t.Fatalf("restore did not clear flag")
	}
}

func TestTrashBulkActions(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"a", "b", "c"} {
		mustCreate(t, env, engine.TaskCreateOptions{Title: title, ActorID: "u1"})
	}

	if err := env.Engine.TrashOrRestore(env.Ctx, "", engine.ActionDeleteAll); err != nil {
		t.Fatalf("deleteAll: %v", err)
	}
	items, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("deleteAll left %d live tasks", len(items))
	}
	// Re-running converges to the same state.
	if err := env.Engine.TrashOrRestore(env.Ctx, "", engine.ActionDeleteAll); err != nil {
		t.Fatalf("deleteAll rerun: %v", err)
	}

	if err := env.Engine.TrashOrRestore(env.Ctx, "", engine.ActionRestoreAll); err != nil {
		t.Fatalf("restoreAll: %v", err)
	}
	items, err = env.Engine.ListTasks(env.Ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("restoreAll brought back %d of 3", len(items))
	}

	var ie engine.InvalidActionError
	if err := env.Engine.TrashOrRestore(env.Ctx, "", "obliterate"); !errors.As(err, &ie) {
		t.Fatalf("unknown action: got %v", err)
	}
	var ve engine.ValidationError
	if err := env.Engine.TrashOrRestore(env.Ctx, "", engine.ActionDelete); !errors.As(err, &ve) {
		t.Fatalf("delete without id: got %v", err)
	}
}

func TestPurgeTask(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "gone", ActorID: "u1"})
	if err := env.Engine.PurgeTask(env.Ctx, task.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := env.Engine.GetTask(env.Ctx, task.ID, true); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("purged task still readable: %v", err)
	}
	if err := env.Engine.PurgeTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second purge: %v", err)
	}
}

func TestListTaskFilters(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.TaskCreateOptions{Title: "urgent bug", Priority: domain.PriorityUrgent, Assignees: []string{"u1"}, ActorID: "a"})
	mustCreate(t, env, engine.TaskCreateOptions{Title: "chore", ActorID: "a"})
	done := mustCreate(t, env, engine.TaskCreateOptions{Title: "done thing", ActorID: "a"})
	if _, err := env.Engine.ChangeStage(env.Ctx, done.ID, domain.StageCompleted, "a"); err != nil {
		t.Fatal(err)
	}

	items, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{Stage: domain.StageCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != done.ID {
		t.Fatalf("stage filter = %+v", items)
	}
	items, err = env.Engine.ListTasks(env.Ctx, repo.TaskFilters{Priority: domain.PriorityUrgent})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !strings.HasPrefix(items[0].Title, "urgent") {
		t.Fatalf("priority filter = %+v", items)
	}
	items, err = env.Engine.ListTasks(env.Ctx, repo.TaskFilters{AssigneeID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("assignee filter = %+v", items)
	}
	if _, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{Stage: "archived"}); err == nil {
		t.Fatalf("bad stage filter must error")
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		mustCreate(t, env, engine.TaskCreateOptions{Title: "t", ActorID: "a"})
	}
	urgent := mustCreate(t, env, engine.TaskCreateOptions{Title: "u", Priority: domain.PriorityUrgent, ActorID: "a"})
	if _, err := env.Engine.ChangeStage(env.Ctx, urgent.ID, domain.StageCompleted, "a"); err != nil {
		t.Fatal(err)
	}
	trashed := mustCreate(t, env, engine.TaskCreateOptions{Title: "x", ActorID: "a"})
	if err := env.Engine.TrashOrRestore(env.Ctx, trashed.ID, engine.ActionDelete); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.Dashboard(env.Ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.Total != 4 {
		t.Fatalf("total = %d, want 4 (trash excluded)", stats.Total)
	}
	if stats.ByStage[domain.StageTodo] != 3 || stats.ByStage[domain.StageCompleted] != 1 {
		t.Fatalf("by_stage = %v", stats.ByStage)
	}
	if stats.ByPriority[domain.PriorityUrgent] != 1 {
		t.Fatalf("by_priority = %v", stats.ByPriority)
	}
	if stats.LastWeek != 4 {
		t.Fatalf("last_week = %d", stats.LastWeek)
	}
	if len(stats.Recent) != 4 {
		t.Fatalf("recent = %d entries", len(stats.Recent))
	}
	// Most recently created first.
	if stats.Recent[0].ID != urgent.ID {
		t.Fatalf("recent[0] = %s, want %s", stats.Recent[0].ID, urgent.ID)
	}
}

func TestDashboardRecentOrdersByCreation(t *testing.T) {
	env := newTestEnv(t)
	first := mustCreate(t, env, engine.TaskCreateOptions{Title: "first", ActorID: "a"})
	second := mustCreate(t, env, engine.TaskCreateOptions{Title: "second", ActorID: "a"})
	// Touching the older task must not promote it in the recent list.
	if _, err := env.Engine.ChangeStage(env.Ctx, first.ID, domain.StageInProgress, "a"); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.Dashboard(env.Ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(stats.Recent) != 2 {
		t.Fatalf("recent = %d entries", len(stats.Recent))
	}
	if stats.Recent[0].ID != second.ID || stats.Recent[1].ID != first.ID {
		t.Fatalf("recent order = [%s %s], want newest creation first", stats.Recent[0].Title, stats.Recent[1].Title)
	}
}

func TestSeedAdmin(t *testing.T) {
	env := newTestEnv(t)
	u, seeded, err := env.Engine.SeedAdmin(env.Ctx, "boss")
	if err != nil || !seeded {
		t.Fatalf("seed: %v seeded=%v", err, seeded)
	}
	if !u.IsAdmin || !u.IsActive {
		t.Fatalf("seeded admin flags: %+v", u)
	}
	if _, seeded, err := env.Engine.SeedAdmin(env.Ctx, "boss"); err != nil || seeded {
		t.Fatalf("second seed must be a no-op: %v seeded=%v", err, seeded)
	}
}
