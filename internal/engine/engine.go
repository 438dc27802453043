package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/activity"
	"taskdeck/internal/config"
	"taskdeck/internal/domain"
	"taskdeck/internal/repo"
)

// duplicateSuffix marks a duplicated task's title.
const duplicateSuffix = " - Duplicate"

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Activities activity.Writer
	Config     *config.Config
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Activities: activity.Writer{DB: db},
		Config:     cfg,
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	Title       string
	Description string
	Stage       string
	Priority    string
	Assignees   []string
	ActorID     string
}

// CreateTask validates, defaults, persists and seeds the activity log
// with an "assigned" entry when the task carries assignees.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "required"}
	}
	if opts.Stage == "" {
		opts.Stage = domain.StageTodo
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityNormal
	}
	if !domain.ValidStage(opts.Stage) {
		return domain.Task{}, InvalidStageError{Stage: opts.Stage}
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Task{}, ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.Priorities, ", "))}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.nowRFC3339()
	t := domain.Task{
		ID:          id,
		Title:       opts.Title,
		Description: opts.Description,
		Stage:       opts.Stage,
		Priority:    opts.Priority,
		Assignees:   opts.Assignees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if len(opts.Assignees) > 0 {
		if err := e.Activities.Append(ctx, tx, t.ID, domain.ActivityAssigned, assignedText(len(opts.Assignees)), opts.ActorID, t.CreatedAt); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

func assignedText(n int) string {
	if n > 1 {
		return fmt.Sprintf("New task has been assigned to you and %d others", n-1)
	}
	return "New task has been assigned to you"
}

// TaskUpdateOptions carry a partial update; nil fields stay untouched.
// Stage is deliberately absent: stage moves go through ChangeStage so
// every transition lands in the activity log.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Priority    *string
	Assignees   *[]string
	ActorID     string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if opts.Title != nil && strings.TrimSpace(*opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if opts.Priority != nil && !domain.ValidPriority(*opts.Priority) {
		return domain.Task{}, ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.Priorities, ", "))}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	t.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if opts.Assignees != nil {
		if err := e.Repo.ReplaceAssignees(ctx, tx, t.ID, *opts.Assignees); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// ChangeStage moves a task to a workflow stage and logs the move. The
// log entry is appended even when the stage does not change: it records
// the user action, not a value diff.
func (e Engine) ChangeStage(ctx context.Context, id, stage, actorID string) (domain.Task, error) {
	if !domain.ValidStage(stage) {
		return domain.Task{}, InvalidStageError{Stage: stage}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	from := t.Stage
	t.Stage = stage
	t.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	text := fmt.Sprintf("Task stage changed from %q to %q", from, stage)
	if err := e.Activities.Append(ctx, tx, t.ID, domain.ActivityStageChange, text, actorID, t.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// SubTaskOptions are parameters for attaching a subtask.
type SubTaskOptions struct {
	Title string
	Tag   string
	Date  string
}

// CreateSubTask validates then appends to the parent's subtask sequence.
// Creation order is the display order; nothing reorders it later.
func (e Engine) CreateSubTask(ctx context.Context, taskID string, opts SubTaskOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(opts.Tag) == "" {
		return domain.Task{}, ValidationError{Field: "tag", Reason: "required"}
	}
	if _, err := time.Parse(time.RFC3339, opts.Date); err != nil {
		return domain.Task{}, ValidationError{Field: "date", Reason: "must be a valid RFC 3339 timestamp"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	st := domain.SubTask{
		ID:        uuid.New().String(),
		Title:     opts.Title,
		Tag:       opts.Tag,
		Date:      opts.Date,
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertSubTask(ctx, tx, t.ID, st); err != nil {
		return domain.Task{}, err
	}
	t.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// DuplicateTask copies a task under a fresh id with the title suffixed.
// Assignees and subtasks come along; the activity log and trash flag do
// not — the copy starts its own history, untrashed.
func (e Engine) DuplicateTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	src, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.nowRFC3339()
	dup := domain.Task{
		ID:          uuid.New().String(),
		Title:       src.Title + duplicateSuffix,
		Description: src.Description,
		Stage:       src.Stage,
		Priority:    src.Priority,
		Assignees:   src.Assignees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, dup); err != nil {
		return domain.Task{}, err
	}
	for _, st := range src.SubTasks {
		copySub := st
		copySub.ID = uuid.New().String()
		copySub.CreatedAt = now
		if err := e.Repo.InsertSubTask(ctx, tx, dup.ID, copySub); err != nil {
			return domain.Task{}, err
		}
	}
	if len(dup.Assignees) > 0 {
		if err := e.Activities.Append(ctx, tx, dup.ID, domain.ActivityAssigned, assignedText(len(dup.Assignees)), actorID, now); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, dup.ID)
}

// PostActivity appends a progress-report entry. Open to any
// authenticated principal; the server layer does not admin-gate it.
func (e Engine) PostActivity(ctx context.Context, taskID, actType, text, actorID string) (domain.Task, error) {
	if !domain.ValidActivityType(actType) {
		return domain.Task{}, ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.ActivityTypes, ", "))}
	}
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, ValidationError{Field: "text", Reason: "required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Activities.Append(ctx, tx, t.ID, actType, text, actorID, e.nowRFC3339()); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// Trash/restore action keywords.
const (
	ActionDelete     = "delete"
	ActionDeleteAll  = "deleteAll"
	ActionRestore    = "restore"
	ActionRestoreAll = "restoreAll"
)

// TrashOrRestore flips the soft-delete flag on one task or on every
// task on one side of it. Bulk variants enumerate ids first and flag
// them one transaction each; a partial run re-invoked converges to the
// same end state.
func (e Engine) TrashOrRestore(ctx context.Context, id, action string) error {
	switch action {
	case ActionDelete:
		if id == "" {
			return ValidationError{Field: "id", Reason: "required for delete"}
		}
		return e.setTrashed(ctx, id, true)
	case ActionRestore:
		if id == "" {
			return ValidationError{Field: "id", Reason: "required for restore"}
		}
		return e.setTrashed(ctx, id, false)
	case ActionDeleteAll:
		return e.setTrashedAll(ctx, false, true)
	case ActionRestoreAll:
		return e.setTrashedAll(ctx, true, false)
	default:
		return InvalidActionError{Action: action}
	}
}

func (e Engine) setTrashed(ctx context.Context, id string, trashed bool) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SetTrashed(ctx, tx, id, trashed, e.nowRFC3339()); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) setTrashedAll(ctx context.Context, from, to bool) error {
	ids, err := e.Repo.ListTaskIDs(ctx, from)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.setTrashed(ctx, id, to); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// PurgeTask removes a record permanently. Unlike the flag-based trash
// operations there is no way back from this one.
func (e Engine) PurgeTask(ctx context.Context, id string) error {
	return e.Repo.DeleteTask(ctx, id)
}

// GetTask returns one task; trashed records stay hidden unless asked for.
func (e Engine) GetTask(ctx context.Context, id string, includeTrashed bool) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.IsTrashed && !includeTrashed {
		return domain.Task{}, repo.ErrNotFound
	}
	return t, nil
}

// ListTasks is a read-through to the store; the default filter hides
// trashed records.
func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	if f.Stage != "" && !domain.ValidStage(f.Stage) {
		return nil, InvalidStageError{Stage: f.Stage}
	}
	if f.Priority != "" && !domain.ValidPriority(f.Priority) {
		return nil, ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.Priorities, ", "))}
	}
	return e.Repo.ListTasks(ctx, f)
}
