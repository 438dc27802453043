package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskdeck/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrConflict reports a store-level write collision (duplicate id or a
// row changed underneath a read-modify-write).
var ErrConflict = errors.New("conflict")

// TransientError wraps retryable store failures such as a busy database.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string { return fmt.Sprintf("transient store failure: %v", e.Err) }
func (e TransientError) Unwrap() error { return e.Err }

// StoreErr classifies driver errors into the repo taxonomy.
func StoreErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "busy"), strings.Contains(msg, "locked"):
		return TransientError{Err: err}
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,stage,priority,is_trashed,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.Stage, t.Priority, boolToInt(t.IsTrashed), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return StoreErr(err)
	}
	return r.ReplaceAssignees(ctx, tx, t.ID, t.Assignees)
}

// UpdateTask writes the mutable columns of a task row. Assignees are
// replaced separately so partial updates can leave them untouched.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, stage=?, priority=?, is_trashed=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Stage, t.Priority, boolToInt(t.IsTrashed), t.UpdatedAt, t.ID)
	if err != nil {
		return StoreErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ReplaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return StoreErr(err)
	}
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id,user_id) VALUES (?,?)`, taskID, uid); err != nil {
			return StoreErr(err)
		}
	}
	return nil
}

func scanTaskRow(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc sql.NullString
	var trashed int
	err := scan(&t.ID, &t.Title, &desc, &t.Stage, &t.Priority, &trashed, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, StoreErr(err)
	}
	if desc.Valid {
		t.Description = desc.String
	}
	t.IsTrashed = trashed != 0
	return t, nil
}

const taskColumns = `id,title,description,stage,priority,is_trashed,created_at,updated_at`

// GetTask returns one task with its assignees, subtasks and activity log.
func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTaskRow(row.Scan)
	if err != nil {
		return t, err
	}
	return r.hydrate(ctx, t)
}

// GetTaskTx is GetTask inside an open transaction, without hydration;
// engine read-modify-writes use it to keep the whole cycle in one tx.
func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTaskRow(row.Scan)
	if err != nil {
		return t, err
	}
	t.Assignees, err = r.listAssignees(ctx, tx.QueryContext, id)
	return t, err
}

func (r Repo) hydrate(ctx context.Context, t domain.Task) (domain.Task, error) {
	var err error
	if t.Assignees, err = r.listAssignees(ctx, r.DB.QueryContext, t.ID); err != nil {
		return t, err
	}
	if t.SubTasks, err = r.ListSubTasks(ctx, t.ID); err != nil {
		return t, err
	}
	if t.Activities, err = r.ListActivities(ctx, t.ID); err != nil {
		return t, err
	}
	return t, nil
}

type queryFn func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listAssignees(ctx context.Context, query queryFn, taskID string) ([]string, error) {
	rows, err := query(ctx, `SELECT user_id FROM task_assignees WHERE task_id=? ORDER BY user_id`, taskID)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TaskFilters scope ListTasks. Trashed=nil means non-trashed only, the
// default view; pointing it at true/false selects that side explicitly.
type TaskFilters struct {
	Stage           string
	Priority        string
	AssigneeID      string
	Trashed         *bool
	IncludeTrashed  bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "id IN (SELECT task_id FROM task_assignees WHERE user_id=?)")
		args = append(args, f.AssigneeID)
	}
	if f.Trashed != nil {
		clauses = append(clauses, "is_trashed=?")
		args = append(args, boolToInt(*f.Trashed))
	} else if !f.IncludeTrashed {
		clauses = append(clauses, "is_trashed=0")
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, StoreErr(err)
	}
	for i := range res {
		if res[i].Assignees, err = r.listAssignees(ctx, r.DB.QueryContext, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].SubTasks, err = r.ListSubTasks(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ListTaskIDs enumerates task ids on one side of the trash flag. Bulk
// trash/restore operate over this explicit list, one record at a time.
func (r Repo) ListTaskIDs(ctx context.Context, trashed bool) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM tasks WHERE is_trashed=? ORDER BY created_at, id`, boolToInt(trashed))
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetTrashed flips the soft-delete flag on one task.
func (r Repo) SetTrashed(ctx context.Context, tx *sql.Tx, id string, trashed bool, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET is_trashed=?, updated_at=? WHERE id=?`, boolToInt(trashed), updatedAt, id)
	if err != nil {
		return StoreErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes the record permanently. Subtasks, assignees and
// activities go with it via foreign keys.
func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return StoreErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertSubTask(ctx context.Context, tx *sql.Tx, taskID string, st domain.SubTask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO subtasks(id,task_id,title,tag,date,completed,created_at) VALUES (?,?,?,?,?,?,?)`,
		st.ID, taskID, st.Title, st.Tag, st.Date, boolToInt(st.Completed), st.CreatedAt)
	return StoreErr(err)
}

// ListSubTasks returns subtasks in creation order.
func (r Repo) ListSubTasks(ctx context.Context, taskID string) ([]domain.SubTask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,tag,date,completed,created_at FROM subtasks WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	subs := []domain.SubTask{}
	for rows.Next() {
		var st domain.SubTask
		var completed int
		if err := rows.Scan(&st.ID, &st.Title, &st.Tag, &st.Date, &completed, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Completed = completed != 0
		subs = append(subs, st)
	}
	return subs, rows.Err()
}

// ListActivities returns the append-only log in insertion order.
func (r Repo) ListActivities(ctx context.Context, taskID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,type,text,actor_id,ts FROM activities WHERE task_id=? ORDER BY ts, id`, taskID)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	acts := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.Type, &a.Text, &a.ActorID, &a.TS); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func (r Repo) CountActivities(ctx context.Context, taskID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM activities WHERE task_id=?`, taskID).Scan(&n)
	return n, StoreErr(err)
}

// CountTasksByStage groups the non-trashed task set by stage.
func (r Repo) CountTasksByStage(ctx context.Context) (map[string]int, error) {
	return r.countTasksBy(ctx, "stage")
}

// CountTasksByPriority groups the non-trashed task set by priority.
func (r Repo) CountTasksByPriority(ctx context.Context) (map[string]int, error) {
	return r.countTasksBy(ctx, "priority")
}

func (r Repo) countTasksBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s, count(*) FROM tasks WHERE is_trashed=0 GROUP BY %s`, column, column))
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		res[key] = count
	}
	return res, rows.Err()
}

// CountTasksCreatedSince counts non-trashed tasks created at or after ts.
func (r Repo) CountTasksCreatedSince(ctx context.Context, ts string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE is_trashed=0 AND created_at >= ?`, ts).Scan(&n)
	return n, StoreErr(err)
}
