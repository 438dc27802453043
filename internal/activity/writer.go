// Package activity appends to the per-task audit log. Entries are
// immutable once written; nothing in taskdeck edits or removes them.
package activity

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"taskdeck/internal/repo"
)

type Writer struct {
	DB *sql.DB
}

// Append writes one log entry inside the caller's transaction so the
// entry lands atomically with the mutation it describes. The caller
// supplies ts so the entry shares the mutation's clock.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, taskID, actType, text, actorID, ts string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,task_id,type,text,actor_id,ts) VALUES (?,?,?,?,?,?)`,
		uuid.New().String(), taskID, actType, text, actorID, ts)
	return repo.StoreErr(err)
}
