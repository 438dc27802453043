// Package app wires the workspace together: database, migrations,
// config file, and the first administrator account.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/migrate"
)

// Open prepares a workspace and returns a ready engine. The caller
// owns the connection and closes it when done.
func Open(ctx context.Context, workspace string) (*sql.DB, engine.Engine, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, engine.Engine{}, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	return conn, engine.New(conn, cfg), nil
}

// EnsureAdmin seeds the first administrator on a fresh workspace so
// there is a principal to authenticate as. Returns the seeded user and
// true only when one was actually created.
func EnsureAdmin(ctx context.Context, e engine.Engine, name string) (domain.User, bool, error) {
	if name == "" {
		name = "admin"
	}
	return e.SeedAdmin(ctx, name)
}
