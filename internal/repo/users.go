package repo

import (
	"context"
	"database/sql"

	"taskdeck/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,title,role,email,is_admin,is_active,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		u.ID, u.Name, nullable(u.Title), nullable(u.Role), nullable(u.Email), boolToInt(u.IsAdmin), boolToInt(u.IsActive), u.CreatedAt)
	return StoreErr(err)
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var title, role, email sql.NullString
	var isAdmin, isActive int
	err := scan(&u.ID, &u.Name, &title, &role, &email, &isAdmin, &isActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, StoreErr(err)
	}
	u.Title = title.String
	u.Role = role.String
	u.Email = email.String
	u.IsAdmin = isAdmin != 0
	u.IsActive = isActive != 0
	return u, nil
}

const userColumns = `id,name,title,role,email,is_admin,is_active,created_at`

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// SetUserActive toggles the account without touching anything else.
func (r Repo) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active=? WHERE id=?`, boolToInt(active), id)
	if err != nil {
		return StoreErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, StoreErr(err)
}
