package database

import (
	"context"
	"fmt"
)

const userColumns = "id, username, password_hash, is_superuser, is_active"

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsSuperuser, &u.IsActive); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *User) error {
	res, err := s.db.ExecContext(ctx, "INSERT INTO users (username, password_hash, is_superuser, is_active) VALUES (?, ?, ?, ?)",
		user.Username, user.PasswordHash, user.IsSuperuser, user.IsActive)
	if err != nil {
		return fmt.Errorf("create user %q: %w", user.Username, err)
	}
	user.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDatabase) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *SQLiteDatabase) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

func (s *SQLiteDatabase) GrantPagePermission(ctx context.Context, userID, pageID int64, permission string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO page_permissions (user_id, page_id, permission_type) VALUES (?, ?, ?)",
		userID, pageID, permission)
	return err
}

// GetPagePermissions returns the permissions granted to a user together with
// the page each one is rooted at.
func (s *SQLiteDatabase) GetPagePermissions(ctx context.Context, userID int64) ([]*PagePermission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pp.user_id, pp.permission_type, `+prefixed("p", pageColumns)+`
		FROM page_permissions pp JOIN pages p ON p.id = pp.page_id
		WHERE pp.user_id = ? ORDER BY p.path, pp.permission_type`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var perms []*PagePermission
	for rows.Next() {
		var perm PagePermission
		var page *Page
		page, err = scanPage(scannerFunc(func(dest ...any) error {
			return rows.Scan(append([]any{&perm.UserID, &perm.Permission}, dest...)...)
		}))
		if err != nil {
			return nil, err
		}
		perm.Page = page
		perms = append(perms, &perm)
	}
	return perms, rows.Err()
}

type scannerFunc func(dest ...any) error

func (f scannerFunc) Scan(dest ...any) error {
	return f(dest...)
}
