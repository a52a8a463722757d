package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, email, full_name, password_hash, bio, profile_pic, created_at, updated_at`

// CreateUser inserts a new user. Email uniqueness is case-insensitive.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UnixMilli()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Bio, u.ProfilePic, u.CreatedAt, u.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
		return fmt.Errorf("email %q: %w", u.Email, ErrConflict)
	}
	return err
}

// GetUser returns a user by ID or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	return db.scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns a user by email or ErrNotFound.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return db.scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// ListUsersExcept returns every user other than id, ordered by name.
func (db *DB) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id != ?
		ORDER BY full_name COLLATE NOCASE, id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Bio, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile overwrites the editable profile fields. An empty
// profilePic keeps the current picture.
func (db *DB) UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*User, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE users SET
			full_name = ?,
			bio = ?,
			profile_pic = CASE WHEN ? != '' THEN ? ELSE profile_pic END,
			updated_at = ?
		WHERE id = ?`,
		fullName, bio, profilePic, profilePic, time.Now().UnixMilli(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return db.GetUser(ctx, id)
}

// UserCount returns the total number of users.
func (db *DB) UserCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Bio, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
