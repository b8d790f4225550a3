package store

import (
	"context"
	"fmt"
	"time"
)

// User is one registered recipient. Records are created on first observed
// contact and never updated or deleted by the bot.
type User struct {
	// UserID is the opaque unique identity (Matrix MXID), the primary key.
	UserID string
	// DisplayName is the profile name observed at registration time.
	DisplayName string
	// RoomID is the direct room used to deliver messages to this user.
	RoomID string
	// CreatedAt is when the user was first seen.
	CreatedAt time.Time
}

// InsertUserIfAbsent registers a user, returning true when the record did
// not previously exist. A second registration for the same UserID is a
// no-op, not an error: the PRIMARY KEY plus ON CONFLICT DO NOTHING makes the
// check-and-insert a single atomic statement, so concurrent first contacts
// from the same user can never produce two rows.
func (s *Store) InsertUserIfAbsent(ctx context.Context, u User) (bool, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, display_name, room_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, u.UserID, u.DisplayName, u.RoomID, u.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListUsers returns every registered user. The order is stable within an
// invocation (registration time, then user ID) so broadcast accounting is
// reproducible.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, display_name, room_id, created_at
		FROM users
		ORDER BY created_at, user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.RoomID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
