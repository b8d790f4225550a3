package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrations(t *testing.T) {
	s := newTestStore(t)

	// Both migrations applied: the users and sync-state tables exist.
	for _, table := range []string{"users", "matrix_sync_state", "schema_migrations"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s1, err := New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	// Reopening must not re-run applied migrations.
	s2, err := New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestInsertUserIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertUserIfAbsent(ctx, User{UserID: "@alice:example.com", DisplayName: "Alice", RoomID: "!dm1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported not-inserted")
	}

	// Same user again: no error, no new row, reported as absent.
	inserted, err = s.InsertUserIfAbsent(ctx, User{UserID: "@alice:example.com", DisplayName: "Alice Again", RoomID: "!dm2"})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported as inserted")
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// The original record is untouched.
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if users[0].DisplayName != "Alice" || users[0].RoomID != "!dm1" {
		t.Errorf("record mutated by duplicate insert: %+v", users[0])
	}
}

func TestListUsersOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"@c:example.com", "@a:example.com", "@b:example.com"} {
		_, err := s.InsertUserIfAbsent(ctx, User{
			UserID:    id,
			RoomID:    "!room",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("len = %d, want 3", len(users))
	}
	// Registration order, not lexical order.
	want := []string{"@c:example.com", "@a:example.com", "@b:example.com"}
	for i := range want {
		if users[i].UserID != want[i] {
			t.Errorf("users[%d] = %s, want %s", i, users[i].UserID, want[i])
		}
	}
}

func TestListUsersEmpty(t *testing.T) {
	s := newTestStore(t)

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len = %d, want 0", len(users))
	}
}

func TestCountUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if n, _ := s.CountUsers(ctx); n != 0 {
		t.Errorf("initial count = %d, want 0", n)
	}

	s.InsertUserIfAbsent(ctx, User{UserID: "@a:example.com", RoomID: "!r"})
	s.InsertUserIfAbsent(ctx, User{UserID: "@b:example.com", RoomID: "!r"})

	if n, _ := s.CountUsers(ctx); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
