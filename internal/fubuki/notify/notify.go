// Package notify implements the two outbound notification flows: the
// one-shot operator announcement on first contact, and the best-effort
// broadcast fan-out to every registered user.
package notify

import (
	"context"
	"errors"

	"github.com/amartel/fubuki/internal/fubuki/store"
)

// ErrUnauthorized is returned when a broadcast is requested by anyone other
// than the configured admin identity. The registry is not read and nothing
// is sent in that case.
var ErrUnauthorized = errors.New("notify: broadcast requires the admin identity")

// Sender is the outbound message sink shared by both flows. Defined here so
// the notifier can be unit-tested without a live Matrix connection.
type Sender interface {
	// SendMessage delivers plain text to a room, returning a synchronous
	// success/failure signal.
	SendMessage(roomID, message string) error
	// SendNotice delivers a less intrusive notice message to a room.
	SendNotice(roomID, message string) error
}

// Registry is the user-registry subset the notifier needs.
type Registry interface {
	InsertUserIfAbsent(ctx context.Context, u store.User) (bool, error)
	ListUsers(ctx context.Context) ([]store.User, error)
}
