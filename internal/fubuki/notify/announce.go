package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amartel/fubuki/common/retry"
	"github.com/amartel/fubuki/internal/fubuki/store"
)

// Announcer reports first contacts to the operator room. Registration and
// announcement are strictly ordered: the atomic insert decides whether an
// announcement happens at all, so concurrent first contacts from the same
// user produce exactly one record and at most one announcement.
type Announcer struct {
	registry     Registry
	sender       Sender
	operatorRoom string
}

// NewAnnouncer creates an Announcer posting to operatorRoom via sender.
// An empty operatorRoom disables announcements but not registration.
func NewAnnouncer(registry Registry, sender Sender, operatorRoom string) *Announcer {
	return &Announcer{
		registry:     registry,
		sender:       sender,
		operatorRoom: operatorRoom,
	}
}

// AnnounceIfNew registers the user and, when the record did not previously
// exist, sends one announcement to the operator room. Returns whether the
// user was newly registered.
//
// Failure semantics: a registry error fails closed (no announcement) and is
// returned for the caller to log; an announcement send failure is retried
// once, then logged and swallowed — it must never block the user-facing
// welcome flow.
func (a *Announcer) AnnounceIfNew(ctx context.Context, u store.User) (bool, error) {
	inserted, err := a.registry.InsertUserIfAbsent(ctx, u)
	if err != nil {
		return false, fmt.Errorf("register user %s: %w", u.UserID, err)
	}
	if !inserted {
		return false, nil
	}

	slog.Info("new user registered", "user", u.UserID, "name", u.DisplayName)

	if a.operatorRoom == "" {
		return true, nil
	}

	msg := fmt.Sprintf("🔔 New user: %s (%s)", u.DisplayName, u.UserID)
	err = retry.Do(ctx, retry.Config{MaxAttempts: 2, InitialDelay: time.Second}, func() error {
		return a.sender.SendNotice(a.operatorRoom, msg)
	})
	if err != nil {
		slog.Warn("operator announcement failed", "user", u.UserID, "err", err)
	}

	return true, nil
}
