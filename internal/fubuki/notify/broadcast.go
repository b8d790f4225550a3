package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultSendInterval is the mandatory pause between consecutive delivery
// attempts. Messaging homeservers rate-limit outbound traffic; sending
// without pacing trips their abuse prevention and fails the tail of the
// recipient list, so this is a correctness requirement, not a tuning knob.
const DefaultSendInterval = 75 * time.Millisecond

// Outcome summarises one broadcast invocation. It is returned to the caller
// for display and is not persisted.
type Outcome struct {
	// Attempted is the number of recipients a delivery was attempted for.
	Attempted int
	// Succeeded is the number of deliveries the transport accepted.
	Succeeded int
	// Failed is the number of deliveries that errored.
	Failed int
	// FailedUserIDs lists the recipients whose delivery failed, in
	// enumeration order.
	FailedUserIDs []string
}

// Broadcaster fans one message out to every registered user.
type Broadcaster struct {
	registry Registry
	sender   Sender
	adminID  string
	limiter  *rate.Limiter
}

// NewBroadcaster creates a Broadcaster authorised only for adminID, pacing
// delivery attempts at one per interval. A non-positive interval falls back
// to DefaultSendInterval.
func NewBroadcaster(registry Registry, sender Sender, adminID string, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Broadcaster{
		registry: registry,
		sender:   sender,
		adminID:  adminID,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Broadcast attempts exactly one delivery of message to every registered
// user and returns the per-recipient accounting.
//
// Authorization is checked before anything else: a requestedBy other than
// the configured admin identity gets ErrUnauthorized with the registry
// unread and zero messages sent.
//
// A failed delivery is logged and counted but never aborts the loop —
// partial failure is expected and normal. An empty recipient set is a
// valid outcome with Attempted == 0.
func (b *Broadcaster) Broadcast(ctx context.Context, message, requestedBy string) (Outcome, error) {
	if requestedBy != b.adminID {
		slog.Warn("broadcast refused", "requested_by", requestedBy)
		return Outcome{}, ErrUnauthorized
	}

	users, err := b.registry.ListUsers(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("enumerate recipients: %w", err)
	}

	runID := uuid.New().String()
	slog.Info("broadcast started", "run", runID, "recipients", len(users))

	var out Outcome
	for _, u := range users {
		// The limiter spaces every attempt, success or failure alike.
		if err := b.limiter.Wait(ctx); err != nil {
			// Context cancelled mid-run; report what was attempted so far.
			slog.Warn("broadcast interrupted", "run", runID, "err", err)
			return out, err
		}

		out.Attempted++
		if err := b.sender.SendMessage(u.RoomID, message); err != nil {
			out.Failed++
			out.FailedUserIDs = append(out.FailedUserIDs, u.UserID)
			slog.Warn("broadcast delivery failed", "run", runID, "user", u.UserID, "err", err)
			continue
		}
		out.Succeeded++
	}

	slog.Info("broadcast finished",
		"run", runID,
		"attempted", out.Attempted,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
	)
	return out, nil
}
