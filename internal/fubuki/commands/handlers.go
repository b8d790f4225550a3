package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/amartel/fubuki/common/version"
	"github.com/amartel/fubuki/internal/fubuki/catalog"
	"github.com/amartel/fubuki/internal/fubuki/history"
	"github.com/amartel/fubuki/internal/fubuki/notify"
	"github.com/amartel/fubuki/internal/fubuki/resolve"
)

// RefusalMessage is the generic reply for non-admins invoking admin
// commands. Deliberately uninformative: it leaks neither the recipient list
// nor whether the command exists in a privileged form.
const RefusalMessage = "Sorry, that command is reserved for the operator."

// UserCounter is the registry subset the /stats command needs.
type UserCounter interface {
	CountUsers(ctx context.Context) (int, error)
}

// RoomSender posts follow-up notices (e.g. broadcast summaries) back to the
// room a command came from.
type RoomSender interface {
	SendNotice(roomID, message string) error
}

// HandlersConfig wires the collaborators the command handlers need.
type HandlersConfig struct {
	Catalog     *catalog.Catalog
	Resolver    *resolve.Resolver
	Broadcaster *notify.Broadcaster
	History     *history.Tracker
	Users       UserCounter
	RoomSender  RoomSender
	// AdminID is the single Matrix user ID allowed to run admin commands.
	AdminID string
}

// Handlers implements all command handlers.
type Handlers struct {
	cfg HandlersConfig
}

// NewHandlers creates command handlers with the given configuration.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{cfg: cfg}
}

// isAdmin reports whether the event sender is the configured admin.
func (h *Handlers) isAdmin(evt *event.Event) bool {
	return h.cfg.AdminID != "" && evt.Sender.String() == h.cfg.AdminID
}

// HandleStart greets the user and shows the catalog menu. Registered for
// both /start and /help.
func (h *Handlers) HandleStart(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var b strings.Builder
	b.WriteString("👋 **Welcome!** I can find titles and download links for you.\n\n")
	b.WriteString("Just type a title (or part of one) and I'll look it up. ")
	b.WriteString("If I don't recognise it, I'll do my best to help anyway.\n\n")
	b.WriteString("**Available titles:**\n")
	for _, title := range h.cfg.Catalog.Titles() {
		b.WriteString("• ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString("\nCommands: `/find <text>`, `/reset`, `/help`")
	return b.String(), nil
}

// HandleFind lists every catalog entry whose keywords match the query, in
// catalog order. Unlike plain resolution, this surfaces all candidates
// instead of silently picking the first.
func (h *Handlers) HandleFind(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	query := cmd.RawArgs
	if query == "" {
		return "Usage: `/find <part of a title>`", nil
	}

	if entry, ok := h.cfg.Catalog.ByTitle(query); ok {
		return FormatEntry(entry), nil
	}

	matches := h.cfg.Resolver.Matches(query)
	if len(matches) == 0 {
		return fmt.Sprintf("No titles match %q. Try `/help` to browse the catalog.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es) for %q:\n", len(matches), query)
	for _, e := range matches {
		fmt.Fprintf(&b, "• **%s** — %s\n", e.Title, e.Link)
	}
	return b.String(), nil
}

// HandleStats reports the registered user count. Admin only.
func (h *Handlers) HandleStats(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if !h.isAdmin(evt) {
		return RefusalMessage, nil
	}

	count, err := h.cfg.Users.CountUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("count users: %w", err)
	}
	return fmt.Sprintf("📊 **Stats**\n\nRegistered users: **%d**\nCatalog entries: **%d**", count, h.cfg.Catalog.Len()), nil
}

// HandleBroadcast fans the message out to every registered user. The fan-out
// runs on its own goroutine with its own lifetime — it is long-running and
// must not block inbound message handling — and the summary is posted back
// to the requesting room when the run completes.
func (h *Handlers) HandleBroadcast(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if !h.isAdmin(evt) {
		return RefusalMessage, nil
	}

	message := cmd.RawArgs
	if message == "" {
		return "Usage: `/broadcast <message>`", nil
	}

	requestedBy := evt.Sender.String()
	replyRoom := evt.RoomID.String()

	go func() {
		// Detached from the triggering event's context: once started, the
		// broadcast runs to completion.
		outcome, err := h.cfg.Broadcaster.Broadcast(context.Background(), message, requestedBy)
		if err != nil {
			if errors.Is(err, notify.ErrUnauthorized) {
				// Already refused above; reaching here means a wiring bug.
				slog.Error("broadcast authorization mismatch", "requested_by", requestedBy)
				return
			}
			h.notifyRoom(replyRoom, fmt.Sprintf("❌ Broadcast failed: %s", err))
			return
		}
		h.notifyRoom(replyRoom, fmt.Sprintf(
			"✅ Broadcast complete: %d attempted, %d delivered, %d failed.",
			outcome.Attempted, outcome.Succeeded, outcome.Failed,
		))
	}()

	return "📢 Broadcast started. I'll post a summary here when it finishes.", nil
}

// HandleReset clears the sender's conversation history.
func (h *Handlers) HandleReset(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	h.cfg.History.Reset(evt.RoomID.String(), evt.Sender.String())
	return "🧹 Conversation history cleared.", nil
}

// HandleVersion reports build information.
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return "Fubuki " + version.Info(), nil
}

// HandlePing confirms liveness.
func (h *Handlers) HandlePing(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return "pong", nil
}

// notifyRoom posts a notice, logging rather than propagating failures.
func (h *Handlers) notifyRoom(roomID, message string) {
	if h.cfg.RoomSender == nil {
		return
	}
	if err := h.cfg.RoomSender.SendNotice(roomID, message); err != nil {
		slog.Warn("failed to post follow-up notice", "room", roomID, "err", err)
	}
}

// FormatEntry renders one catalog entry as a reply.
func FormatEntry(e catalog.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 **%s**\n\n📥 %s", e.Title, e.Link)
	if e.Poster != "" {
		fmt.Fprintf(&b, "\n🖼 %s", e.Poster)
	}
	return b.String()
}
