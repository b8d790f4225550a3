// Package app wires Fubuki together: catalog, resolver, generative
// fallback, user registry, notifier, and the Matrix transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/amartel/fubuki/common/trace"
	"github.com/amartel/fubuki/internal/fubuki/catalog"
	"github.com/amartel/fubuki/internal/fubuki/commands"
	"github.com/amartel/fubuki/internal/fubuki/fallback"
	"github.com/amartel/fubuki/internal/fubuki/history"
	"github.com/amartel/fubuki/internal/fubuki/matrix"
	"github.com/amartel/fubuki/internal/fubuki/notify"
	"github.com/amartel/fubuki/internal/fubuki/observability"
	"github.com/amartel/fubuki/internal/fubuki/resolve"
	"github.com/amartel/fubuki/internal/fubuki/store"
)

// UnavailableApology is shown when the generative service fails outright.
// Generic and non-technical on purpose.
const UnavailableApology = "Something went wrong on my side. Please try again in a little while — exact titles always work."

// noResponderApology is shown when no generative provider is configured at
// all and deterministic resolution found nothing.
const noResponderApology = "I couldn't find that title. Try /help to browse everything I have."

// Config holds application configuration.
type Config struct {
	DatabasePath string
	CatalogPath  string
	Matrix       matrix.Config

	// AdminID is the single Matrix user ID allowed to run /broadcast and
	// /stats.
	AdminID string
	// OperatorRoom receives new-user announcements and the startup notice.
	OperatorRoom string

	// LLM configures the generative fallback provider. An empty APIKey
	// disables the fallback; resolution still works.
	LLM fallback.Config
	// CannedReplies overrides the rate-limit degradation pool.
	CannedReplies []string
	// HistoryWindow bounds the trailing turns sent to the provider.
	HistoryWindow int
	// FallbackRateLimit caps generative calls per sender per minute.
	FallbackRateLimit int

	// BroadcastInterval is the pause between broadcast delivery attempts.
	BroadcastInterval time.Duration

	// HTTPAddr is the TCP address for the optional health HTTP server
	// (e.g. ":8080"). When empty the server is disabled.
	HTTPAddr string
}

// App is the main Fubuki application.
type App struct {
	config       *Config
	store        *store.Store
	matrix       *matrix.Client
	resolver     *resolve.Resolver
	responder    *fallback.Responder
	limiter      *fallback.RateLimiter
	tracker      *history.Tracker
	announcer    *notify.Announcer
	router       *commands.Router
	handlers     *commands.Handlers
	healthServer *HealthServer

	// seen caches user IDs already registered this process lifetime so the
	// hot path skips the display-name fetch and registry write. Correctness
	// never depends on it: the registry's uniqueness constraint is the real
	// dedup.
	seen sync.Map
}

// New creates a new Fubuki application.
func New(config *Config) (*App, error) {
	slog.Info("loading catalog", "path", config.CatalogPath)
	cat, err := catalog.Load(config.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Inject the DB so the client can persist the sync token across restarts.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	matrixCfg.OperatorRoom = config.OperatorRoom
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	resolver := resolve.New(cat)
	tracker := history.NewTracker(history.Config{MaxTurns: config.HistoryWindow})

	var responder *fallback.Responder
	if config.LLM.APIKey != "" {
		provider := fallback.NewOpenAI(config.LLM)
		responder = fallback.NewResponder(provider, cat, fallback.ResponderConfig{
			HistoryWindow: config.HistoryWindow,
			CannedReplies: config.CannedReplies,
		})
		slog.Info("generative fallback ready", "model", config.LLM.Model)
	} else {
		slog.Warn("no LLM API key configured; unmatched messages get a static apology")
	}

	announcer := notify.NewAnnouncer(st, matrixClient, config.OperatorRoom)
	broadcaster := notify.NewBroadcaster(st, matrixClient, config.AdminID, config.BroadcastInterval)

	handlers := commands.NewHandlers(commands.HandlersConfig{
		Catalog:     cat,
		Resolver:    resolver,
		Broadcaster: broadcaster,
		History:     tracker,
		Users:       st,
		RoomSender:  matrixClient,
		AdminID:     config.AdminID,
	})

	router := commands.NewRouter("/")
	router.Register("start", handlers.HandleStart)
	router.Register("help", handlers.HandleStart)
	router.Register("find", handlers.HandleFind)
	router.Register("stats", handlers.HandleStats)
	router.Register("broadcast", handlers.HandleBroadcast)
	router.Register("reset", handlers.HandleReset)
	router.Register("version", handlers.HandleVersion)
	router.Register("ping", handlers.HandlePing)

	var healthServer *HealthServer
	if config.HTTPAddr != "" {
		healthServer = NewHealthServer(config.HTTPAddr, st, cat.Len())
		slog.Info("health server configured", "addr", config.HTTPAddr)
	}

	return &App{
		config:       config,
		store:        st,
		matrix:       matrixClient,
		resolver:     resolver,
		responder:    responder,
		limiter:      fallback.NewRateLimiter(config.FallbackRateLimit, time.Minute),
		tracker:      tracker,
		announcer:    announcer,
		router:       router,
		handlers:     handlers,
		healthServer: healthServer,
	}, nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	// Drop abandoned conversation sessions periodically.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := a.tracker.PruneIdle(now); n > 0 {
					slog.Debug("pruned idle conversations", "count", n)
				}
			}
		}
	}()

	if a.config.OperatorRoom != "" {
		a.matrix.SendNotice(a.config.OperatorRoom, "✅ Fubuki is up. Catalog loaded, ready for lookups.")
	}

	slog.Info("Fubuki is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the application.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.healthServer != nil {
		slog.Info("stopping health server")
		a.healthServer.Stop()
	}

	slog.Info("closing database")
	a.store.Close()
}

// handleMessage processes one inbound Matrix message. Each message is an
// independent unit of work; messages from different users run concurrently
// with no ordering guarantees between them.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	roomID := evt.RoomID.String()
	sender := evt.Sender.String()
	text := msgContent.Body

	// First contact handling runs before anything else but its failures
	// never block the reply path: resolution has no registry dependency.
	a.registerContact(ctx, sender, roomID)

	// Command syntax is handled entirely by the router; it never reaches
	// the resolver.
	response, err := a.router.Route(ctx, text, evt)
	switch {
	case err == nil:
		a.reply(roomID, response)
		return
	case errors.Is(err, commands.ErrUnknownCommand):
		help, _ := a.handlers.HandleStart(ctx, nil, evt)
		a.reply(roomID, "I don't know that command.\n\n"+help)
		return
	case !errors.Is(err, commands.ErrNotACommand):
		observability.WithTrace(ctx).Error("command failed", "sender", sender, "err", err)
		a.matrix.ReplyToMessage(roomID, evt.ID.String(), "❌ That didn't work, sorry. Please try again.")
		return
	}

	// Deterministic resolution.
	result, err := a.resolver.Resolve(text)
	if err != nil {
		// Command syntax that slipped past the router prefix check; show help.
		help, _ := a.handlers.HandleStart(ctx, nil, evt)
		a.reply(roomID, help)
		return
	}

	switch result.Kind {
	case resolve.KindMatched:
		a.reply(roomID, commands.FormatEntry(result.Entry))
	case resolve.KindAmbiguous:
		var b strings.Builder
		b.WriteString("That could be a few things:\n")
		for _, e := range result.Entries {
			fmt.Fprintf(&b, "• **%s** — %s\n", e.Title, e.Link)
		}
		a.reply(roomID, b.String())
	case resolve.KindUnmatched:
		a.respondViaFallback(ctx, evt, text)
	}
}

// respondViaFallback runs the generative path for input that resolved to
// nothing deterministic.
func (a *App) respondViaFallback(ctx context.Context, evt *event.Event, text string) {
	roomID := evt.RoomID.String()
	sender := evt.Sender.String()

	if a.responder == nil {
		a.reply(roomID, noResponderApology)
		return
	}

	if !a.limiter.Allow(sender) {
		a.reply(roomID, fallback.BusyMessage)
		return
	}

	// Best-effort typing indicator while the round trip is in flight.
	a.matrix.SetTyping(roomID, true, 15*time.Second)
	defer a.matrix.SetTyping(roomID, false, 0)

	turns := a.tracker.Turns(roomID, sender)
	msgs := make([]fallback.Message, len(turns))
	for i, t := range turns {
		msgs[i] = fallback.Message{Role: t.Role, Content: t.Content}
	}
	a.tracker.Record(roomID, sender, "user", text)

	result := a.responder.Respond(ctx, text, msgs)
	switch result.Kind {
	case fallback.ResultCatalogHit:
		a.tracker.Record(roomID, sender, "assistant", result.Entry.Title)
		a.reply(roomID, commands.FormatEntry(result.Entry))
	case fallback.ResultConversationalText:
		a.tracker.Record(roomID, sender, "assistant", result.Text)
		a.reply(roomID, result.Text)
	case fallback.ResultUnavailable:
		a.reply(roomID, UnavailableApology)
	}
}

// registerContact performs the first-contact flow: atomic registration,
// operator announcement, and a one-time welcome. All failures are logged
// and swallowed here.
func (a *App) registerContact(ctx context.Context, sender, roomID string) {
	if _, ok := a.seen.Load(sender); ok {
		return
	}

	displayName, err := a.matrix.GetDisplayName(sender)
	if err != nil || displayName == "" {
		displayName = sender
	}

	inserted, err := a.announcer.AnnounceIfNew(ctx, store.User{
		UserID:      sender,
		DisplayName: displayName,
		RoomID:      roomID,
	})
	if err != nil {
		// Registry down: fail closed (no announcement) but keep serving.
		observability.WithTrace(ctx).Warn("first-contact registration failed", "user", sender, "err", err)
		return
	}
	a.seen.Store(sender, struct{}{})

	if inserted {
		welcome, _ := a.handlers.HandleStart(ctx, nil, &event.Event{})
		a.reply(roomID, welcome)
	}
}

// reply sends markdown-ish text as a formatted Matrix message, falling back
// to the plain body for clients without HTML support.
func (a *App) reply(roomID, text string) {
	if text == "" {
		return
	}
	if err := a.matrix.SendFormattedMessage(roomID, markdownToHTML(text), text); err != nil {
		slog.Error("failed to send reply", "room", roomID, "err", err)
	}
}
