package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/amartel/fubuki/internal/fubuki/catalog"
)

// ResultKind discriminates the FallbackResult variants.
type ResultKind int

const (
	// ResultUnavailable means the generative service failed and the caller
	// should show a generic apology.
	ResultUnavailable ResultKind = iota
	// ResultCatalogHit means the model named a valid catalog title.
	ResultCatalogHit
	// ResultConversationalText means the reply should be shown verbatim.
	ResultConversationalText
)

// FallbackResult is the outcome of one fallback round trip.
type FallbackResult struct {
	Kind ResultKind
	// Entry is set when Kind == ResultCatalogHit.
	Entry catalog.Entry
	// Text is set when Kind == ResultConversationalText.
	Text string
}

// DefaultHistoryWindow is the number of trailing conversation turns included
// in each generative call. Bounds both the request size and the model's
// effective context.
const DefaultHistoryWindow = 10

// NotFoundApology is shown when the model returns the not-found sentinel.
const NotFoundApology = "Sorry, I couldn't find that title in the catalog. Try /help to browse what's available."

// defaultCannedReplies is the pool used when the upstream service is
// rate-limited and no pool was configured.
var defaultCannedReplies = []string{
	"I'm a little swamped right now — give me a moment and ask again?",
	"Lots of people are chatting with me at once! Try that again in a few seconds.",
	"My brain needs a short breather. Meanwhile, /help lists everything I have.",
}

// systemPromptTmpl is the instruction set sent as the "system" message.
// Two printf verbs: the catalog listing and the not-found sentinel.
const systemPromptTmpl = `You are Fubuki, a friendly catalog assistant. You help users find titles and download links.

Available titles (title -> link):
%s

RULES (strict):
1. If the user is asking for one of the titles above, reply with the EXACT title text and nothing else.
2. If you are not certain which title the user wants, reply with exactly: %s
3. Otherwise, reply conversationally in a short, friendly tone.
4. Never invent titles or links that are not in the list above.`

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// HistoryWindow bounds the trailing turns forwarded to the provider.
	// Defaults to DefaultHistoryWindow.
	HistoryWindow int
	// CannedReplies is the pool drawn from on upstream rate limiting.
	// Defaults to a built-in pool when empty.
	CannedReplies []string
	// Rand is the randomness source for canned-reply selection. Injectable
	// so tests can seed it. Defaults to the global math/rand source.
	Rand *rand.Rand
}

// Responder turns unresolved user input into a catalog hit, conversational
// text, or an unavailability signal. Safe for concurrent use.
type Responder struct {
	provider Provider
	catalog  *catalog.Catalog
	window   int
	canned   []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResponder builds a Responder over provider and cat.
func NewResponder(provider Provider, cat *catalog.Catalog, cfg ResponderConfig) *Responder {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if len(cfg.CannedReplies) == 0 {
		cfg.CannedReplies = defaultCannedReplies
	}
	return &Responder{
		provider: provider,
		catalog:  cat,
		window:   cfg.HistoryWindow,
		canned:   cfg.CannedReplies,
		rng:      cfg.Rand,
	}
}

// Respond performs one fallback round trip for input, forwarding at most the
// configured trailing window of history. It never returns an error: every
// failure mode is folded into the FallbackResult contract.
func (r *Responder) Respond(ctx context.Context, input string, history []Message) FallbackResult {
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}

	system := fmt.Sprintf(systemPromptTmpl, r.catalog.PromptList(), NoMatchSentinel)

	reply, err := r.provider.Complete(ctx, CompletionRequest{
		System:  system,
		History: history,
		Input:   input,
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			slog.Warn("fallback: upstream rate limited, serving canned reply")
			return FallbackResult{Kind: ResultConversationalText, Text: r.pickCanned()}
		}
		slog.Error("fallback: generative call failed", "err", err)
		return FallbackResult{Kind: ResultUnavailable}
	}

	trimmed := trimDecorations(reply)

	if entry, ok := r.catalog.ByTitle(trimmed); ok {
		return FallbackResult{Kind: ResultCatalogHit, Entry: entry}
	}
	if trimmed == NoMatchSentinel || strings.Contains(trimmed, NoMatchSentinel) {
		return FallbackResult{Kind: ResultConversationalText, Text: NotFoundApology}
	}

	return FallbackResult{Kind: ResultConversationalText, Text: reply}
}

// pickCanned selects one canned reply uniformly at random.
func (r *Responder) pickCanned() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng != nil {
		return r.canned[r.rng.Intn(len(r.canned))]
	}
	return r.canned[rand.Intn(len(r.canned))]
}

// trimDecorations strips surrounding whitespace and decorative quote
// characters that models habitually wrap exact answers in.
func trimDecorations(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case '"', '\'', '`', '“', '”', '‘', '’':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
