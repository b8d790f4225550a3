// Package fallback implements the generative-text path taken when
// deterministic resolution fails.
//
// The responder builds a system instruction that enumerates the full catalog
// as "title -> link" pairs and asks the model to answer with an exact title,
// a fixed not-found sentinel, or conversational text. The reply is then
// checked back against the catalog so that a model naming a valid title is
// turned into a proper catalog hit rather than shown as prose.
//
// Degradation contract:
//   - upstream rate limit (HTTP 429) → a canned conversational reply, drawn
//     at random from a configured pool; callers cannot distinguish it from
//     a normal conversational answer
//   - any other failure, including timeout → ResultUnavailable; callers show
//     a generic apology and never retry within the same user turn
package fallback

import (
	"context"
	"errors"
)

// ErrRateLimited is returned by a Provider when the upstream generative
// service reports a rate-limiting condition (HTTP 429). The responder maps
// it to a canned reply; it never surfaces to the end user as an error.
var ErrRateLimited = errors.New("fallback: upstream rate limit exceeded")

// NoMatchSentinel is the exact string the model is instructed to return when
// it cannot confidently map the user's request to a catalog title.
const NoMatchSentinel = "NO_TITLE_FOUND"

// Message is a single prior turn injected into the model's context window.
type Message struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// CompletionRequest is the input to a single generative call.
type CompletionRequest struct {
	// System is the system instruction (catalog listing + behavioural contract).
	System string
	// History is the bounded trailing window of prior turns, oldest first.
	History []Message
	// Input is the current user message.
	Input string
}

// Provider performs one generative-text round trip.
//
// Implementations must be safe for concurrent use and must return
// ErrRateLimited (possibly wrapped) for upstream 429 responses so the
// responder can degrade gracefully instead of apologising.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
