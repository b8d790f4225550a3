package fallback

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/amartel/fubuki/internal/fubuki/catalog"
)

// fakeProvider returns a scripted reply or error and records the last request.
type fakeProvider struct {
	reply   string
	err     error
	lastReq CompletionRequest
	calls   int
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.lastReq = req
	f.calls++
	return f.reply, f.err
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{Title: "Moonlight", Link: "https://example.com/moonlight", Keywords: []string{"moonlight"}},
		{Title: "Spirited Away", Link: "https://example.com/spirited", Keywords: []string{"spirited away"}},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func TestRespondCatalogHit(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bare title", "Moonlight"},
		{"whitespace wrapped", "  Moonlight\n"},
		{"quote wrapped", `"Moonlight"`},
		{"smart quotes", "“Moonlight”"},
		{"backticks", "`Moonlight`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{reply: tt.reply}
			r := NewResponder(provider, testCatalog(t), ResponderConfig{})

			result := r.Respond(context.Background(), "that oscar movie", nil)
			if result.Kind != ResultCatalogHit {
				t.Fatalf("Kind = %v, want ResultCatalogHit", result.Kind)
			}
			if result.Entry.Title != "Moonlight" {
				t.Errorf("Entry.Title = %q, want Moonlight", result.Entry.Title)
			}
		})
	}
}

func TestRespondSentinel(t *testing.T) {
	for _, reply := range []string{
		NoMatchSentinel,
		"  " + NoMatchSentinel + " ",
		"Hmm, " + NoMatchSentinel + ", sorry!",
	} {
		provider := &fakeProvider{reply: reply}
		r := NewResponder(provider, testCatalog(t), ResponderConfig{})

		result := r.Respond(context.Background(), "some obscure film", nil)
		if result.Kind != ResultConversationalText {
			t.Fatalf("Kind = %v, want ResultConversationalText", result.Kind)
		}
		if result.Text != NotFoundApology {
			t.Errorf("Text = %q, want the not-found apology", result.Text)
		}
	}
}

func TestRespondConversational(t *testing.T) {
	provider := &fakeProvider{reply: "I mostly know movies, but hi!"}
	r := NewResponder(provider, testCatalog(t), ResponderConfig{})

	result := r.Respond(context.Background(), "how are you?", nil)
	if result.Kind != ResultConversationalText {
		t.Fatalf("Kind = %v, want ResultConversationalText", result.Kind)
	}
	if result.Text != "I mostly know movies, but hi!" {
		t.Errorf("Text = %q, want the reply verbatim", result.Text)
	}
}

// Upstream 429 must degrade to a canned reply, never to Unavailable.
func TestRespondRateLimited(t *testing.T) {
	canned := []string{"busy-a", "busy-b", "busy-c"}
	provider := &fakeProvider{err: fmt.Errorf("HTTP 429: %w", ErrRateLimited)}
	r := NewResponder(provider, testCatalog(t), ResponderConfig{
		CannedReplies: canned,
		Rand:          rand.New(rand.NewSource(42)),
	})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result := r.Respond(context.Background(), "anything", nil)
		if result.Kind != ResultConversationalText {
			t.Fatalf("Kind = %v, want ResultConversationalText", result.Kind)
		}
		found := false
		for _, c := range canned {
			if result.Text == c {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Text = %q, not in the canned pool", result.Text)
		}
		seen[result.Text] = true
	}
	// With 50 seeded draws over 3 replies, every member should appear.
	if len(seen) != len(canned) {
		t.Errorf("saw %d distinct canned replies, want %d", len(seen), len(canned))
	}
}

func TestRespondProviderFailure(t *testing.T) {
	for _, err := range []error{
		errors.New("connection refused"),
		context.DeadlineExceeded,
		fmt.Errorf("fallback: unexpected status %d", 500),
	} {
		provider := &fakeProvider{err: err}
		r := NewResponder(provider, testCatalog(t), ResponderConfig{})

		result := r.Respond(context.Background(), "anything", nil)
		if result.Kind != ResultUnavailable {
			t.Errorf("err %v: Kind = %v, want ResultUnavailable", err, result.Kind)
		}
	}
}

func TestRespondHistoryWindow(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	r := NewResponder(provider, testCatalog(t), ResponderConfig{HistoryWindow: 3})

	history := make([]Message, 8)
	for i := range history {
		history[i] = Message{Role: "user", Content: fmt.Sprintf("turn %d", i)}
	}

	r.Respond(context.Background(), "latest", history)

	got := provider.lastReq.History
	if len(got) != 3 {
		t.Fatalf("forwarded %d history turns, want 3", len(got))
	}
	// The trailing turns survive, oldest first.
	for i, want := range []string{"turn 5", "turn 6", "turn 7"} {
		if got[i].Content != want {
			t.Errorf("History[%d] = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestRespondSystemPromptListsCatalog(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	r := NewResponder(provider, testCatalog(t), ResponderConfig{})

	r.Respond(context.Background(), "hello", nil)

	sys := provider.lastReq.System
	if !strings.Contains(sys, "Moonlight -> https://example.com/moonlight") {
		t.Errorf("system prompt missing catalog listing:\n%s", sys)
	}
	if !strings.Contains(sys, NoMatchSentinel) {
		t.Error("system prompt missing the not-found sentinel")
	}
	if provider.lastReq.Input != "hello" {
		t.Errorf("Input = %q, want hello", provider.lastReq.Input)
	}
}

func TestTrimDecorations(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Moonlight", "Moonlight"},
		{"  Moonlight  ", "Moonlight"},
		{`"Moonlight"`, "Moonlight"},
		{"'Moonlight'", "Moonlight"},
		{"“Moonlight”", "Moonlight"},
		{"`Moonlight`\n", "Moonlight"},
		{"Moon light", "Moon light"}, // interior whitespace kept
	}

	for _, tt := range tests {
		if got := trimDecorations(tt.in); got != tt.want {
			t.Errorf("trimDecorations(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
