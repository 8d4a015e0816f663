package intake

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/llm"
	"github.com/linnemanlabs/intake/internal/session"
)

const (
	// refreshEvery triggers a summary rebuild when the history length is a
	// positive multiple of this.
	refreshEvery = 6
	// summaryTurns is how many recent turns the summary compresses.
	summaryTurns = 14
)

// Refresher keeps the conversation summary roughly current. It is strictly
// best-effort: nothing in this path may fail or delay the chat turn that
// triggered it.
type Refresher struct {
	oracle *llm.Oracle
	store  session.Store
	logger log.Logger
	onDone func(ok bool) // metrics hook, may be nil
}

// NewRefresher creates a summary refresher writing through store.
func NewRefresher(oracle *llm.Oracle, store session.Store, logger log.Logger, onDone func(ok bool)) *Refresher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Refresher{oracle: oracle, store: store, logger: logger, onDone: onDone}
}

// MaybeRefresh fires an asynchronous summary rebuild when the post-append
// history length crosses a refresh boundary. It returns immediately.
func (r *Refresher) MaybeRefresh(ctx context.Context, key string, history []session.ChatMessage) {
	if len(history) == 0 || len(history)%refreshEvery != 0 {
		return
	}
	go func() {
		// Detached from the request so a finished chat turn cannot cancel it.
		if err := r.Refresh(context.WithoutCancel(ctx), key, history); err != nil {
			r.logger.Warn(ctx, "summary refresh failed", "session", key, "error", err.Error())
			if r.onDone != nil {
				r.onDone(false)
			}
			return
		}
		if r.onDone != nil {
			r.onDone(true)
		}
	}()
}

// Refresh compresses the most recent turns into a bounded summary and
// stores it.
func (r *Refresher) Refresh(ctx context.Context, key string, history []session.ChatMessage) error {
	if len(history) > summaryTurns {
		history = history[len(history)-summaryTurns:]
	}
	turns := make([]string, len(history))
	for i, m := range history {
		turns[i] = string(m.Role) + ": " + m.Content
	}

	text := r.oracle.Generate(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: strings.Join(turns, "\n")},
		},
		MaxTokens:   220,
		Temperature: 0.2,
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(text) > session.MaxSummaryChars {
		text = text[:session.MaxSummaryChars]
	}
	return r.store.SetSummary(ctx, key, text)
}
