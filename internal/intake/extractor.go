package intake

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/llm"
	"github.com/linnemanlabs/intake/internal/session"
)

// extractorTurns is how many recent turns feed the extraction prompt.
const extractorTurns = 20

// Extractor turns a conversation into a structured case record.
type Extractor struct {
	oracle *llm.Oracle
	logger log.Logger
}

// NewExtractor creates a case extractor over the given oracle.
func NewExtractor(oracle *llm.Oracle, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{oracle: oracle, logger: logger}
}

// Extract builds an extraction prompt from the recent history, profile, and
// summary, asks the oracle for a JSON object, and normalizes the result.
// Any generation or parse failure degrades to an all-empty default case so
// triage is always computable; the only hard error is context expiry.
func (e *Extractor) Extract(ctx context.Context, st *session.State) (session.CaseData, error) {
	raw := e.oracle.GenerateStructured(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: caseExtractPrompt},
			{Role: "user", Content: extractionContext(st)},
		},
		MaxTokens: 380,
	})
	if err := ctx.Err(); err != nil {
		return session.DefaultCaseData(), err
	}

	slice, ok := firstJSONObject(raw)
	if !ok {
		e.logger.Warn(ctx, "extraction response held no JSON object, using default case")
		return session.DefaultCaseData(), nil
	}

	var c session.CaseData
	if err := json.Unmarshal([]byte(slice), &c); err != nil {
		e.logger.Warn(ctx, "extraction response unparseable, using default case", "error", err.Error())
		return session.DefaultCaseData(), nil
	}
	return session.NormalizeCaseData(c), nil
}

// extractionContext renders the profile, summary, and last turns for the
// extraction prompt.
func extractionContext(st *session.State) string {
	history := st.History
	if len(history) > extractorTurns {
		history = history[len(history)-extractorTurns:]
	}
	turns := make([]string, len(history))
	for i, m := range history {
		turns[i] = string(m.Role) + ": " + m.Content
	}

	profile, _ := json.Marshal(st.Profile)
	summary := st.ConversationSummary
	if summary == "" {
		summary = "(none)"
	}

	return "Profile: " + string(profile) +
		"\nConversation summary: " + summary +
		"\nChat:\n" + strings.Join(turns, "\n")
}
