package intake

import (
	"context"
	"encoding/json"

	"github.com/linnemanlabs/intake/internal/llm"
	"github.com/linnemanlabs/intake/internal/session"
)

// noteFallback stands in when the oracle produces nothing usable.
const noteFallback = "SOAP note unavailable."

// Composer renders a narrative SOAP note from a case and its decision.
type Composer struct {
	oracle *llm.Oracle
}

// NewComposer creates a note composer over the given oracle.
func NewComposer(oracle *llm.Oracle) *Composer {
	return &Composer{oracle: oracle}
}

// Compose generates the note in the register selected by the session's
// clinic mode. An empty response substitutes the literal fallback text; the
// only hard error is context expiry.
func (c *Composer) Compose(ctx context.Context, st *session.State, draft session.CaseData, d Decision) (string, error) {
	style := stylePatientFriendly
	if st.ClinicMode == session.ModeClinician {
		style = styleClinician
	}

	profile, _ := json.Marshal(st.Profile)
	caseJSON, _ := json.Marshal(draft)
	decisionJSON, _ := json.Marshal(d)

	note := c.oracle.Generate(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: soapPrompt + style},
			{Role: "user", Content: "Profile: " + string(profile) +
				"\nCase: " + string(caseJSON) +
				"\nTriage: " + string(decisionJSON)},
		},
		MaxTokens:   520,
		Temperature: 0.3,
	})
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if note == "" {
		return noteFallback, nil
	}
	return note, nil
}
