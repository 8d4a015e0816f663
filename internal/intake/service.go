package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/llm"
	"github.com/linnemanlabs/intake/internal/session"
)

// ErrNoTriage rejects an export before any triage has run.
var ErrNoTriage = errors.New("no triage result available yet")

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Reply string `json:"reply"`
	// MemoryAvailable is false when the session store could not be read or
	// written; the reply is still generated, just without persistence.
	MemoryAvailable bool `json:"memoryAvailable"`
}

// Service is the business boundary for intake operations. All store access
// goes through the resilient client passed in as store.
type Service struct {
	store        session.Store
	oracle       *llm.Oracle
	refresher    *Refresher
	orchestrator *Orchestrator
	logger       log.Logger
	onChatTurn   func() // metrics hook, may be nil
}

// NewService wires the intake service.
func NewService(store session.Store, oracle *llm.Oracle, refresher *Refresher, orchestrator *Orchestrator, logger log.Logger, onChatTurn func()) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:        store,
		oracle:       oracle,
		refresher:    refresher,
		orchestrator: orchestrator,
		logger:       logger,
		onChatTurn:   onChatTurn,
	}
}

// Chat generates an assistant reply for the user's message, appends both
// turns to the session, and may kick off a background summary refresh.
// Store trouble degrades to a stateless reply rather than failing the turn.
func (s *Service) Chat(ctx context.Context, key, text string) (*ChatResult, error) {
	text = strings.TrimSpace(text)
	if len(text) > session.MaxMessageChars {
		text = text[:session.MaxMessageChars]
	}
	if text == "" {
		return nil, &session.ValidationError{Field: "message", Reason: "must be non-empty"}
	}

	memoryAvailable := true
	st, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "session unavailable, chatting without memory", "session", key, "error", err.Error())
		st = session.DefaultState()
		memoryAvailable = false
	}

	reply := s.oracle.Generate(ctx, &llm.Request{
		Messages: chatMessages(st, text),
	})
	if reply == "" {
		reply = "I could not generate a response. Please try again."
	}
	if s.onChatTurn != nil {
		s.onChatTurn()
	}

	if memoryAvailable {
		if err := s.recordTurn(ctx, key, text, reply); err != nil {
			s.logger.Warn(ctx, "failed to record chat turn", "session", key, "error", err.Error())
			memoryAvailable = false
		}
	}

	return &ChatResult{Reply: reply, MemoryAvailable: memoryAvailable}, nil
}

// recordTurn appends the user and assistant messages and triggers the
// summary refresher off the resulting history.
func (s *Service) recordTurn(ctx context.Context, key, userText, reply string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := s.store.AppendMessage(ctx, key, session.ChatMessage{
		Role: session.RoleUser, Content: userText, Timestamp: now,
	}); err != nil {
		return err
	}

	st, err := s.store.AppendMessage(ctx, key, session.ChatMessage{
		Role: session.RoleAssistant, Content: reply, Timestamp: now,
	})
	if err != nil {
		return err
	}

	s.refresher.MaybeRefresh(ctx, key, st.History)
	return nil
}

// chatMessages assembles the generation prompt: assistant rules plus the
// mode-selected style, the profile/summary context, the history, and the
// new user message.
func chatMessages(st *session.State, userText string) []llm.Message {
	style := chatStylePatientFriendly
	if st.ClinicMode == session.ModeClinician {
		style = chatStyleClinician
	}
	profile, _ := json.Marshal(st.Profile)
	summary := st.ConversationSummary
	if summary == "" {
		summary = "(empty)"
	}

	msgs := make([]llm.Message, 0, len(st.History)+3)
	msgs = append(msgs,
		llm.Message{Role: "system", Content: chatSystemPrompt + "\n" + style},
		llm.Message{Role: "system", Content: "Patient profile: " + string(profile) +
			"\nConversation summary: " + summary},
	)
	for _, m := range st.History {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: userText})
}

// RunTriage executes the triage pipeline for the session.
func (s *Service) RunTriage(ctx context.Context, key string) (*Outcome, error) {
	return s.orchestrator.Run(ctx, key)
}

// Get returns the session's normalized state.
func (s *Service) Get(ctx context.Context, key string) (*session.State, error) {
	return s.store.Get(ctx, key)
}

// SetProfile merges a partial profile update onto the session.
func (s *Service) SetProfile(ctx context.Context, key string, patch session.ProfilePatch) (session.Profile, error) {
	st, err := s.store.SetProfile(ctx, key, patch)
	if err != nil {
		return session.Profile{}, err
	}
	return st.Profile, nil
}

// SetMode switches the session's clinic mode.
func (s *Service) SetMode(ctx context.Context, key string, mode session.ClinicMode) (session.ClinicMode, error) {
	mode = session.NormalizeMode(mode)
	if err := s.store.SetMode(ctx, key, mode); err != nil {
		return "", err
	}
	return mode, nil
}

// Reset replaces the session document with defaults.
func (s *Service) Reset(ctx context.Context, key string) error {
	return s.store.Reset(ctx, key)
}

// Export renders the last triage result as a markdown SOAP draft.
func (s *Service) Export(ctx context.Context, key string) (string, error) {
	st, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if st.LastTriage == nil {
		return "", ErrNoTriage
	}
	t := st.LastTriage

	lines := []string{
		"# Clinic Companion SOAP Draft",
		"",
		"Generated: " + t.GeneratedAt,
		"",
		"## Recommendation",
		"- " + string(t.Recommendation),
		"- " + t.Reason,
		"",
		"## Red Flags",
	}
	if len(t.RedFlags) == 0 {
		lines = append(lines, "- None detected")
	} else {
		for _, f := range t.RedFlags {
			lines = append(lines, "- "+f)
		}
	}
	lines = append(lines,
		"",
		"## SOAP Note",
		t.SOAPNote,
		"",
		"---",
		"Educational only, not medical advice.",
	)
	return strings.Join(lines, "\n"), nil
}
