package session

import (
	"strings"
	"time"
)

// clampString trims whitespace and truncates to max characters.
func clampString(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// clampStringSlice trims each entry, drops empties, and caps both the item
// count and per-item length.
func clampStringSlice(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = clampString(s, MaxArrayItemChars)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxArrayItems {
			break
		}
	}
	return out
}

// NormalizeMessage validates and bounds a chat message. It returns a
// ValidationError for an unknown role or empty content; a missing timestamp
// defaults to the current time.
func NormalizeMessage(msg ChatMessage) (ChatMessage, error) {
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return ChatMessage{}, &ValidationError{Field: "role", Reason: "must be user or assistant"}
	}
	msg.Content = clampString(msg.Content, MaxMessageChars)
	if msg.Content == "" {
		return ChatMessage{}, &ValidationError{Field: "content", Reason: "must be non-empty"}
	}
	msg.Timestamp = clampString(msg.Timestamp, 80)
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return msg, nil
}

// NormalizeProfile bounds every profile field.
func NormalizeProfile(p Profile) Profile {
	return Profile{
		AgeRange:    clampString(p.AgeRange, 80),
		Sex:         clampString(p.Sex, 40),
		Conditions:  clampString(p.Conditions, 300),
		Allergies:   clampString(p.Allergies, 300),
		Medications: clampString(p.Medications, 300),
	}
}

// NormalizeCaseData bounds every case field. Arrays never come back nil so
// callers and the wire shape see [] rather than null.
func NormalizeCaseData(c CaseData) CaseData {
	return CaseData{
		Symptoms:  clampStringSlice(c.Symptoms),
		Duration:  clampString(c.Duration, 200),
		Severity:  clampString(c.Severity, 120),
		FeverC:    c.FeverC,
		RedFlags:  clampStringSlice(c.RedFlags),
		Meds:      clampStringSlice(c.Meds),
		Allergies: clampStringSlice(c.Allergies),
		Notes:     clampString(c.Notes, 1000),
	}
}

// NormalizeRecommendation coerces unknown values to the middle tier rather
// than inventing urgency or dismissing it.
func NormalizeRecommendation(r Recommendation) Recommendation {
	switch r {
	case RecSelfCare, RecScheduleGP, RecUrgent:
		return r
	}
	return RecScheduleGP
}

// NormalizeTriageResult bounds a stored triage result.
func NormalizeTriageResult(t TriageResult) TriageResult {
	out := TriageResult{
		Recommendation: NormalizeRecommendation(t.Recommendation),
		Reason:         clampString(t.Reason, 500),
		RedFlags:       clampStringSlice(t.RedFlags),
		SOAPNote:       clampString(t.SOAPNote, 5000),
		GeneratedAt:    clampString(t.GeneratedAt, 80),
	}
	if out.GeneratedAt == "" {
		out.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return out
}

// NormalizeMode coerces anything that is not explicitly clinician to the
// patient-friendly default.
func NormalizeMode(m ClinicMode) ClinicMode {
	if m == ModeClinician {
		return ModeClinician
	}
	return ModePatientFriendly
}

// NormalizeState re-validates an entire session document field by field.
// Invalid history entries are dropped, the history is truncated to the most
// recent entries, and every scalar is re-bounded. Normalizing an
// already-normalized state is a no-op.
func NormalizeState(st *State) *State {
	if st == nil {
		return DefaultState()
	}

	history := make([]ChatMessage, 0, len(st.History))
	for _, m := range st.History {
		nm, err := NormalizeMessage(m)
		if err != nil {
			continue
		}
		history = append(history, nm)
	}
	if n := len(history); n > MaxHistoryMessages {
		history = history[n-MaxHistoryMessages:]
	}

	out := &State{
		Profile:             NormalizeProfile(st.Profile),
		History:             history,
		ConversationSummary: clampString(st.ConversationSummary, MaxSummaryChars),
		ClinicMode:          NormalizeMode(st.ClinicMode),
	}
	if st.DraftCase != nil {
		c := NormalizeCaseData(*st.DraftCase)
		out.DraftCase = &c
	}
	if st.LastTriage != nil {
		t := NormalizeTriageResult(*st.LastTriage)
		out.LastTriage = &t
	}
	return out
}

// ValidKey reports whether a session key is structurally acceptable.
func ValidKey(key string) bool {
	return len(key) >= 8 && len(key) <= 128
}
