package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/linnemanlabs/intake/internal/session"
)

const testKey = "session-0001"

func TestStore_GetUnseenKeyReturnsDefaults(t *testing.T) {
	t.Parallel()

	s := New()
	st, err := s.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(st.History) != 0 {
		t.Errorf("len(History) = %d, want 0", len(st.History))
	}
	if st.ClinicMode != session.ModePatientFriendly {
		t.Errorf("ClinicMode = %q, want %q", st.ClinicMode, session.ModePatientFriendly)
	}
	if st.DraftCase != nil || st.LastTriage != nil {
		t.Error("expected nil draft case and triage on a fresh session")
	}
}

func TestStore_AppendMessage(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	st, err := s.AppendMessage(ctx, testKey, session.ChatMessage{
		Role:    session.RoleUser,
		Content: "I have a sore throat",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if len(st.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(st.History))
	}
	if st.History[0].Timestamp == "" {
		t.Error("expected a defaulted timestamp")
	}
}

func TestStore_AppendMessage_RejectsInvalid(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.AppendMessage(context.Background(), testKey, session.ChatMessage{
		Role:    "tool",
		Content: "nope",
	})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
	if !session.IsValidation(err) {
		t.Errorf("expected validation error, got %T", err)
	}

	// The rejected write must not have touched the document.
	st, err := s.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(st.History) != 0 {
		t.Errorf("len(History) = %d, want 0 after rejected append", len(st.History))
	}
}

func TestStore_AppendMessage_EvictsBeyondCap(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	var last *session.State
	for i := 0; i < session.MaxHistoryMessages+5; i++ {
		var err error
		last, err = s.AppendMessage(ctx, testKey, session.ChatMessage{
			Role:    session.RoleUser,
			Content: fmt.Sprintf("msg %d", i),
		})
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}
	if len(last.History) != session.MaxHistoryMessages {
		t.Fatalf("len(History) = %d, want %d", len(last.History), session.MaxHistoryMessages)
	}
	if got := last.History[0].Content; got != "msg 5" {
		t.Errorf("History[0].Content = %q, want %q", got, "msg 5")
	}
}

func TestStore_SetProfileMerges(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	age := "50-59"
	if _, err := s.SetProfile(ctx, testKey, session.ProfilePatch{AgeRange: &age}); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	meds := "ibuprofen"
	st, err := s.SetProfile(ctx, testKey, session.ProfilePatch{Medications: &meds})
	if err != nil {
		t.Fatalf("SetProfile: %v", err)
	}

	if st.Profile.AgeRange != "50-59" {
		t.Errorf("AgeRange = %q, want preserved across patches", st.Profile.AgeRange)
	}
	if st.Profile.Medications != "ibuprofen" {
		t.Errorf("Medications = %q, want %q", st.Profile.Medications, "ibuprofen")
	}
}

func TestStore_SetSummaryCapped(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.SetSummary(ctx, testKey, strings.Repeat("s", session.MaxSummaryChars+200)); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	st, err := s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(st.ConversationSummary) != session.MaxSummaryChars {
		t.Errorf("len(summary) = %d, want %d", len(st.ConversationSummary), session.MaxSummaryChars)
	}
}

func TestStore_SetTriageAndReset(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	draft := session.DefaultCaseData()
	draft.Symptoms = []string{"cough"}
	triage := session.TriageResult{
		Recommendation: session.RecSelfCare,
		Reason:         "no flags",
		RedFlags:       []string{},
		SOAPNote:       "note",
		GeneratedAt:    "2026-02-10T12:00:00Z",
	}
	if err := s.SetTriage(ctx, testKey, &draft, &triage); err != nil {
		t.Fatalf("SetTriage: %v", err)
	}

	st, err := s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.DraftCase == nil || st.LastTriage == nil {
		t.Fatal("expected draft case and triage to be set")
	}
	if st.LastTriage.Recommendation != session.RecSelfCare {
		t.Errorf("Recommendation = %q, want %q", st.LastTriage.Recommendation, session.RecSelfCare)
	}

	if err := s.Reset(ctx, testKey); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err = s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.DraftCase != nil || st.LastTriage != nil || len(st.History) != 0 {
		t.Error("expected document back to defaults after reset")
	}
}

func TestStore_SetMode(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.SetMode(ctx, testKey, session.ModeClinician); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	st, err := s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.ClinicMode != session.ModeClinician {
		t.Errorf("ClinicMode = %q, want %q", st.ClinicMode, session.ModeClinician)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if _, err := s.AppendMessage(ctx, testKey, session.ChatMessage{
		Role: session.RoleUser, Content: "original",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	st, _ := s.Get(ctx, testKey)
	st.History[0].Content = "mutated by caller"
	st.Profile.AgeRange = "99"

	again, _ := s.Get(ctx, testKey)
	if again.History[0].Content != "original" {
		t.Error("caller mutation leaked into the store")
	}
	if again.Profile.AgeRange != "" {
		t.Error("caller profile mutation leaked into the store")
	}
}

func TestStore_ConcurrentAppendsSameKey(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = s.AppendMessage(ctx, testKey, session.ChatMessage{
				Role:    session.RoleUser,
				Content: fmt.Sprintf("concurrent %d", i),
			})
		}(i)
	}
	wg.Wait()

	st, err := s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(st.History) != writers {
		t.Errorf("len(History) = %d, want %d", len(st.History), writers)
	}
}
