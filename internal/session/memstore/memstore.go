// Package memstore provides an in-memory implementation of session.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/intake/internal/session"
)

// Store holds session documents in memory. Each key owns one entry with its
// own lock, so operations against the same key are strictly serialized while
// distinct keys proceed in parallel. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	state *session.State
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// lookup returns the entry for key, creating it with defaults on first use.
func (s *Store) lookup(key string) *entry {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[key]; ok {
		return e
	}
	e = &entry{state: session.DefaultState()}
	s.entries[key] = e
	return e
}

// update runs fn against the normalized document under the key's lock and
// stores the normalized result. fn mutates st in place.
func (s *Store) update(key string, fn func(st *session.State) error) (*session.State, error) {
	e := s.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	st := session.NormalizeState(e.state)
	if err := fn(st); err != nil {
		return nil, err
	}
	e.state = session.NormalizeState(st)
	return snapshot(e.state), nil
}

// snapshot deep-copies a state so callers never share the stored document.
func snapshot(st *session.State) *session.State {
	cp := *st
	cp.History = append([]session.ChatMessage(nil), st.History...)
	if st.DraftCase != nil {
		c := *st.DraftCase
		cp.DraftCase = &c
	}
	if st.LastTriage != nil {
		t := *st.LastTriage
		cp.LastTriage = &t
	}
	return &cp
}

// Get returns the normalized document for key, creating defaults for an
// unseen key. It never fails.
func (s *Store) Get(_ context.Context, key string) (*session.State, error) {
	e := s.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = session.NormalizeState(e.state)
	return snapshot(e.state), nil
}

// AppendMessage validates msg, appends it, and truncates the history to the
// most recent entries. Returns the resulting document.
func (s *Store) AppendMessage(_ context.Context, key string, msg session.ChatMessage) (*session.State, error) {
	nm, err := session.NormalizeMessage(msg)
	if err != nil {
		return nil, err
	}
	return s.update(key, func(st *session.State) error {
		session.AppendToHistory(st, nm)
		return nil
	})
}

// SetProfile merges the patch onto the stored profile field by field.
func (s *Store) SetProfile(_ context.Context, key string, patch session.ProfilePatch) (*session.State, error) {
	return s.update(key, func(st *session.State) error {
		st.Profile = session.MergeProfile(st.Profile, patch)
		return nil
	})
}

// SetSummary replaces the conversation summary, capped by normalization.
func (s *Store) SetSummary(_ context.Context, key, summary string) error {
	_, err := s.update(key, func(st *session.State) error {
		st.ConversationSummary = summary
		return nil
	})
	return err
}

// SetTriage replaces the draft case and last triage together. Nil clears.
func (s *Store) SetTriage(_ context.Context, key string, draft *session.CaseData, triage *session.TriageResult) error {
	_, err := s.update(key, func(st *session.State) error {
		st.DraftCase = draft
		st.LastTriage = triage
		return nil
	})
	return err
}

// SetMode replaces the clinic mode.
func (s *Store) SetMode(_ context.Context, key string, mode session.ClinicMode) error {
	_, err := s.update(key, func(st *session.State) error {
		st.ClinicMode = mode
		return nil
	})
	return err
}

// Reset replaces the document with defaults.
func (s *Store) Reset(_ context.Context, key string) error {
	e := s.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = session.DefaultState()
	return nil
}
