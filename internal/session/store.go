package session

import "context"

// Store is the persistence interface for session documents. One document per
// key, created lazily with defaults on first access. Implementations must
// serialize all operations against the same key and must normalize the
// document on every read and write.
//
// SetProfile is a field-preserving merge: fields the patch does not supply
// keep their stored value. SetTriage replaces both fields atomically; nil is
// a valid explicit clear. Reset replaces the document with defaults rather
// than deleting it.
type Store interface {
	Get(ctx context.Context, key string) (*State, error)
	AppendMessage(ctx context.Context, key string, msg ChatMessage) (*State, error)
	SetProfile(ctx context.Context, key string, patch ProfilePatch) (*State, error)
	SetSummary(ctx context.Context, key, summary string) error
	SetTriage(ctx context.Context, key string, draft *CaseData, triage *TriageResult) error
	SetMode(ctx context.Context, key string, mode ClinicMode) error
	Reset(ctx context.Context, key string) error
}
