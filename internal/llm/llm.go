// Package llm abstracts the text-generation backend behind a Provider
// interface and layers the primary/fallback/placeholder policy on top.
package llm

import "context"

// Message is one prompt turn. Role is "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a single generation call.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// ForceJSON asks the backend for a constrained JSON-object response
	// where supported. Backends without a native mode fall back to a
	// prompt instruction; the response is still best-effort free text.
	ForceJSON bool
}

// Provider is the interface for any text-generation backend.
type Provider interface {
	// Complete generates text for req using the named model.
	Complete(ctx context.Context, model string, req *Request) (string, error)
}
