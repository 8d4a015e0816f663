package llm

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Placeholder is returned when both models fail. Free-text generation is
// designed to never fail its caller; downstream stages degrade instead.
const Placeholder = "The assistant is temporarily unavailable. This is educational, not medical advice."

const (
	defaultMaxTokens   = 420
	defaultTemperature = 0.35
)

// OracleHooks lets the caller observe generation outcomes (wired to
// Prometheus by main). Any hook may be nil.
type OracleHooks struct {
	OnCall        func(model string, fallback bool, err error)
	OnPlaceholder func()
}

// Oracle attempts a primary model, then a fallback model, then degrades to
// the fixed placeholder rather than returning an error.
type Oracle struct {
	provider Provider
	primary  string
	fallback string
	logger   log.Logger
	hooks    OracleHooks
}

// NewOracle creates an oracle over provider with the given model pair.
func NewOracle(provider Provider, primary, fallback string, logger log.Logger, hooks OracleHooks) *Oracle {
	if logger == nil {
		logger = log.Nop()
	}
	return &Oracle{
		provider: provider,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		hooks:    hooks,
	}
}

// Generate produces free text for req. It never returns an error: a double
// model failure yields the placeholder disclaimer.
func (o *Oracle) Generate(ctx context.Context, req *Request) string {
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 && !req.ForceJSON {
		req.Temperature = defaultTemperature
	}

	text, err := o.provider.Complete(ctx, o.primary, req)
	if o.hooks.OnCall != nil {
		o.hooks.OnCall(o.primary, false, err)
	}
	if err == nil {
		return strings.TrimSpace(text)
	}
	o.logger.Warn(ctx, "primary model failed, trying fallback",
		"model", o.primary, "fallback", o.fallback, "error", err.Error())

	text, err = o.provider.Complete(ctx, o.fallback, req)
	if o.hooks.OnCall != nil {
		o.hooks.OnCall(o.fallback, true, err)
	}
	if err == nil {
		return strings.TrimSpace(text)
	}
	o.logger.Error(ctx, err, "fallback model failed, degrading to placeholder",
		"model", o.fallback)

	if o.hooks.OnPlaceholder != nil {
		o.hooks.OnPlaceholder()
	}
	return Placeholder
}

// GenerateStructured is Generate with the JSON-object response hint set.
// The result is still best-effort free text; callers own parsing and its
// failure mode.
func (o *Oracle) GenerateStructured(ctx context.Context, req *Request) string {
	req.ForceJSON = true
	return o.Generate(ctx, req)
}
