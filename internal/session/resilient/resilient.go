// Package resilient wraps a session.Store with a bounded retry for
// transient infrastructure failures.
//
// This is the only retry policy in the system: one extra attempt after a
// short fixed delay, and only when the error carries the known
// store-process-restart signature. Validation failures and all other errors
// propagate immediately.
package resilient

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/session"
)

const retryDelay = 75 * time.Millisecond

// Client wraps every session.Store call with the retry policy. It
// implements session.Store itself so callers are unaware of the wrapper.
type Client struct {
	inner   session.Store
	logger  log.Logger
	onRetry func() // metrics hook, may be nil
}

// New wraps inner with the transient-failure retry policy.
func New(inner session.Store, logger log.Logger, onRetry func()) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{inner: inner, logger: logger, onRetry: onRetry}
}

// retry runs op, and on a transient error waits the fixed delay and runs it
// once more. The second failure propagates as-is.
func (c *Client) retry(ctx context.Context, name string, op func() error) error {
	err := op()
	if err == nil || !session.IsTransient(err) {
		return err
	}

	c.logger.Warn(ctx, "transient store failure, retrying once", "op", name, "error", err.Error())
	if c.onRetry != nil {
		c.onRetry()
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return op()
}

func (c *Client) Get(ctx context.Context, key string) (*session.State, error) {
	var st *session.State
	err := c.retry(ctx, "Get", func() (err error) {
		st, err = c.inner.Get(ctx, key)
		return err
	})
	return st, err
}

func (c *Client) AppendMessage(ctx context.Context, key string, msg session.ChatMessage) (*session.State, error) {
	var st *session.State
	err := c.retry(ctx, "AppendMessage", func() (err error) {
		st, err = c.inner.AppendMessage(ctx, key, msg)
		return err
	})
	return st, err
}

func (c *Client) SetProfile(ctx context.Context, key string, patch session.ProfilePatch) (*session.State, error) {
	var st *session.State
	err := c.retry(ctx, "SetProfile", func() (err error) {
		st, err = c.inner.SetProfile(ctx, key, patch)
		return err
	})
	return st, err
}

func (c *Client) SetSummary(ctx context.Context, key, summary string) error {
	return c.retry(ctx, "SetSummary", func() error {
		return c.inner.SetSummary(ctx, key, summary)
	})
}

func (c *Client) SetTriage(ctx context.Context, key string, draft *session.CaseData, triage *session.TriageResult) error {
	return c.retry(ctx, "SetTriage", func() error {
		return c.inner.SetTriage(ctx, key, draft, triage)
	})
}

func (c *Client) SetMode(ctx context.Context, key string, mode session.ClinicMode) error {
	return c.retry(ctx, "SetMode", func() error {
		return c.inner.SetMode(ctx, key, mode)
	})
}

func (c *Client) Reset(ctx context.Context, key string) error {
	return c.retry(ctx, "Reset", func() error {
		return c.inner.Reset(ctx, key)
	})
}
