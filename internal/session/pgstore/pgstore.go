// Package pgstore provides a PostgreSQL implementation of session.Store.
//
// Each session key maps to a single JSONB document row. Mutations run inside
// a transaction that locks the row (SELECT ... FOR UPDATE), so operations
// against the same key are serialized across every process sharing the
// database, matching the one-actor-per-key model.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/intake/internal/session"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/session/pgstore")

//go:embed schema.sql
var schema string

// Store persists session documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// wrapErr tags connection-level failures as transient so the resilient
// client can retry them; everything else passes through wrapped.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P01 admin_shutdown, 57P02 crash_shutdown, 57P03 cannot_connect_now
		if pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03" {
			return &session.TransientError{Op: op, Err: err}
		}
	}
	if pgconn.SafeToRetry(err) {
		return &session.TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("pgstore %s: %w", op, err)
}

// load reads and normalizes the document for key within q. A missing row
// yields defaults.
func load(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, key string, forUpdate bool) (*session.State, error) {
	query := `SELECT state FROM sessions WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := q.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.DefaultState(), nil
	}
	if err != nil {
		return nil, err
	}

	// A document that fails to decode is treated as absent rather than
	// poisoning the session; normalization rebuilds the invariants.
	var st session.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return session.DefaultState(), nil
	}
	return session.NormalizeState(&st), nil
}

// save upserts the normalized document for key within q.
func save(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, key string, st *session.State) error {
	raw, err := json.Marshal(session.NormalizeState(st))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO sessions (key, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		key, raw)
	return err
}

// update runs fn against the locked, normalized document and writes the
// result back in the same transaction.
func (s *Store) update(ctx context.Context, op, key string, fn func(st *session.State) error) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "pgstore."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, spanErr(span, wrapErr(op, err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	st, err := load(ctx, tx, key, true)
	if err != nil {
		return nil, spanErr(span, wrapErr(op, err))
	}
	if err := fn(st); err != nil {
		return nil, spanErr(span, err)
	}
	if err := save(ctx, tx, key, st); err != nil {
		return nil, spanErr(span, wrapErr(op, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, spanErr(span, wrapErr(op, err))
	}
	return session.NormalizeState(st), nil
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves the normalized document for key; an unseen key yields
// defaults without creating a row.
func (s *Store) Get(ctx context.Context, key string) (*session.State, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	st, err := load(ctx, s.pool, key, false)
	if err != nil {
		return nil, spanErr(span, wrapErr("Get", err))
	}
	return st, nil
}

// AppendMessage validates msg, appends it, and truncates the history.
func (s *Store) AppendMessage(ctx context.Context, key string, msg session.ChatMessage) (*session.State, error) {
	nm, err := session.NormalizeMessage(msg)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, "AppendMessage", key, func(st *session.State) error {
		session.AppendToHistory(st, nm)
		return nil
	})
}

// SetProfile merges the patch onto the stored profile field by field.
func (s *Store) SetProfile(ctx context.Context, key string, patch session.ProfilePatch) (*session.State, error) {
	return s.update(ctx, "SetProfile", key, func(st *session.State) error {
		st.Profile = session.MergeProfile(st.Profile, patch)
		return nil
	})
}

// SetSummary replaces the conversation summary.
func (s *Store) SetSummary(ctx context.Context, key, summary string) error {
	_, err := s.update(ctx, "SetSummary", key, func(st *session.State) error {
		st.ConversationSummary = summary
		return nil
	})
	return err
}

// SetTriage replaces the draft case and last triage together. Nil clears.
func (s *Store) SetTriage(ctx context.Context, key string, draft *session.CaseData, triage *session.TriageResult) error {
	_, err := s.update(ctx, "SetTriage", key, func(st *session.State) error {
		st.DraftCase = draft
		st.LastTriage = triage
		return nil
	})
	return err
}

// SetMode replaces the clinic mode.
func (s *Store) SetMode(ctx context.Context, key string, mode session.ClinicMode) error {
	_, err := s.update(ctx, "SetMode", key, func(st *session.State) error {
		st.ClinicMode = mode
		return nil
	})
	return err
}

// Reset replaces the document with defaults.
func (s *Store) Reset(ctx context.Context, key string) error {
	_, err := s.update(ctx, "Reset", key, func(st *session.State) error {
		*st = *session.DefaultState()
		return nil
	})
	return err
}
