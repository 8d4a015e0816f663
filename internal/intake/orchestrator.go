package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/session"
	"github.com/linnemanlabs/intake/internal/workflow"
)

// ErrNoHistory rejects a triage request against an empty conversation.
var ErrNoHistory = errors.New("no intake history found, chat first then run triage")

// Progress log entries. Both strategies emit exactly these four, in order.
const (
	progressExtract = "1/3 Extracting structured case..."
	progressRules   = "2/3 Applying triage rules..."
	progressCompose = "3/3 Generating SOAP note..."
	progressDone    = "Done"
)

// Outcome is the unified triage contract. Callers see the same shape no
// matter which strategy executed.
type Outcome struct {
	Progress  []string             `json:"progress"`
	DraftCase session.CaseData     `json:"draftCase"`
	Triage    session.TriageResult `json:"triage"`
}

// OrchestratorHooks observe triage runs (wired to Prometheus by main).
type OrchestratorHooks struct {
	OnRun      func(strategy, recommendation string, seconds float64)
	OnFallback func()
}

// Orchestrator executes the extract -> rules -> compose pipeline through one
// of two interchangeable strategies and persists the result. The durable
// strategy is preferred when a runner is configured; any failure there falls
// back silently to the local strategy.
type Orchestrator struct {
	store     session.Store
	extractor *Extractor
	composer  *Composer
	runner    workflow.Runner // nil means the durable strategy is unavailable
	logger    log.Logger
	hooks     OrchestratorHooks
}

// NewOrchestrator wires the pipeline. runner may be nil.
func NewOrchestrator(store session.Store, extractor *Extractor, composer *Composer, runner workflow.Runner, logger log.Logger, hooks OrchestratorHooks) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		composer:  composer,
		runner:    runner,
		logger:    logger,
		hooks:     hooks,
	}
}

// Run triages the session's current state. It fails only with ErrNoHistory
// on an empty history or an unrecoverable infrastructure error; persistence
// failure after a computed result is logged, not returned.
func (o *Orchestrator) Run(ctx context.Context, key string) (*Outcome, error) {
	st, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(st.History) == 0 {
		return nil, ErrNoHistory
	}

	start := time.Now()
	strategy := "local"

	var out *Outcome
	if o.runner != nil {
		out, err = o.runDurable(ctx, st)
		if err != nil {
			// Silent fallback: the caller never sees runner trouble.
			o.logger.Warn(ctx, "durable strategy failed, falling back to local",
				"session", key, "error", err.Error())
			if o.hooks.OnFallback != nil {
				o.hooks.OnFallback()
			}
			out = nil
		} else {
			strategy = "durable"
		}
	}

	if out == nil {
		out, err = o.runLocal(ctx, st)
		if err != nil {
			return nil, err
		}
	}

	if err := o.store.SetTriage(ctx, key, &out.DraftCase, &out.Triage); err != nil {
		// The result is already computed; losing the snapshot write must
		// not cost the caller their answer.
		o.logger.Error(ctx, err, "failed to persist triage result", "session", key)
	}

	if o.hooks.OnRun != nil {
		o.hooks.OnRun(strategy, string(out.Triage.Recommendation), time.Since(start).Seconds())
	}
	return out, nil
}

// runLocal executes the pipeline sequentially in-process, all-or-nothing.
func (o *Orchestrator) runLocal(ctx context.Context, st *session.State) (*Outcome, error) {
	progress := []string{progressExtract}
	draft, err := o.extractor.Extract(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("extract case: %w", err)
	}

	progress = append(progress, progressRules)
	decision := Decide(draft)

	progress = append(progress, progressCompose)
	note, err := o.composer.Compose(ctx, st, draft, decision)
	if err != nil {
		return nil, fmt.Errorf("compose note: %w", err)
	}

	progress = append(progress, progressDone)
	return &Outcome{
		Progress:  progress,
		DraftCase: draft,
		Triage:    finalize(decision, note),
	}, nil
}

// runDurable submits the pipeline as one checkpointed job and awaits it. Any
// submission error, job error, or malformed output is returned so the caller
// can fall back.
func (o *Orchestrator) runDurable(ctx context.Context, st *session.State) (*Outcome, error) {
	input, err := json.Marshal(triageJobInput{State: st})
	if err != nil {
		return nil, fmt.Errorf("marshal job input: %w", err)
	}

	handle, err := o.runner.Create(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	raw, err := handle.Result(ctx)
	if err != nil {
		return nil, fmt.Errorf("job result: %w", err)
	}

	var out Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode job output: %w", err)
	}
	if err := validOutcome(&out); err != nil {
		return nil, fmt.Errorf("job output shape: %w", err)
	}
	return &out, nil
}

// validOutcome checks the durable runner returned the expected contract.
func validOutcome(out *Outcome) error {
	if len(out.Progress) != 4 || out.Progress[len(out.Progress)-1] != progressDone {
		return fmt.Errorf("progress log malformed (%d entries)", len(out.Progress))
	}
	switch out.Triage.Recommendation {
	case session.RecSelfCare, session.RecScheduleGP, session.RecUrgent:
	default:
		return fmt.Errorf("unknown recommendation %q", out.Triage.Recommendation)
	}
	if out.Triage.GeneratedAt == "" {
		return errors.New("missing generatedAt")
	}
	return nil
}

// finalize stamps the decision and note into a TriageResult at the moment
// the result is complete.
func finalize(d Decision, note string) session.TriageResult {
	return session.TriageResult{
		Recommendation: d.Recommendation,
		Reason:         d.Reason,
		RedFlags:       d.RedFlags,
		SOAPNote:       note,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// triageJobInput is the durable job's payload: the full session snapshot, so
// each step is a pure function of its declared inputs.
type triageJobInput struct {
	State *session.State `json:"state"`
}

// TriageJob builds the durable job body for workflow.NewEngine. Extraction,
// rule evaluation, and composition each run as an independently retryable,
// checkpointed step; a resumed step replays its recorded output.
func TriageJob(extractor *Extractor, composer *Composer) workflow.RunFunc {
	return func(ctx context.Context, input json.RawMessage, step *workflow.Stepper) (json.RawMessage, error) {
		var in triageJobInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("decode job input: %w", err)
		}
		st := session.NormalizeState(in.State)

		progress := []string{progressExtract}
		rawCase, err := step.Do("extract_case", func(ctx context.Context) (json.RawMessage, error) {
			c, err := extractor.Extract(ctx, st)
			if err != nil {
				return nil, err
			}
			return json.Marshal(c)
		})
		if err != nil {
			return nil, err
		}
		var draft session.CaseData
		if err := json.Unmarshal(rawCase, &draft); err != nil {
			return nil, fmt.Errorf("decode extract_case checkpoint: %w", err)
		}

		progress = append(progress, progressRules)
		rawDecision, err := step.Do("triage_rules", func(_ context.Context) (json.RawMessage, error) {
			return json.Marshal(Decide(draft))
		})
		if err != nil {
			return nil, err
		}
		var decision Decision
		if err := json.Unmarshal(rawDecision, &decision); err != nil {
			return nil, fmt.Errorf("decode triage_rules checkpoint: %w", err)
		}

		progress = append(progress, progressCompose)
		rawNote, err := step.Do("soap_note", func(ctx context.Context) (json.RawMessage, error) {
			note, err := composer.Compose(ctx, st, draft, decision)
			if err != nil {
				return nil, err
			}
			return json.Marshal(note)
		})
		if err != nil {
			return nil, err
		}
		var note string
		if err := json.Unmarshal(rawNote, &note); err != nil {
			return nil, fmt.Errorf("decode soap_note checkpoint: %w", err)
		}

		progress = append(progress, progressDone)
		return json.Marshal(Outcome{
			Progress:  progress,
			DraftCase: draft,
			Triage:    finalize(decision, note),
		})
	}
}
