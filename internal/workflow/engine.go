// Package workflow provides a checkpointed job runner.
//
// A job is a function over named steps. Each step's output is persisted in a
// CheckpointStore keyed by (job, step); when a job is replayed, completed
// steps return their recorded output instead of executing again. Steps are
// therefore expected to be pure functions of their declared inputs, and the
// engine provides at-least-once execution with bounded per-step retries.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// maxStepAttempts bounds retries of a failing step within one run.
const maxStepAttempts = 3

// ErrUnavailable is returned when the engine cannot accept jobs.
var ErrUnavailable = errors.New("workflow runner unavailable")

// Runner accepts a job input and returns a handle to await its result.
type Runner interface {
	Create(ctx context.Context, input json.RawMessage) (Handle, error)
}

// Handle is one submitted job.
type Handle interface {
	// Result blocks until the job finishes or ctx expires.
	Result(ctx context.Context) (json.RawMessage, error)
}

// RunFunc is the body of a job. It must drive all side effects through
// step.Do so replays observe checkpointed outputs.
type RunFunc func(ctx context.Context, input json.RawMessage, step *Stepper) (json.RawMessage, error)

// CheckpointStore persists step outputs across replays.
type CheckpointStore interface {
	Load(ctx context.Context, jobID, step string) (json.RawMessage, bool, error)
	Save(ctx context.Context, jobID, step string, output json.RawMessage) error
}

// Engine runs one registered job type with checkpointing.
type Engine struct {
	run         RunFunc
	checkpoints CheckpointStore
	logger      log.Logger
}

// NewEngine creates an engine for the given job body.
func NewEngine(run RunFunc, checkpoints CheckpointStore, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if checkpoints == nil {
		checkpoints = NewMemCheckpoints()
	}
	return &Engine{run: run, checkpoints: checkpoints, logger: logger}
}

// Create starts the job in the background and returns its handle. The job
// outlives the submitting request's cancellation; callers bound the wait
// through Handle.Result.
func (e *Engine) Create(ctx context.Context, input json.RawMessage) (Handle, error) {
	if e == nil || e.run == nil {
		return nil, ErrUnavailable
	}

	j := &job{
		id:   ulid.Make().String(),
		done: make(chan struct{}),
	}

	go func() {
		defer close(j.done)
		runCtx := context.WithoutCancel(ctx)
		out, err := e.run(runCtx, input, &Stepper{engine: e, jobID: j.id, ctx: runCtx})
		j.mu.Lock()
		j.output, j.err = out, err
		j.mu.Unlock()
		if err != nil {
			e.logger.Error(runCtx, err, "job failed", "job_id", j.id)
		}
	}()

	return j, nil
}

type job struct {
	id   string
	done chan struct{}

	mu     sync.Mutex
	output json.RawMessage
	err    error
}

// Result blocks until the job finishes or ctx expires.
func (j *job) Result(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output, j.err
}

// Stepper executes named steps for one job, consulting checkpoints first.
type Stepper struct {
	engine *Engine
	jobID  string
	ctx    context.Context
}

// Do returns the checkpointed output for name if one exists, otherwise runs
// fn with bounded retries and persists its output before returning it.
func (s *Stepper) Do(name string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if out, ok, err := s.engine.checkpoints.Load(s.ctx, s.jobID, name); err == nil && ok {
		return out, nil
	}

	var out json.RawMessage
	var err error
	for attempt := 1; attempt <= maxStepAttempts; attempt++ {
		out, err = fn(s.ctx)
		if err == nil {
			break
		}
		s.engine.logger.Warn(s.ctx, "step failed",
			"job_id", s.jobID, "step", name, "attempt", attempt, "error", err.Error())
	}
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}

	if err := s.engine.checkpoints.Save(s.ctx, s.jobID, name, out); err != nil {
		// The step succeeded; a lost checkpoint only costs a replay.
		s.engine.logger.Warn(s.ctx, "checkpoint save failed",
			"job_id", s.jobID, "step", name, "error", err.Error())
	}
	return out, nil
}

// MemCheckpoints is an in-memory CheckpointStore.
type MemCheckpoints struct {
	mu sync.Mutex
	m  map[string]json.RawMessage
}

// NewMemCheckpoints initializes an empty in-memory checkpoint store.
func NewMemCheckpoints() *MemCheckpoints {
	return &MemCheckpoints{m: make(map[string]json.RawMessage)}
}

func (c *MemCheckpoints) key(jobID, step string) string { return jobID + "/" + step }

// Load returns the recorded output for (jobID, step), if any.
func (c *MemCheckpoints) Load(_ context.Context, jobID, step string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.m[c.key(jobID, step)]
	return out, ok, nil
}

// Save records the output for (jobID, step).
func (c *MemCheckpoints) Save(_ context.Context, jobID, step string, output json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[c.key(jobID, step)] = output
	return nil
}
