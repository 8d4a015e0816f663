package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

func TestEngine_RunsJobToCompletion(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, input json.RawMessage, step *Stepper) (json.RawMessage, error) {
		out, err := step.Do("double", func(_ context.Context) (json.RawMessage, error) {
			var n int
			if err := json.Unmarshal(input, &n); err != nil {
				return nil, err
			}
			return json.Marshal(n * 2)
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	e := NewEngine(run, NewMemCheckpoints(), log.Nop())
	h, err := e.Create(context.Background(), json.RawMessage(`21`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	raw, err := h.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if n != 42 {
		t.Errorf("output = %d, want 42", n)
	}
}

func TestEngine_StepRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	run := func(_ context.Context, _ json.RawMessage, step *Stepper) (json.RawMessage, error) {
		return step.Do("flaky", func(_ context.Context) (json.RawMessage, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return nil, errors.New("temporary")
			}
			return json.RawMessage(`"ok"`), nil
		})
	}

	e := NewEngine(run, NewMemCheckpoints(), log.Nop())
	h, err := e.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.Result(context.Background()); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestEngine_StepFailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	run := func(_ context.Context, _ json.RawMessage, step *Stepper) (json.RawMessage, error) {
		return step.Do("doomed", func(_ context.Context) (json.RawMessage, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			return nil, errors.New("permanent")
		})
	}

	e := NewEngine(run, NewMemCheckpoints(), log.Nop())
	h, err := e.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.Result(context.Background()); err == nil {
		t.Fatal("expected job failure after exhausting step attempts")
	}
	if attempts != maxStepAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxStepAttempts)
	}
}

func TestStepper_ReplaysCheckpointedOutput(t *testing.T) {
	t.Parallel()

	checkpoints := NewMemCheckpoints()
	executions := 0
	run := func(_ context.Context, _ json.RawMessage, step *Stepper) (json.RawMessage, error) {
		return step.Do("once", func(_ context.Context) (json.RawMessage, error) {
			executions++
			return json.RawMessage(`"fresh"`), nil
		})
	}

	e := NewEngine(run, checkpoints, log.Nop())

	// Seed the checkpoint as a prior run of this job would have.
	jobID := "job-replayed"
	if err := checkpoints.Save(context.Background(), jobID, "once", json.RawMessage(`"recorded"`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stepper := &Stepper{engine: e, jobID: jobID, ctx: context.Background()}
	out, err := stepper.Do("once", func(_ context.Context) (json.RawMessage, error) {
		executions++
		return json.RawMessage(`"fresh"`), nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(out) != `"recorded"` {
		t.Errorf("output = %s, want the checkpointed value", out)
	}
	if executions != 0 {
		t.Errorf("step executed %d times, want 0 on replay", executions)
	}
}

func TestEngine_ResultHonorsContext(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	run := func(_ context.Context, _ json.RawMessage, _ *Stepper) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(`null`), nil
	}

	e := NewEngine(run, NewMemCheckpoints(), log.Nop())
	h, err := e.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Result(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestEngine_JobOutlivesSubmitterCancellation(t *testing.T) {
	t.Parallel()

	run := func(ctx context.Context, _ json.RawMessage, _ *Stepper) (json.RawMessage, error) {
		// The run context must not inherit the submitter's cancellation.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return json.RawMessage(`"survived"`), nil
	}

	e := NewEngine(run, NewMemCheckpoints(), log.Nop())
	submitCtx, cancel := context.WithCancel(context.Background())
	h, err := e.Create(submitCtx, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cancel()

	out, err := h.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if string(out) != `"survived"` {
		t.Errorf("output = %s, want survived", out)
	}
}

func TestEngine_NilEngineUnavailable(t *testing.T) {
	t.Parallel()

	var e *Engine
	if _, err := e.Create(context.Background(), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
