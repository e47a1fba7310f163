package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/streamscout/internal/model"
	"github.com/nao1215/streamscout/internal/probe"
)

// proberFunc adapts a function to probe.Prober.
type proberFunc func(ctx context.Context, id model.Identifier, p model.Provider, timeout time.Duration) model.Outcome

func (f proberFunc) Run(ctx context.Context, id model.Identifier, p model.Provider, timeout time.Duration) model.Outcome {
	return f(ctx, id, p, timeout)
}

// newRegistry builds a registry of n providers tagged [P0]..[Pn-1].
func newRegistry(t *testing.T, n int) *model.Registry {
	t.Helper()

	providers := make([]model.Provider, n)
	for i := range providers {
		providers[i] = model.Provider{
			Tag:      fmt.Sprintf("[P%d]", i),
			Template: fmt.Sprintf("https://p%d.example/api/{id}", i),
		}
	}
	reg, err := model.NewRegistry(providers...)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

// TestDispatcherNew tests the Dispatcher constructor.
func TestDispatcherNew(t *testing.T) {
	t.Parallel()

	t.Run("creates dispatcher with defaults", func(t *testing.T) {
		t.Parallel()

		d := New(nil)
		if d.timeout != DefaultProbeTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultProbeTimeout, d.timeout)
		}
		if d.concurrency != 0 {
			t.Errorf("expected concurrency 0, got %d", d.concurrency)
		}
		if d.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores non-positive timeout", func(t *testing.T) {
		t.Parallel()

		d := New(nil, WithProbeTimeout(-time.Second))
		if d.Timeout() != DefaultProbeTimeout {
			t.Errorf("expected default timeout, got %v", d.Timeout())
		}
	})
}

// TestDispatchOneOutcomePerProvider tests that every provider gets exactly one outcome.
func TestDispatchOneOutcomePerProvider(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 3, 17} {
		t.Run(fmt.Sprintf("%d providers", n), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			d := New(proberFunc(func(_ context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
				calls.Add(1)
				return model.NewNotFound(p.Tag, "")
			}))

			reg := newRegistry(t, n)
			outcomes, err := d.Dispatch(context.Background(), "550", reg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(outcomes) != n || int(calls.Load()) != n {
				t.Fatalf("expected %d outcomes and calls, got %d and %d", n, len(outcomes), calls.Load())
			}
			for i, tag := range reg.Tags() {
				if outcomes[i].Tag != tag {
					t.Errorf("slot %d: expected %s, got %s", i, tag, outcomes[i].Tag)
				}
			}
		})
	}
}

// TestDispatchConcurrencyLimit tests that no more than the limit run at once.
func TestDispatchConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	d := New(proberFunc(func(_ context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
		now := inFlight.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return model.NewNotFound(p.Tag, "")
	}), WithConcurrency(3))

	if _, err := d.Dispatch(context.Background(), "1", newRegistry(t, 12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent probes, got %d", peak.Load())
	}
}

// TestDispatchQueuedProbeDeadlineStartsAtLaunch tests that a probe waiting
// for a worker does not spend its deadline in the queue.
func TestDispatchQueuedProbeDeadlineStartsAtLaunch(t *testing.T) {
	t.Parallel()

	fetch := probe.FetchFunc(func(ctx context.Context, endpoint string) (*probe.Content, error) {
		select {
		case <-time.After(60 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &probe.Content{Endpoint: endpoint, Body: []byte("https://cdn.example/1/master.m3u8")}, nil
	})
	p := probe.New(probe.StrategyAPI, fetch, probe.NewManifestScan())

	const timeout = 100 * time.Millisecond
	d := New(p, WithConcurrency(1), WithProbeTimeout(timeout))

	start := time.Now()
	outcomes, err := d.Dispatch(context.Background(), "1", newRegistry(t, 4))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, o := range outcomes {
		if o.Status != model.StatusSuccess {
			t.Errorf("%s: expected success, got %s (%s)", o.Tag, o.Status, o.Message)
		}
	}
	if elapsed <= timeout {
		t.Errorf("expected serialized probes to exceed %v in total, got %v", timeout, elapsed)
	}
}

// TestDispatchSlowProbeDoesNotBlockSiblings tests that total wall time is
// close to the slowest probe rather than the sum.
func TestDispatchSlowProbeDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	// [P0] never answers; the others answer immediately.
	slow := probe.New("slow", probe.FetchFunc(func(context.Context, string) (*probe.Content, error) {
		<-release
		return &probe.Content{}, nil
	}), probe.NewManifestScan())
	fast := probe.New("fast", probe.FetchFunc(func(_ context.Context, endpoint string) (*probe.Content, error) {
		return &probe.Content{Body: []byte(endpoint + "/master.m3u8")}, nil
	}), probe.NewManifestScan())

	d := New(proberFunc(func(ctx context.Context, id model.Identifier, p model.Provider, timeout time.Duration) model.Outcome {
		if p.Tag == "[P0]" {
			return slow.Run(ctx, id, p, timeout)
		}
		return fast.Run(ctx, id, p, timeout)
	}), WithProbeTimeout(100*time.Millisecond))

	start := time.Now()
	outcomes, err := d.Dispatch(context.Background(), "9", newRegistry(t, 8))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed > time.Second {
		t.Errorf("dispatch took %v, expected about the probe timeout", elapsed)
	}
	if outcomes[0].Status != model.StatusError || !strings.HasPrefix(outcomes[0].Message, "timeout") {
		t.Errorf("expected timeout outcome for [P0], got %s %q", outcomes[0].Status, outcomes[0].Message)
	}
	for _, o := range outcomes[1:] {
		if o.Status != model.StatusSuccess {
			t.Errorf("sibling %s was affected: %s %q", o.Tag, o.Status, o.Message)
		}
	}
}

// TestDispatchTimeoutsRunInParallel tests that N timing-out probes take
// about one timeout, not N.
func TestDispatchTimeoutsRunInParallel(t *testing.T) {
	t.Parallel()

	d := New(proberFunc(func(ctx context.Context, _ model.Identifier, p model.Provider, timeout time.Duration) model.Outcome {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
		return model.NewError(p.Tag, "timeout: deadline exceeded")
	}), WithProbeTimeout(80*time.Millisecond))

	start := time.Now()
	if _, err := d.Dispatch(context.Background(), "1", newRegistry(t, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected parallel timeouts, took %v", elapsed)
	}
}

// TestDispatchFailureDoesNotCancelSiblings tests that an erroring probe
// leaves the shared context alone.
func TestDispatchFailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()

	d := New(proberFunc(func(ctx context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
		if p.Tag == "[P0]" {
			return model.NewError(p.Tag, "transport: refused")
		}
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			return model.NewError(p.Tag, "cancelled")
		}
		return model.NewSuccess(p.Tag, []string{"https://x.example/a.m3u8"})
	}), WithConcurrency(2))

	outcomes, err := d.Dispatch(context.Background(), "1", newRegistry(t, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range outcomes[1:] {
		if o.Status != model.StatusSuccess {
			t.Errorf("expected success for %s, got %s %q", o.Tag, o.Status, o.Message)
		}
	}
}

// TestDispatchCancelledParent tests that cancellation still yields one
// outcome per provider.
func TestDispatchCancelledParent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := probe.New("api", probe.FetchFunc(func(ctx context.Context, _ string) (*probe.Content, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), probe.NewManifestScan())

	outcomes, err := New(p, WithConcurrency(1)).Dispatch(ctx, "1", newRegistry(t, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != model.StatusError || !strings.HasPrefix(o.Message, "cancelled") {
			t.Errorf("expected cancelled outcome for %s, got %s %q", o.Tag, o.Status, o.Message)
		}
	}
}

// TestDispatchConfigurationError tests rejected inputs.
func TestDispatchConfigurationError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	prober := proberFunc(func(_ context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
		calls.Add(1)
		return model.NewNotFound(p.Tag, "")
	})
	empty, err := model.NewRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		d        *Dispatcher
		id       model.Identifier
		registry *model.Registry
		want     error
	}{
		{name: "empty registry", d: New(prober), id: "1", registry: empty, want: ErrEmptyRegistry},
		{name: "nil registry", d: New(prober), id: "1", registry: nil, want: ErrEmptyRegistry},
		{name: "empty identifier", d: New(prober), id: "", registry: newRegistry(t, 2), want: ErrEmptyIdentifier},
		{name: "no prober", d: New(nil), id: "1", registry: newRegistry(t, 2), want: ErrNoProber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcomes, err := tt.d.Dispatch(context.Background(), tt.id, tt.registry)
			if outcomes != nil {
				t.Errorf("expected no outcomes, got %v", outcomes)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigurationError, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsConfigurationError(err) {
				t.Error("expected IsConfigurationError to be true")
			}
		})
	}

	if calls.Load() != 0 {
		t.Errorf("expected no probe to launch, got %d", calls.Load())
	}
}

// TestDispatchMisbehavingProber tests that panics and bad outcomes are contained.
func TestDispatchMisbehavingProber(t *testing.T) {
	t.Parallel()

	d := New(proberFunc(func(_ context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
		switch p.Tag {
		case "[P0]":
			panic("boom")
		case "[P1]":
			return model.Outcome{Tag: "wrong", Status: "weird"}
		default:
			return model.Outcome{Tag: "", Status: model.StatusNotFound, URLs: []string{}}
		}
	}))

	outcomes, err := d.Dispatch(context.Background(), "1", newRegistry(t, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].Status != model.StatusError || !strings.HasPrefix(outcomes[0].Message, "internal") {
		t.Errorf("expected internal error for panic, got %s %q", outcomes[0].Status, outcomes[0].Message)
	}
	if outcomes[1].Status != model.StatusError || outcomes[1].Tag != "[P1]" {
		t.Errorf("expected internal error for invalid status, got %+v", outcomes[1])
	}
	if outcomes[2].Tag != "[P2]" {
		t.Errorf("expected tag to be restored, got %q", outcomes[2].Tag)
	}
}

// TestDispatchProgress tests the progress callback.
func TestDispatchProgress(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[string]bool)
	maxDone := 0

	d := New(proberFunc(func(_ context.Context, _ model.Identifier, p model.Provider, _ time.Duration) model.Outcome {
		return model.NewNotFound(p.Tag, "")
	}), WithProgress(func(done, total int, o model.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen[o.Tag] = true
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
		if done > maxDone {
			maxDone = done
		}
	}))

	if _, err := d.Dispatch(context.Background(), "1", newRegistry(t, 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 || maxDone != 5 {
		t.Errorf("expected 5 progress calls, got %d (max done %d)", len(seen), maxDone)
	}
}
