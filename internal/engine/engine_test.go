package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"pedalcore/internal/chain"
)

type loopbackDevice struct {
	periods int
	n       int
}

func (d *loopbackDevice) Read(ctx context.Context, buf []float32) error {
	d.n++
	if d.n > d.periods {
		<-ctx.Done()
		return ctx.Err()
	}
	for i := range buf {
		buf[i] = 0.5
	}
	return nil
}

func (d *loopbackDevice) Write(ctx context.Context, buf []float32) error {
	return nil
}

func testChain(t *testing.T, pctx ProcessContext) *chain.SignalChain {
	spec := chain.ChainSpec{
		Version: 1,
		Chain: []chain.NodeSpec{
			{ID: "in", Type: string(chain.TypeInput), Enabled: true},
			{ID: "amp1", Type: string(chain.TypeNamModel), Enabled: false},
			{ID: "cab1", Type: string(chain.TypeIRConvolver), Enabled: false},
			{ID: "out", Type: string(chain.TypeOutput), Enabled: true},
		},
	}
	sc, err := BuildInitialChain(spec, pctx, nil, nil)
	if err != nil {
		t.Fatalf("BuildInitialChain: %v", err)
	}
	return sc
}

func TestEngineRunProcessesPeriodsUntilCancelled(t *testing.T) {
	t.Parallel()

	pctx := ProcessContext{SampleRate: 48000, MaxBlockFrames: 32, Params: NewRealtimeParams()}
	sc := testChain(t, pctx)

	dev := &loopbackDevice{periods: 10}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(pctx, dev, sc, 0, log)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}

	if e.Stats().PeriodsProcessed == 0 {
		t.Fatal("expected at least one period to be processed")
	}
}

func TestPeriodDeadline(t *testing.T) {
	t.Parallel()

	if d := periodDeadline(480, 48000); d != 10*time.Millisecond {
		t.Fatalf("expected 480 frames at 48kHz to be a 10ms deadline, got %v", d)
	}
	if d := periodDeadline(480, 0); d != 0 {
		t.Fatalf("expected a zero sample rate to disable the deadline, got %v", d)
	}
}

func TestEngineCountsOverrunsPastPeriodDeadline(t *testing.T) {
	t.Parallel()

	pctx := ProcessContext{SampleRate: 48000, MaxBlockFrames: 32, Params: NewRealtimeParams()}
	sc := testChain(t, pctx)

	dev := &loopbackDevice{periods: 5}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(pctx, dev, sc, 0, log)
	// Force every period over deadline without needing a real xrun.
	e.deadline = time.Nanosecond

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}

	if e.Stats().Overruns == 0 {
		t.Fatal("expected at least one overrun once the deadline is forced below every period's processing time")
	}
}

func TestEngineSubmitChainInstallsAtNextPeriod(t *testing.T) {
	t.Parallel()

	pctx := ProcessContext{SampleRate: 48000, MaxBlockFrames: 32, Params: NewRealtimeParams()}
	sc1 := testChain(t, pctx)
	sc2 := testChain(t, pctx)

	dev := &loopbackDevice{periods: 1000}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(pctx, dev, sc1, 0, log)

	if e.swap.Active() != sc1 {
		t.Fatal("expected initial chain to be active immediately")
	}

	e.SubmitChain(sc2)
	e.swap.AdvancePeriod()

	if e.swap.Active() != sc2 {
		t.Fatal("expected submitted chain to become active after AdvancePeriod")
	}
}
