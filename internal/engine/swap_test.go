package engine

import (
	"testing"

	"pedalcore/internal/chain"
)

func TestSwapCoordinatorInstallsImmediatelyWithNoRamp(t *testing.T) {
	t.Parallel()

	r := NewRetirer()
	sc := NewSwapCoordinator(r, 0)

	c1 := &chain.SignalChain{}
	sc.Submit(c1)
	sc.AdvancePeriod()

	if sc.Active() != c1 {
		t.Fatal("expected first submission to install immediately")
	}
	if sc.SwapCount() != 1 {
		t.Fatalf("expected SwapCount 1, got %d", sc.SwapCount())
	}
}

func TestSwapCoordinatorCoalescesBurstOfSubmits(t *testing.T) {
	t.Parallel()

	r := NewRetirer()
	sc := NewSwapCoordinator(r, 0)

	c1, c2, c3 := &chain.SignalChain{}, &chain.SignalChain{}, &chain.SignalChain{}
	sc.Submit(c1)
	sc.Submit(c2)
	sc.Submit(c3)
	sc.AdvancePeriod()

	if sc.Active() != c3 {
		t.Fatal("expected only the latest submission to install")
	}
	if sc.SwapCount() != 1 {
		t.Fatalf("expected exactly one install for a coalesced burst, got %d", sc.SwapCount())
	}
}

func TestSwapCoordinatorRetiresReplacedChain(t *testing.T) {
	t.Parallel()

	r := NewRetirer()
	sc := NewSwapCoordinator(r, 0)

	c1 := &chain.SignalChain{}
	sc.Submit(c1)
	sc.AdvancePeriod()

	c2 := &chain.SignalChain{}
	sc.Submit(c2)
	sc.AdvancePeriod()

	if sc.Active() != c2 {
		t.Fatal("expected second chain to become active")
	}
	if r.write.Load()-r.read.Load() != 1 {
		t.Fatal("expected the replaced chain to have been retired")
	}
}

func TestSwapCoordinatorDefersWhenRetireQueueFull(t *testing.T) {
	t.Parallel()

	r := NewRetirer()
	sc := NewSwapCoordinator(r, 0)

	c1 := &chain.SignalChain{}
	sc.Submit(c1)
	sc.AdvancePeriod()

	for i := 0; i < retireQueueSize; i++ {
		r.Retire(&chain.SignalChain{})
	}

	c2 := &chain.SignalChain{}
	sc.Submit(c2)
	sc.AdvancePeriod()

	if sc.Active() != c1 {
		t.Fatal("expected swap to be deferred while the retire queue is full")
	}

	r.drainOnce()

	sc.AdvancePeriod()
	if sc.Active() != c2 {
		t.Fatal("expected deferred swap to apply once the retire queue drained")
	}
}

func TestSwapCoordinatorRampSequencesFadeOutThenFadeIn(t *testing.T) {
	t.Parallel()

	r := NewRetirer()
	sc := NewSwapCoordinator(r, 4)

	c1 := &chain.SignalChain{}
	sc.Submit(c1)
	sc.AdvancePeriod()

	buf := make([]float32, 8)
	for i := range buf {
		buf[i] = 1
	}
	sc.ApplyRamp(buf)
	for _, v := range buf {
		if v != 1 {
			t.Fatalf("expected no ramp on first install, got %v", v)
		}
	}

	c2 := &chain.SignalChain{}
	sc.Submit(c2)
	sc.AdvancePeriod()
	if sc.Active() != c1 {
		t.Fatal("expected ramped swap to hold off installing until FadeOut completes")
	}

	out := make([]float32, 8)
	for i := range out {
		out[i] = 1
	}
	sc.ApplyRamp(out)
	if out[7] != 0 {
		t.Fatalf("expected fade-out to reach zero at the block end, got %v", out[7])
	}
	if sc.Active() != c2 {
		t.Fatal("expected FadeOut completion to install the queued chain")
	}

	sc.AdvancePeriod()
	in := make([]float32, 8)
	for i := range in {
		in[i] = 1
	}
	sc.ApplyRamp(in)
	if in[0] != 0 {
		t.Fatalf("expected fade-in to start at zero, got %v", in[0])
	}
	if in[7] != 1 {
		t.Fatalf("expected fade-in to reach unity by end of ramp, got %v", in[7])
	}
}
