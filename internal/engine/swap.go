package engine

import (
	"sync/atomic"

	"pedalcore/internal/chain"
)

// rampState names where a click-safe swap is in its FadeOut/FadeIn
// sequence. The audio loop never processes the outgoing and incoming
// chain in the same period; FadeOut always finishes draining the old
// chain's last block before FadeIn begins the new chain's first.
type rampState int

const (
	rampIdle rampState = iota
	rampFadeOut
	rampFadeIn
)

// SwapCoordinator implements the lock-free active/pending chain-swap
// protocol: the control path publishes a new *chain.SignalChain by
// atomically exchanging it into pending; the audio loop picks it up once
// per period, coalescing any further updates that arrived in the
// meantime, and installs it into active either immediately or via a
// short linear fade when RampSamples > 0.
type SwapCoordinator struct {
	active  atomic.Pointer[chain.SignalChain]
	pending atomic.Pointer[chain.SignalChain]

	retirer *Retirer

	// RampSamples is the length of the FadeOut/FadeIn applied around a
	// swap. Zero means swap instantly at the next period boundary.
	RampSamples int

	deferredSwap   *chain.SignalChain
	deferredRetire *chain.SignalChain
	swapNext       *chain.SignalChain
	state          rampState

	swapCount atomic.Uint64
}

// NewSwapCoordinator returns a coordinator with no active chain yet.
func NewSwapCoordinator(retirer *Retirer, rampSamples int) *SwapCoordinator {
	return &SwapCoordinator{retirer: retirer, RampSamples: rampSamples}
}

// Active returns the chain currently installed, or nil before the first
// Submit/AdvancePeriod has run. Safe to call from the audio thread.
func (s *SwapCoordinator) Active() *chain.SignalChain {
	return s.active.Load()
}

// SwapCount returns the number of chain installs performed so far, for
// diagnostics.
func (s *SwapCoordinator) SwapCount() uint64 {
	return s.swapCount.Load()
}

// Submit publishes next as the pending chain, to be picked up by the
// audio thread at its next period boundary. If a previous Submit has not
// yet been applied, next replaces it outright (coalescing): only the
// latest submission before a period boundary ever becomes active.
// Safe to call from any goroutine; never blocks.
func (s *SwapCoordinator) Submit(next *chain.SignalChain) {
	s.pending.Store(next)
}

// AdvancePeriod runs once per audio period, before Process. It retries
// any previously-deferred old-chain retirement, pulls and coalesces the
// latest pending submission, and — respecting the retirement queue's
// capacity — installs it into Active either immediately or by beginning
// a FadeOut/FadeIn sequence. It never blocks and never allocates.
func (s *SwapCoordinator) AdvancePeriod() {
	if s.deferredRetire != nil {
		if s.retirer.Retire(s.deferredRetire) {
			s.deferredRetire = nil
		}
	}

	pending := s.takeCoalescedPending()
	if pending == nil {
		return
	}

	active := s.active.Load()
	canSwapNow := active == nil || (s.deferredRetire == nil && s.retirer.HasSpace())
	if !canSwapNow {
		s.deferredSwap = pending
		return
	}
	s.deferredSwap = nil

	if s.RampSamples > 0 && active != nil {
		s.swapNext = pending
		if s.state == rampIdle {
			s.state = rampFadeOut
		}
		return
	}

	s.install(pending)
}

// takeCoalescedPending returns the latest pending submission, preferring
// a previously-deferred one, and draining any further updates that
// arrived while we were looking so only the newest ever applies.
func (s *SwapCoordinator) takeCoalescedPending() *chain.SignalChain {
	var pending *chain.SignalChain
	if s.deferredSwap != nil {
		pending = s.deferredSwap
	} else {
		pending = s.pending.Swap(nil)
	}

	for {
		newer := s.pending.Swap(nil)
		if newer == nil {
			break
		}
		pending = newer
	}
	return pending
}

func (s *SwapCoordinator) install(next *chain.SignalChain) {
	old := s.active.Load()
	s.active.Store(next)
	s.swapCount.Add(1)

	if old != nil {
		s.deferredRetire = old
		if s.retirer.Retire(s.deferredRetire) {
			s.deferredRetire = nil
		}
	}
}

// ApplyRamp runs after Process has written one block of output into buf
// using the chain that was Active() at the time this period's
// AdvancePeriod ran. If a ramp is in progress, it fades the block and, on
// completing a FadeOut, installs the queued chain so the very next period
// processes through it starting with a FadeIn. ApplyRamp is a no-op when
// RampSamples is 0 or no ramp is in progress.
func (s *SwapCoordinator) ApplyRamp(buf []float32) {
	if s.RampSamples <= 0 {
		return
	}
	switch s.state {
	case rampFadeOut:
		applyFadeOut(buf, s.RampSamples)
		if s.swapNext != nil {
			if s.deferredRetire != nil || !s.retirer.HasSpace() {
				s.deferredSwap = s.swapNext
				s.swapNext = nil
				s.state = rampIdle
				return
			}
			next := s.swapNext
			s.swapNext = nil
			s.install(next)
			s.state = rampFadeIn
		}
	case rampFadeIn:
		applyFadeIn(buf, s.RampSamples)
		s.state = rampIdle
	}
}

func applyFadeOut(buf []float32, ramp int) {
	n := len(buf)
	if ramp == 0 || n == 0 {
		return
	}
	if ramp > n {
		ramp = n
	}
	if ramp == 1 {
		buf[n-1] = 0
		return
	}
	for i := 0; i < ramp; i++ {
		t := float32(i) / float32(ramp-1)
		g := 1 - t
		buf[n-ramp+i] *= g
	}
}

func applyFadeIn(buf []float32, ramp int) {
	n := len(buf)
	if ramp == 0 || n == 0 {
		return
	}
	if ramp > n {
		ramp = n
	}
	if ramp == 1 {
		buf[0] = 0
		return
	}
	for i := 0; i < ramp; i++ {
		t := float32(i) / float32(ramp-1)
		buf[i] *= t
	}
}
