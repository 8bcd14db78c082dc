package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pedalcore/internal/chain"
)

// AudioDevice is the capture/playback collaborator the audio loop drives.
// Implementations (see internal/audiodev) own the actual hardware or
// loopback transport; the engine only ever sees blocking Read/Write calls
// sized to one period.
type AudioDevice interface {
	// Read blocks until exactly len(buf) mono frames have been captured,
	// or ctx is done.
	Read(ctx context.Context, buf []float32) error
	// Write blocks until exactly len(buf) mono frames have been written,
	// or ctx is done.
	Write(ctx context.Context, buf []float32) error
}

// Stats are the free-running counters the audio loop maintains, mirrored
// periodically into the logger the way the original engine's status-line
// reporting did.
type Stats struct {
	PeriodsProcessed uint64
	ShortReads       uint64
	ShortWrites      uint64
	Overruns         uint64
	SwapCount        uint64
	RetireFullCount  uint64
}

// Engine runs the realtime audio loop: pull a period of input, advance the
// chain-swap coordinator, process through the active chain, apply any
// in-flight swap ramp, push the period of output.
type Engine struct {
	ctx      ProcessContext
	device   AudioDevice
	swap     *SwapCoordinator
	retirer  *Retirer
	retireWk *RetirementWorker

	periodFrames int
	deadline     time.Duration
	log          *slog.Logger

	in, out []float32

	stats Stats
}

// New builds an Engine bound to device, with an initial chain already
// installed. rampSamples of 0 disables click-safe swap fading.
func New(pctx ProcessContext, device AudioDevice, initial *chain.SignalChain, rampSamples int, log *slog.Logger) *Engine {
	retirer := NewRetirer()
	swap := NewSwapCoordinator(retirer, rampSamples)
	swap.Submit(initial)
	swap.AdvancePeriod()

	e := &Engine{
		ctx:          pctx,
		device:       device,
		swap:         swap,
		retirer:      retirer,
		retireWk:     NewRetirementWorker(retirer),
		periodFrames: pctx.MaxBlockFrames,
		deadline:     periodDeadline(pctx.MaxBlockFrames, pctx.SampleRate),
		log:          log,
		in:           make([]float32, pctx.MaxBlockFrames),
		out:          make([]float32, pctx.MaxBlockFrames),
	}
	return e
}

// periodDeadline is the wall-clock budget one period has to process in,
// the same ratio the original engine's deadlineUs derived from periodSize
// and the device sample rate. A zero sample rate (degenerate test setups)
// disables the check rather than dividing by zero.
func periodDeadline(periodFrames int, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(periodFrames) * time.Second / time.Duration(sampleRate)
}

// SubmitChain publishes a newly-built chain for installation at the next
// period boundary. Safe to call from the control server's goroutine.
func (e *Engine) SubmitChain(sc *chain.SignalChain) {
	e.swap.Submit(sc)
}

// Stats returns a snapshot of the engine's running counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.SwapCount = e.swap.SwapCount()
	s.RetireFullCount = e.retirer.FullCount()
	return s
}

// Run drives the audio loop until ctx is cancelled. The retirement worker
// is started on entry and stopped on exit.
func (e *Engine) Run(ctx context.Context) error {
	e.retireWk.Start()
	defer e.retireWk.Stop()

	reportEvery := 5 * time.Second
	lastReport := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := e.device.Read(ctx, e.in); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.stats.ShortReads++
			e.log.Warn("audio read failed", "error", err)
			continue
		}

		e.swap.AdvancePeriod()

		t0 := time.Now()
		active := e.swap.Active()
		if active != nil {
			active.Process(e.in, e.out)
		} else {
			copy(e.out, e.in)
		}
		if e.deadline > 0 && time.Since(t0) > e.deadline {
			e.stats.Overruns++
		}

		e.swap.ApplyRamp(e.out)

		if err := e.device.Write(ctx, e.out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.stats.ShortWrites++
			e.log.Warn("audio write failed", "error", err)
			continue
		}

		e.stats.PeriodsProcessed++

		if time.Since(lastReport) >= reportEvery {
			lastReport = time.Now()
			s := e.Stats()
			e.log.Info("engine stats",
				"periods", s.PeriodsProcessed,
				"shortReads", s.ShortReads,
				"shortWrites", s.ShortWrites,
				"overruns", s.Overruns,
				"swaps", s.SwapCount,
				"retireFull", s.RetireFullCount,
			)
		}
	}
}

// BuildInitialChain compiles spec into a SignalChain bound to this
// engine's ProcessContext, suitable for passing to New or SubmitChain.
func BuildInitialChain(spec chain.ChainSpec, pctx ProcessContext, models chain.AmpModelLoader, irs chain.IRLoader) (*chain.SignalChain, error) {
	validated, err := chain.ValidateChainSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	bctx := chain.BuildContext{
		SampleRate:     pctx.SampleRate,
		MaxBlockFrames: pctx.MaxBlockFrames,
		AmpModels:      models,
		IRs:            irs,
		Params:         pctx.Params,
	}
	sc, err := chain.Build(*validated, bctx)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return sc, nil
}
