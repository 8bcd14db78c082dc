// Package engine owns the realtime audio loop: the per-period chain swap
// protocol, deferred chain retirement, and the realtime parameter cells
// the chain package's nodes bind to.
package engine

import (
	"math"
	"sync/atomic"

	"pedalcore/internal/chain"
)

// TrimCell is a lock-free realtime parameter cell for the input node's
// trim gain. It stores the linear gain as a uint32 bit-pattern so reads
// and writes are a single atomic load/store with no locking, matching the
// input-trim std::atomic<float> cell of the original engine.
type TrimCell struct {
	bits atomic.Uint32
}

// NewTrimCell returns a TrimCell initialised to the given linear gain.
func NewTrimCell(initialLin float32) *TrimCell {
	c := &TrimCell{}
	c.Store(initialLin)
	return c
}

// Load returns the current linear gain. Safe to call from the audio thread.
func (c *TrimCell) Load() float32 {
	return math.Float32frombits(c.bits.Load())
}

// Store sets the linear gain. Safe to call from the control thread
// concurrently with Load on the audio thread.
func (c *TrimCell) Store(lin float32) {
	c.bits.Store(math.Float32bits(lin))
}

// RealtimeParams implements chain.RealtimeParams, wiring the builder's
// seed-from-spec calls into this engine's realtime parameter cells.
type RealtimeParams struct {
	InputTrimDb  atomic.Value // float32, read-only diagnostic mirror
	InputTrimLin *TrimCell
}

// NewRealtimeParams returns a RealtimeParams with a fresh trim cell set to
// unity gain (0 dB).
func NewRealtimeParams() *RealtimeParams {
	return &RealtimeParams{InputTrimLin: NewTrimCell(1.0)}
}

func (p *RealtimeParams) StoreInputTrimDb(db float32) {
	p.InputTrimDb.Store(db)
}

// InputTrimLinCell satisfies chain.RealtimeParams; *TrimCell implements
// chain.AtomicFloat32 via Load.
func (p *RealtimeParams) InputTrimLinCell() chain.AtomicFloat32 {
	return p.InputTrimLin
}

// ProcessContext bundles the fixed, per-engine-instance sizing parameters
// every node builder and the audio loop itself need: sample rate and the
// maximum frames per realtime period.
type ProcessContext struct {
	SampleRate     uint32
	MaxBlockFrames int
	Params         *RealtimeParams
}
