// Package dsp implements the realtime digital-signal-processing primitives
// shared by the pedal chain: currently the partitioned frequency-domain
// convolver used by the cabinet ("ir_convolver") node.
package dsp

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// ErrEmptyImpulseResponse is returned when NewPartitionedConvolver is asked
// to build from a zero-length impulse response.
var ErrEmptyImpulseResponse = errors.New("dsp: impulse response is empty")

// PartitionedConvolver implements uniform-partition frequency-domain
// convolution with a fixed block size equal to the audio period. The
// impulse response is split into K partitions of length B (the block
// size); each partition's spectrum is precomputed once at build time and
// correlated against a ring of the last K input-block spectra on every
// call to Process.
//
// Process never allocates: all scratch buffers are sized at construction.
type PartitionedConvolver struct {
	block int // B
	fft    int // N = 2B
	bins   int // N/2 + 1
	parts  int // K = ceil(len(ir)/B)
	write  int // ring write index
	ready  bool

	timeIn  []float32 // forward-transform scratch, len fft
	timeOut []float32 // inverse-transform scratch, len fft
	overlap []float32 // len block

	freqY []complex64 // accumulator spectrum, len bins

	h [][]complex64 // precomputed IR partition spectra, len parts, each len bins
	x [][]complex64 // ring of input-block spectra, len parts, each len bins

	plan *algofft.PlanRealT[float32, complex64]
}

// NewPartitionedConvolver builds a convolver for the given mono impulse
// response and block size. All FFT planning and precomputation happens
// here, off the audio thread; the returned convolver's Process method
// performs no allocation.
func NewPartitionedConvolver(ir []float32, blockSize int) (*PartitionedConvolver, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("dsp: block size must be positive, got %d", blockSize)
	}
	if len(ir) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	c := &PartitionedConvolver{
		block: blockSize,
		fft:   2 * blockSize,
	}
	c.bins = c.fft/2 + 1
	c.parts = (len(ir) + c.block - 1) / c.block

	plan, err := algofft.NewPlanReal32(c.fft)
	if err != nil {
		return nil, fmt.Errorf("dsp: failed to build FFT plan of size %d: %w", c.fft, err)
	}
	c.plan = plan

	c.timeIn = make([]float32, c.fft)
	c.timeOut = make([]float32, c.fft)
	c.overlap = make([]float32, c.block)
	c.freqY = make([]complex64, c.bins)

	c.h = make([][]complex64, c.parts)
	c.x = make([][]complex64, c.parts)
	for k := range c.parts {
		c.h[k] = make([]complex64, c.bins)
		c.x[k] = make([]complex64, c.bins)
	}

	for k := range c.parts {
		for i := range c.timeIn {
			c.timeIn[i] = 0
		}
		start := k * c.block
		end := min(start+c.block, len(ir))
		copy(c.timeIn[:end-start], ir[start:end])

		if err := c.plan.Forward(c.h[k], c.timeIn); err != nil {
			return nil, fmt.Errorf("dsp: failed to transform IR partition %d: %w", k, err)
		}
	}

	c.ready = true
	return c, nil
}

// Ready reports whether the convolver has been fully built.
func (c *PartitionedConvolver) Ready() bool {
	return c != nil && c.ready
}

// BlockSize returns the fixed block size B this convolver was built for.
func (c *PartitionedConvolver) BlockSize() int {
	return c.block
}

// Partitions returns the number of precomputed IR partitions K.
func (c *PartitionedConvolver) Partitions() int {
	return c.parts
}

// Process convolves one block of input against the impulse response and
// writes the result to out. Both slices must have length equal to
// BlockSize(); Process returns false (leaving out untouched) if the
// convolver is not ready or the lengths don't match.
func (c *PartitionedConvolver) Process(in, out []float32) bool {
	if !c.ready || len(in) != c.block || len(out) != c.block {
		return false
	}

	copy(c.timeIn[:c.block], in)
	for i := c.block; i < c.fft; i++ {
		c.timeIn[i] = 0
	}
	_ = c.plan.Forward(c.x[c.write], c.timeIn)

	for b := range c.freqY {
		c.freqY[b] = 0
	}
	for k := range c.parts {
		idx := c.write - k
		if idx < 0 {
			idx += c.parts
		}
		xk := c.x[idx]
		hk := c.h[k]
		for b := range c.freqY {
			c.freqY[b] += xk[b] * hk[b]
		}
	}

	_ = c.plan.Inverse(c.timeOut, c.freqY)

	for i := range c.block {
		out[i] = c.timeOut[i] + c.overlap[i]
	}
	for i := range c.block {
		c.overlap[i] = c.timeOut[i+c.block]
	}

	c.write++
	if c.write >= c.parts {
		c.write = 0
	}
	return true
}
