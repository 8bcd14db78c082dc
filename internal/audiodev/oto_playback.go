package audiodev

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/ebitengine/oto/v3"
)

// framesPerSlot bounds how many periods of audio the playback queue can
// hold before Write starts applying backpressure to the engine loop.
const otoQueueSlots = 4

// OtoPlayback drives the oto backend as the engine's playback sink. oto
// pulls PCM bytes from Read on its own callback thread; Write pushes
// mono float32 periods onto a small queue that Read drains, so neither
// side ever blocks on the other's cadence. A queue underrun is filled
// with silence rather than blocking the audio callback.
type OtoPlayback struct {
	ctx    *oto.Context
	player *oto.Player

	frames   chan []byte
	leftover []byte
}

// NewOtoPlayback opens a mono float32 playback stream at sampleRate and
// starts the oto player immediately.
func NewOtoPlayback(sampleRate int) (*OtoPlayback, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	p := &OtoPlayback{ctx: ctx, frames: make(chan []byte, otoQueueSlots)}
	p.player = ctx.NewPlayer(p)
	p.player.Play()
	return p, nil
}

// Write encodes buf as little-endian float32 PCM and enqueues it for
// playback, blocking only if the queue is full and ctx is not yet done.
func (p *OtoPlayback) Write(ctx context.Context, buf []float32) error {
	b := make([]byte, len(buf)*4)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	select {
	case p.frames <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read implements io.Reader for oto's pull-based player callback.
func (p *OtoPlayback) Read(out []byte) (int, error) {
	n := 0
	for n < len(out) {
		if len(p.leftover) == 0 {
			select {
			case b := <-p.frames:
				p.leftover = b
			default:
				for i := n; i < len(out); i++ {
					out[i] = 0
				}
				return len(out), nil
			}
		}
		c := copy(out[n:], p.leftover)
		p.leftover = p.leftover[c:]
		n += c
	}
	return n, nil
}

// Close stops playback and releases the underlying device.
func (p *OtoPlayback) Close() error {
	return p.player.Close()
}
