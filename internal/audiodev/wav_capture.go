package audiodev

import (
	"context"
	"sync"

	"pedalcore/internal/irloader"
)

// WAVCapture replays a mono-mixed WAV or AIFF file as a capture source.
// It exists because the reference pack has no live microphone-capture
// library; feeding the engine from a file is the idiomatic substitute
// for bench testing and offline demos (see DESIGN.md).
type WAVCapture struct {
	mu      sync.Mutex
	samples []float32
	pos     int
	loop    bool
}

// NewWAVCapture loads path (via internal/irloader, which already
// handles WAV and AIFF decoding and mono mixdown) and returns a
// capture source plus the file's native sample rate.
func NewWAVCapture(path string, loop bool) (*WAVCapture, uint32, error) {
	samples, sampleRate, err := irloader.NewFileLoader().Load(path)
	if err != nil {
		return nil, 0, err
	}
	return &WAVCapture{samples: samples, loop: loop}, sampleRate, nil
}

// Read fills buf from the loaded file, looping back to the start if
// Loop is set, or padding with silence once the file is exhausted.
func (c *WAVCapture) Read(ctx context.Context, buf []float32) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range buf {
		if len(c.samples) == 0 || c.pos >= len(c.samples) {
			if c.loop && len(c.samples) > 0 {
				c.pos = 0
			} else {
				buf[i] = 0
				continue
			}
		}
		buf[i] = c.samples[c.pos]
		c.pos++
	}
	return nil
}
