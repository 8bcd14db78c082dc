// Package audiodev provides the capture/playback collaborators the audio
// engine drives. No example in the reference pack implements live
// hardware capture in Go, so only playback (via ebitengine/oto) is
// wired to a real OS-level device; capture is backed either by a WAV
// file on disk or by an in-memory loopback buffer useful for demos and
// offline testing. See DESIGN.md for the decision.
package audiodev

import "context"

// Source is the capture half of an audio device.
type Source interface {
	// Read blocks until exactly len(buf) mono frames are available, or
	// ctx is done.
	Read(ctx context.Context, buf []float32) error
}

// Sink is the playback half of an audio device.
type Sink interface {
	// Write blocks until exactly len(buf) mono frames have been
	// accepted for playback, or ctx is done.
	Write(ctx context.Context, buf []float32) error
}

// Device composes a Source and a Sink into the full internal/engine.AudioDevice
// contract.
type Device struct {
	Source Source
	Sink   Sink
}

func (d *Device) Read(ctx context.Context, buf []float32) error  { return d.Source.Read(ctx, buf) }
func (d *Device) Write(ctx context.Context, buf []float32) error { return d.Sink.Write(ctx, buf) }
