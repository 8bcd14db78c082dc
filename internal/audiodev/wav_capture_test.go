package audiodev

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWAV builds a minimal mono 16-bit PCM RIFF/WAVE file
// containing samples (already in [-1,1]) and returns its path.
func writeTestWAV(t *testing.T, samples []int16, sampleRate uint32) string {
	t.Helper()

	dataBytes := len(samples) * 2
	buf := make([]byte, 0, 44+dataBytes)

	buf = append(buf, "RIFF"...)
	buf = appendU32(buf, uint32(36+dataBytes))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = appendU32(buf, 16)
	buf = appendU16(buf, 1) // PCM
	buf = appendU16(buf, 1) // mono
	buf = appendU32(buf, sampleRate)
	byteRate := sampleRate * 2
	buf = appendU32(buf, byteRate)
	buf = appendU16(buf, 2)  // block align
	buf = appendU16(buf, 16) // bits per sample

	buf = append(buf, "data"...)
	buf = appendU32(buf, uint32(dataBytes))
	for _, s := range samples {
		buf = appendU16(buf, uint16(s))
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "capture.wav")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func TestWAVCaptureReadsSamples(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, []int16{0, 16384, -16384, 32767}, 48000)

	capSrc, sr, err := NewWAVCapture(path, false)
	if err != nil {
		t.Fatalf("NewWAVCapture: %v", err)
	}
	if sr != 48000 {
		t.Fatalf("expected sampleRate 48000, got %d", sr)
	}

	out := make([]float32, 4)
	if err := capSrc.Read(context.Background(), out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out[0] != 0 {
		t.Fatalf("sample 0: want 0, got %v", out[0])
	}
	if out[3] <= 0.99 || out[3] > 1.0 {
		t.Fatalf("sample 3: want near 1.0, got %v", out[3])
	}
}

func TestWAVCaptureZeroFillsAfterEOFWithoutLoop(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, []int16{100, 200}, 48000)

	capSrc, _, err := NewWAVCapture(path, false)
	if err != nil {
		t.Fatalf("NewWAVCapture: %v", err)
	}

	out := make([]float32, 4)
	if err := capSrc.Read(context.Background(), out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out[2] != 0 || out[3] != 0 {
		t.Fatalf("expected silence after EOF, got %v", out)
	}
}

func TestWAVCaptureLoopsWhenRequested(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, []int16{100, 200}, 48000)

	capSrc, _, err := NewWAVCapture(path, true)
	if err != nil {
		t.Fatalf("NewWAVCapture: %v", err)
	}

	first := make([]float32, 2)
	second := make([]float32, 2)
	if err := capSrc.Read(context.Background(), first); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := capSrc.Read(context.Background(), second); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if first[0] != second[0] || first[1] != second[1] {
		t.Fatalf("expected looped samples to repeat, got %v then %v", first, second)
	}
}
