package irloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pedalcore/internal/aiff"
)

// FileLoader loads mono impulse responses from WAV or AIFF files on disk.
// It implements chain.IRLoader.
type FileLoader struct{}

// NewFileLoader returns a FileLoader. It holds no state; asset caching, if
// ever needed, belongs in a layer above this one.
func NewFileLoader() *FileLoader { return &FileLoader{} }

// Load reads path, dispatching on its extension, and returns the mixed-
// to-mono samples and the file's native sample rate.
func (l *FileLoader) Load(path string) ([]float32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("irloader: open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		wf, err := parseWAV(f)
		if err != nil {
			return nil, 0, fmt.Errorf("irloader: %w", err)
		}
		return mixToMono(wf.data), wf.sampleRate, nil

	case ".aif", ".aiff":
		af, err := aiff.Parse(f)
		if err != nil {
			return nil, 0, fmt.Errorf("irloader: %w", err)
		}
		return mixToMono(af.Data), uint32(af.SampleRate), nil

	default:
		return nil, 0, fmt.Errorf("irloader: unsupported file extension %q", filepath.Ext(path))
	}
}

// mixToMono averages all channels of a [channel][sample] buffer into one
// mono slice. A single-channel buffer is returned unchanged (no copy
// needed beyond what the caller already owns).
func mixToMono(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	n := len(channels[0])
	out := make([]float32, n)
	for _, ch := range channels {
		for i := 0; i < n && i < len(ch); i++ {
			out[i] += ch[i]
		}
	}
	scale := float32(1) / float32(len(channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}
