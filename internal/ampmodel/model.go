// Package ampmodel loads neural-amp-model assets for nam_model nodes.
//
// No Go inference runtime for the .nam weight format exists anywhere in
// the reference pack (the original engine links the C++ NeuralAmpModeler
// core via nam::get_dsp). StubModel below parses the real .nam JSON
// envelope for its metadata (sample rate, input level) and substitutes a
// deterministic saturation stage for the weight-driven WaveNet/LSTM
// inference itself. See DESIGN.md for the full justification.
package ampmodel

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"pedalcore/internal/chain"
)

// namFile mirrors the metadata envelope of a real .nam file. Only the
// fields the chain package's AmpModel interface needs are decoded; the
// architecture/config/weights blocks are read and discarded.
type namFile struct {
	SampleRate float64 `json:"sample_rate"`
	Metadata   struct {
		InputLevelDbu *float64 `json:"input_level_dbu"`
		LoudnessDb    *float64 `json:"loudness_db"`
	} `json:"metadata"`
}

// Loader implements chain.AmpModelLoader, reading .nam assets from disk.
type Loader struct{}

// NewLoader returns a Loader. It holds no state.
func NewLoader() *Loader { return &Loader{} }

// Load decodes path's metadata envelope and returns a model bound to
// sampleRate/maxBlockFrames. It never resamples: a sample-rate mismatch
// between the model and the engine is surfaced by the builder as a
// warning, not corrected here.
func (l *Loader) Load(path string, sampleRate uint32, maxBlockFrames int) (chain.AmpModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ampmodel: open %s: %w", path, err)
	}
	defer f.Close()

	var nf namFile
	if err := json.NewDecoder(f).Decode(&nf); err != nil {
		return nil, fmt.Errorf("ampmodel: decode %s: %w", path, err)
	}

	dbu := 0.0
	hasLevel := false
	switch {
	case nf.Metadata.InputLevelDbu != nil:
		dbu = *nf.Metadata.InputLevelDbu
		hasLevel = true
	case nf.Metadata.LoudnessDb != nil:
		// Loudness is expressed relative to digital full scale; convert
		// to the same dBu reference the builder compares against.
		dbu = *nf.Metadata.LoudnessDb + refDigitalToDbuOffset
		hasLevel = true
	}

	return newStubModel(nf.SampleRate, hasLevel, dbu, maxBlockFrames), nil
}

// refDigitalToDbuOffset approximates the 0 dBFS -> dBu offset of a
// typical interface's input stage, used only when a .nam file carries
// loudness metadata expressed relative to digital full scale rather
// than an absolute dBu figure.
const refDigitalToDbuOffset = 12.2

// roundSampleRate reports whether hz is a plausible audio sample rate,
// used to decide whether a decoded sample_rate field should be trusted.
func roundSampleRate(hz float64) bool {
	return hz > 0 && hz < 1<<20 && !math.IsNaN(hz) && !math.IsInf(hz, 0)
}
