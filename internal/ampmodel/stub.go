package ampmodel

import "math"

// stubModel is a deterministic stand-in for a real NAM inference engine.
// It applies a fixed low-pass-filtered soft saturation so downstream
// nodes (pre/post gain, softclip, limiter in NamModelNode) have a
// plausible nonlinearity to shape, without decoding any weight data.
type stubModel struct {
	sampleRate float64
	hasLevel   bool
	inputDbu   float64

	// z1 is a one-pole smoothing state, the same role n.z1 plays in
	// OverdriveNode, giving the stub a touch of frequency-dependent
	// character instead of a bare memoryless waveshaper.
	z1 float32
}

func newStubModel(sampleRate float64, hasLevel bool, inputDbu float64, _ int) *stubModel {
	if !roundSampleRate(sampleRate) {
		sampleRate = 0
	}
	return &stubModel{sampleRate: sampleRate, hasLevel: hasLevel, inputDbu: inputDbu}
}

const stubSmoothing = 0.35

// Process runs len(in) frames through the stub's fixed saturation curve.
func (m *stubModel) Process(in, out []float32) {
	z := m.z1
	for i, x := range in {
		y := stubSaturate(x)
		z = z + stubSmoothing*(y-z)
		out[i] = z
	}
	m.z1 = z
}

func stubSaturate(x float32) float32 {
	return float32(math.Tanh(float64(x) * 1.6))
}

func (m *stubModel) SampleRate() float64    { return m.sampleRate }
func (m *stubModel) HasInputLevel() bool    { return m.hasLevel }
func (m *stubModel) InputLevelDbu() float64 { return m.inputDbu }
