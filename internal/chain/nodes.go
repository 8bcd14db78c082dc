package chain

import (
	"math"

	"pedalcore/dsp"
)

// AmpModel is the realtime interface a neural amp model collaborator must
// satisfy to be driven by a nam_model node. Implementations live outside
// this package (see internal/ampmodel) and are injected by the builder so
// the chain package never depends on a concrete model format.
type AmpModel interface {
	// Process runs exactly len(in) frames of the model in place, writing
	// len(in) samples to out. It must not allocate or block.
	Process(in, out []float32)
	// SampleRate returns the sample rate the model was trained/exported
	// at, or 0 if unknown.
	SampleRate() float64
	// HasInputLevel reports whether InputLevelDbu is meaningful.
	HasInputLevel() bool
	// InputLevelDbu returns the model's expected input level in dBu.
	InputLevelDbu() float64
}

// standardParams holds the enabled/level/mix fields shared by every node
// type, plus their derived linear forms so Process never calls math.Pow.
type standardParams struct {
	enabled bool
	levelDb float32
	mix     float32

	levelLin float32
	mixWet   float32
	mixDry   float32
}

func dbToLin(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

func clampf32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseStandardParams reads levelDb (or its alias outputGainDb), mix and
// enabled out of a NodeSpec, clamping to the same ranges the audio thread
// assumes.
func parseStandardParams(spec NodeSpec) standardParams {
	p := standardParams{enabled: spec.Enabled}

	if v, ok := numParam(spec.Params, "levelDb"); ok {
		p.levelDb = float32(v)
	}
	if v, ok := numParam(spec.Params, "outputGainDb"); ok {
		p.levelDb = float32(v)
	}
	if v, ok := numParam(spec.Params, "mix"); ok {
		p.mix = float32(v)
	} else {
		p.mix = 1
	}

	p.levelDb = clampf32(p.levelDb, -48, 24)
	p.mix = clampf32(p.mix, 0, 1)

	p.levelLin = dbToLin(p.levelDb)
	p.mixWet = p.mix
	p.mixDry = 1 - p.mix
	return p
}

// Node is one stage of a compiled SignalChain. Process must be safe to call
// from the audio thread: no allocation, no locking, no blocking I/O.
type Node interface {
	ID() string
	Type() string
	Process(in, out []float32)
}

// PassthroughNode copies input to output, optionally blended through a
// wet/dry mix when a node is built in a degraded (bypassed) state.
type PassthroughNode struct {
	id  string
	typ string
	std standardParams
}

func NewPassthroughNode(id, typ string, std standardParams) *PassthroughNode {
	return &PassthroughNode{id: id, typ: typ, std: std}
}

func (n *PassthroughNode) ID() string   { return n.id }
func (n *PassthroughNode) Type() string { return n.typ }

func (n *PassthroughNode) Process(in, out []float32) {
	if !n.std.enabled {
		copy(out, in)
		return
	}
	level, wetG, dryG := n.std.levelLin, n.std.mixWet, n.std.mixDry
	for i := range in {
		wet := in[i] * level
		out[i] = in[i]*dryG + wet*wetG
	}
}

// InputNode applies a realtime-adjustable input trim (read from an atomic
// cell owned by the engine's ProcessContext) followed by the standard
// level/mix stage.
type InputNode struct {
	id  string
	std standardParams

	trimLin  AtomicFloat32
	fallback float32
}

// AtomicFloat32 is the minimal seam InputNode needs onto the engine's
// realtime parameter cell; internal/engine provides the concrete type.
type AtomicFloat32 interface {
	Load() float32
}

func NewInputNode(id string, std standardParams, trimLin AtomicFloat32, fallback float32) *InputNode {
	return &InputNode{id: id, std: std, trimLin: trimLin, fallback: fallback}
}

func (n *InputNode) ID() string   { return n.id }
func (n *InputNode) Type() string { return string(TypeInput) }

func (n *InputNode) Process(in, out []float32) {
	if !n.std.enabled {
		copy(out, in)
		return
	}
	trim := n.fallback
	if n.trimLin != nil {
		trim = n.trimLin.Load()
	}
	level, wetG, dryG := n.std.levelLin, n.std.mixWet, n.std.mixDry
	for i := range in {
		wet := in[i] * trim * level
		out[i] = in[i]*dryG + wet*wetG
	}
}

// OutputNode applies the standard level/mix stage at the end of the chain.
type OutputNode struct {
	id  string
	std standardParams
}

func NewOutputNode(id string, std standardParams) *OutputNode {
	return &OutputNode{id: id, std: std}
}

func (n *OutputNode) ID() string   { return n.id }
func (n *OutputNode) Type() string { return string(TypeOutput) }

func (n *OutputNode) Process(in, out []float32) {
	if !n.std.enabled {
		copy(out, in)
		return
	}
	level, wetG, dryG := n.std.levelLin, n.std.mixWet, n.std.mixDry
	for i := range in {
		wet := in[i] * level
		out[i] = in[i]*dryG + wet*wetG
	}
}

func softclipFast(x float32) float32 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	const b = 0.3333333
	return x - b*x*x*x
}

// OverdriveNode is a single-pole tone-shaped soft-clip drive stage.
type OverdriveNode struct {
	id  string
	std standardParams

	drive, tone, outDb float32
	pre, postLin       float32
	a, toneInv         float32
	z1                 float32
}

func NewOverdriveNode(id string, std standardParams, drive, tone, outDb float32) *OverdriveNode {
	n := &OverdriveNode{
		id:    id,
		std:   std,
		drive: clampf32(drive, 0, 1),
		tone:  clampf32(tone, 0, 1),
		outDb: outDb,
	}
	n.pre = 1 + n.drive*20
	n.a = 0.02 + (1-n.tone)*0.2
	n.toneInv = 1 - n.tone
	n.postLin = dbToLin(n.outDb) * std.levelLin
	return n
}

func (n *OverdriveNode) ID() string   { return n.id }
func (n *OverdriveNode) Type() string { return string(TypeOverdrive) }

func (n *OverdriveNode) Process(in, out []float32) {
	if !n.std.enabled {
		copy(out, in)
		return
	}
	wetG, dryG := n.std.mixWet, n.std.mixDry
	z := n.z1
	for i := range in {
		x := in[i] * n.pre
		y := softclipFast(x)
		z = z + n.a*(y-z)
		wet := (z*n.toneInv + y*n.tone) * n.postLin
		out[i] = in[i]*dryG + wet*wetG
	}
	n.z1 = z
}

// NamModelNode drives a neural amp model collaborator, bounded by
// maxFrames scratch buffers so Process never allocates and never calls
// into the model with more frames than it was prewarmed for.
type NamModelNode struct {
	id  string
	std standardParams

	model     AmpModel
	maxFrames int
	in, out   []float32

	preLin, postLin, lim float32
	softclip, softclipTanh bool
}

const refInputLevelDbu = 12.2

// NewNamModelNode builds a NamModelNode. model may be nil, in which case
// Process always behaves as a passthrough (used for boot-safety bypass).
func NewNamModelNode(id string, std standardParams, model AmpModel, maxFrames int,
	preGainDb, postGainDb, inLimit float32, softclip, softclipTanh, useInputLevel bool,
) *NamModelNode {
	n := &NamModelNode{
		id:             id,
		std:            std,
		model:          model,
		maxFrames:      maxFrames,
		in:             make([]float32, maxFrames),
		out:            make([]float32, maxFrames),
		softclip:       softclip,
		softclipTanh:   softclipTanh,
	}

	levelScale := float32(1)
	if model != nil && useInputLevel && model.HasInputLevel() {
		modelDbu := float32(model.InputLevelDbu())
		levelScale = dbToLin(refInputLevelDbu - modelDbu)
	}

	n.preLin = dbToLin(preGainDb) * levelScale
	n.postLin = dbToLin(postGainDb) * std.levelLin
	n.lim = clampf32(inLimit, 0.05, 1.0)
	return n
}

func (n *NamModelNode) ID() string   { return n.id }
func (n *NamModelNode) Type() string { return string(TypeNamModel) }

func (n *NamModelNode) Process(in, out []float32) {
	frames := len(in)
	if frames > n.maxFrames {
		frames = n.maxFrames
	}
	if !n.std.enabled || n.model == nil {
		copy(out, in)
		return
	}

	pre, lim := n.preLin, n.lim
	for i := 0; i < frames; i++ {
		x := in[i] * pre
		if x > lim {
			x = lim
		} else if x < -lim {
			x = -lim
		}
		if !n.softclip {
			n.in[i] = x
		} else if n.softclipTanh {
			n.in[i] = float32(math.Tanh(float64(x)))
		} else {
			n.in[i] = softclipFast(x)
		}
	}

	n.model.Process(n.in[:frames], n.out[:frames])

	wetG, dryG, post := n.std.mixWet, n.std.mixDry, n.postLin
	for i := 0; i < frames; i++ {
		wet := n.out[i] * post
		out[i] = in[i]*dryG + wet*wetG
	}
	for i := frames; i < len(in); i++ {
		out[i] = in[i]
	}
}

// IRConvolverNode drives a dsp.PartitionedConvolver, bounded by maxFrames
// scratch output so Process never allocates.
type IRConvolverNode struct {
	id  string
	std standardParams

	conv      *dsp.PartitionedConvolver
	maxFrames int
	out       []float32
}

// NewIRConvolverNode builds an IRConvolverNode. conv may be nil, in which
// case Process always behaves as a passthrough.
func NewIRConvolverNode(id string, std standardParams, conv *dsp.PartitionedConvolver, maxFrames int) *IRConvolverNode {
	return &IRConvolverNode{id: id, std: std, conv: conv, maxFrames: maxFrames, out: make([]float32, maxFrames)}
}

func (n *IRConvolverNode) ID() string   { return n.id }
func (n *IRConvolverNode) Type() string { return string(TypeIRConvolver) }

func (n *IRConvolverNode) Process(in, out []float32) {
	if !n.std.enabled || n.conv == nil || !n.conv.Ready() {
		copy(out, in)
		return
	}

	frames := len(in)
	if frames > n.maxFrames {
		frames = n.maxFrames
	}

	ok := n.conv.Process(in[:frames], n.out[:frames])
	if !ok {
		copy(n.out[:frames], in[:frames])
	}

	level, wetG, dryG := n.std.levelLin, n.std.mixWet, n.std.mixDry
	for i := 0; i < frames; i++ {
		wet := n.out[i] * level
		out[i] = in[i]*dryG + wet*wetG
	}
	for i := frames; i < len(in); i++ {
		out[i] = in[i]
	}
}
