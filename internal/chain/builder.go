package chain

import (
	"fmt"
	"math"

	"pedalcore/dsp"
)

// BuildError reports a fatal failure to build a node (missing asset that
// cannot be bypassed, asset load failure, sample-rate mismatch, or an
// unknown node type). Unlike ValidationError, a BuildError can depend on
// filesystem/asset state and is only raised while compiling a ChainSpec
// into a SignalChain.
type BuildError struct {
	NodeID string
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build node %q: %s", e.NodeID, e.Reason)
}

// BuildWarning is a non-fatal anomaly surfaced while building a chain: a
// missing optional asset that was bypassed, a sample-rate mismatch the
// engine tolerates, or truncation applied to an oversized IR.
type BuildWarning struct {
	NodeID  string
	Message string
}

// AmpModelLoader loads a neural amp model asset into an AmpModel bound to
// the given sample rate and maximum block size. Implementations live in
// internal/ampmodel.
type AmpModelLoader interface {
	Load(path string, sampleRate uint32, maxBlockFrames int) (AmpModel, error)
}

// IRLoader loads a mono impulse response asset at a known sample rate.
// Implementations live in internal/irloader.
type IRLoader interface {
	// Load returns the IR samples and their native sample rate.
	Load(path string) (samples []float32, sampleRate uint32, err error)
}

// RealtimeParams exposes the engine's realtime-adjustable parameter cells
// to node builders. Only the input trim cell exists today; it is seeded
// from the spec at build time and updated live by the control path
// thereafter.
type RealtimeParams interface {
	StoreInputTrimDb(db float32)
	InputTrimLinCell() AtomicFloat32
}

// BuildContext carries everything the builder needs beyond a NodeSpec:
// engine-wide sizing, asset loader collaborators, and the realtime
// parameter cells a node may bind to.
type BuildContext struct {
	SampleRate     uint32
	MaxBlockFrames int

	AmpModels AmpModelLoader
	IRs       IRLoader
	Params    RealtimeParams
}

// BuildResult is one built Node plus any non-fatal warning raised while
// building it.
type BuildResult struct {
	Node    Node
	Warning *BuildWarning
}

// BuildNode compiles one NodeSpec into a realtime Node. It performs all
// asset I/O and FFT planning — this never runs on the audio thread. A
// returned error is always a *BuildError.
func BuildNode(spec NodeSpec, ctx BuildContext) (*BuildResult, error) {
	switch spec.Type {
	case string(TypeInput):
		return buildInputNode(spec, ctx)
	case string(TypeOutput):
		sp := parseStandardParams(spec)
		return &BuildResult{Node: NewOutputNode(spec.ID, sp)}, nil
	case string(TypeOverdrive):
		sp := parseStandardParams(spec)
		drive := numParamOr(spec.Params, "drive", 0.6)
		tone := numParamOr(spec.Params, "tone", 0.5)
		outDb := numParamOr(spec.Params, "levelDb", 0.0)
		return &BuildResult{Node: NewOverdriveNode(spec.ID, sp, drive, tone, outDb)}, nil
	case string(TypeNamModel):
		return buildNamModelNode(spec, ctx)
	case string(TypeIRConvolver):
		return buildIRConvolverNode(spec, ctx)
	default:
		return nil, &BuildError{NodeID: spec.ID, Reason: fmt.Sprintf("unknown node type: %s", spec.Type)}
	}
}

func numParamOr(params map[string]any, key string, def float32) float32 {
	if v, ok := numParam(params, key); ok {
		return float32(v)
	}
	return def
}

func bypassed(id, typ string, spec NodeSpec, reason string) *BuildResult {
	sp := parseStandardParams(spec)
	sp.enabled = false
	res := &BuildResult{Node: NewPassthroughNode(id, typ, sp)}
	if reason != "" {
		res.Warning = &BuildWarning{NodeID: id, Message: reason}
	}
	return res
}

func buildInputNode(spec NodeSpec, ctx BuildContext) (*BuildResult, error) {
	sp := parseStandardParams(spec)

	trimDb := numParamOr(spec.Params, "inputTrimDb", 0)
	trimDb = clampf32(trimDb, -24, 24)
	trimLin := dbToLin(trimDb)

	var cell AtomicFloat32
	if ctx.Params != nil {
		ctx.Params.StoreInputTrimDb(trimDb)
		cell = ctx.Params.InputTrimLinCell()
	}

	return &BuildResult{Node: NewInputNode(spec.ID, sp, cell, trimLin)}, nil
}

func buildNamModelNode(spec NodeSpec, ctx BuildContext) (*BuildResult, error) {
	if !spec.Enabled {
		return bypassed(spec.ID, string(TypeNamModel), spec, ""), nil
	}
	if spec.Asset == nil || spec.Asset.Path == "" {
		return bypassed(spec.ID, string(TypeNamModel), spec, "nam_model missing asset.path (bypassing)"), nil
	}
	if ctx.AmpModels == nil {
		return nil, &BuildError{NodeID: spec.ID, Reason: "no amp model loader configured"}
	}

	model, err := ctx.AmpModels.Load(spec.Asset.Path, ctx.SampleRate, ctx.MaxBlockFrames)
	if err != nil {
		return nil, &BuildError{NodeID: spec.ID, Reason: fmt.Sprintf("failed to load NAM model: %v", err)}
	}

	var warning *BuildWarning
	if expSR := model.SampleRate(); expSR > 0 && int64(math.Round(expSR)) != int64(ctx.SampleRate) {
		warning = &BuildWarning{
			NodeID: spec.ID,
			Message: fmt.Sprintf("NAM expected sampleRate=%d but engine is %d",
				int64(math.Round(expSR)), ctx.SampleRate),
		}
	}

	sp := parseStandardParams(spec)
	preGainDb := numParamOr(spec.Params, "preGainDb", -12.0)
	postGainDb := numParamOr(spec.Params, "postGainDb", 0.0)
	inLimit := numParamOr(spec.Params, "inLimit", 0.90)

	softclip, _ := boolParamOr(spec.Params, "softclip", true)
	softclipTanh, _ := boolParamOr(spec.Params, "softclipTanh", false)
	useInputLevel, _ := boolParamOr(spec.Params, "useInputLevel", true)

	node := NewNamModelNode(spec.ID, sp, model, ctx.MaxBlockFrames,
		preGainDb, postGainDb, inLimit, softclip, softclipTanh, useInputLevel)

	return &BuildResult{Node: node, Warning: warning}, nil
}

func boolParamOr(params map[string]any, key string, def bool) (bool, bool) {
	if v, ok := boolParam(params, key); ok {
		return v, true
	}
	return def, false
}

const (
	defaultIRGainDb   = 0.0
	defaultIRTargetDb = -6.0
	irTaperSamples    = 128
)

func buildIRConvolverNode(spec NodeSpec, ctx BuildContext) (*BuildResult, error) {
	if !spec.Enabled {
		return bypassed(spec.ID, string(TypeIRConvolver), spec, ""), nil
	}
	if spec.Asset == nil || spec.Asset.Path == "" {
		return bypassed(spec.ID, string(TypeIRConvolver), spec, "ir_convolver missing asset.path (bypassing)"), nil
	}
	if ctx.IRs == nil {
		return nil, &BuildError{NodeID: spec.ID, Reason: "no IR loader configured"}
	}

	samples, sr, err := ctx.IRs.Load(spec.Asset.Path)
	if err != nil {
		return nil, &BuildError{NodeID: spec.ID, Reason: fmt.Sprintf("failed to load IR: %v", err)}
	}
	if sr != ctx.SampleRate {
		return nil, &BuildError{NodeID: spec.ID, Reason: fmt.Sprintf(
			"IR sample-rate mismatch (IR=%d engine=%d)", sr, ctx.SampleRate)}
	}

	ir := make([]float32, len(samples))
	copy(ir, samples)

	gainDb := numParamOr(spec.Params, "gainDb", defaultIRGainDb)
	gainLin := dbToLin(clampf32(gainDb, -24, 24))
	if gainLin != 1 {
		for i := range ir {
			ir[i] *= gainLin
		}
	}

	if _, useTarget := numParam(spec.Params, "targetDb"); useTarget {
		targetDb := numParamOr(spec.Params, "targetDb", defaultIRTargetDb)
		var peak float32
		for _, v := range ir {
			if a := abs32(v); a > peak {
				peak = a
			}
		}
		target := dbToLin(clampf32(targetDb, -24, 0))
		if peak > 0 {
			normG := target / peak
			for i := range ir {
				ir[i] *= normG
			}
		}
	}

	var warning *BuildWarning
	maxSamples := 0
	if v, ok := numParam(spec.Params, "maxSamples"); ok && v > 0 {
		maxSamples = int(math.Round(v))
	}
	if maxSamples == 0 {
		if v, ok := numParam(spec.Params, "maxMs"); ok && v > 0 {
			maxSamples = int(math.Round(v / 1000.0 * float64(ctx.SampleRate)))
		}
	}
	if maxSamples > 0 && len(ir) > maxSamples {
		taper := irTaperSamples
		if maxSamples < taper {
			taper = maxSamples
		}
		if taper > 1 {
			start := maxSamples - taper
			for i := 0; i < taper; i++ {
				t := float64(i) / float64(taper-1)
				g := float32(0.5 * (1 + math.Cos(math.Pi*t)))
				ir[start+i] *= g
			}
		}
		oldLen := len(ir)
		ir = ir[:maxSamples]
		warning = &BuildWarning{NodeID: spec.ID, Message: fmt.Sprintf(
			"IR trimmed from %d to %d samples", oldLen, maxSamples)}
	}

	conv, err := dsp.NewPartitionedConvolver(ir, ctx.MaxBlockFrames)
	if err != nil {
		return nil, &BuildError{NodeID: spec.ID, Reason: fmt.Sprintf("IR convolver init failed: %v", err)}
	}

	sp := parseStandardParams(spec)
	return &BuildResult{
		Node:    NewIRConvolverNode(spec.ID, sp, conv, ctx.MaxBlockFrames),
		Warning: warning,
	}, nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
