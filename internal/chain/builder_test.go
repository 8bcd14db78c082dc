package chain

import (
	"errors"
	"testing"
)

type fakeRealtimeParams struct {
	trimDb float32
	cell   fakeAtomicFloat32
}

func (p *fakeRealtimeParams) StoreInputTrimDb(db float32)        { p.trimDb = db }
func (p *fakeRealtimeParams) InputTrimLinCell() AtomicFloat32    { return &p.cell }

type fakeAmpModelLoader struct {
	model AmpModel
	err   error
}

func (l *fakeAmpModelLoader) Load(path string, sampleRate uint32, maxBlockFrames int) (AmpModel, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

type fakeIRLoader struct {
	samples    []float32
	sampleRate uint32
	err        error
}

func (l *fakeIRLoader) Load(path string) ([]float32, uint32, error) {
	if l.err != nil {
		return nil, 0, l.err
	}
	return l.samples, l.sampleRate, nil
}

func TestBuildNodeInputSeedsRealtimeCell(t *testing.T) {
	t.Parallel()

	params := &fakeRealtimeParams{}
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64, Params: params}
	spec := NodeSpec{ID: "in", Type: string(TypeInput), Enabled: true, Params: map[string]any{"inputTrimDb": float64(6)}}

	res, err := BuildNode(spec, ctx)
	if err != nil {
		t.Fatalf("BuildNode: %v", err)
	}
	if _, ok := res.Node.(*InputNode); !ok {
		t.Fatalf("expected *InputNode, got %T", res.Node)
	}
	if params.trimDb != 6 {
		t.Fatalf("trim not seeded into realtime cell: got %v", params.trimDb)
	}
}

func TestBuildNodeNamModelBypassesWhenAssetMissing(t *testing.T) {
	t.Parallel()

	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}
	spec := NodeSpec{ID: "amp1", Type: string(TypeNamModel), Enabled: true}

	res, err := BuildNode(spec, ctx)
	if err != nil {
		t.Fatalf("BuildNode: %v", err)
	}
	if res.Warning == nil {
		t.Fatal("expected bypass warning")
	}
	if _, ok := res.Node.(*PassthroughNode); !ok {
		t.Fatalf("expected *PassthroughNode, got %T", res.Node)
	}
}

func TestBuildNodeNamModelLoadFailureIsFatal(t *testing.T) {
	t.Parallel()

	ctx := BuildContext{
		SampleRate: 48000, MaxBlockFrames: 64,
		AmpModels: &fakeAmpModelLoader{err: errors.New("bad model file")},
	}
	spec := NodeSpec{ID: "amp1", Type: string(TypeNamModel), Enabled: true, Asset: &AssetRef{Path: "x.nam"}}

	_, err := BuildNode(spec, ctx)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %v (%T)", err, err)
	}
}

func TestBuildNodeNamModelWarnsOnSampleRateMismatch(t *testing.T) {
	t.Parallel()

	ctx := BuildContext{
		SampleRate: 48000, MaxBlockFrames: 64,
		AmpModels: &fakeAmpModelLoader{model: &fakeAmpModel{sampleRate: 44100, gain: 1}},
	}
	spec := NodeSpec{ID: "amp1", Type: string(TypeNamModel), Enabled: true, Asset: &AssetRef{Path: "x.nam"}}

	res, err := BuildNode(spec, ctx)
	if err != nil {
		t.Fatalf("BuildNode: %v", err)
	}
	if res.Warning == nil {
		t.Fatal("expected sample-rate mismatch warning")
	}
}

func TestBuildNodeIRConvolverRejectsSampleRateMismatch(t *testing.T) {
	t.Parallel()

	ctx := BuildContext{
		SampleRate: 48000, MaxBlockFrames: 64,
		IRs: &fakeIRLoader{samples: []float32{1, 0.5, 0.25}, sampleRate: 44100},
	}
	spec := NodeSpec{ID: "cab1", Type: string(TypeIRConvolver), Enabled: true, Asset: &AssetRef{Path: "x.wav"}}

	_, err := BuildNode(spec, ctx)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %v", err)
	}
}

func TestBuildNodeIRConvolverTrimsOversizedIR(t *testing.T) {
	t.Parallel()

	ir := make([]float32, 1000)
	ir[0] = 1
	ctx := BuildContext{
		SampleRate: 48000, MaxBlockFrames: 64,
		IRs: &fakeIRLoader{samples: ir, sampleRate: 48000},
	}
	spec := NodeSpec{
		ID: "cab1", Type: string(TypeIRConvolver), Enabled: true,
		Asset:  &AssetRef{Path: "x.wav"},
		Params: map[string]any{"maxSamples": float64(256)},
	}

	res, err := BuildNode(spec, ctx)
	if err != nil {
		t.Fatalf("BuildNode: %v", err)
	}
	if res.Warning == nil {
		t.Fatal("expected truncation warning")
	}
	conv, ok := res.Node.(*IRConvolverNode)
	if !ok {
		t.Fatalf("expected *IRConvolverNode, got %T", res.Node)
	}
	if conv.conv.Partitions()*conv.conv.BlockSize() < 256 {
		t.Fatalf("convolver built from fewer partitions than the trimmed length implies")
	}
}

func TestBuildNodeUnknownTypeIsFatal(t *testing.T) {
	t.Parallel()

	_, err := BuildNode(NodeSpec{ID: "x", Type: "wah"}, BuildContext{MaxBlockFrames: 64})
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %v", err)
	}
}
