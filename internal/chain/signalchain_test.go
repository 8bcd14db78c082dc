package chain

import "testing"

type scaleNode struct {
	id, typ string
	gain    float32
}

func (n *scaleNode) ID() string   { return n.id }
func (n *scaleNode) Type() string { return n.typ }
func (n *scaleNode) Process(in, out []float32) {
	for i := range in {
		out[i] = in[i] * n.gain
	}
}

func fourNodeSpec() ChainSpec {
	return ChainSpec{
		Version:    1,
		SampleRate: 48000,
		Chain: []NodeSpec{
			{ID: "in", Type: string(TypeInput), Enabled: true},
			{ID: "amp1", Type: string(TypeNamModel), Enabled: false},
			{ID: "cab1", Type: string(TypeIRConvolver), Enabled: false},
			{ID: "out", Type: string(TypeOutput), Enabled: true},
		},
	}
}

func TestBuildAndProcessAllPassthrough(t *testing.T) {
	t.Parallel()

	spec := fourNodeSpec()
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}

	sc, err := Build(spec, ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sc.NodeCount() != 4 {
		t.Fatalf("expected 4 nodes, got %d", sc.NodeCount())
	}
	if len(sc.Warnings) != 2 {
		t.Fatalf("expected 2 bypass warnings (disabled nodes, no asset), got %d: %+v", len(sc.Warnings), sc.Warnings)
	}

	in := make([]float32, 64)
	for i := range in {
		in[i] = float32(i) / 64
	}
	out := make([]float32, 64)
	sc.Process(in, out)

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected pure passthrough chain to be transparent at %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestBuildRejectsUnknownNodeType(t *testing.T) {
	t.Parallel()

	spec := fourNodeSpec()
	spec.Chain[1].Type = "bogus"
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}

	if _, err := Build(spec, ctx); err == nil {
		t.Fatal("expected Build to fail on unknown node type")
	}
}

func TestProcessAllowsInPlaceAliasing(t *testing.T) {
	t.Parallel()

	spec := fourNodeSpec()
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}
	sc, err := Build(spec, ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	buf := make([]float32, 64)
	for i := range buf {
		buf[i] = float32(i) / 64
	}
	want := make([]float32, 64)
	copy(want, buf)

	sc.Process(buf, buf)

	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("in-place Process mismatch at %d: got %v want %v", i, buf[i], want[i])
		}
	}
}

func TestProcessClampsOversizedBlockAndPassesThroughTail(t *testing.T) {
	t.Parallel()

	sc := &SignalChain{
		nodes:    []Node{&scaleNode{id: "g", typ: "gain", gain: 2}},
		scratchA: make([]float32, 4),
		scratchB: make([]float32, 4),
	}

	in := []float32{1, 1, 1, 1, 1, 1}
	out := make([]float32, len(in))
	sc.Process(in, out)

	for i := 0; i < 4; i++ {
		if out[i] != 2 {
			t.Fatalf("expected processed head to be scaled at %d: got %v want 2", i, out[i])
		}
	}
	for i := 4; i < len(in); i++ {
		if out[i] != in[i] {
			t.Fatalf("expected overflow tail to pass through unscaled at %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestSignalChainTimingDisabledWithoutEnvVar(t *testing.T) {
	spec := fourNodeSpec()
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}
	sc, err := Build(spec, ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	in := make([]float32, 64)
	out := make([]float32, 64)
	sc.Process(in, out)

	dst := make([]NodeTimingStat, 4)
	if n := sc.SnapshotNodeTiming(dst, false); n != 0 {
		t.Fatalf("expected timing to stay off without %s set, got %d buckets", nodeTimingEnvVar, n)
	}
}

func TestSignalChainRecordsPerNodeTypeTiming(t *testing.T) {
	t.Setenv(nodeTimingEnvVar, "1")

	spec := fourNodeSpec()
	ctx := BuildContext{SampleRate: 48000, MaxBlockFrames: 64}
	sc, err := Build(spec, ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	in := make([]float32, 64)
	out := make([]float32, 64)
	sc.Process(in, out)
	sc.Process(in, out)

	dst := make([]NodeTimingStat, 4)
	n := sc.SnapshotNodeTiming(dst, true)
	if n != 4 {
		t.Fatalf("expected 4 distinct node-type buckets (one per node type in fourNodeSpec), got %d", n)
	}
	for _, stat := range dst[:n] {
		if stat.Calls != 2 {
			t.Fatalf("expected 2 calls recorded for type %s, got %d", stat.Type, stat.Calls)
		}
	}

	n2 := sc.SnapshotNodeTiming(dst, false)
	if n2 != 4 {
		t.Fatalf("expected snapshot to still report 4 buckets after reset, got %d", n2)
	}
	for _, stat := range dst[:n2] {
		if stat.Calls != 0 {
			t.Fatalf("expected calls reset to 0 for type %s, got %d", stat.Type, stat.Calls)
		}
	}
}
