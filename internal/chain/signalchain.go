package chain

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// NodeTimingStat reports accumulated per-node-type processing time. It is
// populated by SnapshotNodeTiming, called off the audio thread by a
// diagnostics goroutine; the counters it reads are only ever incremented
// by Process, never read there.
type NodeTimingStat struct {
	Type  string
	Calls uint64
	SumNs uint64
	MaxNs uint64
}

// timingBucket accumulates calls/sum/max for one node type using plain
// atomics so Process never takes a lock. maxNs uses a compare-and-swap
// loop since there's no atomic.Uint64 max.
type timingBucket struct {
	calls atomic.Uint64
	sumNs atomic.Uint64
	maxNs atomic.Uint64
}

func (b *timingBucket) record(d time.Duration) {
	ns := uint64(d)
	b.calls.Add(1)
	b.sumNs.Add(ns)
	for {
		cur := b.maxNs.Load()
		if ns <= cur {
			return
		}
		if b.maxNs.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// nodeTimingEnvVar gates per-node timing the same way the original
// engine's ALSA_NODE_TIMING did: unset or "0" leaves Process on its
// cheapest path, with no time.Now() calls at all.
const nodeTimingEnvVar = "PEDALENGINE_NODE_TIMING"

// SignalChain is an immutable, fully-built realtime processing graph: an
// ordered list of Nodes plus the ping-pong scratch buffers Process uses to
// thread audio between them without allocating. A SignalChain is built
// once off the audio thread (see Build) and is never mutated after
// construction — live updates replace the whole chain, they don't patch
// one in place.
type SignalChain struct {
	nodes    []Node
	scratchA []float32
	scratchB []float32

	timingEnabled bool
	timingTypes   []string
	nodeToBucket  []int
	buckets       []*timingBucket

	Warnings []BuildWarning
}

// Build compiles a validated ChainSpec into a SignalChain. The caller
// must have already run ValidateChainSpec; Build itself re-checks nothing
// beyond what BuildNode needs to construct each node.
func Build(spec ChainSpec, ctx BuildContext) (*SignalChain, error) {
	sc := &SignalChain{
		nodes:    make([]Node, 0, len(spec.Chain)),
		scratchA: make([]float32, ctx.MaxBlockFrames),
		scratchB: make([]float32, ctx.MaxBlockFrames),
	}

	for _, nodeSpec := range spec.Chain {
		res, err := BuildNode(nodeSpec, ctx)
		if err != nil {
			return nil, fmt.Errorf("chain: %w", err)
		}
		sc.nodes = append(sc.nodes, res.Node)
		if res.Warning != nil {
			sc.Warnings = append(sc.Warnings, *res.Warning)
		}
	}

	if e := os.Getenv(nodeTimingEnvVar); e != "" && e != "0" {
		sc.enableTiming()
	}

	return sc, nil
}

// enableTiming precomputes the node->bucket mapping so Process only ever
// does an array lookup on the audio thread, never a map one.
func (sc *SignalChain) enableTiming() {
	typeToBucket := make(map[string]int, len(sc.nodes))
	sc.nodeToBucket = make([]int, len(sc.nodes))

	for i, node := range sc.nodes {
		t := node.Type()
		idx, ok := typeToBucket[t]
		if !ok {
			idx = len(sc.timingTypes)
			sc.timingTypes = append(sc.timingTypes, t)
			sc.buckets = append(sc.buckets, &timingBucket{})
			typeToBucket[t] = idx
		}
		sc.nodeToBucket[i] = idx
	}
	sc.timingEnabled = true
}

// SnapshotNodeTiming copies up to len(dst) per-node-type timing buckets
// into dst and returns how many it wrote, zero if timing was never
// enabled for this chain. With reset set, each bucket's counters are
// zeroed after being copied out, so the next snapshot reports only what
// happened since this call.
func (sc *SignalChain) SnapshotNodeTiming(dst []NodeTimingStat, reset bool) int {
	if !sc.timingEnabled || len(dst) == 0 {
		return 0
	}
	n := len(dst)
	if n > len(sc.buckets) {
		n = len(sc.buckets)
	}
	for i := 0; i < n; i++ {
		b := sc.buckets[i]
		dst[i] = NodeTimingStat{
			Type:  sc.timingTypes[i],
			Calls: b.calls.Load(),
			SumNs: b.sumNs.Load(),
			MaxNs: b.maxNs.Load(),
		}
		if reset {
			b.calls.Store(0)
			b.sumNs.Store(0)
			b.maxNs.Store(0)
		}
	}
	return n
}

// NodeCount returns the number of nodes in the chain.
func (sc *SignalChain) NodeCount() int { return len(sc.nodes) }

// Process runs one block of audio through every node in order. in and out
// may alias; internal ping-pong buffers ensure no node ever reads and
// writes its own input slice. Process performs no allocation and is safe
// to call from the audio thread.
//
// If len(in) exceeds the construction-time MaxBlockFrames bound, only the
// leading MaxBlockFrames are run through the chain; the overflow tail is
// passed through unchanged. Process never faults on an oversized block.
func (sc *SignalChain) Process(in, out []float32) {
	full := len(in)
	if len(sc.nodes) == 0 {
		copy(out, in)
		return
	}

	n := full
	if n > cap(sc.scratchA) {
		n = cap(sc.scratchA)
	}

	src := sc.scratchA[:n]
	dst := sc.scratchB[:n]
	copy(src, in[:n])

	if !sc.timingEnabled {
		for _, node := range sc.nodes {
			node.Process(src, dst)
			src, dst = dst, src
		}
	} else {
		for i, node := range sc.nodes {
			t0 := time.Now()
			node.Process(src, dst)
			sc.buckets[sc.nodeToBucket[i]].record(time.Since(t0))
			src, dst = dst, src
		}
	}

	copy(out[:n], src)
	if n < full {
		copy(out[n:full], in[n:full])
	}
}
