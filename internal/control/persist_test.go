package control

import (
	"path/filepath"
	"testing"

	"pedalcore/internal/chain"
)

func TestPersistAndLoadChainRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "chain.json")

	spec := chain.ChainSpec{
		Version:    1,
		SampleRate: 48000,
		Chain: []chain.NodeSpec{
			{ID: "in", Type: "input", Enabled: true},
			{ID: "amp1", Type: "nam_model", Enabled: true, Asset: &chain.AssetRef{Path: "a.nam"}},
			{ID: "cab1", Type: "ir_convolver", Enabled: true, Asset: &chain.AssetRef{Path: "b.wav"}},
			{ID: "out", Type: "output", Enabled: true},
		},
	}

	if err := PersistChainToDisk(path, spec); err != nil {
		t.Fatalf("PersistChainToDisk: %v", err)
	}

	loaded, err := LoadChainFromDisk(path)
	if err != nil {
		t.Fatalf("LoadChainFromDisk: %v", err)
	}
	if len(loaded.Chain) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(loaded.Chain))
	}
	if loaded.Chain[1].Asset == nil || loaded.Chain[1].Asset.Path != "a.nam" {
		t.Fatalf("asset not round-tripped: %+v", loaded.Chain[1])
	}

	if _, err := LoadChainFromDisk(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPersistChainToDiskOverwritesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "chain.json")

	spec1 := chain.ChainSpec{Version: 1, Chain: []chain.NodeSpec{
		{ID: "in", Type: "input", Enabled: true},
		{ID: "out", Type: "output", Enabled: true},
	}}
	spec2 := spec1
	spec2.SampleRate = 96000

	if err := PersistChainToDisk(path, spec1); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := PersistChainToDisk(path, spec2); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	loaded, err := LoadChainFromDisk(path)
	if err != nil {
		t.Fatalf("LoadChainFromDisk: %v", err)
	}
	if loaded.SampleRate != 96000 {
		t.Fatalf("expected overwritten sampleRate 96000, got %d", loaded.SampleRate)
	}
}
