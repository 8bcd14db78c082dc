package control

import "testing"

func TestClientGetChainAndStats(t *testing.T) {
	t.Parallel()

	_, sockPath, cancel := startTestServer(t, &fakeInstaller{})
	defer cancel()

	client := NewClient(sockPath)

	chain, err := client.GetChain()
	if err != nil {
		t.Fatalf("GetChain: %v", err)
	}
	if chain["version"] != float64(1) {
		t.Fatalf("expected version 1, got %+v", chain)
	}

	if _, err := client.GetStats(); err == nil {
		t.Fatal("expected error from get_stats with no provider configured")
	}
}

func TestClientSetChainRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, sockPath, cancel := startTestServer(t, &fakeInstaller{})
	defer cancel()

	client := NewClient(sockPath)
	_, err := client.SetChain(map[string]any{
		"version": 1,
		"chain": []any{
			map[string]any{"id": "in", "type": "input", "enabled": true},
			map[string]any{"id": "out", "type": "output", "enabled": true},
		},
	})
	if err == nil {
		t.Fatal("expected error for chain missing amp/cab nodes")
	}
}
