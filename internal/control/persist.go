// Package control implements the line-delimited JSON control protocol a
// client uses to discover node types, read back the active chain, and
// push a new one. It also owns durable persistence of the active chain
// to disk so the engine can reload its last-known-good configuration on
// restart.
package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pedalcore/internal/chain"
)

// PersistChainToDisk writes spec's canonical JSON form to path, replacing
// any existing file atomically: it writes to "<path>.tmp" first, then
// renames over the target so a crash or concurrent reader never observes
// a partially-written file.
func PersistChainToDisk(path string, spec chain.ChainSpec) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("control: create config dir: %w", err)
	}

	j := chain.ChainSpecToJSON(spec)
	body, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("control: marshal chain: %w", err)
	}
	body = append(body, '\n')

	tmp := filepath.Join(dir, filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("control: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("control: rename into place: %w", err)
	}
	return nil
}

// LoadChainFromDisk reads back a previously-persisted ChainSpec. It
// returns an error wrapping os.ErrNotExist if path doesn't exist, so
// callers can fall back to a built-in default chain.
func LoadChainFromDisk(path string) (*chain.ChainSpec, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("control: read chain config: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("control: parse chain config: %w", err)
	}

	spec, err := chain.ParseChainJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	return spec, nil
}
