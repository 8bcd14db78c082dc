// Package ircache wraps internal/irloader with an mtime-checked cache and
// adds a second asset source: named entries inside a .irlib library built
// by cmd/cabinet-pack. A chain.NodeSpec's asset.path can point at either a
// plain WAV/AIFF file or, with a "#" fragment, a specific IR inside a
// library file (e.g. "cabs/guitar.irlib#4x12 V30").
package ircache

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"pedalcore/internal/irloader"
	"pedalcore/pkg/irformat"
)

// Cache implements chain.IRLoader. It is safe for concurrent use; the
// control server and engine builder may both resolve assets while the
// realtime thread is untouched by either.
type Cache struct {
	mu      sync.Mutex
	files   *irloader.FileLoader
	entries map[string]cacheEntry
}

type cacheEntry struct {
	modTime    time.Time
	samples    []float32
	sampleRate uint32
}

// NewCache returns an empty Cache backed by irloader.FileLoader for plain
// WAV/AIFF assets.
func NewCache() *Cache {
	return &Cache{files: irloader.NewFileLoader(), entries: make(map[string]cacheEntry)}
}

// Load resolves path, using a cached decode if the backing file's mtime
// has not changed since the last load.
func (c *Cache) Load(path string) ([]float32, uint32, error) {
	libPath, irName, isLibRef := splitLibraryRef(path)
	if isLibRef {
		return c.loadFromLibrary(libPath, irName)
	}
	return c.loadFile(path)
}

func (c *Cache) loadFile(path string) ([]float32, uint32, error) {
	modTime, err := statModTime(path)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.modTime.Equal(modTime) {
		samples, rate := e.samples, e.sampleRate
		c.mu.Unlock()
		return samples, rate, nil
	}
	c.mu.Unlock()

	samples, rate, err := c.files.Load(path)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{modTime: modTime, samples: samples, sampleRate: rate}
	c.mu.Unlock()
	return samples, rate, nil
}

func (c *Cache) loadFromLibrary(libPath, irName string) ([]float32, uint32, error) {
	key := libPath + "#" + irName

	modTime, err := statModTime(libPath)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.modTime.Equal(modTime) {
		samples, rate := e.samples, e.sampleRate
		c.mu.Unlock()
		return samples, rate, nil
	}
	c.mu.Unlock()

	f, err := os.Open(libPath)
	if err != nil {
		return nil, 0, fmt.Errorf("ircache: open %s: %w", libPath, err)
	}
	defer f.Close()

	reader, err := irformat.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("ircache: read library %s: %w", libPath, err)
	}

	ir, err := reader.LoadIRByName(irName)
	if err != nil {
		return nil, 0, fmt.Errorf("ircache: load %q from %s: %w", irName, libPath, err)
	}

	samples := mixToMono(ir.Audio.Data)
	rate := uint32(ir.Metadata.SampleRate)

	c.mu.Lock()
	c.entries[key] = cacheEntry{modTime: modTime, samples: samples, sampleRate: rate}
	c.mu.Unlock()
	return samples, rate, nil
}

func statModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("ircache: stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

// splitLibraryRef splits "lib.irlib#Name" into its library path and IR
// name. A path with no fragment, or whose prefix is not a .irlib file,
// is treated as a plain asset path.
func splitLibraryRef(path string) (libPath, irName string, ok bool) {
	idx := strings.LastIndex(path, "#")
	if idx < 0 {
		return "", "", false
	}
	libPath, irName = path[:idx], path[idx+1:]
	if !strings.HasSuffix(strings.ToLower(libPath), ".irlib") || irName == "" {
		return "", "", false
	}
	return libPath, irName, true
}

// mixToMono averages all channels of a [channel][sample] buffer into one
// mono slice, matching internal/irloader's convention for plain files.
func mixToMono(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	n := len(channels[0])
	out := make([]float32, n)
	for _, ch := range channels {
		for i := 0; i < n && i < len(ch); i++ {
			out[i] += ch[i]
		}
	}
	scale := float32(1) / float32(len(channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}
