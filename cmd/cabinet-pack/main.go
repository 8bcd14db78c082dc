// Command cabinet-pack converts a directory of cabinet/room impulse
// response files (WAV or AIFF) into a single .irlib library that
// pedalengine's ir_convolver node can address by name through
// internal/ircache (asset.path of the form "library.irlib#IR Name").
//
// Usage:
//
//	cabinet-pack [options] <input-directory> <output-file>
//
// Options:
//
//	-recursive     Scan input directory recursively
//	-category      Set category for all IRs (default: infer from directory)
//	-normalize     Normalize peak amplitude to -1.0dB
//	-verbose       Show progress and details
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"pedalcore/internal/irloader"
	"pedalcore/pkg/irformat"
	"pedalcore/pkg/resampler"
)

var (
	recursive  = flag.Bool("recursive", false, "Scan input directory recursively")
	category   = flag.String("category", "", "Set category for all IRs (default: infer from directory)")
	normalize  = flag.Bool("normalize", false, "Normalize peak amplitude to -1.0dB")
	targetRate = flag.Uint("target-rate", 0, "resample every IR to this rate (0 keeps each file's native rate)")
	verbose    = flag.Bool("verbose", false, "Show progress and details")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input-directory> <output-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Packs cabinet/room impulse responses (WAV/AIFF) into an .irlib library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s ./cabs ./cabs.irlib\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -category 4x12 -normalize ./v30 ./v30.irlib\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inputDir, outputFile string) error {
	files, err := findIRFiles(inputDir, *recursive)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .wav or .aif files found in %s", inputDir)
	}
	if *verbose {
		fmt.Printf("Found %d IR files\n", len(files))
	}

	loader := irloader.NewFileLoader()
	lib := irformat.NewIRLibrary()

	for i, filePath := range files {
		if *verbose {
			fmt.Printf("[%d/%d] Processing: %s\n", i+1, len(files), filepath.Base(filePath))
		}

		ir, err := convertFile(loader, filePath, inputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", filePath, err)
			continue
		}
		lib.AddIR(ir)
	}

	if len(lib.IRs) == 0 {
		return errors.New("no files were successfully converted")
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	if err := irformat.WriteLibrary(outFile, lib); err != nil {
		return fmt.Errorf("failed to write library: %w", err)
	}

	if info, err := outFile.Stat(); err == nil && *verbose {
		fmt.Printf("\nLibrary written: %s\n", outputFile)
		fmt.Printf("  IRs: %d\n", len(lib.IRs))
		fmt.Printf("  Size: %.2f MB\n", float64(info.Size())/(1024*1024))
	} else {
		fmt.Printf("Created %s with %d IRs\n", outputFile, len(lib.IRs))
	}

	return nil
}

func findIRFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != dir && !recursive {
			return fs.SkipDir
		}
		if !d.IsDir() {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".wav", ".wave", ".aif", ".aiff":
				files = append(files, path)
			}
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}
	return files, nil
}

func convertFile(loader *irloader.FileLoader, filePath, baseDir string) (*irformat.ImpulseResponse, error) {
	samples, sampleRate, err := loader.Load(filePath)
	if err != nil {
		return nil, err
	}

	if *targetRate != 0 && sampleRate != uint32(*targetRate) {
		resampled, err := resampler.NewForIRPacking().Resample(samples, float64(sampleRate), float64(*targetRate))
		if err != nil {
			return nil, fmt.Errorf("resample from %d to %d: %w", sampleRate, *targetRate, err)
		}
		samples = resampled
		sampleRate = uint32(*targetRate)
	}

	if *normalize {
		samples = normalizeAudio(samples)
	}

	name := inferName(filePath)
	cat := inferCategory(filePath, baseDir)
	if *category != "" {
		cat = *category
	}
	tags := inferTags(name)

	ir := irformat.NewImpulseResponse(name, float64(sampleRate), 1, [][]float32{samples})
	ir.Metadata.Category = cat
	ir.Metadata.Tags = tags

	if *verbose {
		fmt.Printf("    %s: mono, %.0f Hz, %d samples (%.2fs)\n",
			name, float64(sampleRate), len(samples), ir.Duration())
	}

	return ir, nil
}

func inferName(filePath string) string {
	name := filepath.Base(filePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ReplaceAll(name, "_", " ")
}

func inferCategory(filePath, baseDir string) string {
	rel, err := filepath.Rel(baseDir, filePath)
	if err != nil {
		return "Default"
	}
	dir := filepath.Dir(rel)
	if dir == "." || dir == "" {
		return "Default"
	}
	parts := strings.Split(dir, string(filepath.Separator))
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "Default"
}

func inferTags(name string) []string {
	keywords := []string{
		"4x12", "2x12", "1x12", "v30", "greenback", "creamback",
		"open", "closed", "close", "room", "far", "bright", "dark", "warm",
	}

	nameLower := strings.ToLower(name)
	var tags []string
	for _, kw := range keywords {
		if strings.Contains(nameLower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}

// normalizeAudio normalizes mono audio to peak at -1.0dB.
func normalizeAudio(data []float32) []float32 {
	var peak float32
	for _, sample := range data {
		abs := sample
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return data
	}

	targetPeak := float32(math.Pow(10, -1.0/20.0))
	gain := targetPeak / peak

	result := make([]float32, len(data))
	for i, sample := range data {
		result[i] = sample * gain
	}
	return result
}
