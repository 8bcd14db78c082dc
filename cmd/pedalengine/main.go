// Command pedalengine runs the realtime guitar-effects signal chain:
// capture a period of audio, push it through the configured chain of
// nodes, write the result back out, and serve a control socket for
// live chain edits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pedalcore/internal/ampmodel"
	"pedalcore/internal/audiodev"
	"pedalcore/internal/chain"
	"pedalcore/internal/control"
	"pedalcore/internal/engine"
	"pedalcore/internal/ircache"
)

func main() {
	socketPath := flag.String("socket", "/tmp/pedalengine.sock", "control socket path")
	configPath := flag.String("config", "chain.json", "chain configuration file path")
	sampleRate := flag.Uint("sample-rate", 48000, "engine sample rate in Hz")
	blockFrames := flag.Int("block-frames", 128, "frames processed per period")
	rampMs := flag.Float64("ramp-ms", 5.0, "click-safe chain swap ramp duration in milliseconds")
	capturePath := flag.String("capture", "", "WAV/AIFF file to use as the capture source instead of loopback")
	loopCapture := flag.Bool("loop-capture", true, "loop the capture file instead of going silent at EOF")
	logFile := flag.String("log", "pedalengine.log", "log file path")
	flag.Parse()

	file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	logger := slog.New(slog.NewTextHandler(file, nil))
	slog.SetDefault(logger)
	logger.Info("starting pedalengine", "args", os.Args)

	pctx := engine.ProcessContext{
		SampleRate:     uint32(*sampleRate),
		MaxBlockFrames: *blockFrames,
		Params:         engine.NewRealtimeParams(),
	}

	spec, err := loadOrDefaultChain(*configPath, pctx.SampleRate)
	if err != nil {
		logger.Error("failed to load chain config", "error", err)
		os.Exit(1)
	}

	models := ampmodel.NewLoader()
	irs := ircache.NewCache()

	initial, err := engine.BuildInitialChain(spec, pctx, models, irs)
	if err != nil {
		logger.Error("failed to build initial chain", "error", err)
		os.Exit(1)
	}

	device, err := buildDevice(*capturePath, *loopCapture, pctx.SampleRate)
	if err != nil {
		logger.Error("failed to initialise audio device", "error", err)
		os.Exit(1)
	}

	rampSamples := int(*rampMs * float64(pctx.SampleRate) / 1000.0)
	eng := engine.New(pctx, device, initial, rampSamples, logger)

	buildCtx := chain.BuildContext{
		SampleRate:     pctx.SampleRate,
		MaxBlockFrames: pctx.MaxBlockFrames,
		AmpModels:      models,
		IRs:            irs,
		Params:         pctx.Params,
	}
	ctlSrv := control.NewServer(*socketPath, *configPath, buildCtx, eng, spec, logger)
	ctlSrv.Stats = eng

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- eng.Run(ctx) }()
	go func() { errCh <- ctlSrv.Serve(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("component exited with error", "error", err)
		}
		cancel()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	logger.Info("pedalengine exited")
}

// loadOrDefaultChain loads the persisted chain config, falling back to
// a minimal input->output passthrough chain if none exists yet.
func loadOrDefaultChain(path string, sampleRate uint32) (chain.ChainSpec, error) {
	if spec, err := control.LoadChainFromDisk(path); err == nil {
		spec.SampleRate = sampleRate
		return *spec, nil
	}

	spec := chain.ChainSpec{
		Version:    1,
		SampleRate: sampleRate,
		Chain: []chain.NodeSpec{
			{ID: "in", Type: string(chain.TypeInput), Enabled: true},
			{ID: "amp1", Type: string(chain.TypeNamModel), Enabled: false},
			{ID: "cab1", Type: string(chain.TypeIRConvolver), Enabled: false},
			{ID: "out", Type: string(chain.TypeOutput), Enabled: true},
		},
	}
	return *mustValidate(spec), nil
}

func mustValidate(spec chain.ChainSpec) *chain.ChainSpec {
	validated, err := chain.ValidateChainSpec(spec)
	if err != nil {
		panic(fmt.Sprintf("pedalengine: built-in default chain failed validation: %v", err))
	}
	return validated
}

// buildDevice wires the capture and playback halves of the engine's
// audio device. Playback always goes through oto; capture replays a
// file if one is given, otherwise falls back to an in-memory loopback
// so the engine has something to read from in a capture-less demo.
func buildDevice(capturePath string, loopCapture bool, sampleRate uint32) (*audiodev.Device, error) {
	playback, err := audiodev.NewOtoPlayback(int(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("pedalengine: playback device: %w", err)
	}

	if capturePath == "" {
		loop := audiodev.NewLoopback()
		return &audiodev.Device{Source: loop, Sink: playback}, nil
	}

	capture, fileSampleRate, err := audiodev.NewWAVCapture(capturePath, loopCapture)
	if err != nil {
		return nil, fmt.Errorf("pedalengine: capture device: %w", err)
	}
	if fileSampleRate != sampleRate {
		slog.Warn("capture file sample rate does not match engine sample rate",
			"file", capturePath, "fileSampleRate", fileSampleRate, "engineSampleRate", sampleRate)
	}
	return &audiodev.Device{Source: capture, Sink: playback}, nil
}
