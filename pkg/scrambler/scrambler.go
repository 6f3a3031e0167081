// Package scrambler generates short vertical remixes from a set of input
// videos and exposes the content analysis behind the clip choices.
package scrambler

import (
	"context"
	"fmt"

	"github.com/ZacxDev/scrambleclip/internal/analysis"
	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/ffmpeg"
	"github.com/ZacxDev/scrambleclip/internal/logging"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/platform"
	"github.com/ZacxDev/scrambleclip/internal/processor"
	"github.com/pkg/errors"
)

// GenerateOptions defines a remix batch
type GenerateOptions struct {
	InputPaths []string
	Config     *config.Config

	// Progress receives batch progress; nil discards it
	Progress processor.ProgressFunc
}

// AnalyzeOptions defines a segment to score and, optionally, one to compare it with
type AnalyzeOptions struct {
	InputPath string
	Start     float64
	End       float64

	AgainstPath  string
	AgainstStart float64
	AgainstEnd   float64

	Config *config.Config
}

// AnalyzeResult holds the scores of an Analyze call
type AnalyzeResult struct {
	Interestingness float64

	// Similarity is set only when a second segment was given
	Similarity *float64
}

// ClipSignature is the colour signature of one input
type ClipSignature struct {
	Path      string
	Signature []float64
}

// GetSupportedPlatforms returns a list of supported platforms
func GetSupportedPlatforms() []string {
	return platform.GetSupportedPlatforms()
}

func newProcessor(cfg *config.Config) *ffmpeg.Processor {
	return ffmpeg.NewProcessor(logging.WithComponent("ffmpeg"), cfg.FFmpeg.Threads, cfg.FFmpeg.Preset, cfg.Analysis.FrameWidth)
}

func configOrDefault(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// Generate renders a batch and returns the paths of the videos written
func Generate(ctx context.Context, opts *GenerateOptions) ([]string, error) {
	cfg := configOrDefault(opts.Config)

	plat, err := platform.Get(cfg.Output.Platform)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	proc := newProcessor(cfg)
	assembler, err := processor.NewAssembler(processor.Options{
		Config:   cfg,
		Inputs:   opts.InputPaths,
		Opener:   proc,
		Renderer: proc,
		Platform: plat,
		Primary:  proc.PlatformSettings(plat),
		Progress: opts.Progress,
		Logger:   logging.NewLogger(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare batch")
	}

	return assembler.Run(ctx)
}

// Analyze scores a segment of one video and optionally compares it with a
// segment of another (or the same) video.
func Analyze(ctx context.Context, opts *AnalyzeOptions) (*AnalyzeResult, error) {
	cfg := configOrDefault(opts.Config)
	proc := newProcessor(cfg)
	scorer := analysis.NewScorer(logging.WithComponent("analysis"), cfg.Analysis.FeatureFrames)

	src, err := openSegment(ctx, proc, opts.InputPath, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	score, err := scorer.Interestingness(ctx, src, opts.Start, opts.End)
	if err != nil {
		return nil, errors.Wrap(err, "failed to score segment")
	}
	result := &AnalyzeResult{Interestingness: score}

	if opts.AgainstPath == "" {
		return result, nil
	}

	other := src
	if opts.AgainstPath != opts.InputPath {
		other, err = openSegment(ctx, proc, opts.AgainstPath, opts.AgainstStart, opts.AgainstEnd)
		if err != nil {
			return nil, err
		}
		defer other.Close()
	}

	sim, err := scorer.Similarity(ctx, src, opts.Start, opts.End, other, opts.AgainstStart, opts.AgainstEnd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compare segments")
	}
	result.Similarity = &sim
	return result, nil
}

func openSegment(ctx context.Context, opener media.Opener, path string, start, end float64) (media.Source, error) {
	src, err := opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if start < 0 || end <= start || end > src.Duration() {
		src.Close()
		return nil, fmt.Errorf("segment %.2fs-%.2fs is outside %s (%.2fs)", start, end, path, src.Duration())
	}
	return src, nil
}

// Signatures computes the colour signature of each input. Inputs that cannot
// be opened or sampled are left out.
func Signatures(ctx context.Context, cfg *config.Config, paths []string) ([]ClipSignature, error) {
	cfg = configOrDefault(cfg)
	proc := newProcessor(cfg)
	logger := logging.WithComponent("analysis")

	clips := make(map[int]media.Source, len(paths))
	for i, path := range paths {
		src, err := proc.Open(ctx, path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping input")
			continue
		}
		defer src.Close()
		clips[i] = src
	}
	if len(clips) == 0 {
		return nil, processor.ErrNoUsableInputs
	}

	sigs := analysis.BuildSignatures(ctx, logger, clips)
	out := make([]ClipSignature, 0, len(sigs))
	for i, path := range paths {
		if sig, ok := sigs[i]; ok {
			out = append(out, ClipSignature{Path: path, Signature: sig})
		}
	}
	return out, nil
}
