package processor

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ZacxDev/scrambleclip/internal/analysis"
	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/history"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/platform"
	"github.com/ZacxDev/scrambleclip/internal/selector"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrNoInputs is returned when a batch is started without input videos
	ErrNoInputs = errors.New("no input videos")

	// ErrNoUsableInputs is returned when none of the input videos could be loaded
	ErrNoUsableInputs = errors.New("no usable input videos")
)

// ProgressFunc receives coarse progress (0 to 100) and a message. It is
// called synchronously and must return quickly.
type ProgressFunc func(percent int, message string)

// Options configure an Assembler
type Options struct {
	Config   *config.Config
	Inputs   []string
	Opener   media.Opener
	Renderer Renderer
	Platform platform.Platform

	// Primary are the encoder settings tried first for every output
	Primary media.EncodeSettings

	Progress ProgressFunc
	Logger   zerolog.Logger

	// Rand overrides the random source seeded from Config.Seed
	Rand *rand.Rand
}

// Assembler builds a batch of remixes. One Assembler runs one batch; all of
// its state is discarded with it.
type Assembler struct {
	cfg      *config.Config
	spec     config.OutputSpec
	inputs   []string
	opener   media.Opener
	renderer Renderer
	platform platform.Platform
	primary  media.EncodeSettings
	progress ProgressFunc
	logger   zerolog.Logger

	batchID string
	seed    uint64
	rng     *rand.Rand

	history    *history.History
	scorer     *analysis.Scorer
	selector   *selector.Selector
	clips      []media.Source
	ids        []int
	signatures map[int][]float64

	percent int
	records []OutputRecord
}

// NewAssembler validates the configuration and prepares a batch
func NewAssembler(opts Options) (*Assembler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Opener == nil || opts.Renderer == nil {
		return nil, errors.New("opener and renderer are required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	plat := opts.Platform
	if plat == nil {
		p, err := platform.Get(opts.Config.Output.Platform)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		plat = p
	}
	if float64(plat.GetMaxDuration()) < config.TargetDuration {
		return nil, fmt.Errorf("target duration %.0fs exceeds platform maximum of %ds",
			config.TargetDuration, plat.GetMaxDuration())
	}

	seed := opts.Config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(seed, seed^0x5deece66d))
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(int, string) {}
	}

	batchID := uuid.NewString()
	logger := opts.Logger.With().Str("component", "assembler").Str("batch", batchID).Logger()

	primary := opts.Primary
	if primary.VideoCodec == "" {
		primary = media.EncodeSettings{
			VideoCodec:   plat.GetVideoCodec(),
			AudioCodec:   plat.GetAudioCodec(),
			VideoBitrate: plat.GetVideoBitrate(),
			AudioBitrate: plat.GetAudioBitrate(),
			Format:       plat.GetOutputFormat(),
		}
	}

	return &Assembler{
		cfg:      opts.Config,
		spec:     opts.Config.Spec(),
		inputs:   opts.Inputs,
		opener:   opts.Opener,
		renderer: opts.Renderer,
		platform: plat,
		primary:  primary,
		progress: progress,
		logger:   logger,
		batchID:  batchID,
		seed:     seed,
		rng:      rng,
		history:  history.New(opts.Config.Segments.Buffer, opts.Config.Segments.MinSegmentSize),
		scorer:   analysis.NewScorer(logger, opts.Config.Analysis.FeatureFrames),
		selector: selector.New(rng, opts.Config.Selection.TopN),
	}, nil
}

// BatchID identifies the batch in logs and the manifest
func (a *Assembler) BatchID() string {
	return a.batchID
}

// Records returns what was written for each successful output
func (a *Assembler) Records() []OutputRecord {
	return a.records
}

// report forwards progress; a negative percent keeps the last value
func (a *Assembler) report(percent int, message string) {
	if percent >= 0 {
		a.percent = percent
	}
	a.logger.Info().Int("percent", a.percent).Msg(message)
	a.progress(a.percent, message)
}

// warn reports a recoverable error without moving the progress
func (a *Assembler) warn(err error, message string) {
	a.logger.Warn().Err(err).Msg(message)
	a.progress(a.percent, fmt.Sprintf("%s: %v", message, err))
}

func sanitizeFilename(filename string) string {
	sanitized := filename

	// Remove the old extension if present
	sanitized = strings.TrimSuffix(sanitized, ".mp4")

	reg := regexp.MustCompile(`[^a-zA-Z0-9-_.]`)
	sanitized = reg.ReplaceAllString(sanitized, "_")

	reg = regexp.MustCompile(`_+`)
	sanitized = reg.ReplaceAllString(sanitized, "_")

	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = config.DefaultOutputPrefix
	}

	return sanitized
}

func (a *Assembler) ensureOutputPath(path, format string) string {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			// The write itself will fail and be reported
			a.logger.Warn().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	// Ensure correct file extension
	ext := fmt.Sprintf(".%s", format)
	if !strings.HasSuffix(strings.ToLower(path), ext) {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}

	return path
}
