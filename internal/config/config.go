package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// Output resolution (1080x1920, 9:16)
	OutputWidth  = 1080
	OutputHeight = 1920
	OutputFPS    = 30

	// TargetDuration is the length every remix aims for, in seconds
	TargetDuration = 16.0

	// DurationTolerance is how far past the target a remix may run before it is trimmed
	DurationTolerance = 1.0

	// Segment bookkeeping
	DefaultBuffer         = 0.1 // seconds of padding around a used segment
	DefaultMinSegmentSize = 0.5 // smallest usable segment, in seconds

	// Clip-count bounds per remix
	DefaultMinClips = 8
	DefaultMaxClips = 15

	// Effects
	DefaultEffectProbability = 0.3
	FadeDuration             = 0.3 // fade in/out of the whole remix
	CrossfadeDuration        = 0.2 // fade-in of a single segment

	// Temporary directory prefix
	TempDirPrefix = "scrambleclip_"

	// Default output file prefix
	DefaultOutputPrefix = "scrambled_video"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Output    OutputConfig    `yaml:"output"`
	Segments  SegmentConfig   `yaml:"segments"`
	Selection SelectionConfig `yaml:"selection"`
	Effects   EffectsConfig   `yaml:"effects"`
	Text      TextConfig      `yaml:"text"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`

	// Seed for the batch random source; 0 picks one from the clock
	Seed uint64 `yaml:"seed"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Count    int    `yaml:"count"`
	Platform string `yaml:"platform"`
	Prefix   string `yaml:"prefix"`
}

type SegmentConfig struct {
	MinClips       int     `yaml:"min_clips"`
	MaxClips       int     `yaml:"max_clips"`
	MinClipSeconds float64 `yaml:"min_clip_duration"` // advisory only
	MaxClipSeconds float64 `yaml:"max_clip_duration"` // advisory only
	MinSegmentSize float64 `yaml:"min_segment"`
	Buffer         float64 `yaml:"buffer"`
}

type SelectionConfig struct {
	TopN                 int  `yaml:"top_n"`
	MaxRetries           int  `yaml:"max_retries"`
	RankCandidates       bool `yaml:"rank_candidates"`
	RankPool             int  `yaml:"rank_pool"`
	AllowOverlapFallback bool `yaml:"allow_overlap_fallback"`
}

type EffectsConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Probability float64 `yaml:"probability"`
}

type TextConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Content     string  `yaml:"content"`
	Color       string  `yaml:"color"`
	StrokeColor string  `yaml:"stroke_color"`
	FontSize    int     `yaml:"font_size"`
	StrokeWidth int     `yaml:"stroke_width"`
	Opacity     float64 `yaml:"opacity"`
}

type AudioConfig struct {
	Paths []string `yaml:"paths"`
}

type AnalysisConfig struct {
	FrameWidth    int `yaml:"frame_width"`
	FeatureFrames int `yaml:"feature_frames"`
}

type FFmpegConfig struct {
	Threads int    `yaml:"threads"`
	Preset  string `yaml:"preset"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:      "./output",
			Count:    1,
			Platform: "tiktok",
			Prefix:   DefaultOutputPrefix,
		},
		Segments: SegmentConfig{
			MinClips:       DefaultMinClips,
			MaxClips:       DefaultMaxClips,
			MinClipSeconds: 1.5,
			MaxClipSeconds: 3.5,
			MinSegmentSize: DefaultMinSegmentSize,
			Buffer:         DefaultBuffer,
		},
		Selection: SelectionConfig{
			TopN:       3,
			MaxRetries: 10,
			RankPool:   3,
		},
		Effects: EffectsConfig{
			Enabled:     false,
			Probability: DefaultEffectProbability,
		},
		Text: TextConfig{
			Color:       "#FFFFFF",
			StrokeColor: "#000000",
			FontSize:    60,
			StrokeWidth: 2,
			Opacity:     1.0,
		},
		Analysis: AnalysisConfig{
			FrameWidth:    320,
			FeatureFrames: 10,
		},
		FFmpeg: FFmpegConfig{
			Threads: 0,
			Preset:  "veryfast",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./scrambleclip.yaml",
		"./scrambleclip.yml",
		filepath.Join(os.Getenv("HOME"), ".scrambleclip", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Validate checks the configuration once, before a batch starts.
func (c *Config) Validate() error {
	switch {
	case c.Output.Count < 1:
		return errors.Wrapf(ErrInvalid, "output.count must be at least 1, got %d", c.Output.Count)
	case c.Output.Dir == "":
		return errors.Wrap(ErrInvalid, "output.dir is required")
	case c.Segments.MinClips < 1:
		return errors.Wrapf(ErrInvalid, "segments.min_clips must be at least 1, got %d", c.Segments.MinClips)
	case c.Segments.MaxClips < c.Segments.MinClips:
		return errors.Wrapf(ErrInvalid, "segments.max_clips (%d) is below min_clips (%d)",
			c.Segments.MaxClips, c.Segments.MinClips)
	case c.Segments.MinSegmentSize <= 0:
		return errors.Wrap(ErrInvalid, "segments.min_segment must be positive")
	case c.Segments.Buffer < 0:
		return errors.Wrap(ErrInvalid, "segments.buffer must not be negative")
	case c.Selection.TopN < 1:
		return errors.Wrap(ErrInvalid, "selection.top_n must be at least 1")
	case c.Selection.MaxRetries < 1:
		return errors.Wrap(ErrInvalid, "selection.max_retries must be at least 1")
	case c.Selection.RankCandidates && c.Selection.RankPool < 1:
		return errors.Wrap(ErrInvalid, "selection.rank_pool must be at least 1")
	case c.Effects.Probability < 0 || c.Effects.Probability > 1:
		return errors.Wrapf(ErrInvalid, "effects.probability must be within [0, 1], got %g", c.Effects.Probability)
	case c.Analysis.FrameWidth < 16:
		return errors.Wrap(ErrInvalid, "analysis.frame_width must be at least 16")
	case c.Analysis.FeatureFrames < 1:
		return errors.Wrap(ErrInvalid, "analysis.feature_frames must be at least 1")
	case c.Segments.MinClipSeconds > c.Segments.MaxClipSeconds:
		return errors.Wrap(ErrInvalid, "segments.min_clip_duration exceeds max_clip_duration")
	}

	if c.Text.Enabled {
		if _, err := c.TextStyle(); err != nil {
			return err
		}
	}

	return nil
}

// Spec returns the immutable output specification for a batch.
func (c *Config) Spec() OutputSpec {
	style, _ := c.TextStyle()
	return OutputSpec{
		Count:          c.Output.Count,
		TargetDuration: TargetDuration,
		Width:          OutputWidth,
		Height:         OutputHeight,
		MinClips:       c.Segments.MinClips,
		MaxClips:       c.Segments.MaxClips,
		MinClipSeconds: c.Segments.MinClipSeconds,
		MaxClipSeconds: c.Segments.MaxClipSeconds,
		Effects:        c.Effects.Enabled,
		Text:           c.Text.Enabled && c.Text.Content != "",
		Style:          style,
	}
}
