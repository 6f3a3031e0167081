package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/platform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type CodecSettings struct {
	VideoCodec      string
	AudioCodec      string
	DefaultCRF      int
	ContainerFormat string
	FileExtension   string
	EncoderPresets  map[string]ffmpeg.KwArgs
}

var codecPresets = map[string]CodecSettings{
	"mp4": {
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		DefaultCRF:      18,
		ContainerFormat: "mp4",
		FileExtension:   ".mp4",
		EncoderPresets: map[string]ffmpeg.KwArgs{
			"platform": {
				"profile:v":  "high",
				"level":      "4.0",
				"x264opts":   "no-scenecut",
				"g":          60,
				"keyint_min": 30,
			},
			"intermediate": {
				"preset": "veryfast",
				"crf":    18,
			},
		},
	},
}

func GetCodecSettings(outputFormat string) CodecSettings {
	if settings, ok := codecPresets[outputFormat]; ok {
		return settings
	}
	return codecPresets["mp4"]
}

// VideoMetadata contains metadata about a video file
type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

// Processor wraps FFmpeg functionality
type Processor struct {
	logger     zerolog.Logger
	threads    int
	preset     string
	frameWidth int
}

// NewProcessor creates a new FFmpeg processor. threads of 0 picks a count
// from the CPU; frameWidth is the width frames are decoded at for analysis.
func NewProcessor(logger zerolog.Logger, threads int, preset string, frameWidth int) *Processor {
	if threads <= 0 {
		threads = GetOptimalThreadCount()
	}
	if preset == "" {
		preset = "veryfast"
	}
	return &Processor{
		logger:     logger.With().Str("component", "ffmpeg").Logger(),
		threads:    threads,
		preset:     preset,
		frameWidth: frameWidth,
	}
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	NbFrames     string            `json:"nb_frames"`
	RFrameRate   string            `json:"r_frame_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type probeData struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetVideoMetadata retrieves metadata about a video file
func (p *Processor) GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	probe, err := ffmpeg.Probe(inputPath)
	if err != nil {
		return nil, fmt.Errorf("error probing video: %v", err)
	}
	return parseProbe(probe)
}

func parseProbe(probe string) (*VideoMetadata, error) {
	var data probeData
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}

	if len(data.Streams) == 0 {
		return nil, fmt.Errorf("no streams found in video")
	}

	var videoStream *probeStream
	hasAudio := false
	for i := range data.Streams {
		switch data.Streams[i].CodecType {
		case "video":
			if videoStream == nil {
				videoStream = &data.Streams[i]
			}
		case "audio":
			hasAudio = true
		}
	}

	if videoStream == nil {
		return nil, fmt.Errorf("no video stream found")
	}

	// First try video stream duration, then the container's
	duration := parseSeconds(videoStream.Duration)
	if duration == 0 {
		duration = parseSeconds(data.Format.Duration)
	}

	// If still no duration found, try calculating from frames and frame rate
	if duration == 0 {
		frames := parseSeconds(videoStream.NbFrames)
		if rate := parseFrameRate(videoStream.RFrameRate); rate > 0 {
			duration = frames / rate
		}
	}

	if duration == 0 {
		return nil, fmt.Errorf("could not determine video duration")
	}

	width, height := videoStream.Width, videoStream.Height
	if quarterTurn(videoStream) {
		width, height = height, width
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", width, height)
	}

	return &VideoMetadata{
		Duration: duration,
		Width:    width,
		Height:   height,
		Codec:    videoStream.CodecName,
		HasAudio: hasAudio,
	}, nil
}

// quarterTurn reports whether phone rotation metadata swaps the displayed axes
func quarterTurn(s *probeStream) bool {
	rotation := parseSeconds(s.Tags["rotate"])
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = sd.Rotation
		}
	}
	r := int(math.Abs(rotation)) % 180
	return r == 90
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func parseFrameRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return parseSeconds(s)
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// PlatformSettings returns the primary encoder settings for a platform
func (p *Processor) PlatformSettings(plat platform.Platform) media.EncodeSettings {
	return media.EncodeSettings{
		VideoCodec:   plat.GetVideoCodec(),
		AudioCodec:   plat.GetAudioCodec(),
		VideoBitrate: plat.GetVideoBitrate(),
		AudioBitrate: plat.GetAudioBitrate(),
		Preset:       p.preset,
		Format:       plat.GetOutputFormat(),
		Threads:      p.threads,
	}
}

func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	// Use 75% of available cores to prevent overload
	return int(math.Max(1, float64(cpuCount)*0.75))
}

func extractBitrateValue(bitrate string) int {
	// Remove the 'M' or 'k' suffix and convert to kbps
	value := strings.TrimRight(bitrate, "Mk")
	number, err := strconv.Atoi(value)
	if err != nil {
		return 2000
	}

	if strings.HasSuffix(bitrate, "M") {
		return number * 1000
	}
	if strings.HasSuffix(bitrate, "k") {
		return number
	}
	return number / 1000
}

// CreateOverlayFilter overlays one stream on another, ending with the shorter
func (p *Processor) CreateOverlayFilter(main, overlay *ffmpeg.Stream, x, y string) *ffmpeg.Stream {
	return ffmpeg.Filter([]*ffmpeg.Stream{main, overlay}, "overlay", ffmpeg.Args{
		fmt.Sprintf("x=%s", x),
		fmt.Sprintf("y=%s", y),
		"shortest=1",
	})
}

// run executes an output stream, keeping the tail of ffmpeg's log for errors
func (p *Processor) run(ctx context.Context, stream *ffmpeg.Stream, stdout io.Writer) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	if stdout == nil {
		stdout = io.Discard
	}

	var stderr bytes.Buffer
	stream = stream.OverWriteOutput()
	p.logger.Debug().Strs("args", stream.GetArgs()).Msg("running ffmpeg")

	if err := stream.WithOutput(stdout, &stderr).Run(); err != nil {
		return errors.Wrapf(err, "ffmpeg failed: %s", tail(stderr.String(), 3))
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
