package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// clip is an input video opened through ffprobe. Frames are decoded on demand.
type clip struct {
	p        *Processor
	path     string
	metadata VideoMetadata
}

// Open probes path and returns it as a media.Source
func (p *Processor) Open(ctx context.Context, path string) (media.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	metadata, err := p.GetVideoMetadata(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	p.logger.Debug().
		Str("clip", path).
		Float64("duration", metadata.Duration).
		Int("width", metadata.Width).
		Int("height", metadata.Height).
		Bool("audio", metadata.HasAudio).
		Msg("opened clip")

	return &clip{p: p, path: path, metadata: *metadata}, nil
}

func (c *clip) Path() string      { return c.path }
func (c *clip) Duration() float64 { return c.metadata.Duration }
func (c *clip) Width() int        { return c.metadata.Width }
func (c *clip) Height() int       { return c.metadata.Height }
func (c *clip) HasAudio() bool    { return c.metadata.HasAudio }
func (c *clip) Close() error      { return nil }

// FrameAt decodes one frame at t as packed RGB, scaled to the analysis width
func (c *clip) FrameAt(ctx context.Context, t float64) (image.Image, error) {
	w, h := AnalysisSize(c.metadata.Width, c.metadata.Height, c.p.frameWidth)

	var buf bytes.Buffer
	stream := ffmpeg.Input(c.path, ffmpeg.KwArgs{"ss": seconds(t)}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"format":  "rawvideo",
			"pix_fmt": "rgb24",
			"s":       fmt.Sprintf("%dx%d", w, h),
		})

	if err := c.p.run(ctx, stream, &buf); err != nil {
		return nil, errors.Wrapf(err, "failed to grab frame at %.2fs", t)
	}

	return rgbToImage(buf.Bytes(), w, h)
}

// AnalysisSize scales a frame down to width, keeping aspect and even sides.
// Frames narrower than width keep their size.
func AnalysisSize(srcWidth, srcHeight, width int) (int, int) {
	if width <= 0 || srcWidth <= width {
		return even(srcWidth), even(srcHeight)
	}
	h := int(float64(srcHeight) * float64(width) / float64(srcWidth))
	return even(width), even(max(2, h))
}

func even(v int) int {
	return max(2, v-v%2)
}

func rgbToImage(data []byte, w, h int) (*image.RGBA, error) {
	if len(data) < w*h*3 {
		return nil, fmt.Errorf("short frame: got %d bytes, want %d", len(data), w*h*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < w*h*3; i, j = i+3, j+4 {
		img.Pix[j] = data[i]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
