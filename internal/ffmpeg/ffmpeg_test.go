package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/platform"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func TestFitFilter(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		want         string
	}{
		{"portrait exact aspect", 720, 1280, "scale=1080:1920,crop=1080:1920:0:0,setsar=1"},
		{"portrait taller", 1080, 2400, "scale=1080:2400,crop=1080:1920:0:240,setsar=1"},
		{"portrait wider", 600, 800, "scale=1440:1920,crop=1080:1920:180:0,setsar=1"},
		{"landscape", 1920, 1080, "scale=1080:608,pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black,setsar=1"},
		{"square", 500, 500, "scale=1080:1080,pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black,setsar=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FitFilter(tt.srcW, tt.srcH, 1080, 1920))
		})
	}
}

func TestSegmentFilter(t *testing.T) {
	job := media.SegmentJob{SrcWidth: 1920, SrcHeight: 1080, Width: 1080, Height: 1920, FPS: 30}
	assert.Equal(t,
		"scale=1080:608,pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=30,format=yuv420p",
		SegmentFilter(job))

	job.Effect = media.EffectColorBoost
	assert.Contains(t, SegmentFilter(job), ",eq=saturation=1.5:contrast=1.1,")

	job.Effect = media.EffectFadeIn
	assert.Contains(t, SegmentFilter(job), ",fade=t=in:st=0:d=0.200,")
}

func TestFadeFilters(t *testing.T) {
	vf, af := FadeFilters(0.3, 0.3, 16)
	assert.Equal(t, "fade=t=in:st=0:d=0.300,fade=t=out:st=15.700:d=0.300", vf)
	assert.Equal(t, "afade=t=in:st=0:d=0.300,afade=t=out:st=15.700:d=0.300", af)

	vf, af = FadeFilters(0, 0, 16)
	assert.Empty(t, vf)
	assert.Empty(t, af)
}

func TestConcatList(t *testing.T) {
	got := concatList([]string{"/tmp/a.mp4", "/tmp/it's.mp4"})
	assert.Equal(t, "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n", got)
}

func TestParseProbe(t *testing.T) {
	probe := `{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "r_frame_rate": "30/1", "nb_frames": "300"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "10.5"}
	}`

	md, err := parseProbe(probe)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, md.Duration, 1e-9)
	assert.Equal(t, 1920, md.Width)
	assert.Equal(t, 1080, md.Height)
	assert.True(t, md.HasAudio)
}

func TestParseProbeRotatedFramesOnly(t *testing.T) {
	probe := `{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "r_frame_rate": "30/1", "nb_frames": "90",
			 "side_data_list": [{"rotation": -90}]}
		],
		"format": {}
	}`

	md, err := parseProbe(probe)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, md.Duration, 1e-9)
	assert.Equal(t, 1080, md.Width)
	assert.Equal(t, 1920, md.Height)
	assert.False(t, md.HasAudio)
}

func TestParseProbeErrors(t *testing.T) {
	_, err := parseProbe(`{"streams": []}`)
	assert.Error(t, err)

	_, err = parseProbe(`{"streams": [{"codec_type": "audio"}], "format": {"duration": "3"}}`)
	assert.Error(t, err)

	_, err = parseProbe(`{"streams": [{"codec_type": "video", "width": 10, "height": 10}], "format": {}}`)
	assert.Error(t, err)

	_, err = parseProbe(`not json`)
	assert.Error(t, err)
}

func TestAnalysisSize(t *testing.T) {
	w, h := AnalysisSize(1920, 1080, 320)
	assert.Equal(t, 320, w)
	assert.Equal(t, 180, h)

	w, h = AnalysisSize(1080, 1920, 320)
	assert.Equal(t, 320, w)
	assert.Equal(t, 568, h)

	w, h = AnalysisSize(201, 99, 320)
	assert.Equal(t, 200, w)
	assert.Equal(t, 98, h)
}

func TestRGBToImage(t *testing.T) {
	img, err := rgbToImage([]byte{1, 2, 3, 4, 5, 6}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 255, 4, 5, 6, 255}, img.Pix)

	_, err = rgbToImage([]byte{1, 2}, 2, 1)
	assert.Error(t, err)
}

func TestExtractBitrateValue(t *testing.T) {
	assert.Equal(t, 2000, extractBitrateValue("2M"))
	assert.Equal(t, 128, extractBitrateValue("128k"))
	assert.Equal(t, 2000, extractBitrateValue("fast"))
}

func TestPlatformSettings(t *testing.T) {
	plat, err := platform.Get("tiktok")
	require.NoError(t, err)

	p := NewProcessor(zerolog.Nop(), 2, "medium", 320)
	s := p.PlatformSettings(plat)
	assert.Equal(t, "libx264", s.VideoCodec)
	assert.Equal(t, "aac", s.AudioCodec)
	assert.Equal(t, "2M", s.VideoBitrate)
	assert.Equal(t, "medium", s.Preset)
	assert.Equal(t, 2, s.Threads)
}

func TestOpenAndExtract(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	err := ffmpeg.Input("testsrc=duration=3:size=320x240:rate=30", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(src, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).
		OverWriteOutput().
		Run()
	require.NoError(t, err)

	p := NewProcessor(zerolog.New(os.Stderr), 0, "ultrafast", 160)
	ctx := context.Background()

	clip, err := p.Open(ctx, src)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, clip.Duration(), 0.2)
	assert.Equal(t, 320, clip.Width())
	assert.False(t, clip.HasAudio())

	frame, err := clip.FrameAt(ctx, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 160, frame.Bounds().Dx())
	assert.Equal(t, 120, frame.Bounds().Dy())

	seg := filepath.Join(dir, "seg.mp4")
	err = p.ExtractSegment(ctx, media.SegmentJob{
		Input:     src,
		Start:     0.5,
		Duration:  1,
		SrcWidth:  320,
		SrcHeight: 240,
		Width:     108,
		Height:    192,
		FPS:       30,
		Output:    seg,
	})
	require.NoError(t, err)

	out, err := p.Open(ctx, seg)
	require.NoError(t, err)
	assert.Equal(t, 108, out.Width())
	assert.Equal(t, 192, out.Height())
	assert.True(t, out.HasAudio())
}
