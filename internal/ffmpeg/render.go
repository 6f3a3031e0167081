package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	audioRate     = 44100
	audioChannels = 2
	silenceSource = "anullsrc=channel_layout=stereo:sample_rate=44100"
)

// intermediateKwargs are the encoder settings of every temporary file
func (p *Processor) intermediateKwargs() ffmpeg.KwArgs {
	settings := GetCodecSettings("mp4")
	kwargs := ffmpeg.KwArgs{
		"c:v":     settings.VideoCodec,
		"c:a":     settings.AudioCodec,
		"ar":      audioRate,
		"ac":      audioChannels,
		"pix_fmt": "yuv420p",
		"threads": p.threads,
	}
	for k, v := range settings.EncoderPresets["intermediate"] {
		kwargs[k] = v
	}
	kwargs["preset"] = p.preset
	return kwargs
}

// ExtractSegment cuts one segment and normalises it to the output frame,
// frame rate and a stereo AAC track. Sources without audio get silence.
func (p *Processor) ExtractSegment(ctx context.Context, job media.SegmentJob) error {
	in := ffmpeg.Input(job.Input, ffmpeg.KwArgs{
		"ss": seconds(job.Start),
		"t":  seconds(job.Duration),
	})

	kwargs := p.intermediateKwargs()
	kwargs["vf"] = SegmentFilter(job)
	kwargs["t"] = seconds(job.Duration)

	var out *ffmpeg.Stream
	if job.HasAudio {
		out = in.Output(job.Output, kwargs)
	} else {
		silence := ffmpeg.Input(silenceSource, ffmpeg.KwArgs{"f": "lavfi"})
		out = ffmpeg.Output([]*ffmpeg.Stream{in.Video(), silence.Audio()}, job.Output, kwargs)
	}

	if err := p.run(ctx, out, nil); err != nil {
		return errors.Wrapf(err, "failed to extract %.2fs-%.2fs of %s", job.Start, job.Start+job.Duration, job.Input)
	}
	return nil
}

// Concat joins segments with the concat demuxer, then applies the remix fades
// and trim. Without fades or trim it first tries a plain stream copy.
func (p *Processor) Concat(ctx context.Context, job media.ConcatJob) error {
	if len(job.Inputs) == 0 {
		return errors.New("nothing to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(job.Output), "segments.txt")
	absInputs := make([]string, 0, len(job.Inputs))
	for _, in := range job.Inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return errors.WithStack(err)
		}
		absInputs = append(absInputs, abs)
	}
	if err := os.WriteFile(listPath, []byte(concatList(absInputs)), 0644); err != nil {
		return errors.Wrap(err, "failed to write concat list")
	}
	defer os.Remove(listPath)

	duration := job.Duration
	if job.TrimTo > 0 && job.TrimTo < duration {
		duration = job.TrimTo
	}
	vf, af := FadeFilters(job.FadeIn, job.FadeOut, duration)

	input := func() *ffmpeg.Stream {
		return ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0})
	}

	if vf == "" && job.TrimTo <= 0 {
		err := p.run(ctx, input().Output(job.Output, ffmpeg.KwArgs{"c": "copy"}), nil)
		if err == nil {
			return nil
		}
		p.logger.Debug().Err(err).Msg("simple copy failed, trying with re-encoding")
	}

	kwargs := p.intermediateKwargs()
	if vf != "" {
		kwargs["vf"] = vf
		kwargs["af"] = af
	}
	if job.TrimTo > 0 {
		kwargs["t"] = seconds(job.TrimTo)
	}

	if err := p.run(ctx, input().Output(job.Output, kwargs), nil); err != nil {
		return errors.Wrap(err, "failed to concatenate segments")
	}
	return nil
}

// OverlayImage composites a still image over the whole of input
func (p *Processor) OverlayImage(ctx context.Context, input, image, output string, duration float64) error {
	base := ffmpeg.Input(input)
	still := ffmpeg.Input(image, ffmpeg.KwArgs{"loop": 1})
	video := p.CreateOverlayFilter(base.Video(), still, "0", "0")

	kwargs := p.intermediateKwargs()
	kwargs["c:a"] = "copy"
	kwargs["t"] = seconds(duration)

	out := ffmpeg.Output([]*ffmpeg.Stream{video, base.Audio()}, output, kwargs)
	if err := p.run(ctx, out, nil); err != nil {
		return errors.Wrap(err, "failed to overlay text")
	}
	return nil
}

// SetAudio replaces the audio of input with audio, looped or cut to duration
func (p *Processor) SetAudio(ctx context.Context, input, audio, output string, duration float64) error {
	video := ffmpeg.Input(input)
	music := ffmpeg.Input(audio, ffmpeg.KwArgs{"stream_loop": -1})

	out := ffmpeg.Output([]*ffmpeg.Stream{video.Video(), music.Audio()}, output, ffmpeg.KwArgs{
		"c:v": "copy",
		"c:a": "aac",
		"ar":  audioRate,
		"ac":  audioChannels,
		"t":   seconds(duration),
	})
	if err := p.run(ctx, out, nil); err != nil {
		return errors.Wrapf(err, "failed to set audio %s", audio)
	}
	return nil
}

// Encode writes the final output with the given settings
func (p *Processor) Encode(ctx context.Context, input, output string, settings media.EncodeSettings) error {
	threads := settings.Threads
	if threads <= 0 {
		threads = p.threads
	}

	kwargs := ffmpeg.KwArgs{
		"c:v":      settings.VideoCodec,
		"c:a":      settings.AudioCodec,
		"pix_fmt":  "yuv420p",
		"threads":  threads,
		"movflags": "+faststart",
	}
	if settings.Preset != "" {
		kwargs["preset"] = settings.Preset
	}
	if settings.AudioBitrate != "" {
		kwargs["b:a"] = settings.AudioBitrate
	}

	// Platform bitrates come with rate control and codec-specific settings
	if settings.VideoBitrate != "" {
		kbps := extractBitrateValue(settings.VideoBitrate)
		kwargs["b:v"] = settings.VideoBitrate
		kwargs["maxrate"] = settings.VideoBitrate
		kwargs["bufsize"] = fmt.Sprintf("%dk", 2*kbps)

		if settings.VideoCodec == GetCodecSettings(settings.Format).VideoCodec {
			for k, v := range GetCodecSettings(settings.Format).EncoderPresets["platform"] {
				kwargs[k] = v
			}
		}
	}

	if err := p.run(ctx, ffmpeg.Input(input).Output(output, kwargs), nil); err != nil {
		return errors.Wrapf(err, "failed to encode %s", output)
	}
	return nil
}
