package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/overlay"
	"github.com/pkg/errors"
)

// RenderAttempt is one set of encoder settings to try for an output
type RenderAttempt struct {
	Name     string
	Settings media.EncodeSettings
}

// RenderResult is the outcome of encoding one output
type RenderResult struct {
	Path    string
	Attempt string
	Err     error
}

// attempts lists the encoder settings in the order they are tried
func (a *Assembler) attempts() []RenderAttempt {
	return []RenderAttempt{
		{Name: "primary", Settings: a.primary},
		{Name: "fallback", Settings: media.FallbackEncodeSettings()},
	}
}

// generate plans and renders output index. Failures of optional stages fall
// back to the previous file; failures to join or encode lose the output.
func (a *Assembler) generate(ctx context.Context, index int) (*OutputRecord, error) {
	segments := a.plan(ctx, index)
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(segments) == 0 {
		return nil, errors.New("no segment could be placed")
	}

	tempDir, err := os.MkdirTemp("", config.TempDirPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			a.warn(err, "Failed to remove temp directory")
		}
	}()

	parts, kept := a.extractSegments(ctx, index, tempDir, segments)
	if len(parts) == 0 {
		return nil, errors.New("every segment failed to extract")
	}

	total := 0.0
	for _, seg := range kept {
		total += seg.Duration()
	}

	a.report(a.outputPercent(index, 0.6), "Joining segments")
	joined := filepath.Join(tempDir, "joined.mp4")
	job := media.ConcatJob{Inputs: parts, Output: joined, Duration: total}
	if a.spec.Effects {
		job.FadeIn = config.FadeDuration
		job.FadeOut = config.FadeDuration
	}
	duration := total
	if total > a.spec.TargetDuration+config.DurationTolerance {
		job.TrimTo = a.spec.TargetDuration
		duration = a.spec.TargetDuration
	}
	if err := a.renderer.Concat(ctx, job); err != nil {
		return nil, errors.Wrap(err, "failed to join segments")
	}

	current := joined
	if a.spec.Text {
		a.report(a.outputPercent(index, 0.7), "Adding text overlay")
		current = a.addText(ctx, tempDir, current, duration)
	}
	if len(a.cfg.Audio.Paths) > 0 {
		a.report(a.outputPercent(index, 0.8), "Adding audio track")
		current = a.addAudio(ctx, tempDir, current, duration)
	}

	a.report(a.outputPercent(index, 0.9), "Encoding final video")
	result := a.encode(ctx, current, index)
	if result.Err != nil {
		return nil, result.Err
	}

	record := &OutputRecord{
		Path:     result.Path,
		Duration: duration,
		Attempt:  result.Attempt,
		Segments: make([]SegmentRecord, 0, len(kept)),
	}
	for _, seg := range kept {
		record.Segments = append(record.Segments, SegmentRecord{
			Source: a.clips[seg.ClipID].Path(),
			Start:  seg.Start,
			End:    seg.End,
			Effect: seg.Effect,
		})
	}

	a.logger.Info().
		Int("output", index).
		Str("path", result.Path).
		Int("segments", len(kept)).
		Float64("duration", duration).
		Msg("video generated")
	return record, nil
}

// extractSegments renders every planned segment into tempDir. A segment whose
// effect fails is retried plain; one that still fails is dropped.
func (a *Assembler) extractSegments(ctx context.Context, index int, tempDir string, segments []plannedSegment) ([]string, []plannedSegment) {
	parts := make([]string, 0, len(segments))
	kept := make([]plannedSegment, 0, len(segments))

	for j, seg := range segments {
		if ctx.Err() != nil {
			break
		}
		a.report(a.outputPercent(index, 0.3+0.3*float64(j)/float64(len(segments))),
			fmt.Sprintf("Extracting segment %d/%d", j+1, len(segments)))

		src := a.clips[seg.ClipID]
		job := media.SegmentJob{
			Input:     src.Path(),
			Start:     seg.Start,
			Duration:  seg.Duration(),
			SrcWidth:  src.Width(),
			SrcHeight: src.Height(),
			Width:     a.spec.Width,
			Height:    a.spec.Height,
			FPS:       config.OutputFPS,
			HasAudio:  src.HasAudio(),
			Effect:    seg.Effect,
			Output:    filepath.Join(tempDir, fmt.Sprintf("segment_%03d.mp4", j)),
		}

		err := a.renderer.ExtractSegment(ctx, job)
		if err != nil && job.Effect != media.EffectNone {
			a.warn(err, fmt.Sprintf("Effect %s failed, retrying without it", job.Effect))
			job.Effect = media.EffectNone
			seg.Effect = media.EffectNone
			err = a.renderer.ExtractSegment(ctx, job)
		}
		if err != nil {
			a.warn(err, fmt.Sprintf("Skipping segment %d", j+1))
			continue
		}

		parts = append(parts, job.Output)
		kept = append(kept, seg)
	}

	return parts, kept
}

func (a *Assembler) addText(ctx context.Context, tempDir, input string, duration float64) string {
	img, err := overlay.Render(a.spec.Style, a.spec.Width, a.spec.Height)
	if err != nil {
		a.warn(err, "Failed to render text, continuing without it")
		return input
	}

	pngPath := filepath.Join(tempDir, "text.png")
	if err := overlay.WritePNG(img, pngPath); err != nil {
		a.warn(err, "Failed to write text overlay, continuing without it")
		return input
	}

	output := filepath.Join(tempDir, "text.mp4")
	if err := a.renderer.OverlayImage(ctx, input, pngPath, output, duration); err != nil {
		a.warn(err, "Failed to add text, continuing without it")
		return input
	}
	return output
}

func (a *Assembler) addAudio(ctx context.Context, tempDir, input string, duration float64) string {
	paths := a.cfg.Audio.Paths
	audio := paths[a.rng.IntN(len(paths))]

	output := filepath.Join(tempDir, "audio.mp4")
	if err := a.renderer.SetAudio(ctx, input, audio, output, duration); err != nil {
		a.warn(err, "Failed to add audio, keeping original track")
		return input
	}
	return output
}

// encode writes the final file, trying each attempt in turn
func (a *Assembler) encode(ctx context.Context, input string, index int) RenderResult {
	prefix := a.cfg.Output.Prefix
	if prefix == "" {
		prefix = config.DefaultOutputPrefix
	}

	var result RenderResult
	for _, attempt := range a.attempts() {
		format := attempt.Settings.Format
		if format == "" {
			format = "mp4"
		}
		name := fmt.Sprintf("%s_%d.%s", sanitizeFilename(prefix), index+1, format)
		path := a.ensureOutputPath(filepath.Join(a.cfg.Output.Dir, name), format)

		err := a.renderer.Encode(ctx, input, path, attempt.Settings)
		result = RenderResult{Path: path, Attempt: attempt.Name, Err: err}
		if err == nil {
			a.checkFileSize(path)
			return result
		}
		a.logger.Warn().Err(err).Str("attempt", attempt.Name).Msg("encode attempt failed")
		if ctx.Err() != nil {
			break
		}
	}

	result.Err = errors.Wrapf(result.Err, "all encode attempts failed for video %d", index+1)
	return result
}

// checkFileSize warns when an output is larger than the platform accepts
func (a *Assembler) checkFileSize(path string) {
	info, err := os.Stat(path)
	if err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("failed to stat output")
		return
	}
	if limit := a.platform.GetMaxFileSize(); limit > 0 && info.Size() > limit {
		a.warn(fmt.Errorf("%d bytes exceeds %d", info.Size(), limit),
			fmt.Sprintf("%s is too large for %s", filepath.Base(path), a.platform.GetName()))
	}
}
