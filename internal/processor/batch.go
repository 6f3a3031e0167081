package processor

import (
	"context"
	"fmt"
	"os"

	"github.com/ZacxDev/scrambleclip/internal/analysis"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/pkg/errors"
)

// Renderer does the media work of a remix
type Renderer interface {
	ExtractSegment(ctx context.Context, job media.SegmentJob) error
	Concat(ctx context.Context, job media.ConcatJob) error
	OverlayImage(ctx context.Context, input, image, output string, duration float64) error
	SetAudio(ctx context.Context, input, audio, output string, duration float64) error
	Encode(ctx context.Context, input, output string, settings media.EncodeSettings) error
}

// Run generates the batch and returns the paths actually written. Failures of
// single outputs are reported through progress and skipped; only a batch
// without any loadable input, or a cancelled context, returns an error.
func (a *Assembler) Run(ctx context.Context) ([]string, error) {
	a.report(0, fmt.Sprintf("Loading %d input videos", len(a.inputs)))

	if err := a.loadClips(ctx); err != nil {
		return nil, err
	}
	defer a.closeClips()

	if len(a.clips) > 1 {
		a.report(5, "Computing clip signatures")
		clips := make(map[int]media.Source, len(a.clips))
		for id, src := range a.clips {
			clips[id] = src
		}
		a.signatures = analysis.BuildSignatures(ctx, a.logger, clips)
	}

	if err := os.MkdirAll(a.cfg.Output.Dir, 0755); err != nil {
		a.warn(err, "Failed to create output directory")
	}

	count := a.spec.Count
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			a.writeManifest()
			return paths, errors.WithStack(err)
		}

		a.report(a.outputPercent(i, 0), fmt.Sprintf("Generating video %d/%d", i+1, count))

		record, err := a.generate(ctx, i)
		if err != nil {
			a.warn(err, fmt.Sprintf("Skipping video %d", i+1))
			continue
		}

		a.records = append(a.records, *record)
		paths = append(paths, record.Path)
	}

	a.writeManifest()
	a.report(100, fmt.Sprintf("Done: %d of %d videos generated", len(paths), count))
	return paths, nil
}

// outputPercent maps a stage fraction of output i onto the batch percentage
func (a *Assembler) outputPercent(i int, fraction float64) int {
	per := 90.0 / float64(a.spec.Count)
	return 10 + int(per*(float64(i)+fraction))
}

func (a *Assembler) loadClips(ctx context.Context) error {
	if len(a.inputs) == 0 {
		return ErrNoInputs
	}

	minSegment := a.cfg.Segments.MinSegmentSize
	for _, path := range a.inputs {
		src, err := a.opener.Open(ctx, path)
		if err != nil {
			a.warn(err, fmt.Sprintf("Skipping %s", path))
			continue
		}
		if src.Duration() < minSegment {
			a.warn(fmt.Errorf("duration %.2fs is shorter than %.2fs", src.Duration(), minSegment),
				fmt.Sprintf("Skipping %s", path))
			a.closeSource(src)
			continue
		}

		a.ids = append(a.ids, len(a.clips))
		a.clips = append(a.clips, src)
	}

	if len(a.clips) == 0 {
		return errors.Wrapf(ErrNoUsableInputs, "none of %d inputs could be loaded", len(a.inputs))
	}

	a.logger.Info().Int("clips", len(a.clips)).Msg("loaded input videos")
	return nil
}

func (a *Assembler) closeClips() {
	for _, src := range a.clips {
		a.closeSource(src)
	}
}

func (a *Assembler) closeSource(src media.Source) {
	if err := src.Close(); err != nil {
		a.warn(err, fmt.Sprintf("Failed to close %s", src.Path()))
	}
}
