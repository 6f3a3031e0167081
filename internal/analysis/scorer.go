// Package analysis scores segments by a cheap interestingness heuristic and
// compares segments and clips for visual similarity.
package analysis

import (
	"context"
	"image"
	"math"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// ScoreFrameCount is the number of frames sampled per scored segment
	ScoreFrameCount = 5

	// DefaultFeatureFrames is the number of frames sampled per clip for similarity
	DefaultFeatureFrames = 10

	// SameSegmentTolerance is how close two segments of one clip must be to count as identical
	SameSegmentTolerance = 0.1

	// frameEpsilon keeps sample timestamps off the very last frame
	frameEpsilon = 0.05
)

type featureKey struct {
	path   string
	frames int
}

// Scorer holds the per-batch feature cache. It is not safe for concurrent use.
type Scorer struct {
	logger        zerolog.Logger
	featureFrames int
	features      map[featureKey][][]float64
}

// NewScorer creates a scorer with an empty cache
func NewScorer(logger zerolog.Logger, featureFrames int) *Scorer {
	if featureFrames < 1 {
		featureFrames = DefaultFeatureFrames
	}
	return &Scorer{
		logger:        logger.With().Str("component", "scorer").Logger(),
		featureFrames: featureFrames,
		features:      make(map[featureKey][][]float64),
	}
}

// Interestingness scores src between start and end on a 0 to 10 scale.
func (s *Scorer) Interestingness(ctx context.Context, src media.Source, start, end float64) (float64, error) {
	times := SampleTimes(start, end, ScoreFrameCount, src.Duration())
	frames := make([]image.Image, 0, len(times))
	for _, t := range times {
		frame, err := src.FrameAt(ctx, t)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to read frame at %.2fs of %s", t, src.Path())
		}
		frames = append(frames, frame)
	}

	score := ScoreFrames(frames)
	s.logger.Debug().
		Str("clip", src.Path()).
		Float64("start", start).
		Float64("end", end).
		Float64("score", score).
		Msg("scored segment")
	return score, nil
}

// Similarity compares two segments on a 0 to 1 scale. Overlapping segments
// of the same clip are compared by temporal overlap only; everything else is
// compared by whole-clip frame features. The result does not depend on
// argument order.
func (s *Scorer) Similarity(ctx context.Context, a media.Source, startA, endA float64, b media.Source, startB, endB float64) (float64, error) {
	if a.Path() == b.Path() {
		if sim, ok := overlapSimilarity(startA, endA, startB, endB); ok {
			return sim, nil
		}
	}

	// Visit the pair in a fixed order so float summation is identical both ways.
	if a.Path() > b.Path() {
		a, b = b, a
	}

	fa, err := s.clipFeatures(ctx, a)
	if err != nil {
		return 0, err
	}
	fb, err := s.clipFeatures(ctx, b)
	if err != nil {
		return 0, err
	}

	if len(fa) == 0 || len(fb) == 0 {
		return 0, nil
	}

	var total float64
	for _, x := range fa {
		for _, y := range fb {
			total += Cosine(x, y)
		}
	}
	return Clamp(total/float64(len(fa)*len(fb)), 0, 1), nil
}

// overlapSimilarity handles two segments of one clip. ok is false when they
// do not overlap.
func overlapSimilarity(startA, endA, startB, endB float64) (float64, bool) {
	if math.Abs(startA-startB) < SameSegmentTolerance && math.Abs(endA-endB) < SameSegmentTolerance {
		return 1.0, true
	}

	overlap := min(endA, endB) - max(startA, startB)
	shorter := min(endA-startA, endB-startB)
	if overlap <= 0 || shorter <= 0 {
		return 0, false
	}
	return Clamp(overlap/shorter, 0, 1), true
}

// clipFeatures returns the cached whole-clip features of src
func (s *Scorer) clipFeatures(ctx context.Context, src media.Source) ([][]float64, error) {
	key := featureKey{path: src.Path(), frames: s.featureFrames}
	if f, ok := s.features[key]; ok {
		return f, nil
	}

	times := SampleTimes(0, src.Duration(), s.featureFrames, src.Duration())
	features := make([][]float64, 0, len(times))
	for _, t := range times {
		frame, err := src.FrameAt(ctx, t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame at %.2fs of %s", t, src.Path())
		}
		features = append(features, Feature(frame))
	}

	s.features[key] = features
	return features, nil
}

// SampleTimes returns n evenly spaced timestamps from start to end inclusive,
// kept inside [0, duration) of the clip.
func SampleTimes(start, end float64, n int, duration float64) []float64 {
	if n <= 0 {
		return nil
	}

	limit := max(0, duration-frameEpsilon)
	times := make([]float64, n)
	for i := range times {
		t := start
		if n > 1 {
			t = start + (end-start)*float64(i)/float64(n-1)
		}
		times[i] = Clamp(t, 0, limit)
	}
	return times
}
