package processor

import (
	"context"
	"math/rand/v2"

	"github.com/ZacxDev/scrambleclip/internal/analysis"
	"github.com/ZacxDev/scrambleclip/internal/history"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/selector"
)

const (
	minDurationShare = 0.7
	maxDurationShare = 1.3

	// slotHeadroom lets a slot run past its even share of what is left
	slotHeadroom = 1.5

	// topUpThreshold is the unfilled budget that earns extra slots
	topUpThreshold = 0.5

	// closingStretch widens the last slot the clip cap allows
	closingStretch = 2.0

	// similarityPenalty weighs likeness to segments already in the remix
	similarityPenalty = 5.0
)

// plannedSegment is an accepted segment and its effect
type plannedSegment struct {
	media.Segment
	Effect media.Effect
}

// slotBounds are the per-slot duration limits of one remix
type slotBounds struct {
	count    int
	min, max float64
}

func (a *Assembler) drawSlotBounds() slotBounds {
	span := max(0, a.spec.MaxClips-a.spec.MinClips)
	count := a.spec.MinClips + a.rng.IntN(span+1)
	avg := a.spec.TargetDuration / float64(count)
	return slotBounds{
		count: count,
		min:   max(a.cfg.Segments.MinSegmentSize, minDurationShare*avg),
		max:   maxDurationShare * avg,
	}
}

// slotDuration sizes slot j given what is left of the budget; placed is the
// number of segments accepted so far.
func (a *Assembler) slotDuration(b slotBounds, j, placed int, remaining float64) float64 {
	if j < b.count-1 {
		upper := min(b.max, remaining/float64(b.count-j)*slotHeadroom)
		upper = max(upper, b.min)
		return b.min + a.rng.Float64()*(upper-b.min)
	}
	return a.closingDuration(b, placed, remaining)
}

// closingDuration sizes a slot that is meant to use up the budget. When no
// further segment would fit under the clip cap it may grow past max.
func (a *Assembler) closingDuration(b slotBounds, placed int, remaining float64) float64 {
	upper := b.max
	if placed+1 >= a.spec.MaxClips {
		upper = closingStretch * b.max
	}
	return analysis.Clamp(remaining, b.min, upper)
}

// plan fills the duration budget of one remix. Every accepted segment is
// recorded in both histories before the next slot is chosen.
func (a *Assembler) plan(ctx context.Context, index int) []plannedSegment {
	a.history.ResetLocal()
	recency := selector.NewRecency(len(a.ids))

	bounds := a.drawSlotBounds()
	target := a.spec.TargetDuration
	a.logger.Debug().
		Int("output", index).
		Int("slots", bounds.count).
		Float64("min", bounds.min).
		Float64("max", bounds.max).
		Msg("planning segments")

	var segments []plannedSegment
	accumulated := 0.0

	for j := 0; j < bounds.count && accumulated < target; j++ {
		if ctx.Err() != nil {
			return segments
		}
		a.report(a.outputPercent(index, 0.3*float64(j)/float64(bounds.count)),
			"Selecting clip for slot")

		d := a.slotDuration(bounds, j, len(segments), target-accumulated)
		seg, ok := a.fillSlot(ctx, d, recency, segments)
		if !ok {
			a.logger.Debug().Int("slot", j).Float64("duration", d).Msg("no legal segment for slot")
			continue
		}
		segments = append(segments, seg)
		accumulated += seg.Duration()
	}

	for attempts := 0; len(segments) < a.spec.MaxClips && target-accumulated > topUpThreshold && attempts < a.spec.MaxClips; attempts++ {
		if ctx.Err() != nil {
			return segments
		}
		d := a.closingDuration(bounds, len(segments), target-accumulated)
		seg, ok := a.fillSlot(ctx, d, recency, segments)
		if !ok {
			break
		}
		segments = append(segments, seg)
		accumulated += seg.Duration()
	}

	return segments
}

// fillSlot chooses a clip and start for a segment of length d, retrying with a
// different clip while retries and untried clips remain.
func (a *Assembler) fillSlot(ctx context.Context, d float64, recency *selector.Recency, accepted []plannedSegment) (plannedSegment, bool) {
	tried := make(map[int]bool)

	for attempt := 0; attempt < a.cfg.Selection.MaxRetries; attempt++ {
		untried := make([]int, 0, len(a.ids))
		for _, id := range a.ids {
			if !tried[id] {
				untried = append(untried, id)
			}
		}
		if len(untried) == 0 {
			break
		}

		clipID := a.selector.Pick(selector.Pool(untried, recency), recency.Items(), a.signatures)
		tried[clipID] = true

		src := a.clips[clipID]
		if src.Duration()-d <= 0 {
			continue
		}
		ranges := a.history.AvailableRanges(clipID, d, src.Duration())
		if len(ranges) == 0 {
			continue
		}

		start := a.chooseStart(ctx, clipID, d, ranges, accepted)
		return a.accept(clipID, start, d, recency), true
	}

	if a.cfg.Selection.AllowOverlapFallback {
		clipID := a.selector.Pick(a.ids, recency.Items(), a.signatures)
		src := a.clips[clipID]
		start := history.LeastOverlapStart(a.rng, d, src.Duration(), a.history.Global(clipID))
		d = min(d, src.Duration()-start)
		a.logger.Debug().Int("clip", clipID).Float64("start", start).Msg("using least-overlap fallback")
		return a.accept(clipID, start, d, recency), true
	}

	return plannedSegment{}, false
}

func (a *Assembler) accept(clipID int, start, d float64, recency *selector.Recency) plannedSegment {
	a.history.Record(clipID, start, start+d)
	recency.Push(clipID)

	seg := plannedSegment{
		Segment: media.Segment{ClipID: clipID, Start: start, End: start + d},
		Effect:  chooseEffect(a.rng, a.spec.Effects, a.cfg.Effects.Probability),
	}
	a.logger.Debug().
		Int("clip", clipID).
		Float64("start", seg.Start).
		Float64("end", seg.End).
		Str("effect", seg.Effect.String()).
		Int("recent", recency.Len()).
		Msg("accepted segment")
	return seg
}

// chooseStart draws a start from the free ranges. With ranking on, several
// draws compete on interestingness minus similarity to accepted segments.
func (a *Assembler) chooseStart(ctx context.Context, clipID int, d float64, ranges []history.Interval, accepted []plannedSegment) float64 {
	if !a.cfg.Selection.RankCandidates {
		return drawStart(a.rng, ranges)
	}

	src := a.clips[clipID]
	best, bestScore := 0.0, -1.0
	for i := 0; i < a.cfg.Selection.RankPool; i++ {
		start := drawStart(a.rng, ranges)

		score, err := a.scorer.Interestingness(ctx, src, start, start+d)
		if err != nil {
			a.logger.Debug().Err(err).Msg("scoring failed")
			score = 0
		}
		for _, used := range accepted {
			other := a.clips[used.ClipID]
			sim, err := a.scorer.Similarity(ctx, src, start, start+d, other, used.Start, used.End)
			if err != nil {
				continue
			}
			score = max(0, score-similarityPenalty*sim)
		}

		if score > bestScore {
			best, bestScore = start, score
		}
	}
	return best
}

// drawStart picks uniformly over all legal start positions
func drawStart(rng *rand.Rand, ranges []history.Interval) float64 {
	total := history.TotalLen(ranges)
	if total <= 0 {
		return ranges[rng.IntN(len(ranges))].Start
	}

	x := rng.Float64() * total
	for _, r := range ranges {
		if x <= r.Len() {
			return r.Start + x
		}
		x -= r.Len()
	}
	return ranges[len(ranges)-1].End
}
