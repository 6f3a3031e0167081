// Package history tracks which parts of each input clip have been used, for
// the whole batch (global) and for the remix being built (local).
package history

import (
	"sort"
)

// Interval is a time range in seconds
type Interval struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Len returns the interval length
func (i Interval) Len() float64 {
	return i.End - i.Start
}

// History records used segments per clip
type History struct {
	buffer         float64
	minSegmentSize float64
	global         map[int][]Interval
	local          map[int][]Interval
}

// New creates an empty history
func New(buffer, minSegmentSize float64) *History {
	return &History{
		buffer:         buffer,
		minSegmentSize: minSegmentSize,
		global:         make(map[int][]Interval),
		local:          make(map[int][]Interval),
	}
}

// Record marks [start, end) of a clip as used in both histories.
func (h *History) Record(clipID int, start, end float64) {
	iv := Interval{Start: start, End: end}
	h.global[clipID] = append(h.global[clipID], iv)
	h.local[clipID] = append(h.local[clipID], iv)
}

// ResetLocal forgets the current remix; global history is kept.
func (h *History) ResetLocal() {
	h.local = make(map[int][]Interval)
}

// Global returns the batch-wide segments used from a clip
func (h *History) Global(clipID int) []Interval {
	return h.global[clipID]
}

// Local returns the segments used from a clip by the current remix
func (h *History) Local(clipID int) []Interval {
	return h.local[clipID]
}

// AvailableRanges returns the ranges of start positions from which a segment
// of length desired fits in the clip without touching any used segment.
func (h *History) AvailableRanges(clipID int, desired, clipDuration float64) []Interval {
	return AvailableRanges(desired, clipDuration, h.global[clipID], h.local[clipID], h.minSegmentSize, h.buffer)
}

// AvailableRanges computes free start ranges for a segment of length desired
// in a clip of length clipDuration, given global and local usage.
//
// Every used segment is widened by buffer on both sides and clamped to the
// clip. The widened segments are merged, then the gaps between them are
// scanned. The leading gap qualifies when it is longer than desired. Interior
// and trailing gaps must also leave minSegmentSize of slack. Each qualifying
// gap [a, b] yields the start range [a, b-desired].
func AvailableRanges(desired, clipDuration float64, global, local []Interval, minSegmentSize, buffer float64) []Interval {
	if desired <= 0 || desired > clipDuration {
		return nil
	}

	if len(global) == 0 && len(local) == 0 {
		return []Interval{{Start: 0, End: clipDuration - desired}}
	}

	used := merge(expand(global, local, buffer, clipDuration))

	var ranges []Interval

	if lead := used[0].Start; lead > desired {
		ranges = append(ranges, Interval{Start: 0, End: lead - desired})
	}

	for i := 0; i < len(used)-1; i++ {
		gapStart, gapEnd := used[i].End, used[i+1].Start
		if gapEnd-gapStart >= desired+minSegmentSize {
			ranges = append(ranges, Interval{Start: gapStart, End: gapEnd - desired})
		}
	}

	last := used[len(used)-1].End
	if clipDuration-last >= desired+minSegmentSize {
		ranges = append(ranges, Interval{Start: last, End: clipDuration - desired})
	}

	return ranges
}

func expand(global, local []Interval, buffer, clipDuration float64) []Interval {
	out := make([]Interval, 0, len(global)+len(local))
	for _, set := range [][]Interval{global, local} {
		for _, iv := range set {
			out = append(out, Interval{
				Start: max(0, iv.Start-buffer),
				End:   min(clipDuration, iv.End+buffer),
			})
		}
	}
	return out
}

// merge sorts intervals and joins the ones that overlap or touch
func merge(in []Interval) []Interval {
	sort.Slice(in, func(i, j int) bool { return in[i].Start < in[j].Start })

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		cur := &out[len(out)-1]
		if iv.Start <= cur.End {
			cur.End = max(cur.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// TotalLen sums the lengths of ranges
func TotalLen(ranges []Interval) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}
