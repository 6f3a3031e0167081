// Package media holds the types shared between the remix pipeline and the
// tools that read and write video files.
package media

import (
	"context"
	"image"
)

// Source is an opened input video
type Source interface {
	Path() string
	Duration() float64
	Width() int
	Height() int
	HasAudio() bool

	// FrameAt decodes the frame shown at t seconds.
	FrameAt(ctx context.Context, t float64) (image.Image, error)

	Close() error
}

// Opener opens input videos
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// Segment is a time range of one clip, identified by its index in the batch
type Segment struct {
	ClipID int
	Start  float64
	End    float64
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Effect is a per-segment visual treatment
type Effect int

const (
	EffectNone Effect = iota
	EffectColorBoost
	EffectFadeIn
)

func (e Effect) String() string {
	switch e {
	case EffectColorBoost:
		return "color_boost"
	case EffectFadeIn:
		return "fade_in"
	default:
		return "none"
	}
}

// MarshalText lets effects show up by name in manifests
func (e Effect) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
