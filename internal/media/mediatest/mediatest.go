// Package mediatest provides in-memory sources for tests.
package mediatest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ZacxDev/scrambleclip/internal/media"
)

// FrameFunc renders the frame at t seconds
type FrameFunc func(t float64) image.Image

// Source is a synthetic clip
type Source struct {
	PathValue     string
	DurationValue float64
	W, H          int
	Audio         bool
	Frames        FrameFunc
	FrameErr      error

	mu     sync.Mutex
	calls  int
	closed bool
}

func (s *Source) Path() string      { return s.PathValue }
func (s *Source) Duration() float64 { return s.DurationValue }
func (s *Source) Width() int        { return s.W }
func (s *Source) Height() int       { return s.H }
func (s *Source) HasAudio() bool    { return s.Audio }

func (s *Source) FrameAt(_ context.Context, t float64) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.FrameErr != nil {
		return nil, s.FrameErr
	}
	if t < 0 || t > s.DurationValue {
		return nil, fmt.Errorf("timestamp %.3f outside [0, %.3f]", t, s.DurationValue)
	}
	if s.Frames == nil {
		return Solid(s.W, s.H, color.RGBA{A: 0xff}), nil
	}
	return s.Frames(t), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FrameCalls returns how many frames were requested
func (s *Source) FrameCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closed reports whether Close was called
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opener hands out registered sources by path
type Opener struct {
	Sources map[string]*Source
	Fail    map[string]error
}

func (o *Opener) Open(_ context.Context, path string) (media.Source, error) {
	if err, ok := o.Fail[path]; ok {
		return nil, err
	}
	src, ok := o.Sources[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return src, nil
}

// Solid returns a uniformly coloured frame
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// Noise returns a deterministic pseudo-random grayscale frame derived from seed
func Noise(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	x := seed*2654435761 + 1
	for i := 0; i < len(img.Pix); i += 4 {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		v := uint8(x)
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
		img.Pix[i+3] = 0xff
	}
	return img
}

// Gradient returns a horizontal luminance ramp
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(1, w-1))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 0xff})
		}
	}
	return img
}
