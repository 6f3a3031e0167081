package config

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// OutputSpec describes what every remix in a batch must look like
type OutputSpec struct {
	Count          int
	TargetDuration float64
	Width          int
	Height         int
	MinClips       int
	MaxClips       int
	MinClipSeconds float64
	MaxClipSeconds float64
	Effects        bool
	Text           bool
	Style          TextStyle
}

// TextStyle is a parsed, validated text overlay style
type TextStyle struct {
	Content     string
	Color       color.RGBA
	StrokeColor color.RGBA
	FontSize    int
	StrokeWidth int
	Opacity     float64
}

// TextStyle parses the text section into a TextStyle.
func (c *Config) TextStyle() (TextStyle, error) {
	t := c.Text
	if t.FontSize <= 0 {
		return TextStyle{}, errors.Wrapf(ErrInvalid, "text.font_size must be positive, got %d", t.FontSize)
	}
	if t.StrokeWidth < 0 {
		return TextStyle{}, errors.Wrapf(ErrInvalid, "text.stroke_width must not be negative, got %d", t.StrokeWidth)
	}
	if t.Opacity < 0 || t.Opacity > 1 {
		return TextStyle{}, errors.Wrapf(ErrInvalid, "text.opacity must be within [0, 1], got %g", t.Opacity)
	}

	fill, err := ParseColor(t.Color)
	if err != nil {
		return TextStyle{}, errors.Wrap(err, "text.color")
	}
	stroke, err := ParseColor(t.StrokeColor)
	if err != nil {
		return TextStyle{}, errors.Wrap(err, "text.stroke_color")
	}

	return TextStyle{
		Content:     t.Content,
		Color:       fill,
		StrokeColor: stroke,
		FontSize:    t.FontSize,
		StrokeWidth: t.StrokeWidth,
		Opacity:     t.Opacity,
	}, nil
}

var namedColors = map[string]string{
	"white":  "#ffffff",
	"black":  "#000000",
	"red":    "#ff0000",
	"green":  "#00ff00",
	"blue":   "#0000ff",
	"yellow": "#ffff00",
}

// ParseColor accepts "#rgb", "#rrggbb" or a handful of basic colour names.
func ParseColor(s string) (color.RGBA, error) {
	if hex, ok := namedColors[s]; ok {
		s = hex
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(ErrInvalid, "bad colour %q", s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
