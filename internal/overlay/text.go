// Package overlay renders text overlays as transparent frame-sized images.
package overlay

import (
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// maxTextWidth is the share of the frame width text may cover
	maxTextWidth = 0.9

	minFontSize = 8
	lineSpacing = 1.2
)

var boldFont *opentype.Font

func init() {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
	boldFont = f
}

// Render draws style.Content centred on a transparent width x height canvas,
// outlined by the stroke colour and scaled by the style opacity.
func Render(style config.TextStyle, width, height int) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	lines := strings.Split(strings.TrimSpace(style.Content), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return canvas, nil
	}

	face, err := fitFace(lines, style.FontSize, style.StrokeWidth, width)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := fixed.Int26_6(float64(metrics.Height) * lineSpacing)
	blockHeight := lineHeight*fixed.Int26_6(len(lines)-1) + metrics.Ascent + metrics.Descent
	top := (fixed.I(height) - blockHeight) / 2

	stroke := image.NewUniform(style.StrokeColor)
	fill := image.NewUniform(style.Color)

	for i, line := range lines {
		advance := font.MeasureString(face, line)
		origin := fixed.Point26_6{
			X: (fixed.I(width) - advance) / 2,
			Y: top + metrics.Ascent + lineHeight*fixed.Int26_6(i),
		}

		if style.StrokeWidth > 0 {
			sw := style.StrokeWidth
			for dy := -sw; dy <= sw; dy++ {
				for dx := -sw; dx <= sw; dx++ {
					if dx*dx+dy*dy > sw*sw || (dx == 0 && dy == 0) {
						continue
					}
					drawLine(canvas, face, stroke, line, origin.Add(fixed.P(dx, dy)))
				}
			}
		}
		drawLine(canvas, face, fill, line, origin)
	}

	applyOpacity(canvas, style.Opacity)
	return canvas, nil
}

func drawLine(dst *image.RGBA, face font.Face, src image.Image, s string, dot fixed.Point26_6) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: dot}
	d.DrawString(s)
}

// fitFace shrinks the font until the widest line fits the frame
func fitFace(lines []string, size, strokeWidth, width int) (font.Face, error) {
	limit := fixed.I(int(float64(width)*maxTextWidth) - 2*strokeWidth)
	for {
		face, err := opentype.NewFace(boldFont, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create font face")
		}

		widest := fixed.Int26_6(0)
		for _, line := range lines {
			widest = max(widest, font.MeasureString(face, line))
		}
		if widest <= limit || size <= minFontSize {
			return face, nil
		}

		face.Close()
		size = max(minFontSize, size*9/10)
	}
}

// applyOpacity scales every premultiplied channel by opacity
func applyOpacity(img *image.RGBA, opacity float64) {
	if opacity >= 1 {
		return
	}
	for i, v := range img.Pix {
		img.Pix[i] = uint8(float64(v) * opacity)
	}
}

// WritePNG saves an overlay image
func WritePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}

// MaxAlpha returns the highest alpha value in img
func MaxAlpha(img *image.RGBA) uint8 {
	var m uint8
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > m {
			m = img.Pix[i]
		}
	}
	return m
}
