package overlay

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func style(content string, opacity float64) config.TextStyle {
	return config.TextStyle{
		Content:     content,
		Color:       color.RGBA{255, 255, 255, 255},
		StrokeColor: color.RGBA{0, 0, 0, 255},
		FontSize:    60,
		StrokeWidth: 2,
		Opacity:     opacity,
	}
}

func TestRenderOpaque(t *testing.T) {
	img, err := Render(style("HELLO", 1.0), 1080, 1920)
	require.NoError(t, err)

	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1920, img.Bounds().Dy())
	assert.Equal(t, uint8(255), MaxAlpha(img))

	// corners stay transparent
	assert.Zero(t, img.RGBAAt(0, 0).A)
	assert.Zero(t, img.RGBAAt(1079, 1919).A)
}

func TestRenderHalfOpacity(t *testing.T) {
	img, err := Render(style("HELLO", 0.5), 1080, 1920)
	require.NoError(t, err)

	a := MaxAlpha(img)
	assert.InDelta(t, 127, int(a), 1)
}

func TestRenderIsCentred(t *testing.T) {
	img, err := Render(style("I", 1.0), 400, 400)
	require.NoError(t, err)

	minX, maxX, minY, maxY := 400, -1, 400, -1
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			if img.RGBAAt(x, y).A > 0 {
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}
	require.GreaterOrEqual(t, maxX, 0, "nothing drawn")

	assert.InDelta(t, 200, float64(minX+maxX)/2, 20)
	assert.InDelta(t, 200, float64(minY+maxY)/2, 30)
}

func TestRenderShrinksLongText(t *testing.T) {
	img, err := Render(style("A REALLY LONG CAPTION", 1.0), 200, 400)
	require.NoError(t, err)

	for y := 0; y < 400; y++ {
		assert.Zero(t, img.RGBAAt(0, y).A)
		assert.Zero(t, img.RGBAAt(199, y).A)
	}
}

func TestRenderEmpty(t *testing.T) {
	img, err := Render(style("   ", 1.0), 64, 64)
	require.NoError(t, err)
	assert.Zero(t, MaxAlpha(img))
}

func TestWritePNG(t *testing.T) {
	img, err := Render(style("hi", 1.0), 120, 80)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, WritePNG(img, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
