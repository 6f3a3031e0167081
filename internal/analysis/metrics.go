package analysis

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/exp/constraints"
)

const (
	entropyWeight    = 3.0
	motionWeight     = 5.0
	brightnessWeight = 2.0

	// maxEntropy is log2 of the 256 histogram bins
	maxEntropy = 8.0

	// FeatureSize is the side of the grayscale patch used for similarity
	FeatureSize = 32
)

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScoreFrames combines entropy, motion and brightness of an ordered frame
// sequence into a score within [0, 10].
func ScoreFrames(frames []image.Image) float64 {
	if len(frames) == 0 {
		return 0
	}

	var brightness, entropy, motion float64
	var prev *image.Gray
	for _, frame := range frames {
		gray := Grayscale(frame)
		brightness += Brightness(frame)
		entropy += Entropy(gray)
		if prev != nil {
			motion += Motion(prev, gray)
		}
		prev = gray
	}

	n := float64(len(frames))
	brightness /= n
	entropy /= n
	if len(frames) > 1 {
		motion /= n - 1
	}

	combined := entropyWeight*entropy + motionWeight*motion + brightnessWeight*brightness
	return 10 * Clamp(combined, 0, 1)
}

// Grayscale converts a frame to 8-bit luma
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Brightness is the mean of all colour channels, normalised to [0, 1]
func Brightness(img image.Image) float64 {
	r, g, b := MeanRGB(img)
	return (r + g + b) / 3
}

// MeanRGB returns the per-channel means, each normalised to [0, 1]
func MeanRGB(img image.Image) (r, g, b float64) {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0, 0, 0
	}

	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*bounds.Dx() {
		var sr, sg, sb uint64
		for i := 0; i+3 < len(rgba.Pix); i += 4 {
			sr += uint64(rgba.Pix[i])
			sg += uint64(rgba.Pix[i+1])
			sb += uint64(rgba.Pix[i+2])
		}
		return float64(sr) / n / 255, float64(sg) / n / 255, float64(sb) / n / 255
	}

	var sr, sg, sb uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += uint64(cr >> 8)
			sg += uint64(cg >> 8)
			sb += uint64(cb >> 8)
		}
	}
	return float64(sr) / n / 255, float64(sg) / n / 255, float64(sb) / n / 255
}

// Entropy is the Shannon entropy of the 256-bin luma histogram, divided by 8
func Entropy(gray *image.Gray) float64 {
	var hist [256]int
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	total := float64(w * h)
	if total == 0 {
		return 0
	}

	var e float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		e -= p * math.Log2(p)
	}
	return e / maxEntropy
}

// Motion is the mean absolute luma difference between two frames, normalised
// to [0, 1]. Frames of different sizes are compared over their common area.
func Motion(prev, cur *image.Gray) float64 {
	w := min(prev.Rect.Dx(), cur.Rect.Dx())
	h := min(prev.Rect.Dy(), cur.Rect.Dy())
	if w == 0 || h == 0 {
		return 0
	}

	var sum uint64
	for y := 0; y < h; y++ {
		a := prev.Pix[y*prev.Stride : y*prev.Stride+w]
		b := cur.Pix[y*cur.Stride : y*cur.Stride+w]
		for x := range a {
			d := int(a[x]) - int(b[x])
			if d < 0 {
				d = -d
			}
			sum += uint64(d)
		}
	}
	return float64(sum) / float64(w*h) / 255
}

// Feature flattens a frame into a FeatureSize x FeatureSize grayscale patch
// with values in [0, 1].
func Feature(img image.Image) []float64 {
	patch := resize.Resize(FeatureSize, FeatureSize, Grayscale(img), resize.Bilinear)
	gray := Grayscale(patch)

	out := make([]float64, 0, FeatureSize*FeatureSize)
	for y := 0; y < FeatureSize; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+FeatureSize]
		for _, v := range row {
			out = append(out, float64(v)/255)
		}
	}
	return out
}

// Cosine returns the cosine similarity of two vectors, or 0 when either has
// zero norm or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
