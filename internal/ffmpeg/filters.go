package ffmpeg

import (
	"fmt"
	"math"
	"strings"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/media"
)

// FitFilter maps a source frame onto the output frame. Portrait sources are
// scaled to fill and centre-cropped; everything else is scaled to the output
// width and padded with black.
func FitFilter(srcWidth, srcHeight, width, height int) string {
	if srcHeight > srcWidth {
		ratio := math.Max(float64(width)/float64(srcWidth), float64(height)/float64(srcHeight))
		scaleWidth := evenCeil(float64(srcWidth) * ratio)
		scaleHeight := evenCeil(float64(srcHeight) * ratio)
		return fmt.Sprintf(
			"scale=%d:%d,crop=%d:%d:%d:%d,setsar=1",
			scaleWidth, scaleHeight,
			width, height,
			(scaleWidth-width)/2, (scaleHeight-height)/2,
		)
	}

	scaleHeight := evenCeil(float64(width) * float64(srcHeight) / float64(srcWidth))
	if scaleHeight > height {
		scaleHeight = height
	}
	if scaleHeight == height {
		// No padding needed if dimensions match exactly
		return fmt.Sprintf("scale=%d:%d,setsar=1", width, height)
	}
	return fmt.Sprintf(
		"scale=%d:%d,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		width, scaleHeight,
		width, height,
	)
}

func evenCeil(v float64) int {
	n := int(math.Ceil(v - 1e-9))
	if n%2 == 1 {
		n++
	}
	return n
}

// EffectFilter returns the video filter for a segment effect, or "" for none
func EffectFilter(effect media.Effect) string {
	switch effect {
	case media.EffectColorBoost:
		return "eq=saturation=1.5:contrast=1.1"
	case media.EffectFadeIn:
		return fmt.Sprintf("fade=t=in:st=0:d=%s", seconds(config.CrossfadeDuration))
	default:
		return ""
	}
}

// SegmentFilter builds the full video filter chain of an extracted segment
func SegmentFilter(job media.SegmentJob) string {
	return chain(
		FitFilter(job.SrcWidth, job.SrcHeight, job.Width, job.Height),
		fmt.Sprintf("fps=%d", job.FPS),
		EffectFilter(job.Effect),
		"format=yuv420p",
	)
}

// FadeFilters returns the video and audio filters fading a clip of length
// duration in and out. Either part may be zero.
func FadeFilters(fadeIn, fadeOut, duration float64) (video, audio string) {
	var vf, af []string
	if fadeIn > 0 {
		vf = append(vf, fmt.Sprintf("fade=t=in:st=0:d=%s", seconds(fadeIn)))
		af = append(af, fmt.Sprintf("afade=t=in:st=0:d=%s", seconds(fadeIn)))
	}
	if fadeOut > 0 && duration > fadeOut {
		st := seconds(duration - fadeOut)
		vf = append(vf, fmt.Sprintf("fade=t=out:st=%s:d=%s", st, seconds(fadeOut)))
		af = append(af, fmt.Sprintf("afade=t=out:st=%s:d=%s", st, seconds(fadeOut)))
	}
	return chain(vf...), chain(af...)
}

func chain(filters ...string) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ",")
}

// concatList renders a concat demuxer list
func concatList(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(fmt.Sprintf("file '%s'\n", strings.ReplaceAll(p, "'", `'\''`)))
	}
	return sb.String()
}
