package analysis

import (
	"context"

	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/rs/zerolog"
)

const (
	// SignatureSamples is the number of timestamps per clip signature
	SignatureSamples = 5

	// signatureSpan keeps signature samples away from clip tails
	signatureSpan = 0.9
)

// BuildSignatures computes a colour and brightness signature per clip:
// (meanR, meanG, meanB, brightness) at each sampled timestamp. Clips whose
// frames cannot be read are left out.
func BuildSignatures(ctx context.Context, logger zerolog.Logger, clips map[int]media.Source) map[int][]float64 {
	sigs := make(map[int][]float64, len(clips))
	for id, src := range clips {
		sig, err := Signature(ctx, src)
		if err != nil {
			logger.Warn().Err(err).Str("clip", src.Path()).Msg("skipping clip signature")
			continue
		}
		sigs[id] = sig
	}
	return sigs
}

// Signature computes the signature of one clip
func Signature(ctx context.Context, src media.Source) ([]float64, error) {
	times := SampleTimes(0, signatureSpan*src.Duration(), SignatureSamples, src.Duration())
	sig := make([]float64, 0, 4*len(times))
	for _, t := range times {
		frame, err := src.FrameAt(ctx, t)
		if err != nil {
			return nil, err
		}
		r, g, b := MeanRGB(frame)
		sig = append(sig, r, g, b, (r+g+b)/3)
	}
	return sig, nil
}
