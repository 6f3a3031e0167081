package processor

import (
	"math/rand/v2"

	"github.com/ZacxDev/scrambleclip/internal/media"
)

// chooseEffect rolls the per-segment effect. A segment that passes the
// probability check still ends up without an effect 40% of the time.
func chooseEffect(rng *rand.Rand, enabled bool, probability float64) media.Effect {
	if !enabled || rng.Float64() >= probability {
		return media.EffectNone
	}

	r := rng.Float64()
	switch {
	case r < 0.4:
		return media.EffectColorBoost
	case r < 0.6:
		return media.EffectFadeIn
	default:
		return media.EffectNone
	}
}
