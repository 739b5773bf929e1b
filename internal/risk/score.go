// Package risk holds the three fleet risk scorers. They share one design:
// start at zero, add weighted and independently-capped contributions, clamp
// the total into [0,100], then map to a tiered level by fixed thresholds.
package risk

// Tier is the three-step risk classification for vehicles and providers.
// Worker risk uses the Green/Amber/Red levels in models.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

const (
	tierHighAbove   = 60
	tierMediumAbove = 30
)

// clampScore bounds a raw additive score to [0,100].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// tierFor maps a clamped score to its tier. Monotonic in score.
func tierFor(score float64) Tier {
	switch {
	case score > tierHighAbove:
		return TierHigh
	case score > tierMediumAbove:
		return TierMedium
	default:
		return TierLow
	}
}

// capped returns count*weight capped at max.
func capped(count int, weight, max float64) float64 {
	v := float64(count) * weight
	if v > max {
		return max
	}
	return v
}
