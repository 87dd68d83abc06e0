package capture

import "math"

// BitrateRange is a recommended bitrate band in megabits per second.
type BitrateRange struct {
	MinMbps float64
	MaxMbps float64
}

const (
	// Bits per pixel per frame, from very simple scenes to extreme detail.
	bppfMin = 0.006
	bppfMax = 0.70
	// h265 needs roughly 30% less bitrate than h264 for the same quality.
	h265Efficiency = 0.70

	minBitrateMbps = 0.05
	maxBitrateMbps = 1000.0
)

// RecommendedRange returns the bitrate band for the resolution, frame rate and
// codec. Dimensions below 16 and frame rates outside 1..120 are clamped.
func RecommendedRange(width, height, fps int, format Format) BitrateRange {
	w := float64(max(16, width))
	h := float64(max(16, height))
	f := float64(min(max(fps, 1), 120))

	eff := 1.0
	if format == FormatH265 {
		eff = h265Efficiency
	}
	ppf := w * h * f
	lo := clamp(ppf*bppfMin*eff/1e6, minBitrateMbps, maxBitrateMbps)
	hi := clamp(ppf*bppfMax*eff/1e6, lo, maxBitrateMbps)
	return BitrateRange{MinMbps: lo, MaxMbps: hi}
}

// ChooseBitrate picks a point in r by quality 0..100 on a logarithmic curve.
func ChooseBitrate(r BitrateRange, quality int) float64 {
	t := float64(min(max(quality, 0), 100)) / 100
	return math.Exp(math.Log(r.MinMbps) + (math.Log(r.MaxMbps)-math.Log(r.MinMbps))*t)
}

// RecommendedBitrate combines RecommendedRange and ChooseBitrate.
func RecommendedBitrate(width, height, fps int, format Format, quality int) float64 {
	return ChooseBitrate(RecommendedRange(width, height, fps, format), quality)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
