// Package audioengine holds the PCM helpers shared by playback and export.
package audioengine

import "math"

// ApplyQuickGain scales stereo frames in place, clamping to [-1, 1].
func ApplyQuickGain(frames [][2]float64, factor float64) {
	if factor == 1 {
		for i := range frames {
			frames[i][0] = clamp(frames[i][0])
			frames[i][1] = clamp(frames[i][1])
		}
		return
	}
	for i := range frames {
		frames[i][0] = clamp(frames[i][0] * factor)
		frames[i][1] = clamp(frames[i][1] * factor)
	}
}

// ToPCM16 interleaves frames into 16-bit integer samples appended to dst.
func ToPCM16(dst []int, frames [][2]float64) []int {
	for _, f := range frames {
		dst = append(dst, toInt16(f[0]), toInt16(f[1]))
	}
	return dst
}

// GainFactor converts a base-2 volume exponent, as used by the speaker, to a
// linear factor.
func GainFactor(volume float64) float64 {
	return math.Pow(2, volume)
}

func toInt16(v float64) int {
	v = clamp(v)
	if v >= 0 {
		return int(math.Round(v * 32767))
	}
	return int(math.Round(v * 32768))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
