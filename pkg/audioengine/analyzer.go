package audioengine

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/zeebo/blake3"
)

// Meter accumulates the peak and RMS level of the frames it sees.
type Meter struct {
	peak   float64
	sumSq  float64
	frames int
}

func (m *Meter) Add(frames [][2]float64) {
	for _, f := range frames {
		for _, v := range f {
			if a := math.Abs(v); a > m.peak {
				m.peak = a
			}
			m.sumSq += v * v
		}
	}
	m.frames += len(frames)
}

func (m *Meter) Peak() float64 { return m.peak }

func (m *Meter) RMS() float64 {
	if m.frames == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(2*m.frames))
}

// PeakDB is the peak in dBFS; silence is -Inf.
func (m *Meter) PeakDB() float64 {
	return 20 * math.Log10(m.peak)
}

// Fingerprint returns the BLAKE3-256 hex digest of r.
func Fingerprint(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
