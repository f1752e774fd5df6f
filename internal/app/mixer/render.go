// Package mixer holds the mix parameters and renders stems into one stereo
// PCM buffer.
package mixer

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/stembox/internal/domain/track"
)

const (
	// Headroom is the peak level a non-silent render is normalized to.
	Headroom = 0.9

	// Channels is the channel count of every render.
	Channels = 2
)

// ErrEmptyMix is returned when no track is enabled with a gain above zero.
var ErrEmptyMix = errors.New("no audible track in mix")

// Buffer is interleaved 16-bit stereo PCM.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playing time of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Render mixes the enabled tracks at their gains, normalizes the sum to
// Headroom, duplicates it to two channels and quantizes to int16. Tracks are
// summed in slice order; the result is deterministic for equal inputs.
func Render(tracks []track.Track, params Snapshot) (Buffer, error) {
	if len(tracks) == 0 || !params.Audible() {
		return Buffer{}, ErrEmptyMix
	}

	rate := tracks[0].SampleRate
	maxLen := 0
	for i := range tracks {
		if tracks[i].SampleRate != rate {
			return Buffer{}, errors.Wrapf(track.ErrSampleRateMismatch,
				"stem %q is %d Hz, expected %d Hz", tracks[i].Name, tracks[i].SampleRate, rate)
		}
		if tracks[i].Len() > maxLen {
			maxLen = tracks[i].Len()
		}
	}

	acc := make([]float64, maxLen)
	contributed := false
	for i := range tracks {
		tp := params.Track(tracks[i].Name)
		if !tp.Enabled || tp.Gain <= 0 {
			continue
		}
		contributed = true
		// Shorter tracks are implicitly zero-padded.
		for j, s := range tracks[i].Samples {
			acc[j] += float64(s) * tp.Gain
		}
	}
	if !contributed {
		return Buffer{}, ErrEmptyMix
	}

	if peak := Peak(acc); peak > 0 {
		scale := Headroom / peak
		for i := range acc {
			acc[i] *= scale
		}
	}

	out := make([]int16, maxLen*Channels)
	for i, v := range acc {
		q := int16(clip(v) * math.MaxInt16)
		out[i*Channels] = q
		out[i*Channels+1] = q
	}

	return Buffer{
		Samples:    out,
		SampleRate: rate,
		Channels:   Channels,
	}, nil
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
