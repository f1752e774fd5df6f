package mixer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/osa030/stembox/internal/domain/track"
)

// Property-based tests for the renderer invariants.

func buildTracks(stems [][]float32) ([]track.Track, *Params) {
	tracks := make([]track.Track, len(stems))
	names := make([]string, len(stems))
	for i, s := range stems {
		names[i] = fmt.Sprintf("stem%d", i)
		tracks[i] = track.Track{Name: names[i], Samples: s, SampleRate: 44100}
	}
	p := NewParams()
	p.Reset(names, DefaultMasterGain)
	return tracks, p
}

func encode(buf Buffer) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, buf.Samples)
	return b.Bytes()
}

func stemGen() gopter.Gen {
	return gen.SliceOfN(64, gen.Float32Range(-1, 1))
}

func TestProperty_RenderDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("same tracks and parameters render byte-identical output", prop.ForAll(
		func(a, b []float32, gainA, gainB float64) bool {
			tracks, p := buildTracks([][]float32{a, b})
			_ = p.SetGain("stem0", gainA)
			_ = p.SetGain("stem1", gainB)
			snap := p.Snapshot()

			first, err1 := Render(tracks, snap)
			second, err2 := Render(tracks, snap)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return bytes.Equal(encode(first), encode(second))
		},
		stemGen(),
		stemGen(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestProperty_RenderPeakWithinHeadroom(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	limit := peakSample()

	properties.Property("peak never exceeds headroom of full scale", prop.ForAll(
		func(a, b, c []float32, gain float64) bool {
			tracks, p := buildTracks([][]float32{a, b, c})
			_ = p.SetGain("stem1", gain)

			buf, err := Render(tracks, p.Snapshot())
			if err != nil {
				return false
			}
			var peak int16
			for _, s := range buf.Samples {
				if s < 0 {
					s = -s
				}
				if s > peak {
					peak = s
				}
			}
			return peak <= limit
		},
		stemGen(),
		stemGen(),
		stemGen(),
		gen.Float64Range(0, 1),
	))

	properties.Property("channels are always identical", prop.ForAll(
		func(a []float32) bool {
			tracks, p := buildTracks([][]float32{a})
			buf, err := Render(tracks, p.Snapshot())
			if err != nil {
				return false
			}
			for i := 0; i < len(buf.Samples); i += 2 {
				if buf.Samples[i] != buf.Samples[i+1] {
					return false
				}
			}
			return true
		},
		stemGen(),
	))

	properties.TestingRun(t)
}
