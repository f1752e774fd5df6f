// Package audiofile reads and writes the audio files exchanged with the
// separation stage and the playback device.
package audiofile

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	beepwav "github.com/faiface/beep/wav"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidWAV        = errors.New("invalid WAV file")
)

// SupportedExtensions lists the containers Open can decode.
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// DecodeMono reads a PCM WAV file and returns its samples down-mixed to mono
// and scaled to [-1, 1].
func DecodeMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.Wrapf(ErrInvalidWAV, "%s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to decode %s", path)
	}

	bitDepth := int(dec.SampleBitDepth())
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		return nil, 0, errors.Wrapf(ErrInvalidWAV, "unknown bit depth in %s", path)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, 0, errors.Wrapf(ErrInvalidWAV, "no channels in %s", path)
	}

	factor := math.Pow(2, float64(bitDepth-1))
	// 8-bit WAV is unsigned
	var bias float64
	if bitDepth == 8 {
		bias = 128
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - bias) / factor
		}
		samples[i] = float32(sum / float64(channels))
	}

	return samples, buf.Format.SampleRate, nil
}

// WritePCM16 writes interleaved 16-bit samples as a WAV file.
func WritePCM16(path string, samples []int16, sampleRate, channels int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "failed to finalize %s", path)
	}
	return nil
}

// Open decodes a playable file by extension. The returned streamer owns the
// file and closes it on Close.
func Open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(path) {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to open %s", path)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".wav":
		s, format, err = beepwav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".flac":
		s, format, err = flac.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", path)
	}
	return s, format, nil
}

// Probe returns the playing time of a file.
func Probe(path string) (time.Duration, error) {
	s, format, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return format.SampleRate.D(s.Len()), nil
}

// IsSupported reports whether Open can decode the file.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
