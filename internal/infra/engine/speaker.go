package engine

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/infra/audiofile"
)

// SpeakerConfig holds the settings of the system speaker device.
type SpeakerConfig struct {
	SampleRate      int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	ResampleQuality int `yaml:"resample_quality" mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// loaded bundles the resources of the file currently on the speaker.
type loaded struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	gain     *effects.Gain
}

// Speaker plays through the system audio output using beep.
// The beep speaker is process-wide; create one Speaker per process.
type Speaker struct {
	mu      sync.Mutex
	rate    beep.SampleRate
	quality int
	volume  float64
	current *loaded
	logger  zerolog.Logger
}

// NewSpeaker initializes the system speaker.
func NewSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	rate := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(rate, rate.N(time.Duration(cfg.BufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	return &Speaker{
		rate:    rate,
		quality: cfg.ResampleQuality,
		volume:  1,
		logger:  zlog.With().Str("component", "speaker").Logger(),
	}, nil
}

// Load implements Device.
func (s *Speaker) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()

	streamer, format, err := audiofile.Open(path)
	if err != nil {
		return err
	}
	s.current = &loaded{path: path, streamer: streamer, format: format}
	s.logger.Debug().Msgf("loaded %s: rate=%d channels=%d", path, format.SampleRate, format.NumChannels)
	return nil
}

// Play implements Device.
func (s *Speaker) Play(offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current
	if cur == nil {
		return ErrNotLoaded
	}
	speaker.Clear()

	var seekErr error
	n := cur.format.SampleRate.N(offset)
	if n < 0 {
		n = 0
	}
	if n > cur.streamer.Len() {
		n = cur.streamer.Len()
	}
	if err := cur.streamer.Seek(n); err != nil {
		if rerr := cur.streamer.Seek(0); rerr != nil {
			return errors.Wrap(rerr, "failed to rewind")
		}
		seekErr = errors.Mark(errors.Wrapf(err, "seek to %v", offset), ErrSeekFallback)
	}

	var src beep.Streamer = cur.streamer
	if cur.format.SampleRate != s.rate {
		src = beep.Resample(s.quality, cur.format.SampleRate, s.rate, src)
	}
	cur.ctrl = &beep.Ctrl{Streamer: src}
	cur.gain = &effects.Gain{Streamer: cur.ctrl, Gain: s.volume - 1}
	speaker.Play(cur.gain)

	return seekErr
}

// Pause implements Device.
func (s *Speaker) Pause() error {
	return s.setPaused(true)
}

// Resume implements Device.
func (s *Speaker) Resume() error {
	return s.setPaused(false)
}

func (s *Speaker) setPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ctrl == nil {
		return ErrNotLoaded
	}
	speaker.Lock()
	s.current.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

// Stop implements Device.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	speaker.Clear()
	s.releaseLocked()
	return nil
}

// SetVolume implements Device. effects.Gain scales by 1+Gain, so a linear
// volume v maps to Gain = v-1.
func (s *Speaker) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(volume)
	if s.current != nil && s.current.gain != nil {
		speaker.Lock()
		s.current.gain.Gain = s.volume - 1
		speaker.Unlock()
	}
	return nil
}

// Position implements Device.
func (s *Speaker) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return 0
	}
	speaker.Lock()
	pos := s.current.format.SampleRate.D(s.current.streamer.Position())
	speaker.Unlock()
	return pos
}

// Close implements Device.
func (s *Speaker) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	speaker.Close()
	return nil
}

func (s *Speaker) releaseLocked() {
	if s.current == nil {
		return
	}
	if err := s.current.streamer.Close(); err != nil {
		s.logger.Warn().Err(err).Msgf("failed to close %s", s.current.path)
	}
	s.current = nil
}
