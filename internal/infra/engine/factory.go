package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Device types accepted by New.
const (
	TypeSpeaker = "speaker"
	TypeNull    = "null"
)

// New creates a device of the given type from its settings map.
func New(deviceType string, settings map[string]any) (Device, error) {
	zlog.Debug().Msgf("creating playback device: type=%s settings=%+v", deviceType, settings)

	switch deviceType {
	case TypeSpeaker:
		var cfg SpeakerConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s settings", deviceType)
		}
		s, err := NewSpeaker(cfg)
		if err != nil {
			return nil, err
		}
		zlog.Info().Msgf("playback device ready: type=%s sample_rate=%d buffer_ms=%d",
			deviceType, cfg.SampleRate, cfg.BufferMs)
		return s, nil

	case TypeNull:
		zlog.Info().Msgf("playback device ready: type=%s", deviceType)
		return NewNull(), nil

	default:
		return nil, errors.Newf("unsupported device type: %s", deviceType)
	}
}

// decodeSettings fills out from settings, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
