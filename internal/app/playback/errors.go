package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/stembox/internal/app/mixer"
	"github.com/osa030/stembox/internal/domain/track"
)

// Errors
var (
	ErrNoSession  = errors.New("nothing loaded")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
	ErrClosed     = errors.New("controller closed")

	ErrRender = errors.New("render failure")
	ErrDevice = errors.New("device error")
)

// Message codes returned by ErrorCode.
const (
	CodeLoadError          = "load_error"
	CodeSampleRateMismatch = "sample_rate_mismatch"
	CodeEmptyMix           = "empty_mix"
	CodeRenderFailure      = "render_failure"
	CodeDeviceError        = "device_error"
	CodeDefault            = "default_error"
)

// ErrorCode maps err to the message code of its kind.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, track.ErrSampleRateMismatch):
		return CodeSampleRateMismatch
	case errors.Is(err, track.ErrLoad):
		return CodeLoadError
	case errors.Is(err, mixer.ErrEmptyMix):
		return CodeEmptyMix
	case errors.Is(err, ErrRender):
		return CodeRenderFailure
	case errors.Is(err, ErrDevice):
		return CodeDeviceError
	default:
		return CodeDefault
	}
}
