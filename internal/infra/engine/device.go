// Package engine wraps an audio output device behind a small single-stream
// playback interface.
package engine

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotLoaded = errors.New("nothing loaded")
	// ErrSeekFallback is returned by Play when the offset could not be applied
	// and playback started from the beginning instead. Playback is running.
	ErrSeekFallback = errors.New("seek not supported, playing from start")
)

// Device is a single global output channel playing one file at a time.
type Device interface {
	// Load opens path for playback, replacing anything loaded before.
	Load(path string) error
	// Play starts the loaded file at offset.
	Play(offset time.Duration) error
	Pause() error
	Resume() error
	// Stop halts output and releases the loaded file.
	Stop() error
	// SetVolume sets a linear volume in [0, 1].
	SetVolume(volume float64) error
	// Position returns the elapsed position within the loaded file.
	Position() time.Duration
	Close() error
}

func clampVolume(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
