package engine

import (
	"sync"
	"time"

	"github.com/osa030/stembox/internal/infra/audiofile"
)

// Null is a silent device that advances its position on the wall clock.
// It is used headless and in tests.
type Null struct {
	mu sync.Mutex

	probe func(path string) (time.Duration, error)
	now   func() time.Time

	path     string
	length   time.Duration
	offset   time.Duration // Position when the clock was last (re)started
	started  time.Time     // Zero while paused or stopped
	playing  bool
	volume   float64
	loadedOK bool
}

// NewNull creates a null device that probes files with audiofile.Probe.
func NewNull() *Null {
	return &Null{
		probe:  audiofile.Probe,
		now:    time.Now,
		volume: 1,
	}
}

// Load implements Device.
func (n *Null) Load(path string) error {
	length, err := n.probe(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.length = length
	n.offset = 0
	n.started = time.Time{}
	n.playing = false
	n.loadedOK = true
	return nil
}

// Play implements Device.
func (n *Null) Play(offset time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loadedOK {
		return ErrNotLoaded
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n.length {
		offset = n.length
	}
	n.offset = offset
	n.started = n.now()
	n.playing = true
	return nil
}

// Pause implements Device.
func (n *Null) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loadedOK {
		return ErrNotLoaded
	}
	if n.playing {
		n.offset = n.positionLocked()
		n.started = time.Time{}
		n.playing = false
	}
	return nil
}

// Resume implements Device.
func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loadedOK {
		return ErrNotLoaded
	}
	if !n.playing {
		n.started = n.now()
		n.playing = true
	}
	return nil
}

// Stop implements Device.
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.path = ""
	n.length = 0
	n.offset = 0
	n.started = time.Time{}
	n.playing = false
	n.loadedOK = false
	return nil
}

// SetVolume implements Device.
func (n *Null) SetVolume(volume float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = clampVolume(volume)
	return nil
}

// Volume returns the last volume set.
func (n *Null) Volume() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume
}

// Loaded returns the path currently loaded.
func (n *Null) Loaded() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// Position implements Device.
func (n *Null) Position() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.positionLocked()
}

// Close implements Device.
func (n *Null) Close() error {
	return n.Stop()
}

func (n *Null) positionLocked() time.Duration {
	pos := n.offset
	if n.playing {
		pos += n.now().Sub(n.started)
	}
	if pos > n.length {
		pos = n.length
	}
	return pos
}
