package mixer

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultMasterGain is the master gain applied when a session is loaded.
const DefaultMasterGain = 0.7

// ErrUnknownTrack is returned when a setter names a track that is not loaded.
var ErrUnknownTrack = errors.New("unknown track")

// TrackParams holds the per-track mix settings.
type TrackParams struct {
	Enabled bool
	Gain    float64 // [0, 1]
}

// Snapshot is a consistent point-in-time copy of the mix parameters.
type Snapshot struct {
	Tracks     map[string]TrackParams
	MasterGain float64
	Version    uint64 // Increments on every change
}

// Audible reports whether at least one track would contribute to a render.
func (s Snapshot) Audible() bool {
	for _, p := range s.Tracks {
		if p.Enabled && p.Gain > 0 {
			return true
		}
	}
	return false
}

// Track returns the settings for name. Unknown tracks are enabled at full gain.
func (s Snapshot) Track(name string) TrackParams {
	if p, ok := s.Tracks[name]; ok {
		return p
	}
	return TrackParams{Enabled: true, Gain: 1}
}

// Params holds the mutable mix parameters. Setters only record values; they
// never touch audio.
type Params struct {
	mu         sync.RWMutex
	tracks     map[string]TrackParams
	masterGain float64
	version    uint64
}

// NewParams creates parameters with no tracks and the default master gain.
func NewParams() *Params {
	return &Params{
		tracks:     make(map[string]TrackParams),
		masterGain: DefaultMasterGain,
	}
}

// Reset replaces all tracks with names, each enabled at full gain.
func (p *Params) Reset(names []string, masterGain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracks = make(map[string]TrackParams, len(names))
	for _, name := range names {
		p.tracks[name] = TrackParams{Enabled: true, Gain: 1}
	}
	p.masterGain = clamp01(masterGain)
	p.version++
}

// SetEnabled toggles a track.
func (p *Params) SetEnabled(name string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.tracks[name]
	if !ok {
		return errors.Wrapf(ErrUnknownTrack, "%q", name)
	}
	tp.Enabled = enabled
	p.tracks[name] = tp
	p.version++
	return nil
}

// Toggle flips a track and returns its new enabled state.
func (p *Params) Toggle(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.tracks[name]
	if !ok {
		return false, errors.Wrapf(ErrUnknownTrack, "%q", name)
	}
	tp.Enabled = !tp.Enabled
	p.tracks[name] = tp
	p.version++
	return tp.Enabled, nil
}

// SetGain sets a track gain, clamped to [0, 1].
func (p *Params) SetGain(name string, gain float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.tracks[name]
	if !ok {
		return errors.Wrapf(ErrUnknownTrack, "%q", name)
	}
	tp.Gain = clamp01(gain)
	p.tracks[name] = tp
	p.version++
	return nil
}

// SetMasterGain sets the master gain, clamped to [0, 1].
func (p *Params) SetMasterGain(gain float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.masterGain = clamp01(gain)
	p.version++
	return p.masterGain
}

// MasterGain returns the current master gain.
func (p *Params) MasterGain() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.masterGain
}

// Version returns the change counter.
func (p *Params) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Snapshot returns a copy that is safe to read while the parameters change.
func (p *Params) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracks := make(map[string]TrackParams, len(p.tracks))
	for name, tp := range p.tracks {
		tracks[name] = tp
	}
	return Snapshot{
		Tracks:     tracks,
		MasterGain: p.masterGain,
		Version:    p.version,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
