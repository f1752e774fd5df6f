// Package track provides the decoded audio source entities of a mix session.
package track

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrLoad               = errors.New("audio source could not be loaded")
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
)

// Mode represents what kind of source a session was loaded from.
type Mode int

const (
	ModeNone  Mode = iota // Nothing loaded
	ModeStems             // Separated stems mixed on demand
	ModeLocal             // Single local file played as-is
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeStems:
		return "stems"
	case ModeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Track represents one decoded mono waveform.
type Track struct {
	Name       string    // Stem name (e.g. "vocals")
	Samples    []float32 // Mono samples in [-1, 1]
	SampleRate int       // Samples per second
}

// Len returns the number of samples.
func (t *Track) Len() int {
	return len(t.Samples)
}

// Duration returns the playing time of the track.
func (t *Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// Session is an immutable loaded source. A new Session replaces the previous
// one on every load; nothing inside it is mutated afterwards.
type Session struct {
	ID         string        // Unique per load
	Mode       Mode          // Stems or Local
	Tracks     []Track       // Sorted by name (Stems mode only)
	SampleRate int           // Shared sample rate of all tracks (Stems mode only)
	Duration   time.Duration // Longest track, or local file length
	LocalPath  string        // Source file (Local mode only)
}

// NewStemSession builds a stems session. All tracks must share one sample
// rate; the duration is the longest track.
func NewStemSession(id string, tracks []Track) (*Session, error) {
	if len(tracks) == 0 {
		return nil, errors.Mark(errors.New("no stems given"), ErrLoad)
	}

	sorted := make([]Track, len(tracks))
	copy(sorted, tracks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	rate := sorted[0].SampleRate
	maxLen := 0
	for _, t := range sorted {
		if t.SampleRate != rate {
			return nil, errors.Wrapf(ErrSampleRateMismatch,
				"stem %q is %d Hz, stem %q is %d Hz", t.Name, t.SampleRate, sorted[0].Name, rate)
		}
		if t.Len() > maxLen {
			maxLen = t.Len()
		}
	}
	if rate <= 0 {
		return nil, errors.Mark(errors.Newf("invalid sample rate %d", rate), ErrLoad)
	}

	return &Session{
		ID:         id,
		Mode:       ModeStems,
		Tracks:     sorted,
		SampleRate: rate,
		Duration:   time.Duration(maxLen) * time.Second / time.Duration(rate),
	}, nil
}

// NewLocalSession builds a session for a single local file.
func NewLocalSession(id, path string, duration time.Duration) *Session {
	return &Session{
		ID:        id,
		Mode:      ModeLocal,
		Duration:  duration,
		LocalPath: path,
	}
}

// TrackNames returns the stem names in render order.
func (s *Session) TrackNames() []string {
	names := make([]string, len(s.Tracks))
	for i, t := range s.Tracks {
		names[i] = t.Name
	}
	return names
}

// ClampPosition limits pos to [0, Duration].
func (s *Session) ClampPosition(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if pos > s.Duration {
		return s.Duration
	}
	return pos
}
