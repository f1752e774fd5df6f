package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/stembox/internal/infra/audiofile"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNull(length time.Duration) (*Null, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	n := NewNull()
	n.now = clock.now
	n.probe = func(string) (time.Duration, error) { return length, nil }
	return n, clock
}

func TestNull_PlayPauseResume(t *testing.T) {
	n, clock := newTestNull(10 * time.Second)

	require.NoError(t, n.Load("mix.wav"))
	require.NoError(t, n.Play(2*time.Second))
	clock.advance(time.Second)
	assert.Equal(t, 3*time.Second, n.Position())

	require.NoError(t, n.Pause())
	clock.advance(5 * time.Second)
	assert.Equal(t, 3*time.Second, n.Position(), "position is frozen while paused")

	require.NoError(t, n.Resume())
	clock.advance(500 * time.Millisecond)
	assert.Equal(t, 3500*time.Millisecond, n.Position())

	clock.advance(time.Minute)
	assert.Equal(t, 10*time.Second, n.Position(), "position never passes the end")
}

func TestNull_OffsetClamped(t *testing.T) {
	n, _ := newTestNull(4 * time.Second)

	require.NoError(t, n.Load("mix.wav"))
	require.NoError(t, n.Play(time.Minute))
	assert.Equal(t, 4*time.Second, n.Position())

	require.NoError(t, n.Play(-time.Second))
	assert.Equal(t, time.Duration(0), n.Position())
}

func TestNull_NotLoaded(t *testing.T) {
	n, _ := newTestNull(time.Second)

	assert.True(t, errors.Is(n.Play(0), ErrNotLoaded))
	assert.True(t, errors.Is(n.Pause(), ErrNotLoaded))
	assert.True(t, errors.Is(n.Resume(), ErrNotLoaded))

	require.NoError(t, n.Load("mix.wav"))
	require.NoError(t, n.Stop())
	assert.True(t, errors.Is(n.Play(0), ErrNotLoaded))
	assert.Empty(t, n.Loaded())
}

func TestNull_Volume(t *testing.T) {
	n, _ := newTestNull(time.Second)

	require.NoError(t, n.SetVolume(0.4))
	assert.Equal(t, 0.4, n.Volume())
	require.NoError(t, n.SetVolume(3))
	assert.Equal(t, 1.0, n.Volume())
}

func TestNull_ProbesRealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.wav")
	require.NoError(t, audiofile.WritePCM16(path, make([]int16, 2*16000), 16000, 2))

	n := NewNull()
	require.NoError(t, n.Load(path))
	assert.Equal(t, path, n.Loaded())
	require.NoError(t, n.Play(5*time.Second))
	assert.Equal(t, time.Second, n.Position(), "offset is clamped to the file length")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		deviceType string
		settings   map[string]any
		wantErr    bool
	}{
		{name: "null device", deviceType: TypeNull},
		{name: "unknown type", deviceType: "alsa", wantErr: true},
		{
			name:       "speaker with invalid sample rate",
			deviceType: TypeSpeaker,
			settings:   map[string]any{"sample_rate": 100},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := New(tt.deviceType, tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, dev)
			assert.NoError(t, dev.Close())
		})
	}
}

func TestDecodeSettings_Defaults(t *testing.T) {
	var cfg SpeakerConfig
	require.NoError(t, decodeSettings(map[string]any{"buffer_ms": "250"}, &cfg))

	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 250, cfg.BufferMs)
	assert.Equal(t, 4, cfg.ResampleQuality)
}
