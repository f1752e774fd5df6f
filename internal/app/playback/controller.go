package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/app/mixer"
	"github.com/osa030/stembox/internal/app/session"
	"github.com/osa030/stembox/internal/domain/track"
	"github.com/osa030/stembox/internal/infra/engine"
)

// Config holds controller configuration.
type Config struct {
	TempDir         string        // Directory for rendered artifacts ("" = OS temp dir)
	PollInterval    time.Duration // Position sampling interval
	RebuildDebounce time.Duration // Delay that coalesces parameter changes (0 = none)
	EndTolerance    time.Duration // Distance from the end that counts as finished
	MasterGain      float64       // Master gain applied on every load
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PollInterval: 200 * time.Millisecond,
		EndTolerance: 100 * time.Millisecond,
		MasterGain:   mixer.DefaultMasterGain,
	}
}

// TrackStatus is the mix setting of one stem.
type TrackStatus struct {
	Name    string
	Enabled bool
	Gain    float64
}

// Status is a point-in-time view of the controller.
type Status struct {
	State      State
	Mode       track.Mode
	SessionID  string
	Position   time.Duration
	Duration   time.Duration
	MasterGain float64
	Starting   bool
	Rebuilding bool
	Tracks     []TrackStatus
}

// Controller owns the loaded session, the mix parameters, the rendered
// artifact and the output device.
//
// All state is guarded by mu. Starts, seeks and rebuilds are queued to a
// single worker goroutine, so callers never wait on a render or a device
// reload. Rendering runs without mu held; gen is bumped whenever a load,
// stop, finish or failure invalidates work that is still in flight, and
// results carrying an older gen are discarded.
type Controller struct {
	mu     sync.Mutex
	loadMu sync.Mutex // Serializes loads

	config    Config
	device    engine.Device
	store     *session.Store
	params    *mixer.Params
	publisher Publisher
	poller    *Poller
	render    func(dir string, sess *track.Session, snap mixer.Snapshot) (string, error)
	logger    zerolog.Logger

	session    *track.Session
	state      State
	position   time.Duration
	gen        uint64
	artifact   string // Current rendered artifact (Stems mode)
	loaded     bool   // Device has a source loaded
	starting   bool   // A start is queued or rendering
	rebuilding bool   // Worker is rendering a rebuild
	stale      bool   // Rebuild requested while playing
	reseek     bool   // Device reload at position requested by Seek
	dirty      bool   // Parameters changed while paused
	closed     bool
	pollCancel context.CancelFunc

	workCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller and starts its worker.
// A nil store gets a file-backed store; a nil publisher drops events.
func NewController(config Config, device engine.Device, store *session.Store, publisher Publisher) *Controller {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.EndTolerance < 0 {
		config.EndTolerance = 0
	}
	if store == nil {
		store = session.NewStore(nil, 0)
	}
	if publisher == nil {
		publisher = discard{}
	}

	logger := zlog.With().Str("component", "playback").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:    config,
		device:    device,
		store:     store,
		params:    mixer.NewParams(),
		publisher: publisher,
		poller:    NewPoller(config.PollInterval, logger),
		render:    renderArtifact,
		logger:    logger,
		state:     StateStopped,
		workCh:    make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.params.SetMasterGain(config.MasterGain)

	c.wg.Add(1)
	go c.workLoop()
	return c
}

// LoadStems decodes the stem files and replaces the session. On failure the
// previous session and playback state are left untouched.
func (c *Controller) LoadStems(ctx context.Context, files map[string]string) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	sess, err := c.store.LoadStems(ctx, files)
	if err != nil {
		c.logger.Warn().Err(err).Str("code", ErrorCode(err)).Msg("failed to load stems")
		return err
	}
	c.install(sess)
	return nil
}

// LoadLocal replaces the session with a single local file. On failure the
// previous session and playback state are left untouched.
func (c *Controller) LoadLocal(ctx context.Context, path string) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	sess, err := c.store.LoadLocal(ctx, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("code", ErrorCode(err)).Msg("failed to load local file")
		return err
	}
	c.install(sess)
	return nil
}

func (c *Controller) install(sess *track.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.session = sess
	c.params.Reset(sess.TrackNames(), c.config.MasterGain)

	c.logger.Info().Msgf("session installed: id=%s mode=%s duration=%v", sess.ID, sess.Mode, sess.Duration)
	c.publishLocked(EventSessionLoaded)
	c.publishLocked(EventStateChanged)
}

// Play starts playback from position 0, or resumes when paused. It returns
// once the start is queued; the Playing state change is published when
// output begins. In Stems mode an inaudible mix fails with mixer.ErrEmptyMix
// before anything is queued.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.session == nil {
		return ErrNoSession
	}
	if c.state == StatePlaying || c.starting {
		return nil
	}
	if c.state == StatePaused {
		return c.resumeLocked()
	}
	if c.session.Mode == track.ModeStems && !c.params.Snapshot().Audible() {
		return errors.Wrap(mixer.ErrEmptyMix, "nothing to play")
	}

	c.position = 0
	c.starting = true
	c.requestWork()
	return nil
}

// Pause pauses output at the current position.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}

	// A running rebuild or pending reload picks up the paused state.
	if !c.rebuilding && !c.reseek {
		if err := c.device.Pause(); err != nil {
			err = errors.Mark(errors.Wrap(err, "failed to pause"), ErrDevice)
			c.failLocked(err)
			return err
		}
		c.position = c.session.ClampPosition(c.device.Position())
	}

	c.state = StatePaused
	c.publishLocked(EventStateChanged)
	return nil
}

// Resume continues paused output. Parameter changes made while paused are
// rendered before output continues.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	return c.resumeLocked()
}

func (c *Controller) resumeLocked() error {
	if c.state != StatePaused {
		return ErrNotPaused
	}

	switch {
	case c.rebuilding:
	case c.dirty && c.session.Mode == track.ModeStems:
		c.dirty = false
		c.requestRebuildLocked()
	case c.reseek:
	default:
		if err := c.device.Resume(); err != nil {
			err = errors.Mark(errors.Wrap(err, "failed to resume"), ErrDevice)
			c.failLocked(err)
			return err
		}
	}

	c.state = StatePlaying
	c.publishLocked(EventStateChanged)
	return nil
}

// Stop halts output, deletes the artifact and rewinds to 0.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	c.resetLocked()
	c.publishLocked(EventStateChanged)
	return nil
}

// Seek moves to fraction of the duration. fraction is clamped to [0, 1].
// The held position is updated immediately regardless of what the device
// manages to do; the device reload is queued. A stopped Local session starts
// playing at the target. A stopped Stems session only reports the target,
// as Play always renders and starts at 0.
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	target := c.session.ClampPosition(time.Duration(fraction * float64(c.session.Duration)))
	c.position = target
	c.publishLocked(EventProgress)
	c.logger.Debug().Msgf("seek to %v (%.3f)", target, fraction)

	switch {
	case c.starting || c.rebuilding:
		// The pending start or reload resumes at the held position.
	case c.state == StateStopped:
		if c.session.Mode == track.ModeLocal {
			c.starting = true
			c.requestWork()
		}
	default:
		c.reseek = true
		c.requestWork()
	}
	return nil
}

// SetEnabled enables or disables a stem.
func (c *Controller) SetEnabled(name string, enabled bool) error {
	if err := c.params.SetEnabled(name, enabled); err != nil {
		return err
	}
	c.paramsChanged()
	return nil
}

// Toggle flips a stem and returns its new enabled state.
func (c *Controller) Toggle(name string) (bool, error) {
	enabled, err := c.params.Toggle(name)
	if err != nil {
		return false, err
	}
	c.paramsChanged()
	return enabled, nil
}

// SetGain sets a stem gain, clamped to [0, 1].
func (c *Controller) SetGain(name string, gain float64) error {
	if err := c.params.SetGain(name, gain); err != nil {
		return err
	}
	c.paramsChanged()
	return nil
}

// SetMasterGain sets the master gain, clamped to [0, 1], and applies it to
// the device immediately.
func (c *Controller) SetMasterGain(gain float64) error {
	gain = c.params.SetMasterGain(gain)

	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()

	if loaded {
		if err := c.device.SetVolume(gain); err != nil {
			return errors.Mark(errors.Wrap(err, "failed to set volume"), ErrDevice)
		}
	}
	c.paramsChanged()
	return nil
}

func (c *Controller) paramsChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Mode != track.ModeStems {
		return
	}
	switch c.state {
	case StatePlaying:
		c.requestRebuildLocked()
	case StatePaused:
		c.dirty = true
	}
}

// State returns the playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the last known position.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Session returns the loaded session, or nil.
func (c *Controller) Session() *track.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Status returns a consistent view of the controller and the mix.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.params.Snapshot()
	st := Status{
		State:      c.state,
		Mode:       track.ModeNone,
		Position:   c.position,
		MasterGain: snap.MasterGain,
		Starting:   c.starting,
		Rebuilding: c.rebuilding,
	}
	if c.session != nil {
		st.Mode = c.session.Mode
		st.SessionID = c.session.ID
		st.Duration = c.session.Duration
		for _, name := range c.session.TrackNames() {
			tp := snap.Track(name)
			st.Tracks = append(st.Tracks, TrackStatus{Name: name, Enabled: tp.Enabled, Gain: tp.Gain})
		}
	}
	return st
}

// Close stops playback, deletes the artifact and waits for the background
// goroutines. The device itself is not closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.resetLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.logger.Debug().Msg("controller closed")
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// startLocked loads source, starts it at the held position and enters
// Playing.
func (c *Controller) startLocked(source string) error {
	if err := c.loadDeviceLocked(source, c.position); err != nil {
		return err
	}
	c.state = StatePlaying
	c.dirty = false
	c.startPollerLocked()
	c.publishLocked(EventStateChanged)
	return nil
}

// loadDeviceLocked loads source into the device and plays it from offset.
// A device that cannot seek falls back to the start; that is logged only.
func (c *Controller) loadDeviceLocked(source string, offset time.Duration) error {
	if err := c.device.Load(source); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to load %s", source), ErrDevice)
	}
	c.loaded = true

	if err := c.device.SetVolume(c.params.MasterGain()); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to set volume"), ErrDevice)
	}
	if err := c.device.Play(offset); err != nil {
		if !errors.Is(err, engine.ErrSeekFallback) {
			return errors.Mark(errors.Wrapf(err, "failed to play from %v", offset), ErrDevice)
		}
		c.logger.Warn().Err(err).Msgf("device could not start at %v", offset)
	}
	return nil
}

func (c *Controller) sourceLocked() string {
	if c.session.Mode == track.ModeLocal {
		return c.session.LocalPath
	}
	return c.artifact
}

// haltLocked stops the device and deletes the artifact.
func (c *Controller) haltLocked() {
	if c.loaded {
		if err := c.device.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to stop device")
		}
		c.loaded = false
	}
	removeArtifact(c.artifact, c.logger)
	c.artifact = ""
}

// resetLocked returns to Stopped at position 0 and invalidates in-flight work.
func (c *Controller) resetLocked() {
	c.haltLocked()
	c.gen++
	c.stopPollerLocked()
	c.state = StateStopped
	c.position = 0
	c.starting = false
	c.rebuilding = false
	c.stale = false
	c.reseek = false
	c.dirty = false
}

// failLocked aborts playback after err. The caller returns err.
func (c *Controller) failLocked(err error) {
	c.logger.Error().Err(err).Str("code", ErrorCode(err)).Msg("playback aborted")
	c.resetLocked()
	c.publishLocked(EventStateChanged)
}

// abortLocked aborts playback after a failure on the worker, publishing the
// error before the state change.
func (c *Controller) abortLocked(err error) {
	c.logger.Error().Err(err).Str("code", ErrorCode(err)).Msg("playback aborted")
	c.resetLocked()
	c.publishErrLocked(EventError, err)
	c.publishLocked(EventStateChanged)
}

// finishLocked handles the end of the source.
func (c *Controller) finishLocked() {
	c.logger.Info().Msgf("playback finished: duration=%v", c.session.Duration)
	c.resetLocked()
	c.publishLocked(EventFinished)
	c.publishLocked(EventStateChanged)
}

func (c *Controller) startPollerLocked() {
	if c.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.pollCancel = cancel
	gen := c.gen

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poller.Run(ctx, func() bool { return c.sample(gen) })
	}()
}

func (c *Controller) stopPollerLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// sample reads the device position for the poller started in gen. It
// returns false once that poller should exit.
func (c *Controller) sample(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state == StateStopped {
		return false
	}
	if c.state == StatePaused || c.rebuilding || c.reseek || !c.loaded {
		return true
	}

	c.position = c.session.ClampPosition(c.device.Position())
	if c.session.Duration-c.position <= c.config.EndTolerance {
		c.finishLocked()
		return false
	}
	c.publishLocked(EventProgress)
	return true
}

// publishLocked publishes an event of type t carrying the current state.
func (c *Controller) publishLocked(t EventType) {
	c.publishErrLocked(t, nil)
}

func (c *Controller) publishErrLocked(t EventType, err error) {
	e := Event{
		Type:     t,
		State:    c.state,
		Mode:     track.ModeNone,
		Position: c.position,
		Err:      err,
	}
	if c.session != nil {
		e.Mode = c.session.Mode
		e.Duration = c.session.Duration
		e.SessionID = c.session.ID
	}
	c.publisher.Publish(e)
}
