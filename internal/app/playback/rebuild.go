package playback

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/stembox/internal/domain/track"
)

// requestWork wakes the worker. Requests made while one is already pending
// collapse into it.
func (c *Controller) requestWork() {
	select {
	case c.workCh <- struct{}{}:
	default:
	}
}

// requestRebuildLocked marks the rendered mix stale and wakes the worker.
func (c *Controller) requestRebuildLocked() {
	c.stale = true
	c.requestWork()
}

// workLoop runs queued starts, rebuilds and seek reloads one at a time until
// the controller is closed.
func (c *Controller) workLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.workCh:
		}

		if d := c.config.RebuildDebounce; d > 0 && c.debounced() {
			timer := time.NewTimer(d)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			select {
			case <-c.workCh:
				c.logger.Debug().Msg("coalesced rebuild requests")
			default:
			}
		}

		c.work()
	}
}

// debounced reports whether the pending work is a rebuild only.
func (c *Controller) debounced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale && !c.starting
}

// work runs the most important pending job. Jobs still pending afterwards
// wake the worker again.
func (c *Controller) work() {
	c.mu.Lock()
	starting, stale, reseek := c.starting, c.stale, c.reseek
	c.mu.Unlock()

	switch {
	case starting:
		c.start()
	case stale:
		c.rebuild()
	case reseek:
		c.reload()
	}

	c.mu.Lock()
	if c.starting || c.stale || c.reseek {
		c.requestWork()
	}
	c.mu.Unlock()
}

// start renders the first artifact (Stems) and begins output at the held
// position.
func (c *Controller) start() {
	c.mu.Lock()
	if !c.starting || c.session == nil {
		c.mu.Unlock()
		return
	}
	sess := c.session
	if sess.Mode == track.ModeLocal {
		defer c.mu.Unlock()
		c.starting = false
		if err := c.startLocked(sess.LocalPath); err != nil {
			c.abortLocked(err)
		}
		return
	}
	gen := c.gen
	snap := c.params.Snapshot()
	c.mu.Unlock()

	path, err := c.render(c.config.TempDir, sess, snap)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug().Msg("discarding superseded start")
		removeArtifact(path, c.logger)
		return
	}
	c.starting = false
	if err != nil {
		c.abortLocked(err)
		return
	}

	c.artifact = path
	if err := c.startLocked(path); err != nil {
		c.abortLocked(err)
		return
	}
	if c.params.Version() != snap.Version {
		c.requestRebuildLocked()
	}
}

// rebuild stops the output, renders the current parameters and resumes from
// the position held when the output was stopped.
func (c *Controller) rebuild() {
	c.mu.Lock()
	c.stale = false
	if c.session == nil || c.session.Mode != track.ModeStems || c.state == StateStopped || c.starting {
		c.mu.Unlock()
		return
	}
	if c.state == StatePaused {
		c.dirty = true
		c.mu.Unlock()
		return
	}

	gen := c.gen
	sess := c.session
	// A pending seek already holds the position to resume from.
	if c.loaded && !c.reseek {
		c.position = sess.ClampPosition(c.device.Position())
	}
	c.reseek = false
	c.haltLocked()
	c.rebuilding = true
	snap := c.params.Snapshot()
	c.mu.Unlock()

	started := time.Now()
	path, err := c.render(c.config.TempDir, sess, snap)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug().Msg("discarding stale rebuild")
		removeArtifact(path, c.logger)
		return
	}
	c.rebuilding = false

	if err != nil {
		c.abortLocked(err)
		return
	}

	c.artifact = path
	if err := c.loadDeviceLocked(path, c.position); err != nil {
		c.abortLocked(err)
		return
	}
	if c.state == StatePaused {
		if err := c.device.Pause(); err != nil {
			c.abortLocked(errors.Mark(errors.Wrap(err, "failed to pause after rebuild"), ErrDevice))
			return
		}
	}

	if c.params.Version() != snap.Version {
		if c.state == StatePlaying {
			c.requestRebuildLocked()
		} else {
			c.dirty = true
		}
	}
	c.logger.Info().Msgf("rebuilt mix in %v: resume at %v", time.Since(started), c.position)
}

// reload restarts the current source at the held position after a seek.
func (c *Controller) reload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.reseek {
		return
	}
	c.reseek = false
	if c.session == nil || c.state == StateStopped || c.starting || c.rebuilding {
		return
	}

	source := c.sourceLocked()
	if err := c.device.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to stop device before seek")
	}
	c.loaded = false

	if err := c.loadDeviceLocked(source, c.position); err != nil {
		c.abortLocked(err)
		return
	}
	if c.state == StatePaused {
		if err := c.device.Pause(); err != nil {
			c.abortLocked(errors.Mark(errors.Wrap(err, "failed to pause after seek"), ErrDevice))
			return
		}
	}
	c.logger.Debug().Msgf("reloaded %s at %v", source, c.position)
}
