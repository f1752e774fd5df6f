package playback

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller calls a sample function at a fixed interval until the context is
// cancelled or the function reports that playback is over.
type Poller struct {
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a new Poller instance.
func NewPoller(interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run blocks until ctx is cancelled or sample returns false.
func (p *Poller) Run(ctx context.Context, sample func() bool) {
	p.logger.Debug().Dur("interval", p.interval).Msg("poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Msg("poller cancelled")
			return
		case <-ticker.C:
			if !sample() {
				p.logger.Debug().Msg("poller finished")
				return
			}
		}
	}
}
