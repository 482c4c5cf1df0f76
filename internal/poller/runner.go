// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run starts the ticker loop. One poll cycle per tick, no overlap; a
// slow cycle simply delays the next tick's work.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// First cycle immediately; the backend row state is stale after
	// a restart until the relay reports in.
	p.report(p.PollOnce())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.report(p.PollOnce())
		}
	}
}

func (p *Poller) report(res CycleResult) {
	log.Debug().
		Int("devices", res.Devices).
		Int("failures", res.Failures).
		Dur("took", time.Since(res.At)).
		Msg("poll cycle complete")
}
