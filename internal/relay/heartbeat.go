// internal/relay/heartbeat.go
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RunHeartbeat periodically logs the counter snapshot and uptime.
// This is the relay's liveness signal; an external supervisor watching
// the log stream restarts the process if it goes quiet.
func (r *Relay) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := r.stats.Snapshot()
			log.Info().
				Int("pass", snap.Pass).
				Int("fail", snap.Fail).
				Int("recovered", snap.Recovered).
				Int("retry", snap.Retry).
				Int("delivered", snap.Delivered).
				Int("recovery_depth", r.RecoveryDepth()).
				Int("forward_depth", r.ForwardDepth()).
				Str("uptime", FormatUptime(r.stats.Uptime())).
				Msg("heartbeat")
		}
	}
}

// FormatUptime renders a duration as days/hours/minutes/seconds.
func FormatUptime(d time.Duration) string {
	secs := int64(d.Seconds())
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs%60)
}
