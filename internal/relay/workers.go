// internal/relay/workers.go
package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Start launches the recovery and forward workers. One goroutine each;
// both run until the context is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go r.recoveryWorker(ctx)
	go r.forwardWorker(ctx)
}

// recoveryWorker retries failed wire operations, serialized by the
// socket mutex. A retry that fails again goes back through
// SubmitRecovery, which may trigger the full-queue shed.
func (r *Relay) recoveryWorker(ctx context.Context) {
	log.Debug().Msg("recovery worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.recoveryQ:
			r.sockMu.Lock()
			sleep(ctx, r.cfg.RecoveryDelay)
			r.stats.Retry()

			if err := r.Poll(job.Op, job.Endpoint, job.Command, false); err != nil {
				r.SubmitRecovery(job)
			} else {
				r.stats.Recovered()
				log.Info().
					Str("endpoint", job.Endpoint).
					Str("command", job.Command).
					Msg("recovered last network failure")
			}
			r.sockMu.Unlock()
		}
	}
}

// forwardWorker delivers telemetry messages, serialized by the http
// mutex. A failed delivery triggers the compensating row delete and
// one non-blocking re-enqueue for another pass.
func (r *Relay) forwardWorker(ctx context.Context) {
	log.Debug().Msg("forward worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.forwardQ:
			r.httpMu.Lock()

			code, err := r.backend.Post(msg.Line)
			if err == nil && code > 0 {
				r.stats.Delivered()
				if r.mirror != nil {
					r.mirror.Publish(msg.Device, msg.Line)
				}
			} else {
				r.failedDelivery(ctx, msg, code, err)
			}

			// Pace deliveries so the backend is never saturated.
			sleep(ctx, r.cfg.ForwardDelay)
			r.httpMu.Unlock()
		}
	}
}

func (r *Relay) failedDelivery(ctx context.Context, msg TelemetryMessage, code int, err error) {
	log.Warn().
		Err(err).
		Int("status", code).
		Int("key", msg.Key).
		Str("sensor", msg.Device).
		Msg("delivery failed, deleting backend row")
	r.stats.DeliveryFailed("delivery failed for " + msg.Device)

	// The backend may hold a half-written row for this key; delete it
	// before retrying the POST. Bounded attempts, stop on the first
	// success.
	for attempt := 0; attempt < r.cfg.MaxDeleteRetry; attempt++ {
		sleep(ctx, r.cfg.ForwardDelay)
		if err := r.backend.DeleteRow(msg.Key); err == nil {
			break
		}
	}

	select {
	case r.forwardQ <- msg:
		// Counted as recovered once the message is back on the queue,
		// matching the firmware's books.
		r.stats.Requeued()
	default:
		droppedTotal.WithLabelValues("forward").Inc()
		log.Warn().Int("key", msg.Key).Msg("forward queue full, failed delivery dropped")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
