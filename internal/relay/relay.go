// internal/relay/relay.go
package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config is the relay runtime config. Zero values fall back to the
// firmware's constants.
type Config struct {
	RecoveryDepth int
	ForwardDepth  int

	RecoveryDelay  time.Duration // backoff before each recovery retry
	ForwardDelay   time.Duration // delete-retry spacing and delivery pacing
	MaxDeleteRetry int           // compensating delete attempts per failed POST

	APIKey   string
	Location string
}

// Relay owns the two bounded queues, their workers and the shared
// counters. Queues never grow; both are process-lifetime singletons in
// practice.
type Relay struct {
	cfg     Config
	backend Backend
	mirror  Mirror
	sources map[OpKind]Exchanger
	stats   *Stats

	recoveryQ chan RecoveryJob
	forwardQ  chan TelemetryMessage

	// sockMu serializes recovery work, httpMu forward work. Quiesce
	// takes both to guarantee no worker is mid-operation.
	sockMu sync.Mutex
	httpMu sync.Mutex
}

func New(cfg Config, be Backend) *Relay {
	if cfg.RecoveryDepth <= 0 {
		cfg.RecoveryDepth = 2
	}
	if cfg.ForwardDepth <= 0 {
		cfg.ForwardDepth = 5
	}
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = 50 * time.Millisecond
	}
	if cfg.ForwardDelay <= 0 {
		cfg.ForwardDelay = 2 * time.Second
	}
	if cfg.MaxDeleteRetry <= 0 {
		cfg.MaxDeleteRetry = 5
	}

	return &Relay{
		cfg:       cfg,
		backend:   be,
		sources:   make(map[OpKind]Exchanger),
		stats:     NewStats(),
		recoveryQ: make(chan RecoveryJob, cfg.RecoveryDepth),
		forwardQ:  make(chan TelemetryMessage, cfg.ForwardDepth),
	}
}

// RegisterSource binds an op kind to its exchanger. Must be called
// before Start.
func (r *Relay) RegisterSource(op OpKind, ex Exchanger) {
	r.sources[op] = ex
}

// SetMirror attaches an optional telemetry mirror. Must be called
// before Start.
func (r *Relay) SetMirror(m Mirror) {
	r.mirror = m
}

func (r *Relay) Stats() *Stats {
	return r.stats
}

func (r *Relay) RecoveryDepth() int { return len(r.recoveryQ) }
func (r *Relay) ForwardDepth() int  { return len(r.forwardQ) }

// Poll performs one wire operation and routes the result.
//
// report distinguishes a primary attempt from a recovery retry: a
// failing retry must not requeue itself or touch the fail counter —
// retries are driven solely by the recovery worker's loop.
func (r *Relay) Poll(op OpKind, endpoint, command string, report bool) error {
	src := r.sources[op]
	if src == nil {
		return fmt.Errorf("relay: no source registered for %s op", op)
	}

	grid, err := src.Exchange(endpoint, command)
	if err != nil {
		if report {
			r.stats.Fail(err.Error())
			r.SubmitRecovery(RecoveryJob{Op: op, Endpoint: endpoint, Command: command})
		}
		return err
	}

	r.stats.Pass()
	r.route(grid)
	return nil
}

// SubmitRecovery enqueues a failed operation for retry. Never blocks.
//
// A full queue means recovery itself has failed: shed every pending
// job and ask the backend to purge the endpoint's state, rather than
// deadlock or grow without bound.
func (r *Relay) SubmitRecovery(job RecoveryJob) {
	select {
	case r.recoveryQ <- job:
		return
	default:
	}

	log.Warn().
		Str("endpoint", job.Endpoint).
		Str("command", job.Command).
		Msg("recovery queue full, shedding jobs and purging backend state")
	droppedTotal.WithLabelValues("recovery").Inc()

	if err := r.backend.DeleteEndpoint(job.Endpoint); err != nil {
		log.Error().Err(err).Str("endpoint", job.Endpoint).Msg("compensating endpoint delete failed")
	}

	for {
		select {
		case <-r.recoveryQ:
		default:
			return
		}
	}
}
