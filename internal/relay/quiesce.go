// internal/relay/quiesce.go
package relay

import (
	"time"

	"github.com/rs/zerolog/log"
)

const quiescePoll = 100 * time.Millisecond

// Quiesce waits for both queues to drain, then acquires both worker
// mutexes WITHOUT releasing them, guaranteeing no worker is
// mid-operation when it returns true. Call only before a disruptive
// lifecycle action (controlled restart); the relay does no further
// work afterwards.
//
// Returns false if the queues are still busy when the timeout elapses.
func (r *Relay) Quiesce(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for r.RecoveryDepth() > 0 || r.ForwardDepth() > 0 {
		if time.Now().After(deadline) {
			log.Warn().
				Int("recovery", r.RecoveryDepth()).
				Int("forward", r.ForwardDepth()).
				Msg("quiesce timeout, queues still busy")
			return false
		}
		time.Sleep(quiescePoll)
	}

	r.sockMu.Lock()
	r.httpMu.Lock()
	log.Info().Msg("queues drained, workers idle")
	return true
}
