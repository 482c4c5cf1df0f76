// internal/relay/stats.go
package relay

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the relay counters. Exact values
// are not safety-critical; eventual consistency is fine for reporting.
type Snapshot struct {
	Pass           int // successful wire exchanges
	Fail           int // failed primary exchanges
	Recovered      int // retries that succeeded
	Retry          int // recovery attempts made
	Delivered      int // backend POSTs acknowledged
	DeliveryFailed int // backend POSTs that failed
	Requeued       int // failed deliveries put back for another pass

	LastMessage string // last diagnostic message
}

// Stats is the single shared statistics record. All mutation goes
// through its methods; readers take a Snapshot.
type Stats struct {
	mu    sync.Mutex
	snap  Snapshot
	start time.Time
}

func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Uptime reports how long the relay has been running.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.start)
}

// SeedPass initializes the pass counter from the backend's stored row
// count after a restart.
func (s *Stats) SeedPass(n int) {
	s.mu.Lock()
	s.snap.Pass = n
	s.mu.Unlock()
}

func (s *Stats) Pass() {
	s.mu.Lock()
	s.snap.Pass++
	s.mu.Unlock()
	exchangesTotal.WithLabelValues("pass").Inc()
}

func (s *Stats) Fail(msg string) {
	s.mu.Lock()
	s.snap.Fail++
	s.snap.LastMessage = msg
	s.mu.Unlock()
	exchangesTotal.WithLabelValues("fail").Inc()
}

func (s *Stats) Retry() {
	s.mu.Lock()
	s.snap.Retry++
	s.mu.Unlock()
	retriesTotal.Inc()
}

func (s *Stats) Recovered() {
	s.mu.Lock()
	s.snap.Recovered++
	s.mu.Unlock()
	recoveriesTotal.Inc()
}

func (s *Stats) Delivered() {
	s.mu.Lock()
	s.snap.Delivered++
	s.mu.Unlock()
	forwardsTotal.WithLabelValues("delivered").Inc()
}

func (s *Stats) DeliveryFailed(msg string) {
	s.mu.Lock()
	s.snap.DeliveryFailed++
	s.snap.LastMessage = msg
	s.mu.Unlock()
	forwardsTotal.WithLabelValues("failed").Inc()
}

func (s *Stats) Requeued() {
	s.mu.Lock()
	s.snap.Requeued++
	s.mu.Unlock()
	requeuesTotal.Inc()
}

func (s *Stats) SetLastMessage(msg string) {
	s.mu.Lock()
	s.snap.LastMessage = msg
	s.mu.Unlock()
}
