// internal/poller/poller.go
package poller

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/espnet/sensor-relay/internal/backend"
	"github.com/espnet/sensor-relay/internal/relay"
)

// DeviceLister refreshes the discovered endpoint set. The poller
// depends on discovery only; it never parses the wire format itself.
type DeviceLister interface {
	FetchDevices() ([]backend.Device, error)
}

// Dispatcher performs one wire operation and owns all failure
// handling. The poller never retries; recovery belongs to the relay.
type Dispatcher interface {
	Poll(op relay.OpKind, endpoint, command string, report bool) error
}

// Target is a statically configured endpoint polled alongside the
// discovered set.
type Target struct {
	Name     string
	Endpoint string
	Op       relay.OpKind
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration
	Command  string
	Static   []Target
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	At       time.Time
	Devices  int
	Failures int
	Err      error // discovery failure; static targets are still polled
}

// Poller is a dumb, clock-driven reader: refresh the device list,
// exchange the poll command with every endpoint, repeat.
type Poller struct {
	cfg      Config
	devices  DeviceLister
	dispatch Dispatcher

	lastSet string // last logged device membership
}

// New creates a poller with immutable config.
func New(cfg Config, devices DeviceLister, dispatch Dispatcher) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Command == "" {
		return nil, errors.New("poller: command required")
	}
	if devices == nil && len(cfg.Static) == 0 {
		return nil, errors.New("poller: nothing to poll")
	}
	return &Poller{cfg: cfg, devices: devices, dispatch: dispatch}, nil
}

// PollOnce performs exactly one poll cycle. Endpoint failures do not
// abort the cycle; every endpoint gets its attempt.
func (p *Poller) PollOnce() CycleResult {
	res := CycleResult{At: time.Now()}

	var devs []backend.Device
	if p.devices != nil {
		var err error
		devs, err = p.devices.FetchDevices()
		if err != nil {
			res.Err = err
			log.Warn().Err(err).Msg("device discovery failed")
		}
	}
	p.logMembership(devs)

	for _, d := range devs {
		res.Devices++
		if err := p.dispatch.Poll(relay.OpLineExchange, d.Addr, p.cfg.Command, true); err != nil {
			res.Failures++
		}
	}

	for _, t := range p.cfg.Static {
		res.Devices++
		if err := p.dispatch.Poll(t.Op, t.Endpoint, p.cfg.Command, true); err != nil {
			res.Failures++
		}
	}

	return res
}

// logMembership logs the discovered set once per change, not per cycle.
func (p *Poller) logMembership(devs []backend.Device) {
	var b strings.Builder
	for _, d := range devs {
		b.WriteString(d.Name)
		b.WriteByte('=')
		b.WriteString(d.Addr)
		b.WriteByte(' ')
	}
	set := b.String()
	if set == p.lastSet {
		return
	}
	p.lastSet = set
	log.Info().Int("devices", len(devs)).Str("set", strings.TrimSpace(set)).Msg("device set changed")
}
