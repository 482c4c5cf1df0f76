// internal/relay/types.go
package relay

import "github.com/espnet/sensor-relay/internal/reading"

// OpKind is the closed set of retryable wire operations. Recovery jobs
// carry an op kind instead of a callable so the job type stays inert
// data; dispatch happens through the relay's source table.
type OpKind uint8

const (
	OpLineExchange OpKind = iota + 1
	OpModbusPoll
)

func (k OpKind) String() string {
	switch k {
	case OpLineExchange:
		return "line"
	case OpModbusPoll:
		return "modbus"
	default:
		return "unknown"
	}
}

// RecoveryJob is one failed wire operation awaiting retry. The queue
// owns its copy; enqueue must survive the enqueuing stack frame.
type RecoveryJob struct {
	Op       OpKind
	Endpoint string
	Command  string
}

// TelemetryMessage is one pending backend delivery.
type TelemetryMessage struct {
	Device string
	Line   string // URL-encoded form body
	Key    int    // backend row key for compensating deletes
}

// Exchanger performs one wire operation against an endpoint.
type Exchanger interface {
	Exchange(endpoint, command string) (reading.Grid, error)
}

// Backend is the exact contract the relay needs from the HTTP backend.
type Backend interface {
	Post(line string) (int, error)
	DeleteRow(key int) error
	DeleteEndpoint(addr string) error
}

// Mirror receives a copy of each delivered telemetry line.
// Implementations must not block.
type Mirror interface {
	Publish(device, line string)
}
