// internal/poller/modbus/source.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	gomodbus "github.com/goburrow/modbus"

	"github.com/espnet/sensor-relay/internal/reading"
)

// Geometry describes one Modbus endpoint's register layout. The code
// is assigned from config, not read from the device; Modbus endpoints
// carry no sensor-type register.
type Geometry struct {
	UnitID     uint8
	Register   uint16
	Quantity   uint16 // 1..4 measurement registers
	Scale      float64
	SensorCode int
}

// Source reads Modbus TCP endpoints into the same reading grid the
// wire protocol produces, so routed telemetry is indistinguishable
// downstream. One transient connection per exchange.
type Source struct {
	timeout   time.Duration
	mu        sync.Mutex // serializes exchanges; one in-flight connection
	endpoints map[string]Geometry

	// dial is swapped out in tests.
	dial func(addr string, unit uint8, timeout time.Duration) (registerReader, func() error, error)
}

type registerReader interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

func New(timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Source{
		timeout:   timeout,
		endpoints: make(map[string]Geometry),
		dial:      dialTCP,
	}
}

// Register adds an endpoint's geometry. Exchanges against unregistered
// endpoints fail.
func (s *Source) Register(addr string, g Geometry) error {
	if g.Quantity < 1 || int(g.Quantity) > reading.Fields-1 {
		return fmt.Errorf("modbus: %s: quantity %d out of range", addr, g.Quantity)
	}
	if g.SensorCode <= 0 {
		return fmt.Errorf("modbus: %s: sensor code required", addr)
	}
	if g.Scale == 0 {
		g.Scale = 1
	}
	s.endpoints[addr] = g
	return nil
}

// Exchange polls one registered endpoint. The command is ignored;
// Modbus endpoints only support reading.
func (s *Source) Exchange(endpoint, command string) (reading.Grid, error) {
	var grid reading.Grid

	s.mu.Lock()
	defer s.mu.Unlock()

	geo, ok := s.endpoints[endpoint]
	if !ok {
		return grid, fmt.Errorf("modbus: endpoint %s not registered", endpoint)
	}

	client, closer, err := s.dial(endpoint, geo.UnitID, s.timeout)
	if err != nil {
		return grid, fmt.Errorf("modbus: %s: connect: %w", endpoint, err)
	}
	defer closer()

	raw, err := client.ReadInputRegisters(geo.Register, geo.Quantity)
	if err != nil {
		return grid, fmt.Errorf("modbus: %s: read: %w", endpoint, err)
	}
	if len(raw) < int(geo.Quantity)*2 {
		return grid, errors.New("modbus: short register payload")
	}

	grid[0][0] = float64(geo.SensorCode)
	for i := 0; i < int(geo.Quantity); i++ {
		v := binary.BigEndian.Uint16(raw[2*i:])
		grid[0][i+1] = float64(v) * geo.Scale
	}
	return grid, nil
}

func dialTCP(addr string, unit uint8, timeout time.Duration) (registerReader, func() error, error) {
	handler := gomodbus.NewTCPClientHandler(addr)
	handler.Timeout = timeout
	handler.SlaveId = unit
	if err := handler.Connect(); err != nil {
		return nil, nil, err
	}
	return gomodbus.NewClient(handler), handler.Close, nil
}
