// internal/relay/router.go
package relay

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/espnet/sensor-relay/internal/reading"
)

// sensorNames maps wire sensor-type codes to logical sensor names.
// Unknown codes are skipped, not errors: unregistered sensor types are
// expected to appear over time.
var sensorNames = map[int]string{
	77: "BMP390",
	76: "BME280",
	58: "BMP280",
	44: "SHT35",
	48: "ADS1115",
	28: "DS1",
}

// SensorName resolves a sensor-type code.
func SensorName(code int) (string, bool) {
	name, ok := sensorNames[code]
	return name, ok
}

// route dispatches each populated row to the forward queue. Routing
// runs inline with the polling path and must not stall it: enqueue is
// non-blocking and a full queue drops the message.
func (r *Relay) route(g reading.Grid) {
	for i := 0; i < reading.Rows; i++ {
		code := g.Code(i)
		if code == 0 {
			break
		}
		name, ok := sensorNames[code]
		if !ok {
			continue
		}

		msg := r.buildMessage(name, g[i])
		select {
		case r.forwardQ <- msg:
		default:
			droppedTotal.WithLabelValues("forward").Inc()
			log.Warn().Str("sensor", name).Msg("forward queue full, telemetry dropped")
		}
	}
}

func (r *Relay) buildMessage(name string, row [reading.Fields]float64) TelemetryMessage {
	v := url.Values{}
	v.Set("api_key", r.cfg.APIKey)
	v.Set("sensor", name)
	v.Set("location", r.cfg.Location)
	v.Set("value1", formatMeasurement(row[1]))
	v.Set("value2", formatMeasurement(row[2]))
	v.Set("value3", strconv.Itoa(r.stats.Snapshot().Pass))

	return TelemetryMessage{
		Device: name,
		Line:   v.Encode(),
		Key:    int(row[3]),
	}
}

// formatMeasurement renders a measurement with minimal digits. The
// backend expects a decimal point in every measurement field.
func formatMeasurement(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
