// internal/backend/devices.go
package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// Device is one discovered sensor endpoint.
type Device struct {
	Name string
	Addr string
}

// ParseDeviceList parses the discovery payload
//
//	<count>|<name>:<addr>|<name>:<addr>|
//
// into a typed device list. The wire format is kept exactly as the
// backend emits it; malformed entries are skipped rather than failing
// the whole list, since a single bad row must not blind the relay to
// every other device.
func ParseDeviceList(payload string) ([]Device, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("backend: empty device list")
	}

	fields := strings.Split(payload, "|")
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("backend: device list count %q: %w", fields[0], err)
	}

	devices := make([]Device, 0, count)
	for _, entry := range fields[1:] {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sep := strings.Index(entry, ":")
		if sep <= 0 || sep == len(entry)-1 {
			continue
		}
		name := entry[:sep]
		// Some backend rows carry a comma-separated prefix before the
		// device name; only the final segment is the name.
		if j := strings.LastIndex(name, ","); j >= 0 {
			name = name[j+1:]
		}
		if name == "" {
			continue
		}
		devices = append(devices, Device{Name: name, Addr: entry[sep+1:]})
	}
	return devices, nil
}
