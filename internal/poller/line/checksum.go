// internal/poller/line/checksum.go
package line

import (
	"hash/crc32"
	"strconv"
)

// checksum is the frame integrity check: plain CRC-32 (IEEE), matching
// the sensor firmware's CRC32 library.
func checksum(payload string) uint32 {
	return crc32.ChecksumIEEE([]byte(payload))
}

// Frame builds a wire frame for a payload. Endpoints are the usual
// senders; the relay uses this in tests and in the probe command's
// frame-echo mode.
func Frame(payload string) string {
	return strconv.FormatUint(uint64(checksum(payload)), 16) + ":" + payload
}
