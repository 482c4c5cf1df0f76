// internal/poller/line/client.go
package line

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/espnet/sensor-relay/internal/reading"
	"github.com/espnet/sensor-relay/internal/vault"
)

// Wire-protocol failure taxonomy. All three are retryable through the
// recovery queue; callers select on these with errors.Is.
var (
	ErrConnectFailed    = errors.New("connect failed")
	ErrTimeout          = errors.New("response timeout")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// MaxFrame bounds one response frame. The protocol is not streaming;
// anything larger is a misbehaving endpoint.
const MaxFrame = 2048

// drainWindow is how long to keep reading after the first byte arrives.
const drainWindow = 200 * time.Millisecond

// Config is the wire client config.
type Config struct {
	Port       int
	Timeout    time.Duration
	RawTimeout time.Duration

	// Cipher decrypts payloads when confidentiality is enabled;
	// nil means plaintext on the wire.
	Cipher *vault.Cipher
}

// Client owns one transient connection at a time to a sensor endpoint:
// connect, send a command line, read one frame, validate, tokenize.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = 8888
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RawTimeout <= 0 {
		cfg.RawTimeout = 35 * time.Second
	}
	return &Client{cfg: cfg}
}

// Exchange performs one full wire-protocol round trip and returns the
// tokenized reading grid. The returned error is one of ErrConnectFailed,
// ErrTimeout or ErrChecksumMismatch.
func (c *Client) Exchange(endpoint, command string) (reading.Grid, error) {
	var grid reading.Grid

	frame, err := c.roundTrip(endpoint, command, c.cfg.Timeout)
	if err != nil {
		return grid, err
	}

	payload, err := verifyFrame(frame)
	if err != nil {
		return grid, fmt.Errorf("line: %s: %w", endpoint, err)
	}

	if c.cfg.Cipher != nil {
		plain, err := c.cfg.Cipher.Decrypt(payload)
		if err != nil {
			// An undecryptable payload is indistinguishable from a
			// corrupted one as far as the caller is concerned.
			return grid, fmt.Errorf("line: %s: payload undecryptable: %w", endpoint, ErrChecksumMismatch)
		}
		payload = plain
	}

	return reading.Tokenize(payload), nil
}

// ExchangeRaw sends a command and returns the raw response frame
// without checksum or token processing. It waits far longer than
// Exchange; endpoint maintenance commands are slow.
func (c *Client) ExchangeRaw(endpoint, command string) (string, error) {
	frame, err := c.roundTrip(endpoint, command, c.cfg.RawTimeout)
	if err != nil {
		return "", err
	}
	return string(frame), nil
}

// Ping reports whether the endpoint accepts a TCP connection.
func (c *Client) Ping(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", c.addr(endpoint), c.cfg.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) addr(endpoint string) string {
	if strings.Contains(endpoint, ":") {
		return endpoint
	}
	return net.JoinHostPort(endpoint, strconv.Itoa(c.cfg.Port))
}

func (c *Client) roundTrip(endpoint, command string, readTimeout time.Duration) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", c.addr(endpoint), c.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("line: %s: %w: %v", endpoint, ErrConnectFailed, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return nil, fmt.Errorf("line: %s: send: %w: %v", endpoint, ErrConnectFailed, err)
	}

	frame, err := readFrame(conn, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("line: %s: %w", endpoint, err)
	}
	return frame, nil
}

// readFrame blocks until the first byte arrives or the timeout
// elapses, then drains whatever else the endpoint sends inside the
// drain window. The connection is closed by the caller; the protocol
// sends exactly one frame per command.
func readFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, MaxFrame)

	conn.SetReadDeadline(time.Now().Add(timeout))
	n, err := conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrTimeout
		}
		// Closed without a byte: same outcome as silence.
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	total := n
	for total < len(buf) {
		conn.SetReadDeadline(time.Now().Add(drainWindow))
		n, err = conn.Read(buf[total:])
		total += n
		if err != nil {
			break
		}
	}
	return buf[:total], nil
}

// verifyFrame parses "<hex-checksum>:<payload>" and recomputes the
// CRC-32 over the payload substring.
func verifyFrame(frame []byte) (string, error) {
	s := string(frame)
	sep := strings.Index(s, ":")
	if sep < 0 {
		return "", fmt.Errorf("frame has no checksum separator: %w", ErrChecksumMismatch)
	}

	want, err := strconv.ParseUint(strings.TrimSpace(s[:sep]), 16, 32)
	if err != nil {
		return "", fmt.Errorf("frame checksum %q not hex: %w", s[:sep], ErrChecksumMismatch)
	}

	payload := s[sep+1:]
	if got := checksum(payload); got != uint32(want) {
		return "", fmt.Errorf("frame checksum %08x, computed %08x: %w", want, got, ErrChecksumMismatch)
	}
	return payload, nil
}
