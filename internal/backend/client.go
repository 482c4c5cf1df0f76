// internal/backend/client.go
package backend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config is the backend transport config. Paths are script locations
// under BaseURL.
type Config struct {
	BaseURL string
	Timeout time.Duration

	PostPath           string
	DeleteRowPath      string
	DeleteEndpointPath string
	DevicesPath        string
	RowsPath           string
}

// Client talks to the telemetry backend: form-encoded POSTs for
// readings, fire-and-forget GETs for compensating deletes and
// discovery.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend: base url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Post delivers one form-encoded telemetry line and returns the HTTP
// status code. The response body is discarded; the relay only cares
// that the backend answered.
func (c *Client) Post(line string) (int, error) {
	resp, err := c.http.Post(
		c.cfg.BaseURL+c.cfg.PostPath,
		"application/x-www-form-urlencoded",
		strings.NewReader(line),
	)
	if err != nil {
		return 0, fmt.Errorf("backend: post: %w", err)
	}
	drain(resp)
	return resp.StatusCode, nil
}

// DeleteRow issues the compensating delete for a backend row key.
func (c *Client) DeleteRow(key int) error {
	return c.get(c.cfg.DeleteRowPath, "key", strconv.Itoa(key))
}

// DeleteEndpoint purges all backend state recorded for an endpoint
// address. Issued when the recovery queue saturates.
func (c *Client) DeleteEndpoint(addr string) error {
	return c.get(c.cfg.DeleteEndpointPath, "key", addr)
}

// FetchDevices retrieves and parses the connected-device list.
func (c *Client) FetchDevices() ([]Device, error) {
	body, err := c.getBody(c.cfg.DevicesPath)
	if err != nil {
		return nil, err
	}
	return ParseDeviceList(body)
}

// RowCount returns the backend's stored row count, used to seed the
// pass counter after a restart.
func (c *Client) RowCount() (int, error) {
	body, err := c.getBody(c.cfg.RowsPath)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, fmt.Errorf("backend: row count %q: %w", strings.TrimSpace(body), err)
	}
	return n, nil
}

func (c *Client) get(path, param, value string) error {
	u := c.cfg.BaseURL + path + "?" + param + "=" + url.QueryEscape(value)
	resp, err := c.http.Get(u)
	if err != nil {
		return fmt.Errorf("backend: get %s: %w", path, err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: get %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) getBody(path string) (string, error) {
	resp, err := c.http.Get(c.cfg.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("backend: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend: get %s: status %d", path, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("backend: get %s: read body: %w", path, err)
	}
	return string(b), nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
