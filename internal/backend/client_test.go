// internal/backend/client_test.go
package backend

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:            srv.URL,
		PostPath:           "/post-esp-data.php",
		DeleteRowPath:      "/delete.php",
		DeleteEndpointPath: "/deleteMAC.php",
		DevicesPath:        "/ip.php",
		RowsPath:           "/rows.php",
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPost(t *testing.T) {
	var gotBody string
	var gotContentType string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/post-esp-data.php" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	line := url.Values{"api_key": {"k"}, "sensor": {"BME280"}, "value1": {"22.5"}}.Encode()
	code, err := c.Post(line)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Errorf("status = %d", code)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody != line {
		t.Errorf("body = %q, want %q", gotBody, line)
	}
}

func TestPostReturnsErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	code, err := c.Post("x=y")
	if err != nil {
		t.Fatal(err)
	}
	// Post reports the status and leaves the verdict to the caller.
	if code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}

func TestDeletes(t *testing.T) {
	var gotPath, gotKey string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
	}))

	if err := c.DeleteRow(42); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/delete.php" || gotKey != "42" {
		t.Errorf("delete row hit %s?key=%s", gotPath, gotKey)
	}

	if err := c.DeleteEndpoint("10.0.0.9"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/deleteMAC.php" || gotKey != "10.0.0.9" {
		t.Errorf("delete endpoint hit %s?key=%s", gotPath, gotKey)
	}
}

func TestDeleteNonOKStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if err := c.DeleteRow(7); err == nil {
		t.Fatal("want error for 404")
	}
}

func TestFetchDevices(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ip.php" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, "2|shed:10.0.0.9|attic:10.0.0.12|")
	}))

	devs, err := c.FetchDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 2 || devs[0].Name != "shed" || devs[1].Addr != "10.0.0.12" {
		t.Errorf("devices = %v", devs)
	}
}

func TestRowCount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rows.php" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, "137\n")
	}))

	n, err := c.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 137 {
		t.Errorf("RowCount = %d, want 137", n)
	}
}

func TestRowCountGarbage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	}))
	if _, err := c.RowCount(); err == nil {
		t.Fatal("want error for non-numeric body")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("want error for empty base url")
	}
}
