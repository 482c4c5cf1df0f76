// internal/relay/relay_test.go
package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/espnet/sensor-relay/internal/reading"
)

// ---- FAKES ----

type fakeBackend struct {
	mu sync.Mutex

	posts     []string
	postCodes []int // consumed per call; last entry repeats
	postErr   error

	deleteRowKeys  []int
	deleteRowFails int // fail this many calls before succeeding

	deletedEndpoints []string
}

func (f *fakeBackend) Post(line string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, line)
	if f.postErr != nil {
		return 0, f.postErr
	}
	code := 200
	if len(f.postCodes) > 0 {
		code = f.postCodes[0]
		if len(f.postCodes) > 1 {
			f.postCodes = f.postCodes[1:]
		}
	}
	return code, nil
}

func (f *fakeBackend) DeleteRow(key int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteRowKeys = append(f.deleteRowKeys, key)
	if f.deleteRowFails > 0 {
		f.deleteRowFails--
		return errors.New("backend busy")
	}
	return nil
}

func (f *fakeBackend) DeleteEndpoint(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedEndpoints = append(f.deletedEndpoints, addr)
	return nil
}

type backendCalls struct {
	posts            []string
	deleteRowKeys    []int
	deletedEndpoints []string
}

func (f *fakeBackend) snapshot() backendCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return backendCalls{
		posts:            append([]string(nil), f.posts...),
		deleteRowKeys:    append([]int(nil), f.deleteRowKeys...),
		deletedEndpoints: append([]string(nil), f.deletedEndpoints...),
	}
}

// fakeExchanger fails the first failures calls, then succeeds with grid.
type fakeExchanger struct {
	mu       sync.Mutex
	failures int
	grid     reading.Grid
	calls    int
}

func (f *fakeExchanger) Exchange(endpoint, command string) (reading.Grid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return reading.Grid{}, errors.New("connect failed")
	}
	return f.grid, nil
}

type fakeMirror struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeMirror) Publish(device, line string) {
	f.mu.Lock()
	f.topics = append(f.topics, device)
	f.mu.Unlock()
}

func fastConfig() Config {
	return Config{
		RecoveryDelay:  time.Millisecond,
		ForwardDelay:   time.Millisecond,
		MaxDeleteRetry: 4,
		APIKey:         "k",
		Location:       "LAB",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---- POLL + ROUTING ----

func TestPollRoutesReadings(t *testing.T) {
	be := &fakeBackend{}
	r := New(fastConfig(), be)

	grid := reading.Tokenize("76,22.5,55,12,0,|,44,19.1,48.2,13,0,|")
	r.RegisterSource(OpLineExchange, &fakeExchanger{grid: grid})

	if err := r.Poll(OpLineExchange, "10.0.0.9", "read-all", true); err != nil {
		t.Fatal(err)
	}
	if got := r.Stats().Snapshot().Pass; got != 1 {
		t.Errorf("Pass = %d, want 1", got)
	}
	if got := r.ForwardDepth(); got != 2 {
		t.Fatalf("ForwardDepth = %d, want 2", got)
	}

	msg := <-r.forwardQ
	if msg.Device != "BME280" {
		t.Errorf("Device = %q, want BME280", msg.Device)
	}
	if msg.Key != 12 {
		t.Errorf("Key = %d, want 12", msg.Key)
	}
	// url.Values encodes keys in sorted order; measurements always
	// carry a decimal point.
	want := "api_key=k&location=LAB&sensor=BME280&value1=22.5&value2=55.0&value3=1"
	if msg.Line != want {
		t.Errorf("Line = %q\nwant   %q", msg.Line, want)
	}

	msg = <-r.forwardQ
	if msg.Device != "SHT35" || msg.Key != 13 {
		t.Errorf("second message = %+v", msg)
	}
}

func TestRouteSkipsUnknownCodes(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	r.route(reading.Tokenize("99,1,2,3,0,|,76,22.5,55,12,0,|"))

	if got := r.ForwardDepth(); got != 1 {
		t.Fatalf("ForwardDepth = %d, want 1", got)
	}
	if msg := <-r.forwardQ; msg.Device != "BME280" {
		t.Errorf("Device = %q", msg.Device)
	}
}

func TestRouteDropsWhenForwardQueueFull(t *testing.T) {
	cfg := fastConfig()
	cfg.ForwardDepth = 1
	r := New(cfg, &fakeBackend{})

	r.route(reading.Tokenize("76,1,2,3,0,|,44,4,5,6,0,|"))
	if got := r.ForwardDepth(); got != 1 {
		t.Fatalf("ForwardDepth = %d, want 1 (second row dropped)", got)
	}
}

func TestPollFailureQueuesRecovery(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	r.RegisterSource(OpLineExchange, &fakeExchanger{failures: 100})

	if err := r.Poll(OpLineExchange, "10.0.0.9", "read-all", true); err == nil {
		t.Fatal("want error")
	}
	snap := r.Stats().Snapshot()
	if snap.Fail != 1 {
		t.Errorf("Fail = %d, want 1", snap.Fail)
	}
	if snap.LastMessage == "" {
		t.Error("LastMessage not recorded")
	}
	if got := r.RecoveryDepth(); got != 1 {
		t.Errorf("RecoveryDepth = %d, want 1", got)
	}
}

func TestPollRetryDoesNotRequeue(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	r.RegisterSource(OpLineExchange, &fakeExchanger{failures: 100})

	// report=false is the recovery worker's own retry path; a failing
	// retry must not feed the queue it came from.
	if err := r.Poll(OpLineExchange, "10.0.0.9", "read-all", false); err == nil {
		t.Fatal("want error")
	}
	if got := r.RecoveryDepth(); got != 0 {
		t.Errorf("RecoveryDepth = %d, want 0", got)
	}
	if got := r.Stats().Snapshot().Fail; got != 0 {
		t.Errorf("Fail = %d, want 0", got)
	}
}

func TestPollUnregisteredOp(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	if err := r.Poll(OpModbusPoll, "x", "read-all", true); err == nil {
		t.Fatal("want error for unregistered op")
	}
}

// ---- RECOVERY ----

func TestRecoveryWorkerRetriesUntilSuccess(t *testing.T) {
	be := &fakeBackend{}
	r := New(fastConfig(), be)
	ex := &fakeExchanger{failures: 3}
	r.RegisterSource(OpLineExchange, ex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	// Primary attempt fails and enqueues; the worker then burns the
	// remaining failures and recovers.
	r.Poll(OpLineExchange, "10.0.0.9", "read-all", true)

	waitFor(t, "recovery", func() bool {
		return r.Stats().Snapshot().Recovered == 1
	})
	snap := r.Stats().Snapshot()
	if snap.Retry != 3 {
		t.Errorf("Retry = %d, want 3", snap.Retry)
	}
	if snap.Pass != 1 {
		t.Errorf("Pass = %d, want 1", snap.Pass)
	}
	if r.RecoveryDepth() != 0 {
		t.Errorf("RecoveryDepth = %d, want 0", r.RecoveryDepth())
	}
}

func TestRecoveryQueueFullShedsAndPurges(t *testing.T) {
	cfg := fastConfig()
	cfg.RecoveryDepth = 2
	be := &fakeBackend{}
	r := New(cfg, be)

	// No workers running; fill the queue then overflow it.
	r.SubmitRecovery(RecoveryJob{Op: OpLineExchange, Endpoint: "10.0.0.9", Command: "read-all"})
	r.SubmitRecovery(RecoveryJob{Op: OpLineExchange, Endpoint: "10.0.0.9", Command: "read-all"})
	if got := r.RecoveryDepth(); got != 2 {
		t.Fatalf("RecoveryDepth = %d, want 2", got)
	}

	r.SubmitRecovery(RecoveryJob{Op: OpLineExchange, Endpoint: "10.0.0.9", Command: "read-all"})

	if got := r.RecoveryDepth(); got != 0 {
		t.Errorf("RecoveryDepth after shed = %d, want 0", got)
	}
	got := be.snapshot().deletedEndpoints
	if len(got) != 1 || got[0] != "10.0.0.9" {
		t.Errorf("deleted endpoints = %v, want [10.0.0.9]", got)
	}
}

// ---- FORWARDING ----

func TestForwardWorkerDelivers(t *testing.T) {
	be := &fakeBackend{}
	r := New(fastConfig(), be)
	m := &fakeMirror{}
	r.SetMirror(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	r.forwardQ <- TelemetryMessage{Device: "BME280", Line: "api_key=k", Key: 7}

	waitFor(t, "delivery", func() bool {
		return r.Stats().Snapshot().Delivered == 1
	})
	if posts := be.snapshot().posts; len(posts) != 1 || posts[0] != "api_key=k" {
		t.Errorf("posts = %v", posts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.topics) != 1 || m.topics[0] != "BME280" {
		t.Errorf("mirrored = %v", m.topics)
	}
}

func TestForwardWorkerFailureDeletesAndRequeues(t *testing.T) {
	be := &fakeBackend{
		postCodes:      []int{0, 200}, // first POST rejected, second accepted
		deleteRowFails: 2,
	}
	r := New(fastConfig(), be)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	r.forwardQ <- TelemetryMessage{Device: "BME280", Line: "api_key=k", Key: 7}

	waitFor(t, "redelivery", func() bool {
		return r.Stats().Snapshot().Delivered == 1
	})
	snap := r.Stats().Snapshot()
	if snap.DeliveryFailed != 1 {
		t.Errorf("DeliveryFailed = %d, want 1", snap.DeliveryFailed)
	}
	if snap.Requeued != 1 {
		t.Errorf("Requeued = %d, want 1", snap.Requeued)
	}

	// Two failed delete attempts, then the one that lands. Never the
	// full MaxDeleteRetry once a delete succeeds.
	keys := be.snapshot().deleteRowKeys
	if len(keys) != 3 {
		t.Fatalf("delete attempts = %d, want 3", len(keys))
	}
	for _, k := range keys {
		if k != 7 {
			t.Errorf("delete key = %d, want 7", k)
		}
	}
}

func TestFailedDeliveryBoundedDeletes(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxDeleteRetry = 3
	be := &fakeBackend{deleteRowFails: 100}
	r := New(cfg, be)

	r.failedDelivery(context.Background(), TelemetryMessage{Key: 7}, 0, errors.New("down"))

	if got := len(be.snapshot().deleteRowKeys); got != 3 {
		t.Errorf("delete attempts = %d, want 3", got)
	}
	if got := r.Stats().Snapshot().Requeued; got != 1 {
		t.Errorf("Requeued = %d, want 1", got)
	}
	if got := r.ForwardDepth(); got != 1 {
		t.Errorf("ForwardDepth = %d, want 1", got)
	}
}

func TestFailedDeliveryDropsWhenQueueFull(t *testing.T) {
	cfg := fastConfig()
	cfg.ForwardDepth = 1
	be := &fakeBackend{}
	r := New(cfg, be)

	r.forwardQ <- TelemetryMessage{Key: 1}

	r.failedDelivery(context.Background(), TelemetryMessage{Key: 7}, 0, errors.New("down"))

	if got := r.Stats().Snapshot().Requeued; got != 0 {
		t.Errorf("Requeued = %d, want 0 (message dropped)", got)
	}
	if got := r.ForwardDepth(); got != 1 {
		t.Errorf("ForwardDepth = %d, want 1", got)
	}
}

// ---- QUIESCE ----

func TestQuiesceIdle(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	if !r.Quiesce(time.Second) {
		t.Fatal("Quiesce on idle relay = false")
	}
	// Both mutexes must be held afterwards.
	if r.sockMu.TryLock() || r.httpMu.TryLock() {
		t.Fatal("worker mutexes not held after Quiesce")
	}
}

func TestQuiesceTimesOutWhenBusy(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	r.recoveryQ <- RecoveryJob{Op: OpLineExchange, Endpoint: "x"}

	if r.Quiesce(50 * time.Millisecond) {
		t.Fatal("Quiesce with queued work = true")
	}
	// Mutexes stay free on the failure path.
	if !r.sockMu.TryLock() {
		t.Fatal("sockMu held after failed Quiesce")
	}
	r.sockMu.Unlock()
}

// ---- MISC ----

func TestSensorName(t *testing.T) {
	cases := []struct {
		code int
		name string
		ok   bool
	}{
		{77, "BMP390", true},
		{76, "BME280", true},
		{58, "BMP280", true},
		{44, "SHT35", true},
		{48, "ADS1115", true},
		{28, "DS1", true},
		{99, "", false},
	}
	for _, tc := range cases {
		name, ok := SensorName(tc.code)
		if name != tc.name || ok != tc.ok {
			t.Errorf("SensorName(%d) = %q,%v, want %q,%v", tc.code, name, ok, tc.name, tc.ok)
		}
	}
}

func TestFormatMeasurement(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{22.5, "22.5"},
		{55, "55.0"},
		{0, "0.0"},
		{-3.25, "-3.25"},
	}
	for _, tc := range cases {
		if got := formatMeasurement(tc.in); got != tc.want {
			t.Errorf("formatMeasurement(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSeedPass(t *testing.T) {
	r := New(fastConfig(), &fakeBackend{})
	r.Stats().SeedPass(137)
	if got := r.Stats().Snapshot().Pass; got != 137 {
		t.Errorf("Pass = %d, want 137", got)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0d 0h 0m 0s"},
		{90 * time.Second, "0d 0h 1m 30s"},
		{25*time.Hour + 61*time.Second, "1d 1h 1m 1s"},
	}
	for _, tc := range cases {
		if got := FormatUptime(tc.d); got != tc.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestOpKindString(t *testing.T) {
	if OpLineExchange.String() != "line" || OpModbusPoll.String() != "modbus" {
		t.Error("op kind names changed")
	}
	if OpKind(0).String() != "unknown" {
		t.Error("zero op kind should be unknown")
	}
}
