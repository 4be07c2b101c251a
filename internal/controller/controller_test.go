package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/config"
	"sdnguard/internal/learning"
	"sdnguard/internal/migration"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/probe"
	"sdnguard/internal/southbound"
)

type fakeProber struct {
	calls []string
}

func (f *fakeProber) Check(_ context.Context, sw, port string) probe.Result {
	f.calls = append(f.calls, sw+"/"+port)
	return probe.Result{Status: models.MigrationVerified, Switch: sw, Port: port}
}

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctrl   *Controller
	queue  *cmdqueue.ChanQueue
	prober *fakeProber
	dp     *southbound.RecordingDatapath
	reg    *prometheus.Registry
	frames map[string][]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	obs := observability.NewPromObs(reg, observability.NewLogger(io.Discard, observability.LevelError))
	h := &harness{
		queue:  cmdqueue.NewChanQueue(4),
		prober: &fakeProber{},
		reg:    reg,
		frames: map[string][]byte{},
	}
	h.ctrl, err = New(cfg, obs, h.queue, h.prober,
		WithMigrationOptions(migration.WithSleep(func(time.Duration) {})),
		WithListenerOptions(learning.WithClock(func() time.Time { return t0 })),
	)
	require.NoError(t, err)

	h.dp, err = southbound.NewRecordingDatapath(1, nil)
	require.NoError(t, err)
	return h
}

func (h *harness) frame(t *testing.T, dst string) []byte {
	t.Helper()
	if f, ok := h.frames[dst]; ok {
		return f
	}
	f, err := southbound.BuildFrame(southbound.FrameSpec{
		SrcMAC: "00:00:00:00:00:01",
		DstMAC: "00:00:00:00:00:03",
		SrcIP:  "10.0.0.1",
		DstIP:  dst,
	})
	require.NoError(t, err)
	h.frames[dst] = f
	return f
}

// burst sends n frames to dst spread evenly over span starting at from.
func (h *harness) burst(t *testing.T, dst string, n int, from time.Time, span time.Duration) {
	t.Helper()
	data := h.frame(t, dst)
	for i := 0; i < n; i++ {
		h.ctrl.Handler().HandlePacketIn(southbound.PacketIn{
			DP:       h.dp,
			InPort:   1,
			BufferID: southbound.NoBuffer,
			Data:     data,
			Received: from.Add(span * time.Duration(i) / time.Duration(n)),
		})
	}
}

func (h *harness) batches(t *testing.T) [][]cmdqueue.Entry {
	t.Helper()
	var out [][]cmdqueue.Entry
	for {
		var batch []cmdqueue.Entry
		n, err := h.queue.Drain(context.Background(), func(e cmdqueue.Entry) { batch = append(batch, e) })
		require.NoError(t, err)
		if n == 0 {
			return out
		}
		out = append(out, batch)
	}
}

func TestFloodTriggersExactlyOnePlan(t *testing.T) {
	h := newHarness(t)

	h.burst(t, "10.0.0.3", 150, t0, 500*time.Millisecond)
	// Next event after the window closes it.
	h.burst(t, "10.0.0.2", 1, t0.Add(time.Second), 0)

	st := h.ctrl.Status()
	assert.True(t, st.Latch)
	assert.Equal(t, "verified", st.State)
	require.NotNil(t, st.Migration)
	assert.Equal(t, "10.0.0.3", st.Migration.Destination)
	assert.Equal(t, 150, st.Migration.PacketCount)
	assert.Equal(t, []string{"s1/s1-eth4"}, h.prober.calls)

	// A second flood in a later window changes nothing.
	h.burst(t, "10.0.0.3", 150, t0.Add(2*time.Second), 500*time.Millisecond)
	h.burst(t, "10.0.0.3", 1, t0.Add(3*time.Second), 0)

	batches := h.batches(t)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 7)
	assert.Equal(t, "py link-status h3 s2 down", batches[0][0].Text)
	assert.Equal(t, "py del-flows s2 s1", batches[0][6].Text)
	assert.Len(t, h.prober.calls, 1)
	assert.Len(t, h.dp.PacketOuts(), 302, "every event is forwarded")
}

func TestStraddlingBurstDoesNotTrigger(t *testing.T) {
	h := newHarness(t)

	h.burst(t, "10.0.0.9", 1, t0, 0)
	h.burst(t, "10.0.0.3", 80, t0.Add(900*time.Millisecond), 90*time.Millisecond)
	h.burst(t, "10.0.0.3", 80, t0.Add(time.Second), 90*time.Millisecond)
	h.burst(t, "10.0.0.9", 1, t0.Add(2100*time.Millisecond), 0)

	assert.False(t, h.ctrl.Status().Latch)
	assert.Empty(t, h.batches(t))
	assert.Empty(t, h.prober.calls)
}

func TestExactlyThresholdDoesNotTrigger(t *testing.T) {
	h := newHarness(t)

	h.burst(t, "10.0.0.3", 99, t0, 500*time.Millisecond)
	// The closing event is the 100th packet to the same destination.
	h.burst(t, "10.0.0.3", 1, t0.Add(time.Second), 0)

	assert.False(t, h.ctrl.Status().Latch)
	assert.Empty(t, h.batches(t))
}

func TestAPI(t *testing.T) {
	h := newHarness(t)
	h.burst(t, "10.0.0.3", 3, t0, 0)
	srv := httptest.NewServer(h.ctrl.Router(h.reg))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var b strings.Builder
		_, err = io.Copy(&b, resp.Body)
		require.NoError(t, err)
		return resp, b.String()
	}

	resp, body := get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", body)

	resp, body = get("/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.False(t, st.Latch)
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, 3, st.WindowCounts["10.0.0.3"])
	assert.Equal(t, 1, st.Bindings)

	_, body = get("/bindings")
	var bindings []learning.Binding
	require.NoError(t, json.Unmarshal([]byte(body), &bindings))
	require.Len(t, bindings, 1)
	assert.Equal(t, uint32(1), bindings[0].Port)

	_, body = get("/plan")
	assert.Contains(t, body, "py add-link h3 s1 h3-eth1 s1-eth4")

	resp, body = get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sdnguard_packets_total 3")

	resp, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", h.ctrl.Router(h.reg), observability.Discard()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
