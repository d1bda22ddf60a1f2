package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NilIsDisabled(t *testing.T) {
	var r *Registry
	assert.Nil(t, r.Registerer())
}

func TestRegister_ReturnsExistingCollector(t *testing.T) {
	r := NewRegistry()
	opts := prometheus.CounterOpts{Namespace: Namespace, Name: "test_total", Help: "test"}

	first := Register(r.Registerer(), prometheus.NewCounter(opts))
	first.Add(3)

	second := Register(r.Registerer(), prometheus.NewCounter(opts))
	assert.Equal(t, float64(3), testutil.ToFloat64(second))
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	r := NewRegistry()
	c := Register(r.Registerer(), prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frames_total",
		Help:      "frames",
	}))
	c.Inc()

	srv := NewServer("127.0.0.1:0", "", r)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		return srv.Addr() != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + DefaultPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "sensord_frames_total 1")

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunTwice(t *testing.T) {
	srv := NewServer("127.0.0.1:0", "/m", NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		return srv.Addr() != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	err := srv.Run(ctx)
	assert.Error(t, err)
}
