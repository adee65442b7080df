package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRemoteWriteServer returns a test server that decodes remote write
// requests and forwards the received series to the returned channel.
func newRemoteWriteServer(t *testing.T, buffer int) (*httptest.Server, <-chan []prompb.TimeSeries) {
	t.Helper()

	received := make(chan []prompb.TimeSeries, buffer)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var writeReq prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &writeReq))

		received <- writeReq.Timeseries
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	return server, received
}

// closeRegistry flushes r, failing the test if the queue does not drain.
func closeRegistry(t *testing.T, r *PushRegistry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
}

func findLabel(labels []prompb.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

func receive(t *testing.T, ch <-chan []prompb.TimeSeries) prompb.TimeSeries {
	t.Helper()
	select {
	case series := <-ch:
		require.Len(t, series, 1)
		return series[0]
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for metrics to be received")
	}
	return prompb.TimeSeries{}
}

func TestPushGaugeVec_Set(t *testing.T) {
	server, received := newRemoteWriteServer(t, 1)

	registry := NewPushRegistry(PushConfig{
		URL:      server.URL + "/",
		Prefix:   "flowscope",
		Job:      "testjob",
		Instance: "testinstance",
	})
	defer closeRegistry(t, registry)

	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tasks_registered",
		Help: "A test gauge",
	}, []string{"workflow"})
	require.NoError(t, err)

	gaugeVec.With(prometheus.Labels{"workflow": "nightly"}).Set(7)

	ts := receive(t, received)
	assert.Equal(t, "flowscope_tasks_registered", findLabel(ts.Labels, "__name__"))
	assert.Equal(t, "testjob", findLabel(ts.Labels, "job"))
	assert.Equal(t, "testinstance", findLabel(ts.Labels, "instance"))
	assert.Equal(t, "nightly", findLabel(ts.Labels, "workflow"))
	require.Len(t, ts.Samples, 1)
	assert.Equal(t, 7.0, ts.Samples[0].Value)

	// Labels must arrive sorted by name
	for i := 1; i < len(ts.Labels); i++ {
		assert.Less(t, ts.Labels[i-1].Name, ts.Labels[i].Name)
	}
}

func TestPushCounterVec_Inc(t *testing.T) {
	server, received := newRemoteWriteServer(t, 3)

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	defer closeRegistry(t, registry)

	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_added_total",
		Help: "A test counter",
	}, []string{"workflow"})
	require.NoError(t, err)

	labels := prometheus.Labels{"workflow": "nightly"}
	counterVec.With(labels).Inc()
	counterVec.With(labels).Inc()
	counterVec.With(prometheus.Labels{"workflow": "other"}).Inc()

	// Counters push their running total
	assert.Equal(t, 1.0, receive(t, received).Samples[0].Value)
	assert.Equal(t, 2.0, receive(t, received).Samples[0].Value)

	ts := receive(t, received)
	assert.Equal(t, "other", findLabel(ts.Labels, "workflow"))
	assert.Equal(t, 1.0, ts.Samples[0].Value)
}

func TestPushRegistry_LogsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var buf bytes.Buffer
	registry := NewPushRegistry(PushConfig{
		URL:    server.URL,
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})

	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "g", Help: "g"}, []string{"workflow"})
	require.NoError(t, err)

	// Failure must not panic or block the caller
	gaugeVec.With(prometheus.Labels{"workflow": "w"}).Set(1)
	closeRegistry(t, registry)

	assert.Contains(t, buf.String(), "failed to push metric")
	assert.Contains(t, buf.String(), "503")
}

func TestLabelsKey_Stable(t *testing.T) {
	labels := prometheus.Labels{"b": "2", "a": "1", "c": "3"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, "a=1,b=2,c=3,", labelsKey(labels))
	}
}

func TestPushRegistry_SendDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var values []float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		var writeReq prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &writeReq))

		mu.Lock()
		values = append(values, writeReq.Timeseries[0].Samples[0].Value)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "g", Help: "g"}, []string{"workflow"})
	require.NoError(t, err)
	gauge := gaugeVec.With(prometheus.Labels{"workflow": "w"})

	start := time.Now()
	for i := 1; i <= 5; i++ {
		gauge.Set(float64(i))
	}
	assert.Less(t, time.Since(start), time.Second, "Set must not wait for the endpoint")

	close(release)
	closeRegistry(t, registry)

	// Close flushes everything that was queued, in order
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, values)
}

func TestPushRegistry_QueueFullDrops(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var buf bytes.Buffer
	registry := NewPushRegistry(PushConfig{
		URL:       server.URL,
		QueueSize: 1,
		Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
	})
	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "g", Help: "g"}, []string{"workflow"})
	require.NoError(t, err)
	gauge := gaugeVec.With(prometheus.Labels{"workflow": "w"})

	// At most one sample is in flight and one queued; the rest are dropped
	for i := 0; i < 10; i++ {
		gauge.Set(float64(i))
	}

	close(release)
	closeRegistry(t, registry)
	assert.Contains(t, buf.String(), "metric queue full")
}

func TestPushRegistry_SetAfterClose(t *testing.T) {
	var buf bytes.Buffer
	registry := NewPushRegistry(PushConfig{
		URL:    "http://127.0.0.1:0",
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})
	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "g", Help: "g"}, []string{"workflow"})
	require.NoError(t, err)

	closeRegistry(t, registry)
	// A second Close is a no-op
	closeRegistry(t, registry)

	assert.NotPanics(t, func() {
		gaugeVec.With(prometheus.Labels{"workflow": "w"}).Set(1)
	})
	assert.Contains(t, buf.String(), "metric dropped after close")
}

func TestPushCounter_ValuesIncrease(t *testing.T) {
	const incs = 50
	server, received := newRemoteWriteServer(t, incs)

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "c", Help: "c"}, []string{"workflow"})
	require.NoError(t, err)
	counter := counterVec.With(prometheus.Labels{"workflow": "w"})

	var wg sync.WaitGroup
	for i := 0; i < incs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Inc()
		}()
	}
	wg.Wait()
	closeRegistry(t, registry)

	// Remote storage must never see the total go down
	for i := 1; i <= incs; i++ {
		ts := receive(t, received)
		assert.Equal(t, float64(i), ts.Samples[0].Value, fmt.Sprintf("sample %d", i))
	}
}

func TestPushVec_CopiesLabels(t *testing.T) {
	server, received := newRemoteWriteServer(t, 2)

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "g", Help: "g"}, []string{"workflow"})
	require.NoError(t, err)
	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "c", Help: "c"}, []string{"workflow"})
	require.NoError(t, err)

	labels := prometheus.Labels{"workflow": "nightly"}
	gauge := gaugeVec.With(labels)
	counter := counterVec.With(labels)

	// Reusing the map must not change the series already handed out
	labels["workflow"] = "changed"
	gauge.Set(1)
	counter.Inc()
	closeRegistry(t, registry)

	assert.Equal(t, "nightly", findLabel(receive(t, received).Labels, "workflow"))
	assert.Equal(t, "nightly", findLabel(receive(t, received).Labels, "workflow"))
}
