package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for remote write requests
	DefaultTimeout = 30 * time.Second

	// DefaultQueueSize is the default number of samples buffered for sending.
	DefaultQueueSize = 1024
)

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:8428").
	URL string
	// Prefix is prepended to every metric name, followed by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// QueueSize bounds the samples waiting to be sent. Defaults to DefaultQueueSize.
	QueueSize int
	// Logger receives push failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// PushRegistry implements Registry by pushing every update to a
// VictoriaMetrics/Prometheus remote write endpoint.
//
// Updates never block: samples are queued and sent in order by a single
// background goroutine. When the queue is full the sample is dropped.
// Push failures are logged and never returned to the caller. Close must be
// called to flush the queue.
type PushRegistry struct {
	pusher *pusher
}

// NewPushRegistry creates a new PushRegistry that pushes metrics to cfg.URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &pusher{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		httpClient: &http.Client{Timeout: timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		timeout:    timeout,
		logger:     logger.With("component", "metrics_pusher"),
		queue:      make(chan sample, queueSize),
		done:       make(chan struct{}),
	}
	go p.run()
	return &PushRegistry{pusher: p}
}

// NewGaugeVec creates a new push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{pusher: r.pusher, name: opts.Name}, nil
}

// NewCounterVec creates a new push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{pusher: r.pusher, name: opts.Name}, nil
}

// Close stops accepting samples and waits until the queued ones have been
// sent or ctx is done. Updates after Close are dropped.
func (r *PushRegistry) Close(ctx context.Context) error {
	r.pusher.close()
	select {
	case <-r.pusher.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flushing metrics: %w", ctx.Err())
	}
}

// sample is a single queued metric value.
type sample struct {
	name   string
	value  float64
	labels map[string]string
	at     time.Time
}

type pusher struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string
	timeout    time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan sample
	done   chan struct{}
}

// send queues a sample without blocking.
func (p *pusher) send(name string, value float64, labels map[string]string) {
	s := sample{name: name, value: value, labels: labels, at: time.Now()}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("metric dropped after close", "metric", name)
		return
	}
	select {
	case p.queue <- s:
	default:
		p.logger.Warn("metric queue full, dropping sample", "metric", name)
	}
}

func (p *pusher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

// run sends queued samples in order until the queue is closed.
func (p *pusher) run() {
	defer close(p.done)
	for s := range p.queue {
		if err := p.push(s); err != nil {
			p.logger.Warn("failed to push metric", "metric", s.name, "error", err)
		}
	}
}

func (p *pusher) push(s sample) error {
	req := &prompb.WriteRequest{
		Timeseries: []prompb.TimeSeries{p.timeSeries(s)},
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(snappy.Encode(nil, data)))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// timeSeries builds the remote write series for one sample.
// Labels are sorted by name as the remote write protocol requires.
func (p *pusher) timeSeries(s sample) prompb.TimeSeries {
	metricName := s.name
	if p.prefix != "" {
		metricName = p.prefix + "_" + s.name
	}

	promLabels := []prompb.Label{{Name: "__name__", Value: metricName}}
	if p.job != "" {
		promLabels = append(promLabels, prompb.Label{Name: "job", Value: p.job})
	}
	if p.instance != "" {
		promLabels = append(promLabels, prompb.Label{Name: "instance", Value: p.instance})
	}
	for k, v := range s.labels {
		promLabels = append(promLabels, prompb.Label{Name: k, Value: v})
	}
	sort.Slice(promLabels, func(i, j int) bool {
		return promLabels[i].Name < promLabels[j].Name
	})

	return prompb.TimeSeries{
		Labels: promLabels,
		Samples: []prompb.Sample{{
			Value:     s.value,
			Timestamp: s.at.UnixMilli(),
		}},
	}
}

type pushGauge struct {
	pusher *pusher
	name   string
	labels map[string]string
}

func (g *pushGauge) Set(v float64) {
	g.pusher.send(g.name, v, g.labels)
}

type pushGaugeVec struct {
	pusher *pusher
	name   string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{pusher: g.pusher, name: g.name, labels: maps.Clone(labels)}
}

// pushCounter keeps the running total locally since remote write only
// accepts absolute values. The total is queued under the lock so values
// reach the queue in increasing order.
type pushCounter struct {
	mu     sync.Mutex
	pusher *pusher
	name   string
	labels map[string]string
	value  float64
}

func (c *pushCounter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	c.pusher.send(c.name, c.value, c.labels)
}

type pushCounterVec struct {
	mu       sync.Mutex
	pusher   *pusher
	name     string
	counters map[string]*pushCounter
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	key := labelsKey(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counters == nil {
		c.counters = make(map[string]*pushCounter)
	}
	if counter, ok := c.counters[key]; ok {
		return counter
	}

	counter := &pushCounter{pusher: c.pusher, name: c.name, labels: maps.Clone(labels)}
	c.counters[key] = counter
	return counter
}

// labelsKey returns a stable map key for a label set.
func labelsKey(labels prometheus.Labels) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
		sb.WriteByte(',')
	}
	return sb.String()
}
