// Package metrics exposes the event client and HTTP façade as Prometheus
// collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/wsi"
)

const namespace = "wsi"

// Compile-time interface check to ensure proper implementation.
var _ wsi.Metrics = (*Collector)(nil)

// Collector implements wsi.Metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	batchSize          prometheus.Histogram
	batchDuration      prometheus.Histogram
	storeSize          prometheus.Gauge
	subscriptions      prometheus.Gauge
	connected          prometheus.Gauge
	newEvents          prometheus.Counter
	closedEvents       prometheus.Counter
	notificationErrors prometheus.Counter
	requestDuration    *prometheus.HistogramVec
	streamClients      *prometheus.GaugeVec
}

// New creates a collector with its own registry, including the Go and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_records",
			Help:      "Records per pushed event batch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent reconciling one pushed batch",
			Buckets:   prometheus.DefBuckets,
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_events",
			Help:      "Open events in the store",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Registered subscriptions, including the default one",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connected",
			Help:      "1 while the push connection is up",
		}),
		newEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_new_total",
			Help:      "Events added to the store",
		}),
		closedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_closed_total",
			Help:      "Stored events that closed",
		}),
		notificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Failed notification sink calls",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP façade request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		streamClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected streaming clients",
		}, []string{"kind"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.batchSize, c.batchDuration, c.storeSize, c.subscriptions, c.connected,
		c.newEvents, c.closedEvents, c.notificationErrors,
		c.requestDuration, c.streamClients,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveBatch implements wsi.Metrics.
func (c *Collector) ObserveBatch(records int, d time.Duration) {
	c.batchSize.Observe(float64(records))
	c.batchDuration.Observe(d.Seconds())
}

// SetStoreSize implements wsi.Metrics.
func (c *Collector) SetStoreSize(n int) { c.storeSize.Set(float64(n)) }

// SetSubscriptions implements wsi.Metrics.
func (c *Collector) SetSubscriptions(n int) { c.subscriptions.Set(float64(n)) }

// SetConnected implements wsi.Metrics.
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

// IncNewEvents implements wsi.Metrics.
func (c *Collector) IncNewEvents(n int) { c.newEvents.Add(float64(n)) }

// IncClosedEvents implements wsi.Metrics.
func (c *Collector) IncClosedEvents(n int) { c.closedEvents.Add(float64(n)) }

// IncNotificationErrors implements wsi.Metrics.
func (c *Collector) IncNotificationErrors() { c.notificationErrors.Inc() }

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// StreamClientConnected adjusts the streaming client gauge for kind
// ("ws" or "sse") by delta.
func (c *Collector) StreamClientConnected(kind string, delta int) {
	c.streamClients.WithLabelValues(kind).Add(float64(delta))
}
