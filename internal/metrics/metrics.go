// Package metrics exposes push engine events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier/internal/logging"
)

const namespace = "courier"

// Collector implements push.Metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	streamsCreated   *prometheus.CounterVec
	streamsReused    *prometheus.CounterVec
	streamsDiscarded *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	retries          *prometheus.CounterVec
	aborted          *prometheus.CounterVec
}

// New registers the courier metrics plus the Go runtime and process
// collectors on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		streamsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "streams_created_total",
			Help:      "Streams dialled to the gateway.",
		}, []string{"configuration"}),
		streamsReused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "streams_reused_total",
			Help:      "Idle streams that passed the liveness probe and were reused.",
		}, []string{"configuration"}),
		streamsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "streams_discarded_total",
			Help:      "Streams closed instead of returned to the pool.",
		}, []string{"configuration", "reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "requests_total",
			Help:      "Gateway replies by status code.",
		}, []string{"configuration", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "request_duration_seconds",
			Help:      "Time from sending a notification to receiving the gateway reply.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"configuration"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "transport_retries_total",
			Help:      "Recipients retried on a fresh stream after a transport failure.",
		}, []string{"configuration"}),
		aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deliveries_aborted_total",
			Help:      "Delivery calls that gave up after a failed retry.",
		}, []string{"configuration"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.streamsCreated,
		c.streamsReused,
		c.streamsDiscarded,
		c.requests,
		c.requestDuration,
		c.retries,
		c.aborted,
	)
	return c
}

func (c *Collector) StreamCreated(configuration string) {
	c.streamsCreated.WithLabelValues(configuration).Inc()
}

func (c *Collector) StreamReused(configuration string) {
	c.streamsReused.WithLabelValues(configuration).Inc()
}

func (c *Collector) StreamDiscarded(configuration, reason string) {
	c.streamsDiscarded.WithLabelValues(configuration, reason).Inc()
}

func (c *Collector) RequestCompleted(configuration string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(configuration, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(configuration).Observe(elapsed.Seconds())
}

func (c *Collector) TransportRetried(configuration string) {
	c.retries.WithLabelValues(configuration).Inc()
}

func (c *Collector) DeliveryAborted(configuration string) {
	c.aborted.WithLabelValues(configuration).Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on bind until ctx is cancelled. The returned address
// is the one actually bound, which differs from bind when it asks for port 0.
func (c *Collector) Serve(ctx context.Context, bind string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics listener stopped", "metrics_listener_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "metrics are no longer exported"),
			)
		}
	}()

	addr := listener.Addr().String()
	logger.Info("metrics listener started", logging.String("address", addr))
	return addr, nil
}
