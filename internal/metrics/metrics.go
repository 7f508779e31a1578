package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Collector struct {
	reg *prometheus.Registry

	CyclesTotal   prometheus.Counter
	CycleFailures prometheus.Counter
	CycleDuration prometheus.Histogram
	LoadDuration  prometheus.Histogram

	TripsMonitored   prometheus.Gauge
	EventsEmitted    *prometheus.CounterVec // label: type
	AlertsSuppressed prometheus.Counter

	PingsReceived prometheus.Counter

	AlertsPublished  prometheus.Counter
	AlertPublishErrs prometheus.Counter
	NATSConnected    prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Total classification cycles run.",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_cycle_failures_total",
			Help: "Total classification cycles that failed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Duration of a full extract-classify-load cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_load_duration_seconds",
			Help:    "Duration of the export payload load phase.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 15),
		}),
		TripsMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_trips_monitored",
			Help: "Trips classified in the last cycle.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_events_emitted_total",
			Help: "Notification events exported, by type.",
		}, []string{"type"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_suppressed_total",
			Help: "noPings alerts suppressed by deduplication.",
		}),
		PingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_pings_received_total",
			Help: "Driver pings accepted by the ingestion endpoint.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_published_total",
			Help: "Alert events published to NATS.",
		}),
		AlertPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alert_publish_errors_total",
			Help: "Alert publish failures.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.CyclesTotal, c.CycleFailures, c.CycleDuration, c.LoadDuration,
		c.TripsMonitored, c.EventsEmitted, c.AlertsSuppressed,
		c.PingsReceived,
		c.AlertsPublished, c.AlertPublishErrs, c.NATSConnected,
	)

	return c
}

// AlertPublishedInc, AlertPublishErrInc and SetNATSConnected satisfy the
// publisher's metrics interface.
func (c *Collector) AlertPublishedInc()  { c.AlertsPublished.Inc() }
func (c *Collector) AlertPublishErrInc() { c.AlertPublishErrs.Inc() }
func (c *Collector) SetNATSConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) ObserveCycle(d time.Duration) {
	c.CyclesTotal.Inc()
	c.CycleDuration.Observe(d.Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on its own listener. Empty addr disables it.
func (c *Collector) Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server error")
		}
	}()
	logrus.WithField("addr", addr).Info("metrics listening")
	return srv
}
