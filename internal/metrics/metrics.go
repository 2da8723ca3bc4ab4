// Package metrics records the outcome of a distribution run as Prometheus
// metrics and exports them in the node_exporter textfile format, so runs
// started from cron or a systemd timer can be alerted on.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

const namespace = "acme_distributor"

// Recorder holds the metrics of one run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	hostSuccess       *prometheus.GaugeVec
	hosts             *prometheus.GaugeVec
	failures          *prometheus.CounterVec
	hostDuration      prometheus.Histogram
	bytesUploaded     prometheus.Counter
	lastRun           prometheus.Gauge
	certificateExpiry *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		hostSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "host_success",
				Help:      "Whether the last distribution to the host succeeded (1) or not (0)",
			},
			[]string{"host"},
		),

		hosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hosts",
				Help:      "Number of hosts in the last run by result",
			},
			[]string{"result"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Host failures by phase",
			},
			[]string{"phase"},
		),

		hostDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "host_duration_seconds",
				Help:      "Time spent per host in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
		),

		bytesUploaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploaded_bytes_total",
				Help:      "Bytes uploaded across all hosts",
			},
		),

		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),

		certificateExpiry: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "certificate_expiry_timestamp_seconds",
				Help:      "Unix time the distributed certificate expires",
			},
			[]string{"domain"},
		),
	}

	r.registry.MustRegister(
		r.hostSuccess,
		r.hosts,
		r.failures,
		r.hostDuration,
		r.bytesUploaded,
		r.lastRun,
		r.certificateExpiry,
	)
	return r
}

// RecordResults records the per-host outcomes of a run.
func (r *Recorder) RecordResults(results []fleet.Result, finished time.Time) {
	var succeeded, failed int
	for _, res := range results {
		host := res.Target.String()
		r.hostDuration.Observe(res.Duration.Seconds())
		r.bytesUploaded.Add(float64(res.Bytes))

		if res.Succeeded() {
			succeeded++
			r.hostSuccess.WithLabelValues(host).Set(1)
			continue
		}

		failed++
		r.hostSuccess.WithLabelValues(host).Set(0)
		phase := "unknown"
		var hostErr *fleet.HostError
		if errors.As(res.Err, &hostErr) {
			phase = string(hostErr.Phase)
		}
		r.failures.WithLabelValues(phase).Inc()
	}

	r.hosts.WithLabelValues("succeeded").Set(float64(succeeded))
	r.hosts.WithLabelValues("failed").Set(float64(failed))
	r.lastRun.Set(float64(finished.Unix()))
}

// RecordCertificate records the expiry of the distributed certificate. A zero
// notAfter (unparseable certificate) is skipped.
func (r *Recorder) RecordCertificate(domain string, notAfter time.Time) {
	if notAfter.IsZero() {
		return
	}
	r.certificateExpiry.WithLabelValues(domain).Set(float64(notAfter.Unix()))
}

// WriteTextfile writes the metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
