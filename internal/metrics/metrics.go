// Package metrics reports perambulator throughput and per-timeslice timings.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reporter receives one ObserveRead per perambulator block and one
// ObserveTimeslice per finished source timeslice.
type Reporter interface {
	ObserveRead(bytes int64, elapsed time.Duration)
	ObserveTimeslice(kind string, elapsed time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRead(int64, time.Duration)        {}
func (Nop) ObserveTimeslice(string, time.Duration) {}

// Prometheus records into collectors registered on a caller-owned registry.
type Prometheus struct {
	bytesRead     prometheus.Counter
	readSeconds   prometheus.Histogram
	timeslices    *prometheus.CounterVec
	timesliceSecs *prometheus.HistogramVec
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "perambulator",
			Name:      "bytes_read_total",
			Help:      "Perambulator payload bytes read",
		}),
		readSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "perambulator",
			Name:      "read_seconds",
			Help:      "Perambulator block read latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		timeslices: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "timeslices_total",
			Help:      "Source timeslices contracted",
		}, []string{"kind"}),
		timesliceSecs: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Name:      "timeslice_seconds",
			Help:      "Wall time per source timeslice, read included",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"kind"}),
	}
}

func (p *Prometheus) ObserveRead(bytes int64, elapsed time.Duration) {
	p.bytesRead.Add(float64(bytes))
	p.readSeconds.Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveTimeslice(kind string, elapsed time.Duration) {
	p.timeslices.WithLabelValues(kind).Inc()
	p.timesliceSecs.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// WriteTextfile dumps every metric gathered by g in the text exposition
// format, for node-exporter style textfile collection.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
