// Package monitor exposes the progress of an evaluation pass: Prometheus
// metrics, a WebSocket progress stream and the HTTP server carrying both.
package monitor

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/rcnneval/internal/eval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. It implements eval.Observer.
type Metrics struct {
	registry *prometheus.Registry

	imagesTotal     prometheus.Gauge
	imagesProcessed prometheus.Counter
	detections      prometheus.Counter
	detectDuration  prometheus.Histogram
	classThreshold  *prometheus.GaugeVec
	passRecords     *prometheus.GaugeVec

	oracleCalls    *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec

	websocketConnections prometheus.Gauge
	websocketMessages    prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		imagesTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "rcnneval_images_total",
			Help: "Number of images in the dataset being evaluated",
		}),
		imagesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "rcnneval_images_processed_total",
			Help: "Number of images detected and selected",
		}),
		detections: f.NewCounter(prometheus.CounterOpts{
			Name: "rcnneval_detections_selected_total",
			Help: "Detection records stored before corpus pruning",
		}),
		detectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcnneval_image_detect_duration_seconds",
			Help:    "Time spent scoring one image",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		classThreshold: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rcnneval_class_threshold",
			Help: "Current score threshold per class",
		}, []string{"class"}),
		passRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rcnneval_pass_records",
			Help: "Record counts of the finished pass",
		}, []string{"stage"}), // stage: selected, pruned, kept

		oracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcnneval_oracle_calls_total",
			Help: "Scoring oracle invocations",
		}, []string{"input", "status"}),
		oracleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rcnneval_oracle_duration_seconds",
			Help:    "Scoring oracle call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"input"}), // input: regions, patches, grid

		websocketConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "rcnneval_websocket_active_connections",
			Help: "Number of active progress stream connections",
		}),
		websocketMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "rcnneval_websocket_messages_sent_total",
			Help: "Progress messages queued to stream clients",
		}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values for a node exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// OnStart implements eval.Observer.
func (m *Metrics) OnStart(_ string, total int) {
	m.imagesTotal.Set(float64(total))
}

// OnImage implements eval.Observer.
func (m *Metrics) OnImage(ev eval.ImageEvent) {
	m.imagesProcessed.Inc()
	m.detections.Add(float64(ev.Detections))
	m.detectDuration.Observe(ev.DetectTime.Seconds())
}

// OnThreshold implements eval.Observer.
func (m *Metrics) OnThreshold(class int, value float64) {
	m.classThreshold.WithLabelValues(strconv.Itoa(class)).Set(value)
}

// OnComplete implements eval.Observer.
func (m *Metrics) OnComplete(s eval.Summary) {
	for class := 1; class < len(s.Thresholds); class++ {
		m.classThreshold.WithLabelValues(strconv.Itoa(class)).Set(s.Thresholds[class])
	}
	m.passRecords.WithLabelValues("selected").Set(float64(s.Selected))
	m.passRecords.WithLabelValues("pruned").Set(float64(s.Pruned))
	m.passRecords.WithLabelValues("kept").Set(float64(s.Kept))
}
